package main

import (
	"database/sql"
	"errors"
	"log"
)

// ErrQuestionNotPending signals an answer or skip against a question that
// already reached a terminal state. The attempt is a no-op; nothing is
// mutated.
var ErrQuestionNotPending = errors.New("question is not pending")

func InsertClarificationQuestion(db *sql.DB, q ClarificationQuestion) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO clarification_questions
		 (question_type, question_text, subject_type, subject_id, subject_text, candidate_label, options, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'pending')`,
		q.QuestionType, q.QuestionText, q.SubjectType, q.SubjectID,
		q.SubjectText, q.CandidateLabel, q.Options,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	log.Printf("clarification question created id=%d type=%s subject=%s:%d", id, q.QuestionType, q.SubjectType, q.SubjectID)
	return id, nil
}

func GetQuestionByID(db *sql.DB, id int64) (ClarificationQuestion, error) {
	var q ClarificationQuestion
	var answeredAt sql.NullTime
	err := db.QueryRow(
		`SELECT id, question_type, question_text, subject_type, subject_id, subject_text,
		        candidate_label, options, status, answer, created_at, answered_at
		 FROM clarification_questions WHERE id = ?`,
		id,
	).Scan(&q.ID, &q.QuestionType, &q.QuestionText, &q.SubjectType, &q.SubjectID,
		&q.SubjectText, &q.CandidateLabel, &q.Options, &q.Status, &q.Answer,
		&q.CreatedAt, &answeredAt)
	if answeredAt.Valid {
		q.AnsweredAt = answeredAt.Time
	}
	return q, err
}

func GetPendingQuestions(db *sql.DB) ([]ClarificationQuestion, error) {
	rows, err := db.Query(
		`SELECT id, question_type, question_text, subject_type, subject_id, subject_text,
		        candidate_label, options, status, answer, created_at, answered_at
		 FROM clarification_questions
		 WHERE status = 'pending'
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []ClarificationQuestion
	for rows.Next() {
		var q ClarificationQuestion
		var answeredAt sql.NullTime
		if err := rows.Scan(&q.ID, &q.QuestionType, &q.QuestionText, &q.SubjectType,
			&q.SubjectID, &q.SubjectText, &q.CandidateLabel, &q.Options, &q.Status,
			&q.Answer, &q.CreatedAt, &answeredAt); err != nil {
			return nil, err
		}
		if answeredAt.Valid {
			q.AnsweredAt = answeredAt.Time
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// markQuestionResolved moves a pending question to a terminal state. The
// UPDATE is guarded on status so a second answer or skip cannot race past the
// pending check.
func markQuestionResolved(db *sql.DB, id int64, status, answer string) error {
	res, err := db.Exec(
		`UPDATE clarification_questions
		 SET status = ?, answer = ?, answered_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'pending'`,
		status, answer, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrQuestionNotPending
	}
	return nil
}

// ResolveQuestionAnswered records the user's answer. Returns
// ErrQuestionNotPending if the question was already answered or skipped.
func ResolveQuestionAnswered(db *sql.DB, id int64, answer string) error {
	if err := markQuestionResolved(db, id, questionStatusAnswered, answer); err != nil {
		return err
	}
	log.Printf("question answered id=%d answer=%q", id, answer)
	return nil
}

// ResolveQuestionSkipped marks a question skipped without any confidence
// feedback.
func ResolveQuestionSkipped(db *sql.DB, id int64) error {
	if err := markQuestionResolved(db, id, questionStatusSkipped, ""); err != nil {
		return err
	}
	log.Printf("question skipped id=%d", id)
	return nil
}

func CountPendingQuestions(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM clarification_questions WHERE status = 'pending'`).Scan(&count)
	return count, err
}
