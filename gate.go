package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// Subject identifies what a classification decision is about, for the audit
// log and for any clarification question raised.
type Subject struct {
	Type string // "note", "task", "entity"
	ID   int64
	Text string
}

func thresholdNameForKind(kind string) string {
	switch kind {
	case KindDomainRouting:
		return "routing_confidence_min"
	case KindEntityRecognition:
		return "entity_confidence_min"
	case KindPriority:
		return "priority_confidence_min"
	}
	return kind + "_confidence_min"
}

func questionTextForKind(kind string, subject Subject, label string) string {
	switch kind {
	case KindDomainRouting:
		return fmt.Sprintf("Where should this note go: '%s'?", subject.Text)
	case KindEntityRecognition:
		return fmt.Sprintf("Who or what is '%s'?", label)
	case KindPriority:
		return fmt.Sprintf("How important is this: '%s'?", subject.Text)
	}
	return fmt.Sprintf("Is '%s' the right %s for '%s'?", label, kind, subject.Text)
}

func questionOptionsForKind(db *sql.DB, kind string) string {
	switch kind {
	case KindDomainRouting:
		paths, err := GetActiveDomainPaths(db)
		if err != nil {
			log.Printf("gate domain options error: %v", err)
			return ""
		}
		return strings.Join(paths, ",")
	case KindPriority:
		return "high,medium,low"
	}
	// Free text.
	return ""
}

// EvaluateClassification is the decision gate: blend the model's confidence
// with the learned accuracy for the category, compare against the kind's
// threshold, and either accept the classification or raise a clarification
// question. Equality with the threshold accepts; the threshold is a strict
// lower admission bound. Every evaluation lands in the decision log.
func EvaluateClassification(db *sql.DB, kind, label string, rawConfidence float64, subject Subject) (Decision, error) {
	rawConfidence = clamp(rawConfidence, 0, 1)

	blended, err := BlendForCategory(db, kind, label, rawConfidence)
	if err != nil {
		return Decision{}, fmt.Errorf("blending %s/%s: %w", kind, label, err)
	}

	threshold, err := GetThreshold(db, thresholdNameForKind(kind))
	if err != nil {
		return Decision{}, fmt.Errorf("loading threshold for %s: %w", kind, err)
	}

	decision := Decision{
		Kind:              kind,
		Label:             label,
		RawConfidence:     rawConfidence,
		BlendedConfidence: blended,
	}

	if blended >= threshold {
		decision.Outcome = OutcomeAccepted
	} else {
		decision.Outcome = OutcomeQuestionPending
		questionID, qErr := InsertClarificationQuestion(db, ClarificationQuestion{
			QuestionType:   kind,
			QuestionText:   questionTextForKind(kind, subject, label),
			SubjectType:    subject.Type,
			SubjectID:      subject.ID,
			SubjectText:    subject.Text,
			CandidateLabel: label,
			Options:        questionOptionsForKind(db, kind),
		})
		if qErr != nil {
			return Decision{}, fmt.Errorf("creating clarification question: %w", qErr)
		}
		decision.QuestionID = questionID
	}

	if err := InsertDecisionLog(db, decision, subject); err != nil {
		return Decision{}, fmt.Errorf("logging decision: %w", err)
	}

	log.Printf("gate kind=%s label=%q raw=%.2f blended=%.2f threshold=%.2f outcome=%s",
		kind, label, rawConfidence, blended, threshold, decision.Outcome)
	return decision, nil
}

// EvaluateClassificationFailure is the gate's path for an unusable classifier
// result. The blend is skipped so learned accuracy cannot lift a failed call
// over the threshold; the outcome is always a clarification question. The
// question carries no candidate label because there was no usable guess.
func EvaluateClassificationFailure(db *sql.DB, kind string, subject Subject) (Decision, error) {
	decision := Decision{
		Kind:    kind,
		Outcome: OutcomeQuestionPending,
	}

	questionID, err := InsertClarificationQuestion(db, ClarificationQuestion{
		QuestionType: kind,
		QuestionText: questionTextForKind(kind, subject, ""),
		SubjectType:  subject.Type,
		SubjectID:    subject.ID,
		SubjectText:  subject.Text,
		Options:      questionOptionsForKind(db, kind),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("creating clarification question: %w", err)
	}
	decision.QuestionID = questionID

	if err := InsertDecisionLog(db, decision, subject); err != nil {
		return Decision{}, fmt.Errorf("logging decision: %w", err)
	}

	log.Printf("gate kind=%s classifier unusable, asking question=%d", kind, questionID)
	return decision, nil
}

// --- Decision log ---

func InsertDecisionLog(db *sql.DB, d Decision, subject Subject) error {
	accepted := 0
	if d.Accepted() {
		accepted = 1
	}
	// A question-pending decision is resolved by its question, not by the
	// silent-acceptance sweep.
	resolved := 0
	if !d.Accepted() {
		resolved = 1
	}
	_, err := db.Exec(
		`INSERT INTO decision_log
		 (kind, label, raw_confidence, blended_confidence, accepted, resolved, subject_type, subject_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Kind, d.Label, d.RawConfidence, d.BlendedConfidence, accepted, resolved,
		subject.Type, subject.ID,
	)
	return err
}

// MarkDecisionCorrected flags the most recent accepted decision for a subject
// as corrected-after-acceptance; the correction itself is counted as the
// resolving feedback.
func MarkDecisionCorrected(db *sql.DB, kind, subjectType string, subjectID int64) error {
	_, err := db.Exec(
		`UPDATE decision_log SET corrected = 1, resolved = 1
		 WHERE id = (
		     SELECT id FROM decision_log
		     WHERE kind = ? AND subject_type = ? AND subject_id = ? AND accepted = 1
		     ORDER BY created_at DESC, id DESC LIMIT 1
		 )`,
		kind, subjectType, subjectID,
	)
	return err
}
