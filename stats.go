package main

import (
	"database/sql"
	"time"
)

type DecisionStats struct {
	TotalDecisions   int     `json:"total_decisions"`
	Accepted         int     `json:"accepted"`
	QuestionsRaised  int     `json:"questions_raised"`
	Corrected        int     `json:"corrected"`
	PendingQuestions int     `json:"pending_questions"`
	AvgBlended       float64 `json:"avg_blended_confidence"`
	BucketBelow50    int     `json:"bucket_below_50"`
	Bucket50to70     int     `json:"bucket_50_to_70"`
	Bucket70to90     int     `json:"bucket_70_to_90"`
	Bucket90Plus     int     `json:"bucket_90_plus"`
}

func GetDecisionStats(db *sql.DB, since time.Time) (DecisionStats, error) {
	var s DecisionStats
	err := db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(accepted), 0),
		        COALESCE(SUM(CASE WHEN accepted = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(corrected), 0),
		        COALESCE(AVG(blended_confidence), 0),
		        COALESCE(SUM(CASE WHEN blended_confidence < 0.50 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN blended_confidence >= 0.50 AND blended_confidence < 0.70 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN blended_confidence >= 0.70 AND blended_confidence < 0.90 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN blended_confidence >= 0.90 THEN 1 ELSE 0 END), 0)
		 FROM decision_log WHERE created_at >= ?`,
		since.UTC(),
	).Scan(&s.TotalDecisions, &s.Accepted, &s.QuestionsRaised, &s.Corrected,
		&s.AvgBlended, &s.BucketBelow50, &s.Bucket50to70, &s.Bucket70to90, &s.Bucket90Plus)
	if err != nil {
		return s, err
	}

	pending, err := CountPendingQuestions(db)
	if err != nil {
		return s, err
	}
	s.PendingQuestions = pending
	return s, nil
}

// CategoryAccuracy is one row of the per-category learning report.
type CategoryAccuracy struct {
	Kind     string  `json:"kind"`
	Label    string  `json:"label"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

func GetCategoryAccuracies(db *sql.DB, kind string) ([]CategoryAccuracy, error) {
	rows, err := db.Query(
		`SELECT kind, label, total_observations, correct_observations
		 FROM category_confidence
		 WHERE (? = '' OR kind = ?)
		 ORDER BY kind, total_observations DESC`,
		kind, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryAccuracy
	for rows.Next() {
		var c CategoryAccuracy
		if err := rows.Scan(&c.Kind, &c.Label, &c.Total, &c.Correct); err != nil {
			return nil, err
		}
		if c.Total > 0 {
			c.Accuracy = float64(c.Correct) / float64(c.Total)
		} else {
			c.Accuracy = neutralPrior
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
