package main

import (
	"database/sql"
	"log"
)

// RecordObservation adds one observation for a (kind, label) category. Each
// call counts once; an unknown category is created with this as its first
// observation. Counters only ever accumulate.
func RecordObservation(db *sql.DB, kind, label string, wasCorrect bool) error {
	correct := 0
	if wasCorrect {
		correct = 1
	}
	_, err := db.Exec(
		`INSERT INTO category_confidence (kind, label, total_observations, correct_observations, updated_at)
		 VALUES (?, ?, 1, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(kind, label) DO UPDATE SET
		     total_observations = total_observations + 1,
		     correct_observations = correct_observations + ?,
		     updated_at = CURRENT_TIMESTAMP`,
		kind, label, correct, correct,
	)
	if err != nil {
		return err
	}
	log.Printf("confidence observation kind=%s label=%q correct=%v", kind, label, wasCorrect)
	return nil
}

// GetConfidenceRecord returns the stored counters for a category. A category
// that was never observed comes back with zero counts, never an error.
func GetConfidenceRecord(db *sql.DB, kind, label string) (ConfidenceRecord, error) {
	rec := ConfidenceRecord{Kind: kind, Label: label}
	err := db.QueryRow(
		`SELECT total_observations, correct_observations, updated_at
		 FROM category_confidence WHERE kind = ? AND label = ?`,
		kind, label,
	).Scan(&rec.TotalObservations, &rec.CorrectObservations, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return rec, err
	}
	return rec, nil
}

// GetAccuracy returns the learned accuracy for a category: correct/total when
// there is history, the neutral prior otherwise.
func GetAccuracy(db *sql.DB, kind, label string) (float64, error) {
	rec, err := GetConfidenceRecord(db, kind, label)
	if err != nil {
		return neutralPrior, err
	}
	return rec.Accuracy(), nil
}
