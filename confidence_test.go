package main

import (
	"testing"
)

func TestRecordObservationAccumulates(t *testing.T) {
	db := newTestDB(t)

	for _, correct := range []bool{true, true, false, true} {
		if err := RecordObservation(db, KindDomainRouting, "work/marriott", correct); err != nil {
			t.Fatalf("RecordObservation failed: %v", err)
		}
	}

	rec, err := GetConfidenceRecord(db, KindDomainRouting, "work/marriott")
	if err != nil {
		t.Fatalf("GetConfidenceRecord failed: %v", err)
	}
	if rec.TotalObservations != 4 || rec.CorrectObservations != 3 {
		t.Fatalf("expected 3/4, got %d/%d", rec.CorrectObservations, rec.TotalObservations)
	}
	if rec.Accuracy() != 0.75 {
		t.Fatalf("expected accuracy=0.75, got %.2f", rec.Accuracy())
	}
}

func TestUnknownCategoryHasNeutralPrior(t *testing.T) {
	db := newTestDB(t)

	rec, err := GetConfidenceRecord(db, KindPriority, "never-seen")
	if err != nil {
		t.Fatalf("GetConfidenceRecord failed: %v", err)
	}
	if rec.TotalObservations != 0 {
		t.Fatalf("expected zero observations, got %d", rec.TotalObservations)
	}
	if rec.Accuracy() != neutralPrior {
		t.Fatalf("expected neutral prior %.2f, got %.2f", neutralPrior, rec.Accuracy())
	}

	accuracy, err := GetAccuracy(db, KindPriority, "never-seen")
	if err != nil {
		t.Fatalf("GetAccuracy failed: %v", err)
	}
	if accuracy != neutralPrior {
		t.Fatalf("expected neutral prior, got %.2f", accuracy)
	}
}

func TestCategoriesAreIndependentAcrossKinds(t *testing.T) {
	db := newTestDB(t)

	if err := RecordObservation(db, KindDomainRouting, "shared-label", false); err != nil {
		t.Fatalf("RecordObservation failed: %v", err)
	}

	rec, err := GetConfidenceRecord(db, KindPriority, "shared-label")
	if err != nil {
		t.Fatalf("GetConfidenceRecord failed: %v", err)
	}
	if rec.TotalObservations != 0 {
		t.Fatalf("expected kinds to have separate namespaces, got %d observations", rec.TotalObservations)
	}
}
