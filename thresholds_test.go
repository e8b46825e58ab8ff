package main

import (
	"math"
	"testing"
)

func TestGetThresholdPersistsDefault(t *testing.T) {
	db := newTestDB(t)

	value, err := GetThreshold(db, "routing_confidence_min")
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if value != 0.70 {
		t.Fatalf("expected default 0.70, got %.2f", value)
	}

	var stored float64
	if err := db.QueryRow(`SELECT value FROM learned_thresholds WHERE name = 'routing_confidence_min'`).Scan(&stored); err != nil {
		t.Fatalf("expected threshold row to be persisted: %v", err)
	}
	if stored != 0.70 {
		t.Fatalf("expected stored 0.70, got %.2f", stored)
	}
}

func TestAdjustThresholdSteps(t *testing.T) {
	db := newTestDB(t)

	value, err := AdjustThreshold(db, "routing_confidence_min", AdjustIncrease)
	if err != nil {
		t.Fatalf("AdjustThreshold failed: %v", err)
	}
	if math.Abs(value-0.75) > 1e-9 {
		t.Fatalf("expected 0.75 after increase, got %.2f", value)
	}

	value, err = AdjustThreshold(db, "routing_confidence_min", AdjustDecrease)
	if err != nil {
		t.Fatalf("AdjustThreshold failed: %v", err)
	}
	if math.Abs(value-0.70) > 1e-9 {
		t.Fatalf("expected 0.70 after decrease, got %.2f", value)
	}
}

func TestAdjustThresholdClampsAtBounds(t *testing.T) {
	db := newTestDB(t)

	// Enough decreases to hit the floor and then some.
	var value float64
	var err error
	for i := 0; i < 10; i++ {
		value, err = AdjustThreshold(db, "priority_confidence_min", AdjustDecrease)
		if err != nil {
			t.Fatalf("AdjustThreshold failed: %v", err)
		}
	}
	if value != 0.50 {
		t.Fatalf("expected floor 0.50, got %.2f", value)
	}

	for i := 0; i < 20; i++ {
		value, err = AdjustThreshold(db, "priority_confidence_min", AdjustIncrease)
		if err != nil {
			t.Fatalf("AdjustThreshold failed: %v", err)
		}
	}
	if value != 0.95 {
		t.Fatalf("expected ceiling 0.95, got %.2f", value)
	}
}

func TestAdjustUnknownThresholdUsesNeutralDef(t *testing.T) {
	db := newTestDB(t)

	value, err := GetThreshold(db, "made_up_threshold")
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if value != 0.5 {
		t.Fatalf("expected neutral default 0.5, got %.2f", value)
	}

	value, err = AdjustThreshold(db, "made_up_threshold", AdjustIncrease)
	if err != nil {
		t.Fatalf("AdjustThreshold failed: %v", err)
	}
	if math.Abs(value-0.55) > 1e-9 {
		t.Fatalf("expected 0.55, got %.2f", value)
	}
}

func TestGetAllThresholdsFillsDefaults(t *testing.T) {
	db := newTestDB(t)

	if _, err := AdjustThreshold(db, "quick_win_minutes", AdjustIncrease); err != nil {
		t.Fatalf("AdjustThreshold failed: %v", err)
	}

	all, err := GetAllThresholds(db)
	if err != nil {
		t.Fatalf("GetAllThresholds failed: %v", err)
	}
	if all["quick_win_minutes"] != 40 {
		t.Fatalf("expected adjusted quick_win_minutes=40, got %.0f", all["quick_win_minutes"])
	}
	if all["old_task_days"] != 3 {
		t.Fatalf("expected untouched old_task_days default 3, got %.0f", all["old_task_days"])
	}
	if all["task_overload_ratio"] != 2.0 {
		t.Fatalf("expected task_overload_ratio default 2.0, got %.1f", all["task_overload_ratio"])
	}
}
