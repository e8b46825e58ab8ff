package main

import (
	"strings"
	"testing"
	"time"
)

func TestGetWeightPersistsDefault(t *testing.T) {
	db := newTestDB(t)

	weight, err := GetWeight(db, "priority_high")
	if err != nil {
		t.Fatalf("GetWeight failed: %v", err)
	}
	if weight != 10.0 {
		t.Fatalf("expected default 10, got %.1f", weight)
	}

	var stored float64
	if err := db.QueryRow(`SELECT weight FROM learned_weights WHERE name = 'priority_high'`).Scan(&stored); err != nil {
		t.Fatalf("expected weight row persisted: %v", err)
	}
	if stored != 10.0 {
		t.Fatalf("expected stored 10, got %.1f", stored)
	}
}

func TestGetAllWeightsFillsDefaults(t *testing.T) {
	db := newTestDB(t)

	if err := setWeight(db, "priority_high", 12, 5); err != nil {
		t.Fatalf("setWeight failed: %v", err)
	}

	weights, err := GetAllWeights(db)
	if err != nil {
		t.Fatalf("GetAllWeights failed: %v", err)
	}
	if weights["priority_high"] != 12 {
		t.Fatalf("expected learned 12, got %.1f", weights["priority_high"])
	}
	if weights["quick_win_boost"] != 2.0 {
		t.Fatalf("expected default quick_win_boost 2, got %.1f", weights["quick_win_boost"])
	}
}

func TestScoreTask(t *testing.T) {
	now := time.Now()
	weights := map[string]float64{
		"priority_high":     10,
		"priority_medium":   5,
		"priority_low":      0,
		"quick_win_boost":   2,
		"age_3day_boost":    1,
		"age_7day_boost":    3,
		"main_domain_boost": 5,
	}

	fresh := Task{Priority: "high", EstimatedMinutes: 60, Domain: "personal", CreatedAt: now}
	if got := scoreTask(fresh, "learning", weights, 30, 3, now); got != 10 {
		t.Fatalf("expected bare priority weight 10, got %.1f", got)
	}

	quickWin := Task{Priority: "medium", EstimatedMinutes: 20, Domain: "personal", CreatedAt: now}
	if got := scoreTask(quickWin, "learning", weights, 30, 3, now); got != 7 {
		t.Fatalf("expected 5+2 quick win, got %.1f", got)
	}

	aging := Task{Priority: "low", EstimatedMinutes: 60, Domain: "personal", CreatedAt: now.AddDate(0, 0, -4)}
	if got := scoreTask(aging, "learning", weights, 30, 3, now); got != 1 {
		t.Fatalf("expected 0+1 age boost, got %.1f", got)
	}

	stale := Task{Priority: "low", EstimatedMinutes: 60, Domain: "personal", CreatedAt: now.AddDate(0, 0, -8)}
	if got := scoreTask(stale, "learning", weights, 30, 3, now); got != 3 {
		t.Fatalf("expected 0+3 old age boost, got %.1f", got)
	}

	mainDomain := Task{Priority: "high", EstimatedMinutes: 20, Domain: "learning", CreatedAt: now}
	if got := scoreTask(mainDomain, "learning", weights, 30, 3, now); got != 17 {
		t.Fatalf("expected 10+2+5, got %.1f", got)
	}
}

func TestScheduleTasksHourByHour(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	tasks := []PlannedTask{
		{Task: Task{EstimatedMinutes: 30}},
		{Task: Task{EstimatedMinutes: 90}},
		{Task: Task{EstimatedMinutes: 0}},
	}
	scheduleTasks(tasks, now)

	if tasks[0].SuggestedTime != "10:00 AM" {
		t.Fatalf("expected first slot 10:00 AM, got %q", tasks[0].SuggestedTime)
	}
	if tasks[1].SuggestedTime != "11:00 AM" {
		t.Fatalf("expected 11:00 AM, got %q", tasks[1].SuggestedTime)
	}
	// The 90-minute task takes two hour slots.
	if tasks[2].SuggestedTime != "1:00 PM" {
		t.Fatalf("expected 1:00 PM, got %q", tasks[2].SuggestedTime)
	}
}

func TestScheduleTasksWrapsMidnight(t *testing.T) {
	now := time.Date(2026, 8, 30, 23, 10, 0, 0, time.UTC)
	tasks := []PlannedTask{
		{Task: Task{EstimatedMinutes: 30}},
		{Task: Task{EstimatedMinutes: 30}},
	}
	scheduleTasks(tasks, now)
	if tasks[0].SuggestedTime != "12:00 AM" {
		t.Fatalf("expected midnight slot, got %q", tasks[0].SuggestedTime)
	}
	if tasks[1].SuggestedTime != "1:00 AM" {
		t.Fatalf("expected 1:00 AM, got %q", tasks[1].SuggestedTime)
	}
}

func TestGenerateDailyPlan(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()

	if _, err := InsertTasks(db, []Task{
		{Text: "a", Action: "Low slow thing", Priority: "low", EstimatedMinutes: 120},
		{Text: "b", Action: "High priority fix", Priority: "high", EstimatedMinutes: 60},
		{Text: "c", Action: "Quick medium win", Priority: "medium", EstimatedMinutes: 15},
		{Text: "d", Action: "Main domain task", Priority: "medium", EstimatedMinutes: 60, Domain: "learning"},
		{Text: "e", Action: "Another low", Priority: "low", EstimatedMinutes: 60},
		{Text: "f", Action: "Sixth task", Priority: "low", EstimatedMinutes: 60},
	}); err != nil {
		t.Fatalf("InsertTasks failed: %v", err)
	}

	plan, err := GenerateDailyPlan(db, cfg, time.Now())
	if err != nil {
		t.Fatalf("GenerateDailyPlan failed: %v", err)
	}
	if plan.Current == nil {
		t.Fatalf("expected a current task")
	}
	// high (10) beats main-domain medium (5+5=10)? Ties keep insertion order,
	// and the high task was inserted earlier.
	if plan.Current.Task.Action != "High priority fix" {
		t.Fatalf("expected the high-priority task first, got %q", plan.Current.Task.Action)
	}
	if len(plan.Upcoming) != 4 {
		t.Fatalf("expected top five overall, got %d upcoming", len(plan.Upcoming))
	}
	if plan.Current.SuggestedTime == "" {
		t.Fatalf("expected a suggested time")
	}
	if plan.TotalMinutes == 0 {
		t.Fatalf("expected a total estimate")
	}
	if !strings.Contains(plan.Message, "5") {
		t.Fatalf("unexpected message %q", plan.Message)
	}
}

func TestGenerateDailyPlanEmpty(t *testing.T) {
	db := newTestDB(t)

	plan, err := GenerateDailyPlan(db, testConfig(), time.Now())
	if err != nil {
		t.Fatalf("GenerateDailyPlan failed: %v", err)
	}
	if plan.Current != nil || len(plan.Upcoming) != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
	if plan.Message != "All clear!" {
		t.Fatalf("unexpected message %q", plan.Message)
	}
}

func TestLearnWeightsFromCompletions(t *testing.T) {
	db := newTestDB(t)

	// High-priority tasks completed five days late, enough samples.
	for i := 0; i < 3; i++ {
		if _, err := db.Exec(
			`INSERT INTO tasks (note_id, text, action, priority, status, created_at, completed_at)
			 VALUES (0, 'x', 'Slow high', 'high', 'completed', datetime('now', '-6 days'), datetime('now', '-1 day'))`,
		); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	// Low-priority tasks knocked out same day.
	for i := 0; i < 3; i++ {
		if _, err := db.Exec(
			`INSERT INTO tasks (note_id, text, action, priority, status, created_at, completed_at)
			 VALUES (0, 'x', 'Fast low', 'low', 'completed', datetime('now', '-3 hours'), datetime('now'))`,
		); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	// Medium completions under the sample floor are ignored.
	if _, err := db.Exec(
		`INSERT INTO tasks (note_id, text, action, priority, status, created_at, completed_at)
		 VALUES (0, 'x', 'One medium', 'medium', 'completed', datetime('now', '-10 days'), datetime('now'))`,
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := LearnWeightsFromCompletions(db); err != nil {
		t.Fatalf("LearnWeightsFromCompletions failed: %v", err)
	}

	high, err := GetWeight(db, "priority_high")
	if err != nil {
		t.Fatalf("GetWeight failed: %v", err)
	}
	if high != 11.0 {
		t.Fatalf("expected priority_high bumped to 11, got %.1f", high)
	}
	low, err := GetWeight(db, "priority_low")
	if err != nil {
		t.Fatalf("GetWeight failed: %v", err)
	}
	if low != 0.5 {
		t.Fatalf("expected priority_low bumped to 0.5, got %.1f", low)
	}
	medium, err := GetWeight(db, "priority_medium")
	if err != nil {
		t.Fatalf("GetWeight failed: %v", err)
	}
	if medium != 5.0 {
		t.Fatalf("expected priority_medium untouched at 5, got %.1f", medium)
	}
}

func TestLearnWeightsCapped(t *testing.T) {
	db := newTestDB(t)

	if err := setWeight(db, "priority_high", 15, 10); err != nil {
		t.Fatalf("setWeight failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := db.Exec(
			`INSERT INTO tasks (note_id, text, action, priority, status, created_at, completed_at)
			 VALUES (0, 'x', 'Slow high', 'high', 'completed', datetime('now', '-10 days'), datetime('now'))`,
		); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	if err := LearnWeightsFromCompletions(db); err != nil {
		t.Fatalf("LearnWeightsFromCompletions failed: %v", err)
	}
	high, err := GetWeight(db, "priority_high")
	if err != nil {
		t.Fatalf("GetWeight failed: %v", err)
	}
	if high != 15.0 {
		t.Fatalf("expected cap at 15, got %.1f", high)
	}
}
