package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

var defaultWeights = map[string]float64{
	"priority_high":     10.0,
	"priority_medium":   5.0,
	"priority_low":      0.0,
	"quick_win_boost":   2.0,
	"age_3day_boost":    1.0,
	"age_7day_boost":    3.0,
	"main_domain_boost": 5.0,
}

func GetWeight(db *sql.DB, name string) (float64, error) {
	var weight float64
	err := db.QueryRow(`SELECT weight FROM learned_weights WHERE name = ?`, name).Scan(&weight)
	if err == sql.ErrNoRows {
		def := defaultWeights[name]
		if _, insErr := db.Exec(
			`INSERT OR IGNORE INTO learned_weights (name, weight) VALUES (?, ?)`,
			name, def,
		); insErr != nil {
			return def, insErr
		}
		return def, nil
	}
	if err != nil {
		return defaultWeights[name], err
	}
	return weight, nil
}

func GetAllWeights(db *sql.DB) (map[string]float64, error) {
	rows, err := db.Query(`SELECT name, weight FROM learned_weights`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var weight float64
		if err := rows.Scan(&name, &weight); err != nil {
			return nil, err
		}
		out[name] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for name, weight := range defaultWeights {
		if _, ok := out[name]; !ok {
			out[name] = weight
		}
	}
	return out, nil
}

func setWeight(db *sql.DB, name string, weight float64, sampleCount int) error {
	_, err := db.Exec(
		`INSERT INTO learned_weights (name, weight, sample_count, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET
		     weight = ?, sample_count = ?, updated_at = CURRENT_TIMESTAMP`,
		name, weight, sampleCount, weight, sampleCount,
	)
	return err
}

// PlannedTask is one slot in the daily plan.
type PlannedTask struct {
	Task          Task
	Score         float64
	SuggestedTime string
}

type DailyPlan struct {
	Current      *PlannedTask
	Upcoming     []PlannedTask
	TotalMinutes int
	Message      string
}

const dailyPlanSize = 5

// GenerateDailyPlan scores the open tasks with the learned weights and the
// adaptive quick-win/age thresholds, keeps the top five, and lays them out
// hour by hour starting next hour.
func GenerateDailyPlan(db *sql.DB, cfg Config, now time.Time) (DailyPlan, error) {
	tasks, err := ListTasks(db, "open", "", 50)
	if err != nil {
		return DailyPlan{}, fmt.Errorf("loading open tasks: %w", err)
	}
	if len(tasks) == 0 {
		return DailyPlan{Message: "All clear!"}, nil
	}

	weights, err := GetAllWeights(db)
	if err != nil {
		return DailyPlan{}, fmt.Errorf("loading weights: %w", err)
	}
	quickWinMinutes, err := GetThreshold(db, "quick_win_minutes")
	if err != nil {
		return DailyPlan{}, err
	}
	oldTaskDays, err := GetThreshold(db, "old_task_days")
	if err != nil {
		return DailyPlan{}, err
	}

	scored := make([]PlannedTask, 0, len(tasks))
	for _, task := range tasks {
		scored = append(scored, PlannedTask{
			Task:  task,
			Score: scoreTask(task, cfg.MainDomain, weights, quickWinMinutes, oldTaskDays, now),
		})
	}
	// Highest score first; stable on insertion order for ties.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if len(scored) > dailyPlanSize {
		scored = scored[:dailyPlanSize]
	}

	scheduleTasks(scored, now)

	plan := DailyPlan{
		Message: fmt.Sprintf("Focus on %d tasks today.", len(scored)),
	}
	for i := range scored {
		plan.TotalMinutes += scored[i].Task.EstimatedMinutes
	}
	plan.Current = &scored[0]
	plan.Upcoming = scored[1:]
	return plan, nil
}

func scoreTask(task Task, mainDomain string, weights map[string]float64, quickWinMinutes, oldTaskDays float64, now time.Time) float64 {
	score := weights["priority_"+task.Priority]

	if task.EstimatedMinutes > 0 && float64(task.EstimatedMinutes) <= quickWinMinutes {
		score += weights["quick_win_boost"]
	}

	ageDays := now.Sub(task.CreatedAt).Hours() / 24
	if ageDays >= 7 {
		score += weights["age_7day_boost"]
	} else if ageDays >= oldTaskDays {
		score += weights["age_3day_boost"]
	}

	if mainDomain != "" && task.Domain == mainDomain {
		score += weights["main_domain_boost"]
	}
	return score
}

func scheduleTasks(tasks []PlannedTask, now time.Time) {
	hour := now.Hour() + 1
	for i := range tasks {
		display := hour % 24
		meridiem := "AM"
		if display >= 12 {
			meridiem = "PM"
		}
		clock := display % 12
		if clock == 0 {
			clock = 12
		}
		tasks[i].SuggestedTime = fmt.Sprintf("%d:00 %s", clock, meridiem)

		minutes := tasks[i].Task.EstimatedMinutes
		if minutes <= 0 {
			minutes = 30
		}
		hour += (minutes + 59) / 60
	}
}

// --- Weight learning ---

const weightLearningMinSamples = 3

// LearnWeightsFromCompletions shifts priority weights from 30-day completion
// delay patterns: high-priority work that lingers needs a heavier weight;
// low-priority work the user actually knocks out fast earns a little more.
// Shifts are small and bounded.
func LearnWeightsFromCompletions(db *sql.DB) error {
	since := time.Now().AddDate(0, 0, -30)
	patterns, err := GetCompletionPatterns(db, since)
	if err != nil {
		return fmt.Errorf("loading completion patterns: %w", err)
	}

	for _, p := range patterns {
		if p.Count < weightLearningMinSamples {
			continue
		}
		name := "priority_" + p.Priority
		current, err := GetWeight(db, name)
		if err != nil {
			return err
		}

		switch {
		case p.Priority == "high" && p.AvgDelayDays > 3:
			next := current + 1.0
			if next > 15.0 {
				next = 15.0
			}
			if next != current {
				if err := setWeight(db, name, next, p.Count); err != nil {
					return err
				}
				log.Printf("weight learned name=%s %.1f -> %.1f (avg delay %.1fd over %d)", name, current, next, p.AvgDelayDays, p.Count)
			}
		case p.Priority == "low" && p.AvgDelayDays < 1:
			next := current + 0.5
			if next > 3.0 {
				next = 3.0
			}
			if next != current {
				if err := setWeight(db, name, next, p.Count); err != nil {
					return err
				}
				log.Printf("weight learned name=%s %.1f -> %.1f (avg delay %.1fd over %d)", name, current, next, p.AvgDelayDays, p.Count)
			}
		}
	}
	return nil
}
