package main

import (
	"database/sql"
	"log"
	"math"
)

// ThresholdDef declares the starting point and the allowed drift for one
// adaptive threshold. Starting values are hand-picked defaults; only later
// drift is adaptive, and it stays inside [Min, Max].
type ThresholdDef struct {
	Default float64
	Min     float64
	Max     float64
	Step    float64
}

var thresholdDefs = map[string]ThresholdDef{
	"routing_confidence_min":  {Default: 0.70, Min: 0.50, Max: 0.95, Step: 0.05},
	"entity_confidence_min":   {Default: 0.70, Min: 0.50, Max: 0.95, Step: 0.05},
	"priority_confidence_min": {Default: 0.65, Min: 0.50, Max: 0.95, Step: 0.05},
	"domain_neglect_days":     {Default: 7, Min: 1, Max: 30, Step: 2},
	"task_overload_ratio":     {Default: 2.0, Min: 1.2, Max: 5.0, Step: 0.5},
	"quick_win_minutes":       {Default: 30, Min: 10, Max: 90, Step: 10},
	"old_task_days":           {Default: 3, Min: 1, Max: 14, Step: 1},
}

// thresholdDef returns the definition for a name, falling back to a neutral
// definition so that an unknown name is never an error.
func thresholdDef(name string) ThresholdDef {
	if def, ok := thresholdDefs[name]; ok {
		return def
	}
	return ThresholdDef{Default: 0.5, Min: 0, Max: 1, Step: 0.05}
}

type AdjustDirection string

const (
	AdjustIncrease AdjustDirection = "increase"
	AdjustDecrease AdjustDirection = "decrease"
)

// GetThreshold returns the current value for a named threshold. A name that
// has never been set is persisted at its default and the default returned.
func GetThreshold(db *sql.DB, name string) (float64, error) {
	var value float64
	err := db.QueryRow(`SELECT value FROM learned_thresholds WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		def := thresholdDef(name)
		if _, insErr := db.Exec(
			`INSERT OR IGNORE INTO learned_thresholds (name, value) VALUES (?, ?)`,
			name, def.Default,
		); insErr != nil {
			return def.Default, insErr
		}
		return def.Default, nil
	}
	if err != nil {
		return thresholdDef(name).Default, err
	}
	return value, nil
}

// AdjustThreshold moves a threshold one step in the given direction, clamped
// to its [min, max] range. At a bound the call is a no-op, not an error.
func AdjustThreshold(db *sql.DB, name string, direction AdjustDirection) (float64, error) {
	current, err := GetThreshold(db, name)
	if err != nil {
		return current, err
	}

	def := thresholdDef(name)
	next := current
	switch direction {
	case AdjustIncrease:
		next = current + def.Step
	case AdjustDecrease:
		next = current - def.Step
	}
	// Snap to the step grid: all steps are multiples of 0.01, so rounding to
	// two decimals keeps repeated adjustments from accumulating float drift.
	next = math.Round(next*100) / 100
	next = clamp(next, def.Min, def.Max)

	if next == current {
		return current, nil
	}

	_, err = db.Exec(
		`UPDATE learned_thresholds
		 SET value = ?, adjustment_count = adjustment_count + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE name = ?`,
		next, name,
	)
	if err != nil {
		return current, err
	}
	log.Printf("threshold adjusted name=%s %.2f -> %.2f direction=%s", name, current, next, direction)
	return next, nil
}

// GetAllThresholds returns every known threshold, filling unset names with
// their defaults.
func GetAllThresholds(db *sql.DB) (map[string]float64, error) {
	rows, err := db.Query(`SELECT name, value FROM learned_thresholds`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for name, def := range thresholdDefs {
		if _, ok := out[name]; !ok {
			out[name] = def.Default
		}
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
