package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ApplyFeedback records one ground-truth signal for a category. An unknown
// category is created fresh with this as its first observation.
func ApplyFeedback(db *sql.DB, kind, label string, wasCorrect bool) error {
	return RecordObservation(db, kind, label, wasCorrect)
}

// HandleQuestionAnswer resolves a pending clarification question and turns the
// answer into learning signal for the originating category. For domain
// questions the winning domain also learns the note's keywords and the note
// (and its tasks) are re-routed; for priority questions the task is updated.
func HandleQuestionAnswer(db *sql.DB, questionID int64, answer string) (ClarificationQuestion, error) {
	question, err := GetQuestionByID(db, questionID)
	if err != nil {
		return ClarificationQuestion{}, err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return question, fmt.Errorf("answer is empty")
	}

	switch question.QuestionType {
	case KindDomainRouting:
		known, err := IsKnownDomain(db, answer)
		if err != nil {
			return question, err
		}
		if !known {
			return question, fmt.Errorf("unknown domain %q", answer)
		}
	case KindPriority:
		if answer != "high" && answer != "medium" && answer != "low" {
			return question, fmt.Errorf("priority must be high, medium or low, got %q", answer)
		}
	}

	if err := ResolveQuestionAnswered(db, questionID, answer); err != nil {
		return question, err
	}

	// The answer is ground truth for the gate's original candidate. Questions
	// raised by a classifier failure carry no candidate and score nothing.
	if question.CandidateLabel != "" {
		wasCorrect := answer == question.CandidateLabel
		if question.QuestionType == KindEntityRecognition {
			// Entity answers are free text describing the entity; a non-empty
			// answer confirms the entity exists as guessed.
			wasCorrect = true
		}
		if err := ApplyFeedback(db, question.QuestionType, question.CandidateLabel, wasCorrect); err != nil {
			return question, err
		}
	}

	switch question.QuestionType {
	case KindDomainRouting:
		if question.SubjectType == "note" && question.SubjectID > 0 {
			if err := routeNoteFromAnswer(db, question.SubjectID, answer); err != nil {
				return question, err
			}
		}
	case KindPriority:
		if question.SubjectType == "task" && question.SubjectID > 0 {
			if err := UpdateTaskPriority(db, question.SubjectID, answer); err != nil {
				return question, err
			}
		}
	}

	question.Status = questionStatusAnswered
	question.Answer = answer
	return question, nil
}

func routeNoteFromAnswer(db *sql.DB, noteID int64, domain string) error {
	note, err := GetNoteByID(db, noteID)
	if err != nil {
		return err
	}
	if err := UpdateNoteDomain(db, noteID, domain); err != nil {
		return err
	}
	if err := UpdateTaskDomainByNote(db, noteID, domain); err != nil {
		return err
	}
	for _, keyword := range splitKeywords(note.Keywords) {
		if err := AddLearnedKeyword(db, domain, keyword); err != nil {
			return err
		}
	}
	return nil
}

// HandleQuestionSkip marks a question skipped. Skipping carries no correctness
// signal either way, so confidence state is untouched.
func HandleQuestionSkip(db *sql.DB, questionID int64) error {
	return ResolveQuestionSkipped(db, questionID)
}

// RecordRoutingCorrection handles the user moving an already-accepted note to
// a different domain: the original acceptance was wrong. The decision is
// flagged corrected, the category penalized, and the note re-routed.
func RecordRoutingCorrection(db *sql.DB, noteID int64, newDomain string) error {
	known, err := IsKnownDomain(db, newDomain)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("unknown domain %q", newDomain)
	}

	note, err := GetNoteByID(db, noteID)
	if err != nil {
		return err
	}
	if note.Domain == newDomain {
		return nil
	}

	if note.Domain != "" {
		if err := MarkDecisionCorrected(db, KindDomainRouting, "note", noteID); err != nil {
			return err
		}
		if err := ApplyFeedback(db, KindDomainRouting, note.Domain, false); err != nil {
			return err
		}
	}

	log.Printf("routing corrected note=%d %q -> %q", noteID, note.Domain, newDomain)
	return routeNoteFromAnswer(db, noteID, newDomain)
}

// --- Silent acceptance ---

// SweepSilentAcceptances treats accepted decisions that went uncorrected for
// the configured window as implicitly confirmed, once each. This is the
// system's cheapest training signal: the user looked at (or lived with) the
// routing and did not object.
func SweepSilentAcceptances(db *sql.DB, cfg Config) (int, error) {
	// created_at is stored as UTC text, so the cutoff must be UTC too.
	cutoff := time.Now().UTC().Add(-time.Duration(cfg.SilentAcceptHours) * time.Hour)

	rows, err := db.Query(
		`SELECT id, kind, label FROM decision_log
		 WHERE accepted = 1 AND resolved = 0 AND corrected = 0 AND created_at <= ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type pending struct {
		id    int64
		kind  string
		label string
	}
	var sweep []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.kind, &p.label); err != nil {
			return 0, err
		}
		sweep = append(sweep, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	swept := 0
	for _, p := range sweep {
		if err := ApplyFeedback(db, p.kind, p.label, true); err != nil {
			return swept, err
		}
		if _, err := db.Exec(`UPDATE decision_log SET resolved = 1 WHERE id = ?`, p.id); err != nil {
			return swept, err
		}
		swept++
	}
	if swept > 0 {
		log.Printf("silent acceptance sweep confirmed=%d cutoff=%s", swept, cutoff.Format("2006-01-02 15:04"))
	}
	return swept, nil
}

// --- Threshold recalibration ---

// WindowStats summarizes one kind's gate behavior over the rolling window.
type WindowStats struct {
	Kind      string
	Decisions int
	Questions int
	Accepted  int
	Corrected int
}

func (s WindowStats) AskRate() float64 {
	if s.Decisions == 0 {
		return 0
	}
	return float64(s.Questions) / float64(s.Decisions)
}

func (s WindowStats) CorrectionRate() float64 {
	if s.Accepted == 0 {
		return 0
	}
	return float64(s.Corrected) / float64(s.Accepted)
}

func GetWindowStats(db *sql.DB, since time.Time) ([]WindowStats, error) {
	rows, err := db.Query(
		`SELECT kind,
		        COUNT(*),
		        COALESCE(SUM(CASE WHEN accepted = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(accepted), 0),
		        COALESCE(SUM(corrected), 0)
		 FROM decision_log
		 WHERE created_at >= ?
		 GROUP BY kind`,
		since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []WindowStats
	for rows.Next() {
		var s WindowStats
		if err := rows.Scan(&s.Kind, &s.Decisions, &s.Questions, &s.Accepted, &s.Corrected); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// minimum decisions in the window before the recalibration trusts its rates.
const recalibrationMinDecisions = 10

// RecalibrateThresholds nudges each kind's confidence threshold from its
// rolling-window behavior: too many questions relative to the target ask rate
// lowers the bar (ask less); too many accepted-then-corrected decisions raises
// it (ask more). Evaluated periodically rather than per event to avoid
// oscillation. Correction pressure wins when both fire.
func RecalibrateThresholds(db *sql.DB, cfg Config) error {
	since := time.Now().AddDate(0, 0, -cfg.RecalibrationWindowDays)
	stats, err := GetWindowStats(db, since)
	if err != nil {
		return fmt.Errorf("loading window stats: %w", err)
	}

	for _, s := range stats {
		if s.Decisions < recalibrationMinDecisions {
			continue
		}
		name := thresholdNameForKind(s.Kind)
		switch {
		case s.CorrectionRate() > cfg.TargetCorrectionRate:
			if _, err := AdjustThreshold(db, name, AdjustIncrease); err != nil {
				return err
			}
			log.Printf("recalibrate kind=%s correction_rate=%.2f > %.2f: raising %s",
				s.Kind, s.CorrectionRate(), cfg.TargetCorrectionRate, name)
		case s.AskRate() > cfg.TargetAskRate:
			if _, err := AdjustThreshold(db, name, AdjustDecrease); err != nil {
				return err
			}
			log.Printf("recalibrate kind=%s ask_rate=%.2f > %.2f: lowering %s",
				s.Kind, s.AskRate(), cfg.TargetAskRate, name)
		}
	}
	return nil
}

// --- Scheduler ---

// RunMaintenance is one pass of the daily learning jobs.
func RunMaintenance(db *sql.DB, cfg Config) {
	if swept, err := SweepSilentAcceptances(db, cfg); err != nil {
		log.Printf("maintenance sweep error: %v", err)
	} else {
		log.Printf("maintenance sweep done confirmed=%d", swept)
	}
	if err := RecalibrateThresholds(db, cfg); err != nil {
		log.Printf("maintenance recalibration error: %v", err)
	}
	if err := LearnWeightsFromCompletions(db); err != nil {
		log.Printf("maintenance weight learning error: %v", err)
	}
}

// StartMaintenanceScheduler runs the daily maintenance pass on a cron
// schedule (5-field expression, e.g. "0 4 * * *" for 4am daily).
func StartMaintenanceScheduler(cfg Config, db *sql.DB) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cfg.RecalibrationSchedule)
	if err != nil {
		log.Printf("Invalid recalibration_schedule '%s': %v, maintenance disabled", cfg.RecalibrationSchedule, err)
		return
	}

	log.Printf("Maintenance scheduled (cron: %s)", cfg.RecalibrationSchedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next maintenance at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)
			RunMaintenance(db, cfg)
		}
	}()
}
