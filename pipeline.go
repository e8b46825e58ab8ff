package main

import (
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
)

// keywordShortcutConfidence is the bar for skipping the LLM entirely when the
// learned domain keywords already point somewhere clearly.
const keywordShortcutConfidence = 0.8

// ProcessResult is what one note ingestion produced: the stored note, the
// routing decision, the tasks that survived dedupe, and any clarification
// questions raised along the way.
type ProcessResult struct {
	Note             Note
	Routing          Decision
	Tasks            []Task
	SkippedDupes     int
	PendingQuestions []int64
}

// ProcessNote runs the full intake pipeline for one note: derive a title,
// extract keywords, route to a domain through the decision gate, extract and
// dedupe tasks, gate each task's priority, and flag unfamiliar entities.
func ProcessNote(db *sql.DB, cfg Config, title, content string) (ProcessResult, error) {
	title = deriveTitle(title, content)
	keywords := extractKeywords(title + " " + content)

	domains, err := GetActiveDomains(db)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("loading domains: %w", err)
	}
	if len(domains) == 0 {
		if err := EnsureDefaultDomains(db); err != nil {
			return ProcessResult{}, fmt.Errorf("seeding domains: %w", err)
		}
		if domains, err = GetActiveDomains(db); err != nil {
			return ProcessResult{}, fmt.Errorf("loading domains: %w", err)
		}
	}

	// The note is stored first so questions and decisions can reference it.
	// Its domain stays empty until the routing decision is accepted.
	noteID, err := InsertNote(db, Note{
		Title:    title,
		Content:  content,
		Keywords: strings.Join(keywords, ","),
	})
	if err != nil {
		return ProcessResult{}, fmt.Errorf("storing note: %w", err)
	}

	result := ProcessResult{}
	subject := Subject{Type: "note", ID: noteID, Text: title}

	classification := routeNote(db, cfg, title, content, keywords, domains)
	var decision Decision
	if classification.Failed {
		decision, err = EvaluateClassificationFailure(db, KindDomainRouting, subject)
	} else {
		decision, err = EvaluateClassification(db, KindDomainRouting, classification.Label, classification.Confidence, subject)
	}
	if err != nil {
		return ProcessResult{}, fmt.Errorf("gating routing: %w", err)
	}
	result.Routing = decision

	noteDomain := ""
	if decision.Accepted() {
		noteDomain = decision.Label
		if err := UpdateNoteDomain(db, noteID, noteDomain); err != nil {
			return ProcessResult{}, fmt.Errorf("saving note domain: %w", err)
		}
	} else {
		result.PendingQuestions = append(result.PendingQuestions, decision.QuestionID)
	}

	note, err := GetNoteByID(db, noteID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("reloading note: %w", err)
	}
	result.Note = note

	tasks, skipped, questionIDs, err := extractAndStoreTasks(db, cfg, note, noteDomain)
	if err != nil {
		return ProcessResult{}, err
	}
	result.Tasks = tasks
	result.SkippedDupes = skipped
	result.PendingQuestions = append(result.PendingQuestions, questionIDs...)

	entityQuestions := flagUnfamiliarEntities(db, cfg, note)
	result.PendingQuestions = append(result.PendingQuestions, entityQuestions...)

	log.Printf("note processed id=%d domain=%q tasks=%d dupes=%d questions=%d",
		noteID, noteDomain, len(tasks), skipped, len(result.PendingQuestions))
	return result, nil
}

// routeNote produces the raw routing classification: a strong learned-keyword
// hit short-circuits the LLM; otherwise the model routes, and any model
// failure is flagged so the gate asks instead of guessing.
func routeNote(db *sql.DB, cfg Config, title, content string, keywords []string, domains []Domain) Classification {
	text := title + " " + content
	if path, score := MatchDomainByKeywords(domains, text); path != "" {
		if accuracy, err := GetAccuracy(db, KindDomainRouting, path); err == nil && accuracy > score {
			score = accuracy
		}
		if score >= keywordShortcutConfidence {
			log.Printf("routing keyword shortcut domain=%s confidence=%.2f", path, score)
			return Classification{Label: path, Confidence: score, Reasoning: "keyword match"}
		}
	}

	classification, err := ClassifyNoteDomain(cfg, title, content, keywords, domains)
	if err != nil {
		log.Printf("routing llm failed, forcing clarification: %v", err)
		return Classification{Failed: true, Reasoning: "classifier unavailable"}
	}
	return classification
}

func extractAndStoreTasks(db *sql.DB, cfg Config, note Note, noteDomain string) ([]Task, int, []int64, error) {
	extracted, err := ExtractTasks(cfg, note.Content)
	if err != nil {
		// Extraction failure costs the tasks, not the note.
		log.Printf("task extraction failed note=%d: %v", note.ID, err)
		return nil, 0, nil, nil
	}
	if len(extracted) == 0 {
		return nil, 0, nil, nil
	}

	open, err := ListTasks(db, "open", "", 500)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("loading open tasks: %w", err)
	}

	var toInsert []Task
	var confidences []float64
	skipped := 0
	for _, ex := range extracted {
		if isDuplicateTask(ex.Action, open, toInsert, cfg.TaskDedupeMinRatio) {
			log.Printf("task dedupe skipped action=%q", ex.Action)
			skipped++
			continue
		}
		toInsert = append(toInsert, Task{
			NoteID:           note.ID,
			Text:             ex.Text,
			Action:           ex.Action,
			Priority:         ex.Priority,
			EstimatedMinutes: ex.EstimatedMinutes,
			Domain:           noteDomain,
		})
		confidences = append(confidences, ex.Confidence)
	}

	if _, err := InsertTasks(db, toInsert); err != nil {
		return nil, skipped, nil, fmt.Errorf("storing tasks: %w", err)
	}

	// Reload to pick up assigned ids, newest last.
	stored, err := ListTasks(db, "open", "", 500)
	if err != nil {
		return nil, skipped, nil, fmt.Errorf("reloading tasks: %w", err)
	}
	var inserted []Task
	for _, t := range stored {
		if t.NoteID == note.ID {
			inserted = append(inserted, t)
		}
	}

	var questionIDs []int64
	for i, task := range inserted {
		if i >= len(confidences) {
			break
		}
		decision, err := EvaluateClassification(db, KindPriority, task.Priority, confidences[i],
			Subject{Type: "task", ID: task.ID, Text: task.Action})
		if err != nil {
			return inserted, skipped, questionIDs, fmt.Errorf("gating task priority: %w", err)
		}
		if !decision.Accepted() {
			questionIDs = append(questionIDs, decision.QuestionID)
		}
	}
	return inserted, skipped, questionIDs, nil
}

// flagUnfamiliarEntities gates each recognized entity; low trust raises a
// who-is-this question. Entity failures never fail the note.
func flagUnfamiliarEntities(db *sql.DB, cfg Config, note Note) []int64 {
	entities, err := ExtractEntities(cfg, note.Content)
	if err != nil {
		log.Printf("entity extraction failed note=%d: %v", note.ID, err)
		return nil
	}

	var questionIDs []int64
	for _, entity := range entities {
		label := entity.Type + ":" + strings.ToLower(entity.Name)
		decision, err := EvaluateClassification(db, KindEntityRecognition, label, entity.Confidence,
			Subject{Type: "entity", ID: note.ID, Text: entity.Name})
		if err != nil {
			log.Printf("entity gate error note=%d entity=%q: %v", note.ID, entity.Name, err)
			continue
		}
		if !decision.Accepted() {
			questionIDs = append(questionIDs, decision.QuestionID)
		}
	}
	return questionIDs
}

// --- Text helpers ---

func deriveTitle(title, content string) string {
	title = strings.TrimSpace(title)
	if title != "" {
		return truncateRunes(title, 100)
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" {
			return truncateRunes(line, 100)
		}
	}
	return "Untitled Note"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var wordRegex = regexp.MustCompile(`[a-z0-9][a-z0-9'-]+`)

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "back": true, "been": true,
	"before": true, "could": true, "does": true, "down": true, "every": true,
	"from": true, "have": true, "into": true, "just": true, "like": true,
	"more": true, "much": true, "need": true, "over": true, "same": true,
	"should": true, "some": true, "than": true, "that": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"today": true, "very": true, "want": true, "well": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "will": true,
	"with": true, "would": true, "your": true,
}

// extractKeywords picks the most frequent meaningful words, ties broken
// alphabetically so results are stable.
func extractKeywords(text string) []string {
	counts := make(map[string]int)
	for _, word := range wordRegex.FindAllString(strings.ToLower(text), -1) {
		if len(word) < 4 || stopwords[word] {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > 8 {
		words = words[:8]
	}
	return words
}

// isDuplicateTask compares a candidate action against open and about-to-be
// inserted tasks by token overlap (Jaccard). The embedding similarity of the
// desktop prototype is approximated with token sets; see DESIGN.md.
func isDuplicateTask(action string, open, pending []Task, minRatio float64) bool {
	candidate := tokenSet(action)
	if len(candidate) == 0 {
		return false
	}
	for _, t := range open {
		if jaccard(candidate, tokenSet(t.Action)) >= minRatio {
			return true
		}
	}
	for _, t := range pending {
		if jaccard(candidate, tokenSet(t.Action)) >= minRatio {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range wordRegex.FindAllString(strings.ToLower(s), -1) {
		set[word] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for word := range a {
		if b[word] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
