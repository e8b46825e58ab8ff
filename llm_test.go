package main

import (
	"strings"
	"testing"
)

func TestStripJSONFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripJSONFences(c.in); got != c.want {
			t.Fatalf("stripJSONFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseClassification(t *testing.T) {
	c, err := parseClassification(`{"label": " work/marriott ", "confidence": 0.85, "reasoning": "hotel stuff"}`)
	if err != nil {
		t.Fatalf("parseClassification failed: %v", err)
	}
	if c.Label != "work/marriott" {
		t.Fatalf("expected trimmed label, got %q", c.Label)
	}
	if c.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %.2f", c.Confidence)
	}

	// Fenced output still parses.
	c, err = parseClassification("```json\n{\"label\": \"personal\", \"confidence\": 0.6}\n```")
	if err != nil {
		t.Fatalf("parseClassification with fences failed: %v", err)
	}
	if c.Label != "personal" {
		t.Fatalf("expected personal, got %q", c.Label)
	}

	if _, err := parseClassification("I think it belongs in personal."); err == nil {
		t.Fatalf("expected error for prose response")
	}
}

func TestParseExtractedTasks(t *testing.T) {
	responseText := `{"tasks": [
		{"text": "need to call dentist", "action": "Call the dentist", "priority": "HIGH", "confidence": 0.9, "estimated_duration_minutes": 15},
		{"text": "maybe clean garage", "action": "Clean the garage", "priority": "whenever", "confidence": 1.4},
		{"text": "blank one", "action": "   ", "priority": "low", "confidence": 0.5}
	]}`

	tasks, err := parseExtractedTasks(responseText)
	if err != nil {
		t.Fatalf("parseExtractedTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected blank action dropped, got %d tasks", len(tasks))
	}
	if tasks[0].Priority != "high" {
		t.Fatalf("expected normalized priority high, got %q", tasks[0].Priority)
	}
	if tasks[0].EstimatedMinutes != 15 {
		t.Fatalf("expected 15 minutes, got %d", tasks[0].EstimatedMinutes)
	}
	if tasks[1].Priority != "medium" {
		t.Fatalf("expected unknown priority mapped to medium, got %q", tasks[1].Priority)
	}
	if tasks[1].Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1, got %.2f", tasks[1].Confidence)
	}
	if tasks[1].EstimatedMinutes != 30 {
		t.Fatalf("expected default 30 minutes, got %d", tasks[1].EstimatedMinutes)
	}

	tasks, err = parseExtractedTasks(`{"tasks": []}`)
	if err != nil {
		t.Fatalf("parseExtractedTasks empty failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestParseExtractedEntities(t *testing.T) {
	responseText := "```json\n" + `{"entities": [
		{"name": "Alice", "type": "person", "confidence": 0.9},
		{"name": "Atlas", "type": "initiative", "confidence": 0.7},
		{"name": "  ", "type": "person", "confidence": 0.5}
	]}` + "\n```"

	entities, err := parseExtractedEntities(responseText)
	if err != nil {
		t.Fatalf("parseExtractedEntities failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected blank name dropped, got %d", len(entities))
	}
	if entities[0].Name != "Alice" || entities[0].Type != "person" {
		t.Fatalf("unexpected entity: %+v", entities[0])
	}
	if entities[1].Type != "person" {
		t.Fatalf("expected unknown type coerced to person, got %q", entities[1].Type)
	}
}

func TestNormalizePriority(t *testing.T) {
	cases := map[string]string{
		"high":   "high",
		" HIGH ": "high",
		"low":    "low",
		"medium": "medium",
		"urgent": "medium",
		"":       "medium",
	}
	for in, want := range cases {
		if got := normalizePriority(in); got != want {
			t.Fatalf("normalizePriority(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOllamaModelForTask(t *testing.T) {
	cfg := Config{
		OllamaRoutingModel:  "qwen2.5:14b",
		OllamaEntityModel:   "qwen2.5:32b",
		OllamaTaskModel:     "deepseek-r1:14b",
		OllamaFallbackModel: "llama3.1:8b",
	}
	cases := map[string]string{
		"routing":            "qwen2.5:14b",
		"entity_recognition": "qwen2.5:32b",
		"task_extraction":    "deepseek-r1:14b",
		"anything_else":      "qwen2.5:14b",
	}
	for taskType, want := range cases {
		if got := ollamaModelForTask(cfg, taskType); got != want {
			t.Fatalf("ollamaModelForTask(%q) = %q, want %q", taskType, got, want)
		}
	}
}

func TestTruncateForLog(t *testing.T) {
	long := strings.Repeat("a", 1000)
	got := truncateForLog(long)
	if len(got) >= 1000 {
		t.Fatalf("expected truncation, got %d chars", len(got))
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncation marker, got %q", got[500:])
	}
	if truncateForLog("short") != "short" {
		t.Fatalf("expected short strings untouched")
	}
}
