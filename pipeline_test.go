package main

import (
	"strings"
	"testing"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		title, content, want string
	}{
		{"My Title", "ignored", "My Title"},
		{"  ", "# Heading line\nbody", "Heading line"},
		{"", "\n\n  first real line\nsecond", "first real line"},
		{"", "   \n\n", "Untitled Note"},
	}
	for _, c := range cases {
		if got := deriveTitle(c.title, c.content); got != c.want {
			t.Fatalf("deriveTitle(%q, %q) = %q, want %q", c.title, c.content, got, c.want)
		}
	}

	long := strings.Repeat("x", 150)
	if got := deriveTitle(long, ""); len([]rune(got)) != 100 {
		t.Fatalf("expected title truncated to 100 runes, got %d", len([]rune(got)))
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "Marriott booking system. The booking flow needs work: booking errors, " +
		"payment errors, and the Marriott payment gateway."
	keywords := extractKeywords(text)

	if len(keywords) == 0 {
		t.Fatalf("expected keywords, got none")
	}
	if keywords[0] != "booking" {
		t.Fatalf("expected most frequent word first, got %q", keywords[0])
	}
	for _, kw := range keywords {
		if len(kw) < 4 {
			t.Fatalf("short word leaked through: %q", kw)
		}
		if stopwords[kw] {
			t.Fatalf("stopword leaked through: %q", kw)
		}
	}
	if len(keywords) > 8 {
		t.Fatalf("expected at most 8 keywords, got %d", len(keywords))
	}

	// Stable across calls.
	again := extractKeywords(text)
	if strings.Join(keywords, ",") != strings.Join(again, ",") {
		t.Fatalf("keyword extraction not stable: %v vs %v", keywords, again)
	}
}

func TestJaccard(t *testing.T) {
	a := tokenSet("schedule dentist appointment")
	if got := jaccard(a, tokenSet("appointment dentist schedule")); got != 1.0 {
		t.Fatalf("expected 1.0 for identical sets, got %.3f", got)
	}

	b := tokenSet("schedule the dentist appointment")
	if got := jaccard(a, b); got != 0.75 {
		// One extra token out of four: 3/4 overlap.
		t.Fatalf("expected 0.75, got %.3f", got)
	}

	c := tokenSet("water the garden")
	if got := jaccard(a, c); got != 0 {
		t.Fatalf("expected 0 for disjoint sets, got %.3f", got)
	}

	if got := jaccard(tokenSet(""), a); got != 0 {
		t.Fatalf("expected 0 for empty set, got %.3f", got)
	}
}

func TestIsDuplicateTask(t *testing.T) {
	open := []Task{{Action: "Schedule dentist appointment for next week"}}

	if !isDuplicateTask("Schedule dentist appointment next week", open, nil, 0.75) {
		t.Fatalf("expected near-identical action to be a duplicate")
	}
	if isDuplicateTask("Water the garden plants", open, nil, 0.75) {
		t.Fatalf("expected unrelated action to pass")
	}

	pending := []Task{{Action: "Review quarterly budget numbers"}}
	if !isDuplicateTask("Review quarterly budget numbers", nil, pending, 0.75) {
		t.Fatalf("expected duplicate within the same batch to be caught")
	}

	if isDuplicateTask("", open, pending, 0.75) {
		t.Fatalf("empty action is never a duplicate")
	}
}

func TestMatchDomainByKeywords(t *testing.T) {
	domains := []Domain{
		{Path: "work/marriott", LearnedKeywords: "marriott,booking,hotel"},
		{Path: "learning", LearnedKeywords: "course,rust"},
		{Path: "admin", LearnedKeywords: ""},
	}

	path, score := MatchDomainByKeywords(domains, "The Marriott booking flow broke again at the hotel")
	if path != "work/marriott" {
		t.Fatalf("expected work/marriott, got %q", path)
	}
	if score != 1.0 {
		// All three keywords hit: 1.0 doubled stays capped at 1.
		t.Fatalf("expected full-match score 1.0, got %.3f", score)
	}

	path, score = MatchDomainByKeywords(domains, "Started the Rust course yesterday")
	if path != "learning" || score != 1.0 {
		t.Fatalf("expected learning at 1.0, got %q %.3f", path, score)
	}

	path, score = MatchDomainByKeywords(domains, "nothing relevant here")
	if path != "" || score != 0 {
		t.Fatalf("expected no match, got %q %.3f", path, score)
	}
}

func TestMatchDomainPartialHit(t *testing.T) {
	domains := []Domain{
		{Path: "work/marriott", LearnedKeywords: "marriott,booking,hotel,payment,gateway"},
	}
	// One of five keywords: score 0.2, below the doubling cutoff.
	_, score := MatchDomainByKeywords(domains, "hotel recommendations for the trip")
	if score != 0.2 {
		t.Fatalf("expected weak score 0.2, got %.3f", score)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo wörld", 5); got != "héllo" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
