package main

import (
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
)

var domainPathRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(/[a-z0-9][a-z0-9_-]*)?$`)

// ValidateDomainPath checks a candidate domain path: lowercase segments,
// at most two levels (e.g. "personal" or "work/marriott"). Paths are
// immutable once registered.
func ValidateDomainPath(path string) error {
	if path == "" {
		return fmt.Errorf("domain path is empty")
	}
	if len(path) > 64 {
		return fmt.Errorf("domain path too long: %d chars", len(path))
	}
	if !domainPathRegex.MatchString(path) {
		return fmt.Errorf("invalid domain path %q: lowercase segments, max depth 2", path)
	}
	return nil
}

// RegisterDomain validates and creates a domain. Registering an existing path
// is a no-op returning the existing row.
func RegisterDomain(db *sql.DB, d Domain) (Domain, error) {
	if err := ValidateDomainPath(d.Path); err != nil {
		return Domain{}, err
	}
	if d.Name == "" {
		d.Name = d.Path
	}
	_, err := db.Exec(
		`INSERT OR IGNORE INTO domains (path, name, color, target_percentage, learned_keywords, active)
		 VALUES (?, ?, ?, ?, ?, 1)`,
		d.Path, d.Name, d.Color, d.TargetPercentage, d.LearnedKeywords,
	)
	if err != nil {
		return Domain{}, err
	}
	log.Printf("domain registered path=%s name=%q", d.Path, d.Name)
	return GetDomainByPath(db, d.Path)
}

// EnsureDefaultDomains seeds the standard domains so routing always has
// somewhere to land.
func EnsureDefaultDomains(db *sql.DB) error {
	defaults := []Domain{
		{Path: "personal", Name: "Personal", Color: "purple"},
		{Path: "learning", Name: "Learning", Color: "amber"},
		{Path: "admin", Name: "Admin", Color: "gray"},
	}
	for _, d := range defaults {
		if _, err := RegisterDomain(db, d); err != nil {
			return err
		}
	}
	return nil
}

func GetDomainByPath(db *sql.DB, path string) (Domain, error) {
	var d Domain
	err := db.QueryRow(
		`SELECT id, path, name, color, target_percentage, learned_keywords, active, created_at
		 FROM domains WHERE path = ?`,
		path,
	).Scan(&d.ID, &d.Path, &d.Name, &d.Color, &d.TargetPercentage, &d.LearnedKeywords, &d.Active, &d.CreatedAt)
	return d, err
}

func GetActiveDomains(db *sql.DB) ([]Domain, error) {
	rows, err := db.Query(
		`SELECT id, path, name, color, target_percentage, learned_keywords, active, created_at
		 FROM domains WHERE active = 1
		 ORDER BY target_percentage DESC, path`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.ID, &d.Path, &d.Name, &d.Color, &d.TargetPercentage, &d.LearnedKeywords, &d.Active, &d.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func GetActiveDomainPaths(db *sql.DB) ([]string, error) {
	domains, err := GetActiveDomains(db)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(domains))
	for _, d := range domains {
		paths = append(paths, d.Path)
	}
	return paths, nil
}

func IsKnownDomain(db *sql.DB, path string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM domains WHERE path = ? AND active = 1`, path).Scan(&count)
	return count > 0, err
}

// AddLearnedKeyword attaches a keyword to a domain's learned set. Keywords are
// learned from confirmed routing feedback and feed the pre-LLM matcher.
func AddLearnedKeyword(db *sql.DB, path, keyword string) error {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" || strings.Contains(keyword, ",") {
		return nil
	}

	d, err := GetDomainByPath(db, path)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	existing := splitKeywords(d.LearnedKeywords)
	for _, kw := range existing {
		if kw == keyword {
			return nil
		}
	}
	existing = append(existing, keyword)

	_, err = db.Exec(
		`UPDATE domains SET learned_keywords = ? WHERE path = ?`,
		strings.Join(existing, ","), path,
	)
	if err != nil {
		return err
	}
	log.Printf("domain keyword learned path=%s keyword=%q", path, keyword)
	return nil
}

func splitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MatchDomainByKeywords scores each domain by the share of its learned
// keywords found in the text. Returns the best path with a confidence, or
// ("", 0) when nothing matches. A strong keyword hit is the cheap pre-LLM
// routing path.
func MatchDomainByKeywords(domains []Domain, text string) (string, float64) {
	text = strings.ToLower(text)

	bestPath := ""
	bestScore := 0.0
	for _, d := range domains {
		keywords := splitKeywords(d.LearnedKeywords)
		if len(keywords) == 0 {
			continue
		}
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / float64(len(keywords))
		if score > bestScore {
			bestScore = score
			bestPath = d.Path
		}
	}

	if bestPath == "" {
		return "", 0
	}
	// A partial hit still carries signal; scale modest scores up but cap at 1.
	if bestScore > 0.3 {
		bestScore = bestScore * 2
		if bestScore > 1 {
			bestScore = 1
		}
	}
	return bestPath, bestScore
}
