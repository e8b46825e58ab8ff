package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		domain     TEXT DEFAULT '',
		keywords   TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_notes_domain ON notes(domain);
	CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at);

	CREATE TABLE IF NOT EXISTS tasks (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		note_id           INTEGER NOT NULL DEFAULT 0,
		text              TEXT NOT NULL,
		action            TEXT NOT NULL,
		priority          TEXT DEFAULT 'medium',
		estimated_minutes INTEGER DEFAULT 0,
		domain            TEXT DEFAULT '',
		status            TEXT DEFAULT 'open',
		completed_at      DATETIME,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_domain ON tasks(domain);

	CREATE TABLE IF NOT EXISTS domains (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		path              TEXT UNIQUE NOT NULL,
		name              TEXT NOT NULL,
		color             TEXT DEFAULT '',
		target_percentage REAL DEFAULT 0,
		learned_keywords  TEXT DEFAULT '',
		active            INTEGER DEFAULT 1,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS category_confidence (
		kind                 TEXT NOT NULL,
		label                TEXT NOT NULL,
		total_observations   INTEGER NOT NULL DEFAULT 0,
		correct_observations INTEGER NOT NULL DEFAULT 0,
		updated_at           DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, label)
	);

	CREATE TABLE IF NOT EXISTS learned_thresholds (
		name             TEXT PRIMARY KEY,
		value            REAL NOT NULL,
		adjustment_count INTEGER NOT NULL DEFAULT 0,
		updated_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS learned_weights (
		name         TEXT PRIMARY KEY,
		weight       REAL NOT NULL,
		sample_count INTEGER NOT NULL DEFAULT 0,
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS clarification_questions (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		question_type   TEXT NOT NULL,
		question_text   TEXT NOT NULL,
		subject_type    TEXT DEFAULT '',
		subject_id      INTEGER DEFAULT 0,
		subject_text    TEXT DEFAULT '',
		candidate_label TEXT DEFAULT '',
		options         TEXT DEFAULT '',
		status          TEXT DEFAULT 'pending',
		answer          TEXT DEFAULT '',
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		answered_at     DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_cq_status ON clarification_questions(status);

	CREATE TABLE IF NOT EXISTS decision_log (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		kind               TEXT NOT NULL,
		label              TEXT NOT NULL,
		raw_confidence     REAL NOT NULL,
		blended_confidence REAL NOT NULL,
		accepted           INTEGER NOT NULL,
		corrected          INTEGER NOT NULL DEFAULT 0,
		resolved           INTEGER NOT NULL DEFAULT 0,
		subject_type       TEXT DEFAULT '',
		subject_id         INTEGER DEFAULT 0,
		created_at         DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_dl_kind_date ON decision_log(kind, created_at);
	CREATE INDEX IF NOT EXISTS idx_dl_subject ON decision_log(subject_type, subject_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// --- Notes ---

func InsertNote(db *sql.DB, note Note) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO notes (title, content, domain, keywords) VALUES (?, ?, ?, ?)`,
		note.Title, note.Content, note.Domain, note.Keywords,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetNoteByID(db *sql.DB, id int64) (Note, error) {
	var n Note
	err := db.QueryRow(
		`SELECT id, title, content, domain, keywords, created_at, updated_at
		 FROM notes WHERE id = ?`,
		id,
	).Scan(&n.ID, &n.Title, &n.Content, &n.Domain, &n.Keywords, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func ListNotes(db *sql.DB, domain string, limit int) ([]Note, error) {
	query := `SELECT id, title, content, domain, keywords, created_at, updated_at
	          FROM notes`
	args := []any{}
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Domain, &n.Keywords, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func UpdateNoteDomain(db *sql.DB, id int64, domain string) error {
	_, err := db.Exec(
		`UPDATE notes SET domain = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		domain, id,
	)
	return err
}

// --- Tasks ---

func InsertTasks(db *sql.DB, tasks []Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO tasks (note_id, text, action, priority, estimated_minutes, domain, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, task := range tasks {
		status := task.Status
		if status == "" {
			status = "open"
		}
		if _, err := stmt.Exec(
			task.NoteID, task.Text, task.Action, task.Priority,
			task.EstimatedMinutes, task.Domain, status,
		); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, tx.Commit()
}

func GetTaskByID(db *sql.DB, id int64) (Task, error) {
	var t Task
	var completedAt sql.NullTime
	err := db.QueryRow(
		`SELECT id, note_id, text, action, priority, estimated_minutes, domain, status, completed_at, created_at
		 FROM tasks WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.NoteID, &t.Text, &t.Action, &t.Priority, &t.EstimatedMinutes, &t.Domain, &t.Status, &completedAt, &t.CreatedAt)
	if completedAt.Valid {
		t.CompletedAt = completedAt.Time
	}
	return t, err
}

func ListTasks(db *sql.DB, status, domain string, limit int) ([]Task, error) {
	query := `SELECT id, note_id, text, action, priority, estimated_minutes, domain, status, completed_at, created_at
	          FROM tasks WHERE 1=1`
	args := []any{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if domain != "" {
		query += ` AND domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var completedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.NoteID, &t.Text, &t.Action, &t.Priority, &t.EstimatedMinutes, &t.Domain, &t.Status, &completedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t.CompletedAt = completedAt.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func CompleteTask(db *sql.DB, id int64) error {
	_, err := db.Exec(
		`UPDATE tasks SET status = 'completed', completed_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status <> 'completed'`,
		id,
	)
	return err
}

func UpdateTaskPriority(db *sql.DB, id int64, priority string) error {
	_, err := db.Exec(`UPDATE tasks SET priority = ? WHERE id = ?`, priority, id)
	return err
}

func UpdateTaskDomainByNote(db *sql.DB, noteID int64, domain string) error {
	_, err := db.Exec(`UPDATE tasks SET domain = ? WHERE note_id = ?`, domain, noteID)
	return err
}

// CompletionPattern summarizes completion delay per priority over a window,
// the input to priority weight learning.
type CompletionPattern struct {
	Priority     string
	AvgDelayDays float64
	Count        int
}

func GetCompletionPatterns(db *sql.DB, since time.Time) ([]CompletionPattern, error) {
	rows, err := db.Query(
		`SELECT priority,
		        AVG(julianday(completed_at) - julianday(created_at)) as avg_delay_days,
		        COUNT(*) as cnt
		 FROM tasks
		 WHERE status = 'completed' AND completed_at >= ?
		 GROUP BY priority`,
		since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []CompletionPattern
	for rows.Next() {
		var p CompletionPattern
		if err := rows.Scan(&p.Priority, &p.AvgDelayDays, &p.Count); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
