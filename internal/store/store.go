package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/tutor/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the local SQLite store: the device attempt collection, session
// flags and admin accounts.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		student_name TEXT NOT NULL DEFAULT '',
		student_class TEXT NOT NULL DEFAULT '',
		date_ms INTEGER NOT NULL,
		subject TEXT NOT NULL,
		chapters TEXT NOT NULL DEFAULT '[]',
		marks_obtained REAL NOT NULL DEFAULT 0,
		total_marks REAL NOT NULL DEFAULT 0,
		score_percent INTEGER,
		time_taken_seconds INTEGER NOT NULL DEFAULT 0,
		time_taken TEXT NOT NULL DEFAULT '',
		raw_answer_text TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_student ON attempts (student_name, student_class);

	CREATE TABLE IF NOT EXISTS session_flags (
		session_id TEXT NOT NULL,
		flag TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, flag)
	);

	CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AppendAttempt adds one attempt. Existing records are never overwritten.
func (s *Store) AppendAttempt(ctx context.Context, a model.ExamAttempt) error {
	return insertAttempt(ctx, s.db, a)
}

func insertAttempt(ctx context.Context, db execer, a model.ExamAttempt) error {
	chapters, err := json.Marshal(nonNilChapters(a.Chapters))
	if err != nil {
		return fmt.Errorf("encode chapters: %w", err)
	}
	var pct sql.NullInt64
	if a.ScorePercent != nil {
		pct = sql.NullInt64{Int64: int64(*a.ScorePercent), Valid: true}
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO attempts (id, session_id, student_name, student_class, date_ms, subject, chapters,
		 marks_obtained, total_marks, score_percent, time_taken_seconds, time_taken, raw_answer_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Student.Name, a.Student.Class, a.Date.UnixMilli(), a.Subject, string(chapters),
		a.MarksObtained, a.TotalMarks, pct, a.TimeTakenSeconds, a.TimeTaken, a.RawAnswerText,
	)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.ID, err)
	}
	return nil
}

// ListAttempts returns attempts oldest first. A nil student returns the whole
// collection.
func (s *Store) ListAttempts(ctx context.Context, student *model.Student) ([]model.ExamAttempt, error) {
	query := `SELECT id, session_id, student_name, student_class, date_ms, subject, chapters,
		marks_obtained, total_marks, score_percent, time_taken_seconds, time_taken, raw_answer_text
		FROM attempts`
	var args []any
	if student != nil {
		query += ` WHERE student_name = ? AND student_class = ?`
		args = append(args, student.Name, student.Class)
	}
	query += ` ORDER BY date_ms, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.ExamAttempt
	for rows.Next() {
		var (
			a        model.ExamAttempt
			dateMS   int64
			chapters string
			pct      sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Student.Name, &a.Student.Class, &dateMS, &a.Subject, &chapters,
			&a.MarksObtained, &a.TotalMarks, &pct, &a.TimeTakenSeconds, &a.TimeTaken, &a.RawAnswerText); err != nil {
			return nil, err
		}
		a.Date = time.UnixMilli(dateMS).UTC()
		if err := json.Unmarshal([]byte(chapters), &a.Chapters); err != nil {
			return nil, fmt.Errorf("decode chapters of %s: %w", a.ID, err)
		}
		if len(a.Chapters) == 0 {
			a.Chapters = nil
		}
		if pct.Valid {
			v := int(pct.Int64)
			a.ScorePercent = &v
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// AttemptCount returns the size of the local collection.
func (s *Store) AttemptCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&count)
	return count, err
}

// ReplaceAttempts swaps the whole local collection in one transaction.
func (s *Store) ReplaceAttempts(ctx context.Context, attempts []model.ExamAttempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts`); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	for _, a := range attempts {
		if err := insertAttempt(ctx, tx, a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nonNilChapters(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}
