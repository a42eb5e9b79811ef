package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pavelanni/tutor/internal/model"
)

// Remote is a student-keyed attempt store shared across devices.
type Remote interface {
	AppendAttempt(ctx context.Context, a model.ExamAttempt) error
	ListAttempts(ctx context.Context, student model.Student) ([]model.ExamAttempt, error)
}

// NewPostgresPool opens and pings a pgx pool for databaseURL.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PGRemote keeps attempts in PostgreSQL, keyed by (student_name, class).
type PGRemote struct {
	pool *pgxpool.Pool
}

// NewPGRemote wraps pool and creates the attempts table if needed.
func NewPGRemote(ctx context.Context, pool *pgxpool.Pool) (*PGRemote, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS exam_attempts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			student_name TEXT NOT NULL,
			class TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			subject TEXT NOT NULL,
			chapters TEXT[] NOT NULL DEFAULT '{}',
			marks_obtained DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
			score_percent INTEGER,
			time_taken_seconds INTEGER NOT NULL DEFAULT 0,
			time_taken TEXT NOT NULL DEFAULT '',
			raw_answer_text TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_exam_attempts_student ON exam_attempts (student_name, class, date);
	`)
	if err != nil {
		return nil, fmt.Errorf("create exam_attempts: %w", err)
	}
	return &PGRemote{pool: pool}, nil
}

func (r *PGRemote) AppendAttempt(ctx context.Context, a model.ExamAttempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO exam_attempts (id, session_id, student_name, class, date, subject, chapters,
			marks_obtained, total_marks, score_percent, time_taken_seconds, time_taken, raw_answer_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.SessionID, a.Student.Name, a.Student.Class, a.Date, a.Subject, nonNilChapters(a.Chapters),
		a.MarksObtained, a.TotalMarks, a.ScorePercent, a.TimeTakenSeconds, a.TimeTaken, a.RawAnswerText)
	if err != nil {
		return fmt.Errorf("insert remote attempt %s: %w", a.ID, err)
	}
	return nil
}

func (r *PGRemote) ListAttempts(ctx context.Context, student model.Student) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, student_name, class, date, subject, chapters,
			marks_obtained, total_marks, score_percent, time_taken_seconds, time_taken, raw_answer_text
		FROM exam_attempts
		WHERE student_name = $1 AND class = $2
		ORDER BY date ASC, id ASC
	`, student.Name, student.Class)
	if err != nil {
		return nil, fmt.Errorf("query remote attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.ExamAttempt
	for rows.Next() {
		var a model.ExamAttempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Student.Name, &a.Student.Class, &a.Date, &a.Subject, &a.Chapters,
			&a.MarksObtained, &a.TotalMarks, &a.ScorePercent, &a.TimeTakenSeconds, &a.TimeTaken, &a.RawAnswerText); err != nil {
			return nil, err
		}
		if len(a.Chapters) == 0 {
			a.Chapters = nil
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
