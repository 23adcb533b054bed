// Package store is a single-file sqlite backend for offline practice runs.
// It implements the same gateway the HTTP controller uses, so a practice
// attempt is graded and recorded exactly like a live one.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"

	_ "modernc.org/sqlite"
)

// Store holds practice exams and their recorded attempts.
type Store struct {
	db *sql.DB
}

// New opens (and creates if needed) the database at dbPath. ":memory:" works
// for tests.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL,
		questions TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		learner_id INTEGER NOT NULL,
		score INTEGER NOT NULL,
		correct_answers INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		auto_finalized INTEGER NOT NULL,
		answers TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_completed ON attempts(completed_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Exams ──────────────────────────────────────────────────────────────

// ImportExamFile reads an exam definition from a JSON file and saves it.
// The file uses the same shape as the admin create-exam payload.
func (s *Store) ImportExamFile(ctx context.Context, path string) (*model.Exam, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exam file: %w", err)
	}
	var def examFile
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("%w: exam file: %v", exam.ErrInvalidInput, err)
	}
	e, err := def.toExam()
	if err != nil {
		return nil, err
	}
	if err := s.SaveExam(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SaveExam upserts an exam and its questions.
func (s *Store) SaveExam(ctx context.Context, e *model.Exam) error {
	qs, err := json.Marshal(e.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exams (id, title, description, duration_minutes, questions, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   duration_minutes = excluded.duration_minutes,
		   questions = excluded.questions,
		   imported_at = excluded.imported_at`,
		e.ID.String(), e.Title, e.Description, e.DurationMinutes, string(qs), time.Now().UTC(),
	)
	return err
}

// LoadExamDefinition returns a saved exam with its questions in order.
func (s *Store) LoadExamDefinition(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	var (
		e       model.Exam
		qs      string
		created time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT title, description, duration_minutes, questions, imported_at FROM exams WHERE id = ?`,
		examID.String(),
	).Scan(&e.Title, &e.Description, &e.DurationMinutes, &qs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exam %s: %w", examID, exam.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(qs), &e.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of exam %s: %w", examID, err)
	}
	e.ID = examID
	e.IsActive = true
	e.CreatedAt = created
	e.UpdatedAt = created
	return &e, nil
}

// ─── Attempts ───────────────────────────────────────────────────────────

// RecordAttempt stores a graded attempt. Writing the same attempt ID twice
// is a no-op.
func (s *Store) RecordAttempt(ctx context.Context, a *model.Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, exam_id, learner_id, score, correct_answers, total_questions,
		                       passed, auto_finalized, answers, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		a.ID.String(), a.ExamID.String(), a.LearnerID, a.ScorePercent, a.CorrectCount,
		a.TotalQuestions, a.Passed, a.AutoFinalized, string(answers),
		a.StartedAt.UTC(), a.CompletedAt.UTC(),
	)
	return err
}

// ListAttempts returns recorded attempts, newest first. limit <= 0 means all.
func (s *Store) ListAttempts(ctx context.Context, limit int) ([]model.AttemptSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.exam_id, e.title, a.learner_id, a.score, a.correct_answers,
		        a.total_questions, a.passed, a.auto_finalized, a.completed_at
		 FROM attempts a JOIN exams e ON e.id = a.exam_id
		 ORDER BY a.completed_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AttemptSummary
	for rows.Next() {
		var (
			sum        model.AttemptSummary
			id, examID string
		)
		if err := rows.Scan(&id, &examID, &sum.ExamTitle, &sum.LearnerID, &sum.ScorePercent,
			&sum.CorrectCount, &sum.TotalQuestions, &sum.Passed, &sum.AutoFinalized, &sum.CompletedAt); err != nil {
			return nil, err
		}
		if sum.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("attempt id %q: %w", id, err)
		}
		if sum.ExamID, err = uuid.Parse(examID); err != nil {
			return nil, fmt.Errorf("exam id %q: %w", examID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
