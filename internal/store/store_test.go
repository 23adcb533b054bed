package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const sampleExam = `{
	"title": "Go Basics",
	"description": "Warm-up",
	"duration": 2,
	"questions": [
		{"question": "Zero value of int?", "options": ["0", "1", "nil", "-1"], "correct_answer": 0},
		{"question": "Keyword for goroutines?", "options": ["async", "go", "spawn", "run"], "correct_answer": 1},
		{"question": "Map lookup second value?", "options": ["err", "len", "ok", "idx"], "correct_answer": 2}
	]
}`

func writeExamFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exam.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write exam file: %v", err)
	}
	return path
}

func TestImportAndLoadExam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.ImportExamFile(ctx, writeExamFile(t, sampleExam))
	if err != nil {
		t.Fatalf("ImportExamFile: %v", err)
	}

	got, err := s.LoadExamDefinition(ctx, e.ID)
	if err != nil {
		t.Fatalf("LoadExamDefinition: %v", err)
	}
	if got.Title != "Go Basics" || got.DurationMinutes != 2 {
		t.Errorf("got %q/%d, want Go Basics/2", got.Title, got.DurationMinutes)
	}
	if len(got.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(got.Questions))
	}
	if got.Questions[1].CorrectAnswer != 1 || got.Questions[1].Prompt != "Keyword for goroutines?" {
		t.Errorf("question order not preserved: %+v", got.Questions[1])
	}

	// Re-importing the same file keeps the same id.
	again, err := s.ImportExamFile(ctx, writeExamFile(t, sampleExam))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if again.ID != e.ID {
		t.Errorf("re-import changed id: %s != %s", again.ID, e.ID)
	}
}

func TestLoadMissingExam(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadExamDefinition(context.Background(), uuid.New())
	if !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImportRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{"title":`},
		{"no questions", `{"title": "Empty", "duration": 5, "questions": []}`},
		{"zero duration", `{"title": "T", "duration": 0, "questions": [{"question": "q", "options": ["a","b","c","d"], "correct_answer": 0}]}`},
		{"three options", `{"title": "T", "duration": 5, "questions": [{"question": "q", "options": ["a","b","c"], "correct_answer": 0}]}`},
		{"answer out of range", `{"title": "T", "duration": 5, "questions": [{"question": "q", "options": ["a","b","c","d"], "correct_answer": 4}]}`},
		{"bad id", `{"id": "nope", "title": "T", "duration": 5, "questions": [{"question": "q", "options": ["a","b","c","d"], "correct_answer": 0}]}`},
	}

	s := newTestStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ImportExamFile(context.Background(), writeExamFile(t, tt.body))
			if !errors.Is(err, exam.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRecordAttemptIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e, err := s.ImportExamFile(ctx, writeExamFile(t, sampleExam))
	if err != nil {
		t.Fatalf("ImportExamFile: %v", err)
	}

	two := 2
	now := time.Now()
	a := &model.Attempt{
		ID:             uuid.New(),
		ExamID:         e.ID,
		LearnerID:      1,
		Answers:        []model.AttemptAnswer{{QuestionID: e.Questions[0].ID, Position: 0, SelectedAnswer: &two}},
		ScorePercent:   0,
		TotalQuestions: 3,
		StartedAt:      now.Add(-time.Minute),
		CompletedAt:    now,
	}
	for i := 0; i < 2; i++ {
		if err := s.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("RecordAttempt #%d: %v", i+1, err)
		}
	}

	list, err := s.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(list))
	}
	if list[0].ID != a.ID || list[0].ExamTitle != "Go Basics" {
		t.Errorf("unexpected summary: %+v", list[0])
	}
}

func TestPracticeSessionRecordsThroughStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e, err := s.ImportExamFile(ctx, writeExamFile(t, sampleExam))
	if err != nil {
		t.Fatalf("ImportExamFile: %v", err)
	}
	def, err := s.LoadExamDefinition(ctx, e.ID)
	if err != nil {
		t.Fatalf("LoadExamDefinition: %v", err)
	}

	sess, err := exam.NewSession(def, 0, s)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i, opt := range []int{0, 1, 3} {
		if err := sess.GoTo(i); err != nil {
			t.Fatalf("GoTo(%d): %v", i, err)
		}
		if err := sess.SelectAnswer(opt); err != nil {
			t.Fatalf("SelectAnswer(%d): %v", opt, err)
		}
	}
	out, err := sess.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out.Result.ScorePercent != 67 || !out.Result.Passed {
		t.Errorf("got score %d passed %v, want 67 true", out.Result.ScorePercent, out.Result.Passed)
	}

	list, err := s.ListAttempts(ctx, 10)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 1 || list[0].CorrectCount != 2 || !list[0].Passed {
		t.Fatalf("unexpected history: %+v", list)
	}
}
