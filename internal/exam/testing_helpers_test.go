package exam

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/model"
)

type fakeRecorder struct {
	mu       sync.Mutex
	calls    int
	failures int
	saved    []model.Attempt
}

func (f *fakeRecorder) RecordAttempt(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	f.saved = append(f.saved, *a)
	return nil
}

func newExam(minutes int, keys ...int) *model.Exam {
	qs := make([]model.Question, len(keys))
	for i, k := range keys {
		qs[i] = model.Question{
			ID:            uuid.New(),
			Prompt:        "question",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: k,
		}
	}
	return &model.Exam{
		ID:              uuid.New(),
		CourseID:        uuid.New(),
		Title:           "Quiz",
		DurationMinutes: minutes,
		Questions:       qs,
		IsActive:        true,
	}
}

func intp(v int) *int { return &v }
