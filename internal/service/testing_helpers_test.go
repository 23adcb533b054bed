package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func newExamDef(minutes int, keys ...int) *model.Exam {
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

// fakeGateway serves definitions from memory and records attempts in a slice.
type fakeGateway struct {
	mu       sync.Mutex
	exams    map[uuid.UUID]*model.Exam
	failures int
	saved    []model.Attempt
}

func newFakeGateway(exams ...*model.Exam) *fakeGateway {
	g := &fakeGateway{exams: make(map[uuid.UUID]*model.Exam)}
	for _, e := range exams {
		g.exams[e.ID] = e
	}
	return g
}

func (g *fakeGateway) LoadExamDefinition(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.exams[id]
	if !ok {
		return nil, exam.ErrNotFound
	}
	return e, nil
}

func (g *fakeGateway) RecordAttempt(_ context.Context, a *model.Attempt) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failures > 0 {
		g.failures--
		return errors.New("connection refused")
	}
	g.saved = append(g.saved, *a)
	return nil
}

func (g *fakeGateway) savedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.saved)
}

type fakeEnrollment struct {
	enrolled map[int]bool
}

func (f fakeEnrollment) IsEnrolled(_ context.Context, userID int, _ uuid.UUID) (bool, error) {
	return f.enrolled[userID], nil
}

type fakeQueue struct {
	mu     sync.Mutex
	queued []model.Attempt
}

func (q *fakeQueue) Enqueue(_ context.Context, a *model.Attempt) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued = append(q.queued, *a)
	return nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued)
}

// manualTicks hands every new session the same test-driven tick channel.
type manualTicks struct {
	ch chan time.Time
}

func newManualTicks() *manualTicks {
	return &manualTicks{ch: make(chan time.Time)}
}

func (m *manualTicks) source() (<-chan time.Time, func()) {
	return m.ch, func() {}
}

func (m *manualTicks) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case m.ch <- time.Now():
		case <-time.After(time.Second):
			t.Errorf("tick %d not consumed", i+1)
			return
		}
	}
}

func quietLogger() zerolog.Logger {
	return zerolog.Nop()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
