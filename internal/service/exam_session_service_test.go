package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

type sessionFixture struct {
	svc   *ExamSessionService
	rdb   *redis.Client
	gw    *fakeGateway
	queue *fakeQueue
	ticks *manualTicks
	def   *model.Exam
}

func newSessionFixture(t *testing.T, def *model.Exam, enrolled ...int) sessionFixture {
	t.Helper()
	_, rdb := newTestRedis(t)
	gw := newFakeGateway(def)
	q := &fakeQueue{}
	ticks := newManualTicks()

	enr := fakeEnrollment{enrolled: map[int]bool{}}
	for _, id := range enrolled {
		enr.enrolled[id] = true
	}

	svc := NewExamSessionService(gw, enr, q, rdb, time.Minute, quietLogger(), WithTickSource(ticks.source))
	t.Cleanup(svc.Shutdown)
	return sessionFixture{svc: svc, rdb: rdb, gw: gw, queue: q, ticks: ticks, def: def}
}

func TestExamSessionService_StartAndFinish(t *testing.T) {
	f := newSessionFixture(t, newExamDef(1, 0, 1, 2), 7)
	ctx := context.Background()

	v, err := f.svc.Start(ctx, 7, f.def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.State != exam.StateInProgress || v.Remaining != 60 || v.Question == nil {
		t.Fatalf("unexpected view after start: %+v", v)
	}

	if _, err := f.svc.SelectAnswer(7, v.AttemptID, 0); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if _, err := f.svc.GoTo(7, v.AttemptID, 1); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if _, err := f.svc.SelectAnswer(7, v.AttemptID, 1); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	out, err := f.svc.Finish(ctx, 7, v.AttemptID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out.Result.ScorePercent != 67 || !out.Result.Passed || !out.Recorded {
		t.Errorf("unexpected outcome: %+v", out.Result)
	}
	if f.gw.savedCount() != 1 {
		t.Errorf("saved = %d, want 1", f.gw.savedCount())
	}

	again, err := f.svc.Finish(ctx, 7, v.AttemptID)
	if err != nil {
		t.Fatalf("second Finish: %v", err)
	}
	if again.Attempt.ID != out.Attempt.ID || f.gw.savedCount() != 1 {
		t.Error("second finish must return the same outcome without recording again")
	}
}

func TestExamSessionService_OneActiveAttemptPerExam(t *testing.T) {
	f := newSessionFixture(t, newExamDef(5, 0, 1), 7)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, 7, f.def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Start(ctx, 7, f.def.ID); !errors.Is(err, ErrAttemptInProgress) {
		t.Fatalf("second Start error = %v, want ErrAttemptInProgress", err)
	}
	if !errors.Is(ErrAttemptInProgress, exam.ErrInvalidState) {
		t.Error("ErrAttemptInProgress should match exam.ErrInvalidState")
	}

	if _, err := f.svc.Finish(ctx, 7, first.AttemptID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := f.svc.Start(ctx, 7, f.def.ID); err != nil {
		t.Fatalf("Start after finish: %v", err)
	}
}

func TestExamSessionService_AccessChecks(t *testing.T) {
	f := newSessionFixture(t, newExamDef(5, 0), 7)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, 8, f.def.ID); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("unenrolled Start error = %v, want ErrNotEnrolled", err)
	}
	if _, err := f.svc.Start(ctx, 7, uuid.New()); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("unknown exam error = %v, want ErrNotFound", err)
	}

	v, err := f.svc.Start(ctx, 7, f.def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.View(8, v.AttemptID); !errors.Is(err, ErrAttemptNotOwned) {
		t.Errorf("foreign View error = %v, want ErrAttemptNotOwned", err)
	}
	if _, err := f.svc.View(7, uuid.New()); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("missing View error = %v, want ErrNotFound", err)
	}
}

func TestExamSessionService_TimeoutAutoFinalizes(t *testing.T) {
	f := newSessionFixture(t, newExamDef(1, 0, 1, 2), 7)
	ctx := context.Background()

	v, err := f.svc.Start(ctx, 7, f.def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events, cancel, err := f.svc.Subscribe(7, v.AttemptID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if _, err := f.svc.SelectAnswer(7, v.AttemptID, 0); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	go f.ticks.tick(t, 60)

	var graded *SessionEvent
	timeout := time.After(3 * time.Second)
	for graded == nil {
		select {
		case ev := <-events:
			if ev.Type == SessionEventGraded {
				graded = &ev
			}
		case <-timeout:
			t.Fatal("no graded event")
		}
	}

	if graded.Outcome == nil || !graded.Outcome.Attempt.AutoFinalized {
		t.Fatalf("expected auto-finalized outcome, got %+v", graded.Outcome)
	}
	if graded.Outcome.Result.ScorePercent != 33 || graded.Outcome.Result.Passed {
		t.Errorf("unexpected result: %+v", graded.Outcome.Result)
	}
	if _, err := f.svc.SelectAnswer(7, v.AttemptID, 1); !errors.Is(err, exam.ErrInvalidState) {
		t.Errorf("answer after timeout error = %v, want ErrInvalidState", err)
	}
}

func TestExamSessionService_PersistenceFailureQueuesAttempt(t *testing.T) {
	f := newSessionFixture(t, newExamDef(5, 0, 1), 7)
	f.gw.failures = 1
	ctx := context.Background()

	v, err := f.svc.Start(ctx, 7, f.def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, err := f.svc.Finish(ctx, 7, v.AttemptID)
	if !errors.Is(err, exam.ErrPersistence) {
		t.Fatalf("Finish error = %v, want ErrPersistence", err)
	}
	if out.Recorded || out.Result.TotalQuestions != 2 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if f.queue.len() != 1 {
		t.Errorf("queued = %d, want 1", f.queue.len())
	}

	retried, err := f.svc.RetryRecord(ctx, 7, v.AttemptID)
	if err != nil {
		t.Fatalf("RetryRecord: %v", err)
	}
	if !retried.Recorded || f.gw.savedCount() != 1 {
		t.Error("retry should record the attempt once")
	}
}

func TestExamSessionService_WorkerRecordedAttempt(t *testing.T) {
	f := newSessionFixture(t, newExamDef(5, 0, 1), 7)
	f.gw.failures = 1
	ctx := context.Background()

	watchCtx, stopWatch := context.WithCancel(ctx)
	watching := make(chan struct{})
	go func() {
		defer close(watching)
		f.svc.WatchRecorded(watchCtx)
	}()
	t.Cleanup(func() {
		stopWatch()
		<-watching
	})

	if f.svc.MarkRecorded(uuid.New()) {
		t.Error("unknown attempt must not be marked")
	}

	v, err := f.svc.Start(ctx, 7, f.def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Finish(ctx, 7, v.AttemptID); !errors.Is(err, exam.ErrPersistence) {
		t.Fatalf("Finish error = %v, want ErrPersistence", err)
	}

	// The retry worker announces the attempt once its write lands.
	channel := config.CacheKey.AttemptRecordedChannel()
	waitFor(t, func() bool {
		f.rdb.Publish(ctx, channel, v.AttemptID.String())
		view, err := f.svc.View(7, v.AttemptID)
		return err == nil && view.Outcome != nil && view.Outcome.Recorded
	})

	out, err := f.svc.Finish(ctx, 7, v.AttemptID)
	if err != nil {
		t.Fatalf("Finish after worker write: %v", err)
	}
	if !out.Recorded {
		t.Error("finish must report the attempt recorded")
	}
	if f.gw.savedCount() != 0 {
		t.Errorf("gateway writes = %d, want 0", f.gw.savedCount())
	}
}

func TestExamSessionService_Submit(t *testing.T) {
	f := newSessionFixture(t, newExamDef(5, 0, 1, 2, 3, 0), 7)
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, 7, f.def.ID, []*int{intp(0), intp(1), intp(2), nil, intp(3)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Result.CorrectCount != 3 || out.Result.ScorePercent != 60 || !out.Result.Passed {
		t.Errorf("unexpected result: %+v", out.Result)
	}
	if !out.Recorded || f.gw.savedCount() != 1 {
		t.Error("submit should record once")
	}

	if _, err := f.svc.Submit(ctx, 7, f.def.ID, []*int{intp(0), intp(0), intp(0), intp(0), intp(0), intp(0)}); !errors.Is(err, exam.ErrInvalidInput) {
		t.Errorf("oversized sheet error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.Submit(ctx, 7, f.def.ID, []*int{intp(4)}); !errors.Is(err, exam.ErrInvalidInput) {
		t.Errorf("bad option error = %v, want ErrInvalidInput", err)
	}
}

func TestExamSessionService_PublishesMonitorEvents(t *testing.T) {
	mr, rdb := newTestRedis(t)
	def := newExamDef(5, 0)
	svc := NewExamSessionService(newFakeGateway(def), nil, nil, rdb, time.Minute, quietLogger(), WithTickSource(newManualTicks().source))
	t.Cleanup(svc.Shutdown)

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(def.ID.String()))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msgs := sub.Channel()

	v, err := svc.Start(ctx, 3, def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !mr.Exists(config.CacheKey.LearnerActiveAttemptKey(def.ID.String(), 3)) {
		t.Error("active attempt guard not set")
	}
	if _, err := svc.Finish(ctx, 3, v.AttemptID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if mr.Exists(config.CacheKey.LearnerActiveAttemptKey(def.ID.String(), 3)) {
		t.Error("active attempt guard not released")
	}

	var types []string
	for len(types) < 2 {
		select {
		case m := <-msgs:
			var ev MonitorEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			types = append(types, ev.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("got events %v, want 2", types)
		}
	}
	if types[0] != "attempt_started" || types[1] != "attempt_finished" {
		t.Errorf("events = %v", types)
	}
}

func TestExamSessionService_EvictFinished(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, rdb := newTestRedis(t)
	def := newExamDef(5, 0)
	svc := NewExamSessionService(newFakeGateway(def), nil, nil, rdb, time.Minute, quietLogger(),
		WithTickSource(newManualTicks().source),
		WithSessionClock(func() time.Time { return now }),
	)
	t.Cleanup(svc.Shutdown)
	ctx := context.Background()

	v, err := svc.Start(ctx, 1, def.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(svc.LiveProgress(def.ID)); got != 1 {
		t.Fatalf("live = %d, want 1", got)
	}
	if _, err := svc.Finish(ctx, 1, v.AttemptID); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if n := svc.EvictFinished(); n != 0 {
		t.Errorf("evicted %d before TTL", n)
	}
	now = now.Add(2 * time.Minute)
	if n := svc.EvictFinished(); n != 1 {
		t.Errorf("evicted %d after TTL, want 1", n)
	}
	if _, err := svc.View(1, v.AttemptID); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("View after eviction error = %v, want ErrNotFound", err)
	}
}
