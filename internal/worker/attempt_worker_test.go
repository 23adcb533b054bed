package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
)

type fakeWriter struct {
	mu        sync.Mutex
	batchErr  error
	singleErr error
	saved     map[uuid.UUID]model.Attempt
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{saved: make(map[uuid.UUID]model.Attempt)}
}

func (f *fakeWriter) RecordBatch(_ context.Context, attempts []model.Attempt) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return 0, f.batchErr
	}
	n := 0
	for _, a := range attempts {
		if _, ok := f.saved[a.ID]; !ok {
			f.saved[a.ID] = a
			n++
		}
	}
	return n, nil
}

func (f *fakeWriter) Record(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.singleErr != nil {
		return f.singleErr
	}
	f.saved[a.ID] = *a
	return nil
}

func (f *fakeWriter) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchErr, f.singleErr = err, err
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func push(t *testing.T, rdb *redis.Client, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		raw, _ := json.Marshal(model.QueuedAttempt{Attempt: model.Attempt{ID: ids[i], ExamID: uuid.New(), LearnerID: i + 1}})
		if err := rdb.RPush(context.Background(), config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	return ids
}

func llen(rdb *redis.Client, key string) int64 {
	return rdb.LLen(context.Background(), key).Val()
}

func retrying(rdb *redis.Client) int64 {
	return rdb.ZCard(context.Background(), config.WorkerKey.RetryAttemptsSet).Val()
}

func runUntil(t *testing.T, w *AttemptWorker, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestAttemptWorker_RecordsQueuedAttempts(t *testing.T) {
	_, rdb := setup(t)
	writer := newFakeWriter()
	push(t, rdb, 3)

	w := NewAttemptWorker(writer, rdb, zerolog.Nop())
	w.flushAge = 20 * time.Millisecond
	runUntil(t, w, func() bool { return writer.count() == 3 })

	if n := rdb.LLen(context.Background(), config.WorkerKey.PersistAttemptsQueue).Val(); n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}

func TestAttemptWorker_FallsBackToSingleWrites(t *testing.T) {
	_, rdb := setup(t)
	writer := newFakeWriter()
	writer.batchErr = errors.New("deadlock detected")
	push(t, rdb, 2)

	w := NewAttemptWorker(writer, rdb, zerolog.Nop())
	w.flushAge = 20 * time.Millisecond
	runUntil(t, w, func() bool { return writer.count() == 2 })
}

func TestAttemptWorker_ParksPoisonAttempts(t *testing.T) {
	mr, rdb := setup(t)
	writer := newFakeWriter()
	writer.batchErr = errors.New("down")
	writer.singleErr = errors.New("down")
	push(t, rdb, 1)
	mr.RPush(config.WorkerKey.PersistAttemptsQueue, "{broken")

	w := NewAttemptWorker(writer, rdb, zerolog.Nop())
	w.flushAge = 20 * time.Millisecond
	w.retryBase = time.Millisecond
	w.maxTries = 2
	runUntil(t, w, func() bool {
		return rdb.LLen(context.Background(), config.WorkerKey.DeadAttemptsQueue).Val() == 2
	})

	dead, _ := mr.List(config.WorkerKey.DeadAttemptsQueue)
	var parked model.QueuedAttempt
	for _, raw := range dead {
		if json.Unmarshal([]byte(raw), &parked) == nil {
			break
		}
	}
	if parked.Tries != 2 {
		t.Errorf("parked tries = %d, want 2", parked.Tries)
	}
	if writer.count() != 0 {
		t.Error("nothing should be saved")
	}
}

func TestAttemptWorker_BacksOffFailedWrites(t *testing.T) {
	mr, rdb := setup(t)
	writer := newFakeWriter()
	writer.fail(errors.New("connection refused"))
	push(t, rdb, 1)

	fixed := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	w := NewAttemptWorker(writer, rdb, zerolog.Nop())
	w.flushAge = 20 * time.Millisecond
	w.now = func() time.Time { return fixed }
	runUntil(t, w, func() bool { return retrying(rdb) == 1 })

	if n := llen(rdb, config.WorkerKey.PersistAttemptsQueue); n != 0 {
		t.Errorf("queue length = %d, want 0 while backing off", n)
	}
	if n := llen(rdb, config.WorkerKey.DeadAttemptsQueue); n != 0 {
		t.Errorf("dead length = %d, want 0", n)
	}

	members, err := mr.ZMembers(config.WorkerKey.RetryAttemptsSet)
	if err != nil || len(members) != 1 {
		t.Fatalf("retry set = %v, %v", members, err)
	}
	score, _ := mr.ZScore(config.WorkerKey.RetryAttemptsSet, members[0])
	if want := float64(fixed.Add(AttemptRetryBase).UnixMilli()); score != want {
		t.Errorf("retry score = %v, want %v", score, want)
	}
	var q model.QueuedAttempt
	if err := json.Unmarshal([]byte(members[0]), &q); err != nil {
		t.Fatal(err)
	}
	if q.Tries != 1 || !q.RetryAt.Equal(fixed.Add(AttemptRetryBase)) {
		t.Errorf("queued = tries %d, retry at %v", q.Tries, q.RetryAt)
	}
}

func TestAttemptWorker_SurvivesShortOutage(t *testing.T) {
	_, rdb := setup(t)
	writer := newFakeWriter()
	writer.fail(errors.New("connection refused"))
	push(t, rdb, 1)

	w := NewAttemptWorker(writer, rdb, zerolog.Nop())
	w.flushAge = 20 * time.Millisecond
	w.retryBase = 10 * time.Millisecond

	recovered := false
	runUntil(t, w, func() bool {
		if !recovered && retrying(rdb) == 1 {
			writer.fail(nil)
			recovered = true
		}
		return writer.count() == 1
	})

	if n := llen(rdb, config.WorkerKey.DeadAttemptsQueue); n != 0 {
		t.Errorf("dead length = %d, want 0", n)
	}
	if n := retrying(rdb); n != 0 {
		t.Errorf("retry set size = %d, want 0", n)
	}
}

func TestAttemptWorker_AnnouncesRecordedAttempts(t *testing.T) {
	_, rdb := setup(t)
	ctx := context.Background()
	sub := rdb.Subscribe(ctx, config.CacheKey.AttemptRecordedChannel())
	t.Cleanup(func() { sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	writer := newFakeWriter()
	ids := push(t, rdb, 2)
	w := NewAttemptWorker(writer, rdb, zerolog.Nop())
	w.flushAge = 20 * time.Millisecond
	runUntil(t, w, func() bool { return writer.count() == 2 })

	got := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-sub.Channel():
			got[msg.Payload] = true
		case <-timeout:
			t.Fatalf("announced %v, want %v", got, ids)
		}
	}
	for _, id := range ids {
		if !got[id.String()] {
			t.Errorf("attempt %s not announced", id)
		}
	}
}

func TestAttemptWorker_RetryDelay(t *testing.T) {
	w := NewAttemptWorker(newFakeWriter(), nil, zerolog.Nop())
	tests := []struct {
		tries int
		want  time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{6, 160 * time.Second},
		{7, 5 * time.Minute},
		{AttemptMaxTries, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := w.retryDelay(tt.tries); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.tries, got, tt.want)
		}
	}
}
