package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

// Session-level errors.
var (
	ErrAttemptNotOwned   = errors.New("attempt belongs to another learner")
	ErrAttemptInProgress = fmt.Errorf("%w: attempt already in progress", exam.ErrInvalidState)
)

// activeKeyGrace keeps the one-attempt guard alive a little past the exam
// duration so a late auto-finish still clears it itself.
const activeKeyGrace = time.Minute

// EnrollmentChecker reports whether a learner may sit a course's exams.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID int, courseID uuid.UUID) (bool, error)
}

// AttemptEnqueuer hands unrecorded attempts to background retry.
type AttemptEnqueuer interface {
	Enqueue(ctx context.Context, a *model.Attempt) error
}

// TickSource produces one value per elapsed second and a stop function.
type TickSource func() (<-chan time.Time, func())

func secondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// SessionEventType names an event pushed to attempt subscribers.
type SessionEventType string

const (
	SessionEventTick   SessionEventType = "tick"
	SessionEventState  SessionEventType = "state"
	SessionEventGraded SessionEventType = "graded"
)

// SessionEvent is pushed to subscribers of a live attempt.
type SessionEvent struct {
	Type      SessionEventType
	Remaining int
	View      *AttemptView
	Outcome   *exam.Outcome
	Err       error
}

// AttemptView is what a learner sees of an attempt.
type AttemptView struct {
	exam.Snapshot
	ExamTitle string                    `json:"exam_title"`
	Duration  int                       `json:"duration"`
	Question  *model.QuestionForLearner `json:"question,omitempty"`
	Outcome   *exam.Outcome             `json:"outcome,omitempty"`
}

// LiveProgress is one in-memory attempt as seen by the exam monitor.
type LiveProgress struct {
	AttemptID      uuid.UUID  `json:"attempt_id"`
	LearnerID      int        `json:"learner_id"`
	State          exam.State `json:"state"`
	Remaining      int        `json:"remaining_seconds"`
	AnsweredCount  int        `json:"answered_count"`
	TotalQuestions int        `json:"total_questions"`
}

// MonitorEvent is published on the exam's monitor channel.
type MonitorEvent struct {
	Type          string    `json:"type"`
	AttemptID     uuid.UUID `json:"attempt_id"`
	ExamID        uuid.UUID `json:"exam_id"`
	LearnerID     int       `json:"learner_id"`
	Score         *int      `json:"score,omitempty"`
	Passed        *bool     `json:"passed,omitempty"`
	AutoFinalized bool      `json:"auto_finalized,omitempty"`
	Recorded      bool      `json:"recorded"`
	At            time.Time `json:"at"`
}

type liveSession struct {
	*exam.Session
	cancel context.CancelFunc

	finishOnce sync.Once

	mu         sync.Mutex
	finishedAt time.Time
	subs       map[chan SessionEvent]struct{}
}

func (ls *liveSession) broadcast(ev SessionEvent) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ch := range ls.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest event so the newest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (ls *liveSession) closeSubscribers() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ch := range ls.subs {
		close(ch)
	}
	ls.subs = nil
}

// ExamSessionService hosts live exam sessions in memory. Each session gets
// its own one-second tick runner; finished sessions linger for finishedTTL
// so repeated finish calls and record retries still find them.
type ExamSessionService struct {
	gateway     exam.Gateway
	enroll      EnrollmentChecker
	queue       AttemptEnqueuer
	rdb         *redis.Client
	finishedTTL time.Duration
	ticks       TickSource
	now         func() time.Time
	log         zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*liveSession

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// SessionServiceOption customizes an ExamSessionService.
type SessionServiceOption func(*ExamSessionService)

// WithTickSource replaces the wall-clock ticker.
func WithTickSource(src TickSource) SessionServiceOption {
	return func(s *ExamSessionService) { s.ticks = src }
}

// WithSessionClock replaces time.Now for finish bookkeeping.
func WithSessionClock(now func() time.Time) SessionServiceOption {
	return func(s *ExamSessionService) { s.now = now }
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	gateway exam.Gateway,
	enroll EnrollmentChecker,
	queue AttemptEnqueuer,
	rdb *redis.Client,
	finishedTTL time.Duration,
	log zerolog.Logger,
	opts ...SessionServiceOption,
) *ExamSessionService {
	ctx, stop := context.WithCancel(context.Background())
	s := &ExamSessionService{
		gateway:     gateway,
		enroll:      enroll,
		queue:       queue,
		rdb:         rdb,
		finishedTTL: finishedTTL,
		ticks:       secondTicker,
		now:         time.Now,
		log:         log.With().Str("component", "exam_session_service").Logger(),
		sessions:    make(map[uuid.UUID]*liveSession),
		baseCtx:     ctx,
		stop:        stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new attempt for a learner and starts its clock.
func (s *ExamSessionService) Start(ctx context.Context, learnerID int, examID uuid.UUID) (*AttemptView, error) {
	def, err := s.loadForLearner(ctx, learnerID, examID)
	if err != nil {
		return nil, err
	}

	attemptID := uuid.New()
	activeKey := config.CacheKey.LearnerActiveAttemptKey(examID.String(), learnerID)
	ttl := time.Duration(def.DurationSeconds())*time.Second + activeKeyGrace
	ok, err := s.rdb.SetNX(ctx, activeKey, attemptID.String(), ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim active attempt: %w", err)
	}
	if !ok {
		return nil, ErrAttemptInProgress
	}

	sess, err := exam.NewSession(def, learnerID, s.gateway, exam.WithAttemptID(attemptID), exam.WithNow(s.now))
	if err == nil {
		err = sess.Start()
	}
	if err != nil {
		s.rdb.Del(ctx, activeKey)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(s.baseCtx)
	ls := &liveSession{Session: sess, cancel: cancel, subs: make(map[chan SessionEvent]struct{})}

	s.mu.Lock()
	s.sessions[attemptID] = ls
	s.mu.Unlock()

	ticks, stopTicks := s.ticks()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stopTicks()
		exam.Run(runCtx, sess, ticks, exam.RunHooks{
			OnTick: func(remaining int) {
				ls.broadcast(SessionEvent{Type: SessionEventTick, Remaining: remaining})
			},
			OnFinish: func(out exam.Outcome, err error) {
				s.afterFinish(ls, out, err)
			},
		})
	}()

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("exam_id", examID.String()).
		Int("learner_id", learnerID).
		Int("duration_s", def.DurationSeconds()).
		Msg("Attempt started")
	s.publishMonitor(MonitorEvent{Type: "attempt_started", AttemptID: attemptID, ExamID: examID, LearnerID: learnerID, At: s.now()})

	return s.view(ls), nil
}

// View returns the current state of a learner's attempt.
func (s *ExamSessionService) View(learnerID int, attemptID uuid.UUID) (*AttemptView, error) {
	ls, err := s.lookup(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.view(ls), nil
}

// SelectAnswer records an option for the attempt's current question.
func (s *ExamSessionService) SelectAnswer(learnerID int, attemptID uuid.UUID, option int) (*AttemptView, error) {
	ls, err := s.lookup(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ls.SelectAnswer(option); err != nil {
		return nil, err
	}
	v := s.view(ls)
	ls.broadcast(SessionEvent{Type: SessionEventState, View: v})
	return v, nil
}

// GoTo moves the attempt's question pointer.
func (s *ExamSessionService) GoTo(learnerID int, attemptID uuid.UUID, index int) (*AttemptView, error) {
	ls, err := s.lookup(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ls.GoTo(index); err != nil {
		return nil, err
	}
	v := s.view(ls)
	ls.broadcast(SessionEvent{Type: SessionEventState, View: v})
	return v, nil
}

// Finish grades and records the attempt. A returned error matching
// exam.ErrPersistence comes with a valid outcome: the score stands and the
// write has been queued for retry.
func (s *ExamSessionService) Finish(ctx context.Context, learnerID int, attemptID uuid.UUID) (exam.Outcome, error) {
	ls, err := s.lookup(learnerID, attemptID)
	if err != nil {
		return exam.Outcome{}, err
	}
	out, err := ls.Finish(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, exam.ErrPersistence) {
		return exam.Outcome{}, err
	}
	s.afterFinish(ls, out, err)
	return out, err
}

// RetryRecord re-attempts the durable write of a finished attempt.
func (s *ExamSessionService) RetryRecord(ctx context.Context, learnerID int, attemptID uuid.UUID) (exam.Outcome, error) {
	ls, err := s.lookup(learnerID, attemptID)
	if err != nil {
		return exam.Outcome{}, err
	}
	if err := ls.RetryRecord(ctx); err != nil {
		return exam.Outcome{}, err
	}
	out, _ := ls.Outcome()
	return out, nil
}

// MarkRecorded flags a finished live attempt as stored by the retry worker.
// It reports whether a session was updated.
func (s *ExamSessionService) MarkRecorded(attemptID uuid.UUID) bool {
	s.mu.RLock()
	ls, ok := s.sessions[attemptID]
	s.mu.RUnlock()
	if !ok || !ls.MarkRecorded() {
		return false
	}

	s.log.Info().Str("attempt_id", attemptID.String()).Msg("Queued attempt recorded")
	ls.broadcast(SessionEvent{Type: SessionEventState, View: s.view(ls)})
	s.publishMonitor(MonitorEvent{
		Type:      "attempt_recorded",
		AttemptID: attemptID,
		ExamID:    ls.ExamID(),
		LearnerID: ls.LearnerID(),
		Recorded:  true,
		At:        s.now(),
	})
	return true
}

// WatchRecorded listens for attempts saved by the retry worker and marks
// their live sessions recorded. It blocks until ctx is done.
func (s *ExamSessionService) WatchRecorded(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, config.CacheKey.AttemptRecordedChannel())
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn().Err(err).Msg("Recorded attempts subscription failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		id, err := uuid.Parse(msg.Payload)
		if err != nil {
			s.log.Warn().Str("payload", msg.Payload).Msg("Ignoring malformed recorded attempt id")
			continue
		}
		s.MarkRecorded(id)
	}
}

// Subscribe streams events of a learner's attempt until cancel is called or
// the session is evicted.
func (s *ExamSessionService) Subscribe(learnerID int, attemptID uuid.UUID) (<-chan SessionEvent, func(), error) {
	ls, err := s.lookup(learnerID, attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan SessionEvent, 16)

	ls.mu.Lock()
	if ls.subs == nil {
		ls.mu.Unlock()
		return nil, nil, exam.ErrNotFound
	}
	ls.subs[ch] = struct{}{}
	ls.mu.Unlock()

	cancel := func() {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		if _, ok := ls.subs[ch]; ok {
			delete(ls.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// Submit grades a complete answer sheet in one call through the same
// controller used by interactive attempts.
func (s *ExamSessionService) Submit(ctx context.Context, learnerID int, examID uuid.UUID, answers []*int) (exam.Outcome, error) {
	def, err := s.loadForLearner(ctx, learnerID, examID)
	if err != nil {
		return exam.Outcome{}, err
	}
	sess, err := exam.NewSession(def, learnerID, s.gateway, exam.WithNow(s.now))
	if err != nil {
		return exam.Outcome{}, err
	}
	if err := sess.Start(); err != nil {
		return exam.Outcome{}, err
	}
	if err := sess.LoadAnswers(answers); err != nil {
		return exam.Outcome{}, err
	}

	out, err := sess.Finish(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, exam.ErrPersistence) {
		return exam.Outcome{}, err
	}
	s.settle(out, err)
	return out, err
}

// LiveProgress lists the in-memory attempts of an exam.
func (s *ExamSessionService) LiveProgress(examID uuid.UUID) []LiveProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []LiveProgress{}
	for _, ls := range s.sessions {
		if ls.ExamID() != examID {
			continue
		}
		snap := ls.Snapshot()
		out = append(out, LiveProgress{
			AttemptID:      snap.AttemptID,
			LearnerID:      ls.LearnerID(),
			State:          snap.State,
			Remaining:      snap.Remaining,
			AnsweredCount:  snap.AnsweredCount,
			TotalQuestions: snap.TotalQuestions,
		})
	}
	return out
}

// LiveCount reports how many sessions are held in memory by state.
func (s *ExamSessionService) LiveCount() (inProgress, finished int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ls := range s.sessions {
		if ls.State() == exam.StateInProgress {
			inProgress++
		} else {
			finished++
		}
	}
	return inProgress, finished
}

// RunJanitor evicts finished sessions older than the TTL until ctx is done.
func (s *ExamSessionService) RunJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.EvictFinished(); n > 0 {
				s.log.Debug().Int("evicted", n).Msg("Evicted finished sessions")
			}
		}
	}
}

// EvictFinished drops finished sessions whose TTL has passed.
func (s *ExamSessionService) EvictFinished() int {
	cutoff := s.now().Add(-s.finishedTTL)

	s.mu.Lock()
	var evicted []*liveSession
	for id, ls := range s.sessions {
		ls.mu.Lock()
		done := !ls.finishedAt.IsZero() && !ls.finishedAt.After(cutoff)
		ls.mu.Unlock()
		if done {
			delete(s.sessions, id)
			evicted = append(evicted, ls)
		}
	}
	s.mu.Unlock()

	for _, ls := range evicted {
		ls.closeSubscribers()
	}
	return len(evicted)
}

// Shutdown stops all tick runners. Attempts still in progress are left
// ungraded; their one-attempt guards expire on their own.
func (s *ExamSessionService) Shutdown() {
	s.stop()
	s.wg.Wait()

	s.mu.RLock()
	open := 0
	for _, ls := range s.sessions {
		if ls.State() == exam.StateInProgress {
			open++
		}
	}
	s.mu.RUnlock()
	if open > 0 {
		s.log.Warn().Int("in_progress", open).Msg("Shutting down with attempts in progress")
	}
}

func (s *ExamSessionService) loadForLearner(ctx context.Context, learnerID int, examID uuid.UUID) (*model.Exam, error) {
	def, err := s.gateway.LoadExamDefinition(ctx, examID)
	if err != nil {
		return nil, err
	}
	if s.enroll != nil {
		ok, err := s.enroll.IsEnrolled(ctx, learnerID, def.CourseID)
		if err != nil {
			return nil, fmt.Errorf("check enrollment: %w", err)
		}
		if !ok {
			return nil, ErrNotEnrolled
		}
	}
	return def, nil
}

func (s *ExamSessionService) lookup(learnerID int, attemptID uuid.UUID) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, exam.ErrNotFound)
	}
	if ls.LearnerID() != learnerID {
		return nil, ErrAttemptNotOwned
	}
	return ls, nil
}

func (s *ExamSessionService) view(ls *liveSession) *AttemptView {
	def := ls.Exam()
	v := &AttemptView{
		Snapshot:  ls.Snapshot(),
		ExamTitle: def.Title,
		Duration:  def.DurationMinutes,
	}
	if q, err := ls.CurrentQuestion(); err == nil {
		v.Question = &q
	}
	if out, ok := ls.Outcome(); ok {
		v.Outcome = &out
	}
	return v
}

// afterFinish runs once per live session however it ended.
func (s *ExamSessionService) afterFinish(ls *liveSession, out exam.Outcome, err error) {
	ls.finishOnce.Do(func() {
		ls.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		key := config.CacheKey.LearnerActiveAttemptKey(ls.ExamID().String(), ls.LearnerID())
		if delErr := s.rdb.Del(ctx, key).Err(); delErr != nil {
			s.log.Warn().Err(delErr).Str("attempt_id", ls.ID().String()).Msg("Failed to release active attempt guard")
		}

		ls.mu.Lock()
		ls.finishedAt = s.now()
		ls.mu.Unlock()

		s.settle(out, err)
		ls.broadcast(SessionEvent{Type: SessionEventGraded, Outcome: &out, Err: err, View: s.view(ls)})
	})
}

// settle queues a failed write and announces the result.
func (s *ExamSessionService) settle(out exam.Outcome, err error) {
	a := out.Attempt
	logEvt := s.log.Info()
	if err != nil {
		logEvt = s.log.Warn().Err(err)
	}
	logEvt.
		Str("attempt_id", a.ID.String()).
		Str("exam_id", a.ExamID.String()).
		Int("learner_id", a.LearnerID).
		Int("score", a.ScorePercent).
		Bool("passed", a.Passed).
		Bool("auto", a.AutoFinalized).
		Bool("recorded", out.Recorded).
		Msg("Attempt finished")

	if errors.Is(err, exam.ErrPersistence) && s.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if qErr := s.queue.Enqueue(ctx, &a); qErr != nil {
			s.log.Error().Err(qErr).Str("attempt_id", a.ID.String()).Msg("Failed to queue unrecorded attempt")
		}
	}

	score, passed := a.ScorePercent, a.Passed
	s.publishMonitor(MonitorEvent{
		Type:          "attempt_finished",
		AttemptID:     a.ID,
		ExamID:        a.ExamID,
		LearnerID:     a.LearnerID,
		Score:         &score,
		Passed:        &passed,
		AutoFinalized: a.AutoFinalized,
		Recorded:      out.Recorded,
		At:            a.CompletedAt,
	})
}

func (s *ExamSessionService) publishMonitor(ev MonitorEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID.String()), payload).Err(); err != nil {
		s.log.Debug().Err(err).Str("exam_id", ev.ExamID.String()).Msg("Monitor publish failed")
	}
}
