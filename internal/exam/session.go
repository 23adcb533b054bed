package exam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/model"
)

// State is the lifecycle phase of a Session.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateFinished   State = "FINISHED"
)

// Outcome is what a finished session hands back to its host.
type Outcome struct {
	Result   Result        `json:"result"`
	Attempt  model.Attempt `json:"attempt"`
	Recorded bool          `json:"recorded"`
}

// Snapshot is a point-in-time view of a session for display.
type Snapshot struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	ExamID         uuid.UUID `json:"exam_id"`
	State          State     `json:"state"`
	Remaining      int       `json:"remaining_seconds"`
	Current        int       `json:"current_question"`
	TotalQuestions int       `json:"total_questions"`
	AnsweredCount  int       `json:"answered_count"`
	Selections     []*int    `json:"selections"`
	StartedAt      time.Time `json:"started_at"`
}

// Session drives one learner through one exam: it owns the clock, the answer
// ledger and the navigation cursor, and grades and records exactly once when
// the attempt ends by learner request or by timeout.
type Session struct {
	id        uuid.UUID
	exam      *model.Exam
	learnerID int
	recorder  AttemptRecorder
	now       func() time.Time

	mu        sync.Mutex
	state     State
	clock     Clock
	ledger    *Ledger
	current   int
	startedAt time.Time
	outcome   *Outcome

	// recordMu serializes writes to the recorder so the state lock is never
	// held across I/O.
	recordMu    sync.Mutex
	recordTried bool
	recordErr   error
}

// SessionOption customizes a Session at construction.
type SessionOption func(*Session)

// WithAttemptID fixes the attempt ID instead of generating one.
func WithAttemptID(id uuid.UUID) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithNow replaces the wall clock used for timestamps.
func WithNow(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession prepares a session in NOT_STARTED for the given exam definition.
func NewSession(exam *model.Exam, learnerID int, recorder AttemptRecorder, opts ...SessionOption) (*Session, error) {
	if exam == nil {
		return nil, invalidInput("exam definition is required")
	}
	if recorder == nil {
		return nil, invalidInput("attempt recorder is required")
	}
	if len(exam.Questions) == 0 {
		return nil, invalidInput("exam %s has no questions", exam.ID)
	}
	if exam.DurationMinutes <= 0 {
		return nil, invalidInput("exam %s has non-positive duration", exam.ID)
	}
	for i, q := range exam.Questions {
		if len(q.Options) != model.OptionsPerQuestion {
			return nil, invalidInput("question %d has %d options", i, len(q.Options))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= model.OptionsPerQuestion {
			return nil, invalidInput("question %d has correct answer %d", i, q.CorrectAnswer)
		}
	}

	s := &Session{
		id:        uuid.New(),
		exam:      exam,
		learnerID: learnerID,
		recorder:  recorder,
		now:       time.Now,
		state:     StateNotStarted,
		ledger:    NewLedger(len(exam.Questions)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) ID() uuid.UUID     { return s.id }
func (s *Session) ExamID() uuid.UUID { return s.exam.ID }
func (s *Session) LearnerID() int    { return s.learnerID }
func (s *Session) Exam() *model.Exam { return s.exam }

// Start begins the countdown and puts the cursor on the first question.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNotStarted {
		return invalidState("start", s.state)
	}
	if err := s.clock.Start(s.exam.DurationSeconds()); err != nil {
		return err
	}
	s.current = 0
	s.startedAt = s.now()
	s.state = StateInProgress
	return nil
}

// SelectAnswer records option for the current question, replacing any
// previous choice.
func (s *Session) SelectAnswer(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return invalidState("select an answer", s.state)
	}
	return s.ledger.SetAnswer(s.current, option)
}

// LoadAnswers replaces every selection with a full answer sheet where entry
// i is the option for question i and nil is unanswered. A rejected sheet
// leaves the previous selections untouched.
func (s *Session) LoadAnswers(answers []*int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return invalidState("load answers", s.state)
	}
	l, err := LedgerFromAnswers(len(s.exam.Questions), answers)
	if err != nil {
		return err
	}
	s.ledger = l
	return nil
}

// GoTo moves the cursor to any question.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return invalidState("navigate", s.state)
	}
	if index < 0 || index >= len(s.exam.Questions) {
		return invalidInput("question %d out of range [0,%d)", index, len(s.exam.Questions))
	}
	s.current = index
	return nil
}

// CurrentQuestion returns the question under the cursor without its key.
func (s *Session) CurrentQuestion() (model.QuestionForLearner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateNotStarted {
		return model.QuestionForLearner{}, invalidState("read the current question", s.state)
	}
	return s.exam.Questions[s.current].ForLearner(s.current), nil
}

func (s *Session) IsAnswered(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.IsAnswered(index)
}

func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AnsweredCount()
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Remaining()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the display state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		AttemptID:      s.id,
		ExamID:         s.exam.ID,
		State:          s.state,
		Remaining:      s.clock.Remaining(),
		Current:        s.current,
		TotalQuestions: len(s.exam.Questions),
		AnsweredCount:  s.ledger.AnsweredCount(),
		Selections:     s.ledger.Selections(),
		StartedAt:      s.startedAt,
	}
}

// Outcome returns the graded outcome once the session is finished.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

// Tick advances the clock by one second. When the clock reaches zero the
// session is finished automatically and finished reports true; err then
// carries any recording failure. Ticks outside IN_PROGRESS are ignored.
func (s *Session) Tick(ctx context.Context) (out Outcome, finished bool, err error) {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return Outcome{}, false, nil
	}
	s.clock.Tick()
	if !s.clock.Expired() {
		s.mu.Unlock()
		return Outcome{}, false, nil
	}
	if err := s.finalizeLocked(true); err != nil {
		s.mu.Unlock()
		return Outcome{}, false, err
	}
	s.mu.Unlock()

	err = s.record(ctx)
	out, _ = s.Outcome()
	return out, true, err
}

// Finish ends the attempt, grades it and records it. Calling Finish again
// returns the same outcome and never writes a second record.
func (s *Session) Finish(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	switch s.state {
	case StateNotStarted:
		s.mu.Unlock()
		return Outcome{}, invalidState("finish", s.state)
	case StateInProgress:
		if err := s.finalizeLocked(false); err != nil {
			s.mu.Unlock()
			return Outcome{}, err
		}
	}
	s.mu.Unlock()

	err := s.record(ctx)
	out, _ := s.Outcome()
	return out, err
}

// RetryRecord re-attempts a write that previously failed. It is a no-op once
// the attempt is recorded.
func (s *Session) RetryRecord(ctx context.Context) error {
	out, ok := s.Outcome()
	if !ok {
		return invalidState("record", s.State())
	}

	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	if out.Recorded {
		return nil
	}
	if err := s.recorder.RecordAttempt(ctx, &out.Attempt); err != nil {
		s.recordErr = &PersistenceError{AttemptID: s.id, Err: err}
		return s.recordErr
	}
	s.recordErr = nil
	s.markRecorded()
	return nil
}

// MarkRecorded flags the outcome as durably stored by an out-of-band writer,
// such as the retry queue worker. It reports false while the session is
// not finished.
func (s *Session) MarkRecorded() bool {
	if _, ok := s.Outcome(); !ok {
		return false
	}
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	s.recordTried = true
	s.recordErr = nil
	s.markRecorded()
	return true
}

func (s *Session) finalizeLocked(auto bool) error {
	s.ledger.Seal()
	result, err := Grade(s.exam.Questions, s.ledger)
	if err != nil {
		return fmt.Errorf("grade attempt %s: %w", s.id, err)
	}

	selections := s.ledger.Selections()
	answers := make([]model.AttemptAnswer, len(s.exam.Questions))
	for i, q := range s.exam.Questions {
		answers[i] = model.AttemptAnswer{
			QuestionID:     q.ID,
			Position:       i,
			SelectedAnswer: selections[i],
		}
	}

	s.state = StateFinished
	s.outcome = &Outcome{
		Result: result,
		Attempt: model.Attempt{
			ID:             s.id,
			ExamID:         s.exam.ID,
			LearnerID:      s.learnerID,
			Answers:        answers,
			ScorePercent:   result.ScorePercent,
			CorrectCount:   result.CorrectCount,
			TotalQuestions: result.TotalQuestions,
			Passed:         result.Passed,
			AutoFinalized:  auto,
			StartedAt:      s.startedAt,
			CompletedAt:    s.now(),
		},
	}
	return nil
}

func (s *Session) record(ctx context.Context) error {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	if s.recordTried {
		return s.recordErr
	}
	s.recordTried = true

	out, _ := s.Outcome()
	if err := s.recorder.RecordAttempt(ctx, &out.Attempt); err != nil {
		s.recordErr = &PersistenceError{AttemptID: s.id, Err: err}
		return s.recordErr
	}
	s.markRecorded()
	return nil
}

func (s *Session) markRecorded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != nil {
		s.outcome.Recorded = true
	}
}
