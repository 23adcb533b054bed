package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is one learner's graded pass through an exam. Once recorded it
// is never modified; repeat attempts are stored as new rows.
type Attempt struct {
	ID             uuid.UUID       `json:"id"`
	ExamID         uuid.UUID       `json:"exam_id"`
	LearnerID      int             `json:"learner_id"`
	Answers        []AttemptAnswer `json:"answers"`
	ScorePercent   int             `json:"score"`
	CorrectCount   int             `json:"correct_answers"`
	TotalQuestions int             `json:"total_questions"`
	Passed         bool            `json:"passed"`
	AutoFinalized  bool            `json:"auto_finalized"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// AttemptAnswer is the learner's selection for one question. A nil
// SelectedAnswer means the question was left unanswered.
type AttemptAnswer struct {
	QuestionID     uuid.UUID `json:"question_id"`
	Position       int       `json:"position"`
	SelectedAnswer *int      `json:"selected_answer"`
}

// AttemptSummary is a recorded attempt joined with exam details.
type AttemptSummary struct {
	ID             uuid.UUID `json:"id"`
	ExamID         uuid.UUID `json:"exam_id"`
	ExamTitle      string    `json:"exam_title"`
	LearnerID      int       `json:"learner_id"`
	LearnerName    string    `json:"learner_name,omitempty"`
	ScorePercent   int       `json:"score"`
	CorrectCount   int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	Passed         bool      `json:"passed"`
	AutoFinalized  bool      `json:"auto_finalized"`
	CompletedAt    time.Time `json:"completed_at"`
}

// SelectAnswerRequest picks an option for the current question.
// Range checks happen in the answer ledger.
type SelectAnswerRequest struct {
	Option *int `json:"option" binding:"required"`
}

// GoToRequest moves the question pointer.
type GoToRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SubmitExamRequest grades a complete answer sheet in one call. Entry i is
// the selected option for question i; null entries are unanswered.
type SubmitExamRequest struct {
	Answers []*int `json:"answers" binding:"required"`
}

// QueuedAttempt is an attempt waiting on the retry queue.
type QueuedAttempt struct {
	Attempt Attempt   `json:"attempt"`
	Tries   int       `json:"tries"`
	RetryAt time.Time `json:"retry_at"`
}
