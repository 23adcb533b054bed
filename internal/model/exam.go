package model

import (
	"time"

	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of choices on every question.
const OptionsPerQuestion = 4

// Exam is a timed multiple-choice exam attached to a course.
// Exams are soft-deleted (IsActive=false) so recorded attempts stay valid.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	CourseID        uuid.UUID  `json:"course_id"`
	CourseTitle     string     `json:"course_title,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration"`
	Questions       []Question `json:"questions"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TotalQuestions returns the number of questions on the exam.
func (e *Exam) TotalQuestions() int {
	return len(e.Questions)
}

// DurationSeconds is the clock budget for one attempt.
func (e *Exam) DurationSeconds() int {
	return e.DurationMinutes * 60
}

// ExamForLearner is the exam as served to a learner (no answer key).
type ExamForLearner struct {
	ID             uuid.UUID            `json:"id"`
	CourseID       uuid.UUID            `json:"course_id"`
	CourseTitle    string               `json:"course_title,omitempty"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Duration       int                  `json:"duration"`
	TotalQuestions int                  `json:"total_questions"`
	Questions      []QuestionForLearner `json:"questions"`
}

// ForLearner strips correct answers from the exam.
func (e *Exam) ForLearner() ExamForLearner {
	qs := make([]QuestionForLearner, len(e.Questions))
	for i, q := range e.Questions {
		qs[i] = q.ForLearner(i)
	}
	return ExamForLearner{
		ID:             e.ID,
		CourseID:       e.CourseID,
		CourseTitle:    e.CourseTitle,
		Title:          e.Title,
		Description:    e.Description,
		Duration:       e.DurationMinutes,
		TotalQuestions: len(e.Questions),
		Questions:      qs,
	}
}

// CreateExamRequest is the payload for creating an exam.
type CreateExamRequest struct {
	CourseID    string          `json:"course_id" binding:"required,uuid"`
	Title       string          `json:"title" binding:"required,min=3,max=255"`
	Description string          `json:"description" binding:"required,max=5000"`
	Duration    int             `json:"duration" binding:"required,min=1,max=600"`
	Questions   []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// UpdateExamRequest is the payload for updating an exam. A non-nil
// Questions slice replaces the whole question list.
type UpdateExamRequest struct {
	Title       string          `json:"title" binding:"omitempty,min=3,max=255"`
	Description string          `json:"description" binding:"omitempty,max=5000"`
	Duration    int             `json:"duration" binding:"omitempty,min=1,max=600"`
	Questions   []QuestionInput `json:"questions" binding:"omitempty,min=1,dive"`
}
