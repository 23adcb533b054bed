package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

// examFile is the on-disk exam format.
type examFile struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Duration    int                   `json:"duration"`
	Questions   []model.QuestionInput `json:"questions"`
}

func (f examFile) toExam() (*model.Exam, error) {
	if f.Title == "" {
		return nil, fmt.Errorf("%w: exam title is required", exam.ErrInvalidInput)
	}
	if f.Duration < 1 {
		return nil, fmt.Errorf("%w: duration must be at least one minute", exam.ErrInvalidInput)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("%w: exam has no questions", exam.ErrInvalidInput)
	}

	// A file without an id gets a stable one derived from its title, so
	// re-importing the same file keeps its history together.
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("elearn-practice:"+f.Title))
	if f.ID != "" {
		parsed, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: exam id: %v", exam.ErrInvalidInput, err)
		}
		id = parsed
	}

	qs := make([]model.Question, len(f.Questions))
	for i, in := range f.Questions {
		if in.Question == "" {
			return nil, fmt.Errorf("%w: question %d has no text", exam.ErrInvalidInput, i+1)
		}
		if len(in.Options) != model.OptionsPerQuestion {
			return nil, fmt.Errorf("%w: question %d needs %d options, has %d",
				exam.ErrInvalidInput, i+1, model.OptionsPerQuestion, len(in.Options))
		}
		if in.CorrectAnswer == nil || *in.CorrectAnswer < 0 || *in.CorrectAnswer >= model.OptionsPerQuestion {
			return nil, fmt.Errorf("%w: question %d has no valid correct_answer", exam.ErrInvalidInput, i+1)
		}
		q := in.ToQuestion()
		q.ID = uuid.NewSHA1(id, []byte(fmt.Sprintf("q%d", i)))
		qs[i] = q
	}

	return &model.Exam{
		ID:              id,
		Title:           f.Title,
		Description:     f.Description,
		DurationMinutes: f.Duration,
		Questions:       qs,
		IsActive:        true,
	}, nil
}
