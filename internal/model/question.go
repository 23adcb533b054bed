package model

import "github.com/google/uuid"

// Question is one multiple-choice item. Its position in Exam.Questions
// defines its number; CorrectAnswer indexes into Options.
type Question struct {
	ID            uuid.UUID `json:"id"`
	Prompt        string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectAnswer int       `json:"correct_answer"`
}

// QuestionForLearner is a question without its answer key.
type QuestionForLearner struct {
	ID       uuid.UUID `json:"id"`
	Position int       `json:"position"`
	Prompt   string    `json:"question"`
	Options  []string  `json:"options"`
}

// ForLearner strips the correct answer from a question at the given position.
func (q Question) ForLearner(position int) QuestionForLearner {
	return QuestionForLearner{
		ID:       q.ID,
		Position: position,
		Prompt:   q.Prompt,
		Options:  q.Options,
	}
}

// QuestionInput is one question in a create/update exam payload.
type QuestionInput struct {
	Question      string   `json:"question" binding:"required,max=2000"`
	Options       []string `json:"options" binding:"required,len=4,dive,required,max=500"`
	CorrectAnswer *int     `json:"correct_answer" binding:"required,min=0,max=3"`
}

// ToQuestion converts the payload into a Question with a fresh ID.
func (in QuestionInput) ToQuestion() Question {
	opts := make([]string, len(in.Options))
	copy(opts, in.Options)
	return Question{
		ID:            uuid.New(),
		Prompt:        in.Question,
		Options:       opts,
		CorrectAnswer: *in.CorrectAnswer,
	}
}
