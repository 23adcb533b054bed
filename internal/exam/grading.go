package exam

import (
	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/model"
)

// PassThreshold is the minimum score percentage that counts as a pass.
const PassThreshold = 60

// AnswerSheet is anything that can report a learner's choice per question.
type AnswerSheet interface {
	Answer(question int) (option int, ok bool)
}

// QuestionResult is the per-question outcome shown on the review screen.
type QuestionResult struct {
	Position       int       `json:"position"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedAnswer *int      `json:"selected_answer"`
	CorrectAnswer  int       `json:"correct_answer"`
	Correct        bool      `json:"correct"`
}

// Result is the graded outcome of an attempt.
type Result struct {
	ScorePercent   int              `json:"score_percent"`
	CorrectCount   int              `json:"correct_count"`
	TotalQuestions int              `json:"total_questions"`
	Passed         bool             `json:"passed"`
	Review         []QuestionResult `json:"review"`
}

// Grade scores an answer sheet against the questions. It has no side effects
// and the only way it fails is an empty question list.
func Grade(questions []model.Question, answers AnswerSheet) (Result, error) {
	total := len(questions)
	if total == 0 {
		return Result{}, invalidInput("cannot grade an exam with no questions")
	}

	res := Result{
		TotalQuestions: total,
		Review:         make([]QuestionResult, total),
	}
	for i, q := range questions {
		qr := QuestionResult{
			Position:      i,
			QuestionID:    q.ID,
			CorrectAnswer: q.CorrectAnswer,
		}
		if opt, ok := answers.Answer(i); ok {
			selected := opt
			qr.SelectedAnswer = &selected
			qr.Correct = opt == q.CorrectAnswer
		}
		if qr.Correct {
			res.CorrectCount++
		}
		res.Review[i] = qr
	}

	res.ScorePercent = ScorePercent(res.CorrectCount, total)
	res.Passed = res.ScorePercent >= PassThreshold
	return res, nil
}

// ScorePercent is round-half-up of correct/total*100 in integer arithmetic.
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
