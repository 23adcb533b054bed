package exam

import (
	"fmt"

	"github.com/stemsi/elearn-backend/internal/model"
)

// Ledger records the option a learner picked for each question, keyed by
// question position. Entries are optional; a missing entry is unanswered.
type Ledger struct {
	size    int
	answers map[int]int
	sealed  bool
}

// NewLedger returns an empty ledger for an exam with questionCount questions.
func NewLedger(questionCount int) *Ledger {
	return &Ledger{
		size:    questionCount,
		answers: make(map[int]int, questionCount),
	}
}

// LedgerFromAnswers builds a ledger from a full answer sheet where entry i
// is the option chosen for question i and nil entries are unanswered.
func LedgerFromAnswers(questionCount int, answers []*int) (*Ledger, error) {
	if len(answers) > questionCount {
		return nil, invalidInput("got %d answers for %d questions", len(answers), questionCount)
	}
	l := NewLedger(questionCount)
	for i, a := range answers {
		if a == nil {
			continue
		}
		if err := l.SetAnswer(i, *a); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// SetAnswer records or overwrites the choice for a question.
func (l *Ledger) SetAnswer(question, option int) error {
	if l.sealed {
		return fmt.Errorf("%w: answers are locked", ErrInvalidState)
	}
	if question < 0 || question >= l.size {
		return invalidInput("question %d out of range [0,%d)", question, l.size)
	}
	if option < 0 || option >= model.OptionsPerQuestion {
		return invalidInput("option %d out of range [0,%d)", option, model.OptionsPerQuestion)
	}
	l.answers[question] = option
	return nil
}

// Answer returns the recorded option for a question, or ok=false if unanswered.
func (l *Ledger) Answer(question int) (option int, ok bool) {
	option, ok = l.answers[question]
	return option, ok
}

// IsAnswered reports whether the question has a recorded choice.
func (l *Ledger) IsAnswered(question int) bool {
	_, ok := l.answers[question]
	return ok
}

// AnsweredCount returns the number of distinct questions with a choice.
func (l *Ledger) AnsweredCount() int {
	return len(l.answers)
}

// Seal rejects every later SetAnswer.
func (l *Ledger) Seal() {
	l.sealed = true
}

// Selections returns one entry per question, nil where unanswered.
func (l *Ledger) Selections() []*int {
	out := make([]*int, l.size)
	for q, opt := range l.answers {
		v := opt
		out[q] = &v
	}
	return out
}
