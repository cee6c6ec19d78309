/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

type Action int

const (
	NoOp Action = iota
	ShowQuestion
	ShowAnswer
)

func (a Action) String() string {
	switch a {
	case ShowQuestion:
		return "show_question"
	case ShowAnswer:
		return "show_answer"
	default:
		return "noop"
	}
}

// Result is the outcome of a reveal. Text is empty for NoOp.
type Result struct {
	Action Action
	Text   string
	State  RevealState
}

// Changed reports whether the reveal produced new text to display.
func (r Result) Changed() bool {
	return r.Action != NoOp
}

// Reveal advances the clue at c by one step and returns the text to show.
// A clue already showing its answer is left alone and yields NoOp.
func Reveal(b *Board, c Coordinate) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clue, err := b.clueLocked(c)
	if err != nil {
		return Result{}, err
	}

	switch clue.State {
	case Hidden:
		clue.State = Question
		return Result{Action: ShowQuestion, Text: clue.Question, State: Question}, nil
	case Question:
		clue.State = Answer
		return Result{Action: ShowAnswer, Text: clue.Answer, State: Answer}, nil
	default:
		return Result{Action: NoOp, State: clue.State}, nil
	}
}
