/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package trivia holds the game board model, the board builder that samples
// categories and clues from a quiz data source, and the reveal engine that
// steps each clue from hidden to question to answer.
package trivia

import (
	"sync"

	"github.com/samber/lo"
)

// Placeholder is the text shown in a cell whose clue is still hidden.
const Placeholder = "?"

type RevealState int

const (
	Hidden RevealState = iota
	Question
	Answer
)

func (s RevealState) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Question:
		return "question"
	case Answer:
		return "answer"
	default:
		return "unknown"
	}
}

type Clue struct {
	Question string
	Answer   string
	State    RevealState
}

// text returns what a cell displays for the clue in its current state.
func (c *Clue) text() string {
	switch c.State {
	case Question:
		return c.Question
	case Answer:
		return c.Answer
	default:
		return Placeholder
	}
}

type Category struct {
	Title string
	Clues []Clue
}

// Coordinate addresses a single clue by position.
type Coordinate struct {
	Category int `json:"category"`
	Clue     int `json:"clue"`
}

// Board is one round of play. Its shape is fixed at construction, and clue
// states only ever move forward through Reveal.
type Board struct {
	mu         sync.Mutex
	categories []Category
}

// NewBoard wraps already-assembled categories. Every clue starts Hidden
// regardless of the state it was passed in with.
func NewBoard(categories []Category) *Board {
	cats := make([]Category, len(categories))
	for i, c := range categories {
		clues := make([]Clue, len(c.Clues))
		for j, cl := range c.Clues {
			clues[j] = Clue{Question: cl.Question, Answer: cl.Answer, State: Hidden}
		}
		cats[i] = Category{Title: c.Title, Clues: clues}
	}

	return &Board{categories: cats}
}

// Len returns the number of categories on the board.
func (b *Board) Len() int {
	return len(b.categories)
}

// Titles returns the category titles in board order.
func (b *Board) Titles() []string {
	return lo.Map(b.categories, func(c Category, _ int) string {
		return c.Title
	})
}

// Clues returns the number of clues in the category at index i, or zero if
// there is no such category.
func (b *Board) Clues(i int) int {
	if i < 0 || i >= len(b.categories) {
		return 0
	}

	return len(b.categories[i].Clues)
}

// State returns the reveal state of the clue at c.
func (b *Board) State(c Coordinate) (RevealState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clue, err := b.clueLocked(c)
	if err != nil {
		return Hidden, err
	}

	return clue.State, nil
}

func (b *Board) clueLocked(c Coordinate) (*Clue, error) {
	if c.Category < 0 || c.Category >= len(b.categories) {
		return nil, &IndexError{Coordinate: c, Categories: len(b.categories)}
	}

	cat := &b.categories[c.Category]
	if c.Clue < 0 || c.Clue >= len(cat.Clues) {
		return nil, &IndexError{Coordinate: c, Categories: len(b.categories), Clues: len(cat.Clues)}
	}

	return &cat.Clues[c.Clue], nil
}

// Cell is the presentation view of a single clue.
type Cell struct {
	State string `json:"state"`
	Text  string `json:"text"`
}

// Column is the presentation view of a category.
type Column struct {
	Title string `json:"title"`
	Cells []Cell `json:"cells"`
}

// Snapshot returns what every cell currently displays, so a late viewer can
// redraw the grid without replaying reveals.
func (b *Board) Snapshot() []Column {
	b.mu.Lock()
	defer b.mu.Unlock()

	return lo.Map(b.categories, func(c Category, _ int) Column {
		return Column{
			Title: c.Title,
			Cells: lo.Map(c.Clues, func(cl Clue, _ int) Cell {
				return Cell{State: cl.State.String(), Text: cl.text()}
			}),
		}
	})
}
