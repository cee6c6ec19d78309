/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"errors"
	"fmt"
)

var (
	// ErrDataSource matches any DataSourceError via errors.Is.
	ErrDataSource = errors.New("quiz data source error")

	// ErrIndex matches any IndexError via errors.Is.
	ErrIndex = errors.New("clue coordinate out of range")
)

// DataSourceError reports that the quiz data source failed, returned
// unusable data, or returned fewer items than a build needed.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, ErrDataSource)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

func (e *DataSourceError) Is(target error) bool {
	return target == ErrDataSource
}

// IndexError reports a coordinate that does not address a clue on the board.
type IndexError struct {
	Coordinate Coordinate
	Categories int
	Clues      int
}

func (e *IndexError) Error() string {
	if e.Coordinate.Category < 0 || e.Coordinate.Category >= e.Categories {
		return fmt.Sprintf("category %d out of range [0,%d)", e.Coordinate.Category, e.Categories)
	}

	return fmt.Sprintf("clue %d out of range [0,%d) in category %d", e.Coordinate.Clue, e.Clues, e.Coordinate.Category)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndex
}
