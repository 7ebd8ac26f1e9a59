package relations

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is wrapped by RangeError.
	ErrOutOfRange = errors.New("relations: position out of range")
	// ErrRemoved is returned when operating on a removed entry.
	ErrRemoved = errors.New("relations: entry removed")
	// ErrOverDecrement is returned when decrementing a zero member counter.
	ErrOverDecrement = errors.New("relations: member counter already zero")
	// ErrNegativeMembers is returned by SetMembers for negative counts.
	ErrNegativeMembers = errors.New("relations: negative member count")
	// ErrTooManyEntries is returned when positions are exhausted.
	ErrTooManyEntries = errors.New("relations: too many entries")
)

// RangeError reports access to a position that was never assigned.
type RangeError struct {
	Pos int
	Len int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("relations: position %d out of range [0,%d)", e.Pos, e.Len)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }
