package stash

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity is the sentinel wrapped by CapacityError.
	ErrCapacity = errors.New("stash: record exceeds maximum size")
	// ErrInvalidHandle is returned for the zero Handle.
	ErrInvalidHandle = errors.New("stash: invalid handle")
	// ErrStaleHandle is returned when a handle's record has been removed.
	ErrStaleHandle = errors.New("stash: stale handle")
	// ErrResourceExhausted is returned when a new block cannot be obtained.
	ErrResourceExhausted = errors.New("stash: resource exhausted")
	// ErrMaxBlocksExceeded is returned when the stash exceeds the maximum number of blocks.
	ErrMaxBlocksExceeded = errors.New("stash: max blocks exceeded")
	// ErrClosed is returned by operations on a closed stash.
	ErrClosed = errors.New("stash: closed")
)

// CapacityError reports a record that is too large to be stored.
type CapacityError struct {
	Size int
	Max  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("stash: record of %d bytes exceeds maximum of %d", e.Size, e.Max)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }
