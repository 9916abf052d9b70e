// Package errs defines the sentinel error values and wrapper error types
// shared by storage/disk, buffer and index.
package errs

import (
	"github.com/pkg/errors"
)

// ShoalError is a message plus an optional wrapped cause.
type ShoalError struct {
	Message string
	Err     error
}

func (e *ShoalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ShoalError) Unwrap() error {
	return e.Err
}

// Wrap attaches ctx to err using pkg/errors, preserving err for errors.Is/As.
func Wrap(err error, ctx string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, ctx)
}

var (
	// ErrBufferPoolExhausted is returned when every frame is pinned and no
	// victim can be produced for a Fetch or New call.
	ErrBufferPoolExhausted = &ShoalError{Message: "buffer pool exhausted: no evictable frame available"}

	// ErrNotFound is returned when a key or page is absent.
	ErrNotFound = &ShoalError{Message: "not found"}

	// ErrDuplicateKey names a duplicate-key insertion. BPlusTree.Insert does
	// not return it: a duplicate is reported as (false, nil).
	ErrDuplicateKey = &ShoalError{Message: "duplicate key"}

	// ErrIO wraps a disk manager failure.
	ErrIO = &ShoalError{Message: "disk i/o failure"}

	// ErrInvariantViolation marks a detected structural corruption.
	ErrInvariantViolation = &ShoalError{Message: "invariant violation"}

	// ErrEmptyTree names an empty index. No index operation returns it:
	// GetValue on an empty tree returns ErrNotFound and Remove is a no-op.
	ErrEmptyTree = &ShoalError{Message: "index is empty"}
)
