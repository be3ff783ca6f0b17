package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected is returned when a primitive has begun or completed shutdown.
	ErrRejected = errors.New("rejected: shutting down")
	// ErrCancelled is returned when a blocking call's context ends before it
	// was satisfied.
	ErrCancelled = errors.New("cancelled")
	// ErrInvalidArgument is returned for argument values a primitive does not
	// accept.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Cancelled はコンテキストのエラーを ErrCancelled で包む
func Cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
