// Package errors defines the sentinel errors shared across the fast-terms
// bridge and a small wrapper type that attaches context to them.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDataType  = errors.New("invalid data type")
	ErrShardOutOfRange  = errors.New("shard id out of range")
	ErrCorruptStream    = errors.New("corrupt stream")
	ErrShardFailure     = errors.New("shard failure")
	ErrShardUnavailable = errors.New("shard unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTimeout          = errors.New("operation timed out")
	ErrInternal         = errors.New("internal error")
)

// AppError pairs a sentinel error with a human-readable message so callers
// can match with errors.Is while logs stay descriptive.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{Err: sentinel, Message: message}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...)}
}
