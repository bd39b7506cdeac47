package jobgraph

import "github.com/eleven-am/jobgraph/internal/domain"

type DomainError = domain.DomainError

type ErrorCategory = domain.ErrorCategory

type EntryPanicError = domain.EntryPanicError

var (
	ErrNoStartEntry         = domain.ErrNoStartEntry
	ErrMultipleStartEntries = domain.ErrMultipleStartEntries
	ErrMaxDepthExceeded     = domain.ErrMaxDepthExceeded
	ErrAlreadyStarted       = domain.ErrAlreadyStarted
	ErrInvalidConfig        = domain.ErrInvalidConfig
	ErrNotFound             = domain.ErrNotFound
	ErrStopped              = domain.ErrStopped
)

func IsValidationError(err error) bool {
	return domain.IsValidationError(err)
}

func IsEntryExecutionError(err error) bool {
	return domain.IsEntryExecutionError(err)
}

func IsCancellationError(err error) bool {
	return domain.IsCancellationError(err)
}

func IsPanicError(err error) bool {
	return domain.IsPanicError(err)
}
