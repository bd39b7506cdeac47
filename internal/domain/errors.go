package domain

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryValidation
	CategoryEntryExecution
	CategoryCancellation
	CategorySupervisedUnit
	CategoryConfiguration
	CategoryStorage
	CategoryInternal
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryEntryExecution:
		return "entry_execution"
	case CategoryCancellation:
		return "cancellation"
	case CategorySupervisedUnit:
		return "supervised_unit"
	case CategoryConfiguration:
		return "configuration"
	case CategoryStorage:
		return "storage"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

type ErrorContext struct {
	Component string                 `json:"component,omitempty"`
	Operation string                 `json:"operation,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
	Workflow  string                 `json:"workflow,omitempty"`
	Entry     string                 `json:"entry,omitempty"`
	CopyNr    int                    `json:"copy_nr,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Function  string                 `json:"function,omitempty"`
}

type DomainError struct {
	Category   ErrorCategory `json:"category"`
	Severity   ErrorSeverity `json:"severity"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Cause      error         `json:"-"`
	Retryable  bool          `json:"retryable"`
	UserFacing bool          `json:"user_facing"`
	Timestamp  time.Time     `json:"timestamp"`
	Context    ErrorContext  `json:"context"`
}

func (e *DomainError) Error() string {
	prefix := "[" + e.Category.String()
	if e.Context.Component != "" {
		prefix += ":" + e.Context.Component
	}
	prefix += "]"

	msg := fmt.Sprintf("%s %s: %s", prefix, e.Code, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Category == e.Category && (other.Code == "" || other.Code == e.Code)
	}
	return false
}

func (e *DomainError) WithRunID(runID string) *DomainError {
	e.Context.RunID = runID
	return e
}

func (e *DomainError) WithEntry(name string, copyNr int) *DomainError {
	e.Context.Entry = name
	e.Context.CopyNr = copyNr
	return e
}

func (e *DomainError) WithOperation(operation string) *DomainError {
	e.Context.Operation = operation
	return e
}

func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Context.Details == nil {
		e.Context.Details = make(map[string]interface{})
	}
	e.Context.Details[key] = value
	return e
}

type ErrorOption func(*DomainError)

func WithComponent(component string) ErrorOption {
	return func(e *DomainError) { e.Context.Component = component }
}

func WithOperation(operation string) ErrorOption {
	return func(e *DomainError) { e.Context.Operation = operation }
}

func WithRunID(runID string) ErrorOption {
	return func(e *DomainError) { e.Context.RunID = runID }
}

func WithWorkflow(workflow string) ErrorOption {
	return func(e *DomainError) { e.Context.Workflow = workflow }
}

func WithEntry(name string, copyNr int) ErrorOption {
	return func(e *DomainError) {
		e.Context.Entry = name
		e.Context.CopyNr = copyNr
	}
}

func WithDetail(key string, value interface{}) ErrorOption {
	return func(e *DomainError) {
		if e.Context.Details == nil {
			e.Context.Details = make(map[string]interface{})
		}
		e.Context.Details[key] = value
	}
}

func WithSeverity(severity ErrorSeverity) ErrorOption {
	return func(e *DomainError) { e.Severity = severity }
}

func WithRetryable(retryable bool) ErrorOption {
	return func(e *DomainError) { e.Retryable = retryable }
}

func WithCode(code string) ErrorOption {
	return func(e *DomainError) { e.Code = code }
}

func NewDomainErrorWithCategory(category ErrorCategory, message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(category, message, cause, 2, opts...)
}

func newDomainError(category ErrorCategory, message string, cause error, skip int, opts ...ErrorOption) *DomainError {
	err := &DomainError{
		Category:  category,
		Severity:  SeverityError,
		Code:      inferCode(category, message),
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}

	switch category {
	case CategoryValidation, CategoryConfiguration:
		err.UserFacing = true
	case CategoryStorage:
		err.Retryable = isTransient(cause)
	case CategoryCancellation:
		err.Severity = SeverityInfo
	case CategoryInternal:
		err.Severity = SeverityCritical
	}

	if pc, file, line, ok := runtime.Caller(skip); ok {
		err.Context.File = file
		err.Context.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			err.Context.Function = fn.Name()
		}
	}

	for _, opt := range opts {
		opt(err)
	}
	return err
}

func NewValidationError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryValidation, message, cause, 2, opts...)
}

func NewEntryExecutionError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryEntryExecution, message, cause, 2, opts...)
}

func NewCancellationError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryCancellation, message, cause, 2, opts...)
}

func NewSupervisedUnitError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategorySupervisedUnit, message, cause, 2, opts...)
}

func NewConfigurationError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryConfiguration, message, cause, 2, opts...)
}

func NewStorageError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryStorage, message, cause, 2, opts...)
}

func NewInternalError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryInternal, message, cause, 2, opts...)
}

func inferCode(category ErrorCategory, message string) string {
	prefix := strings.ToUpper(category.String())
	lower := strings.ToLower(message)

	suffix := "FAILED"
	switch {
	case strings.Contains(lower, "required"), strings.Contains(lower, "missing"), strings.Contains(lower, "no start"):
		suffix = "REQUIRED"
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		suffix = "TIMEOUT"
	case strings.Contains(lower, "not found"), strings.Contains(lower, "unknown"):
		suffix = "NOT_FOUND"
	case strings.Contains(lower, "duplicate"), strings.Contains(lower, "already"):
		suffix = "CONFLICT"
	case strings.Contains(lower, "panic"):
		suffix = "PANIC"
	case strings.Contains(lower, "stopped"), strings.Contains(lower, "interrupt"), strings.Contains(lower, "cancel"):
		suffix = "STOPPED"
	case strings.Contains(lower, "depth"), strings.Contains(lower, "limit"):
		suffix = "LIMIT"
	case strings.Contains(lower, "invalid"):
		suffix = "INVALID"
	}
	return prefix + "_" + suffix
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "conflict")
}

var (
	ErrNoStartEntry         = errors.New("no start entry")
	ErrMultipleStartEntries = errors.New("multiple start entries")
	ErrDefinitionSealed     = errors.New("workflow definition is sealed")
	ErrUnknownNode          = errors.New("unknown node")
	ErrDuplicateNode        = errors.New("duplicate node identity")
	ErrDuplicateHop         = errors.New("duplicate hop")
	ErrMissingFactory       = errors.New("entry factory is required")
	ErrMaxDepthExceeded     = errors.New("maximum walk depth exceeded")
	ErrAlreadyStarted       = errors.New("run already started")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("resource not found")
	ErrStopped              = errors.New("run stopped")
)

type EntryPanicError struct {
	RunID      string
	EntryName  string
	CopyNr     int
	PanicValue interface{}
	StackTrace string
	Timestamp  time.Time
}

func NewEntryPanicError(runID, entryName string, copyNr int, value interface{}) *EntryPanicError {
	return &EntryPanicError{
		RunID:      runID,
		EntryName:  entryName,
		CopyNr:     copyNr,
		PanicValue: value,
		StackTrace: string(debug.Stack()),
		Timestamp:  time.Now(),
	}
}

func (e *EntryPanicError) Error() string {
	return fmt.Sprintf("entry %s.%d panicked in run %s: %v", e.EntryName, e.CopyNr, e.RunID, e.PanicValue)
}

func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

func GetErrorCategory(err error) ErrorCategory {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Category
	}
	return CategoryUnknown
}

func GetErrorSeverity(err error) ErrorSeverity {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Severity
	}
	return SeverityError
}

func GetErrorContext(err error) *ErrorContext {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return &domainErr.Context
	}
	return nil
}

func IsRetryableError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func IsUserFacingError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.UserFacing
	}
	return false
}

func IsValidationError(err error) bool {
	return GetErrorCategory(err) == CategoryValidation
}

func IsEntryExecutionError(err error) bool {
	var panicErr *EntryPanicError
	return GetErrorCategory(err) == CategoryEntryExecution || errors.As(err, &panicErr)
}

func IsCancellationError(err error) bool {
	return GetErrorCategory(err) == CategoryCancellation || errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled)
}

func IsPanicError(err error) bool {
	var panicErr *EntryPanicError
	return errors.As(err, &panicErr)
}

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}
