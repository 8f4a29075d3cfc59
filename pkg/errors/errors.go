package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNavigation represents a page that failed to load within its timeout
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeSelectorTimeout represents expected content that never appeared
	ErrorTypeSelectorTimeout ErrorType = "selector_timeout"
	// ErrorTypeSchema represents an input dataset missing a required column
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeNoMatch represents a lookup that found nothing
	ErrorTypeNoMatch ErrorType = "no_match"
	// ErrorTypeSession represents a rendering session that could not be started
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeIO represents dataset read/write errors
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError represents an error raised while running a stage
type PipelineError struct {
	Type    ErrorType
	Stage   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether the row that raised the error can be skipped
// while the stage keeps going.
func (e *PipelineError) IsRecoverable() bool {
	switch e.Type {
	case ErrorTypeNavigation, ErrorTypeSelectorTimeout, ErrorTypeNoMatch:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the error must abort the whole stage
func (e *PipelineError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeSchema, ErrorTypeSession, ErrorTypeConfiguration, ErrorTypeIO:
		return true
	default:
		return false
	}
}

// IsRetryable returns true if the error is retryable
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation:
		return true
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, stage, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Stage:   stage,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNavigation creates a new navigation error
func NewNavigation(stage, url string, err error) *PipelineError {
	return New(ErrorTypeNavigation, stage, "navigate "+url, err)
}

// NewSelectorTimeout creates a new selector timeout error
func NewSelectorTimeout(stage, selector string, timeout time.Duration) *PipelineError {
	return New(ErrorTypeSelectorTimeout, stage, fmt.Sprintf("selector %q not present after %v", selector, timeout), nil)
}

// NewSchema creates a new schema error
func NewSchema(stage, path, column string) *PipelineError {
	return New(ErrorTypeSchema, stage, fmt.Sprintf("%s: missing required column %q", path, column), nil)
}

// NewNoMatch creates a new soft lookup error
func NewNoMatch(stage, message string) *PipelineError {
	return New(ErrorTypeNoMatch, stage, message, nil)
}

// NewSession creates a new session error
func NewSession(message string, err error) *PipelineError {
	return New(ErrorTypeSession, "", message, err)
}

// NewIO creates a new dataset I/O error
func NewIO(stage, message string, err error) *PipelineError {
	return New(ErrorTypeIO, stage, message, err)
}

// NewCache creates a new cache error
func NewCache(message string, err error) *PipelineError {
	return New(ErrorTypeCache, "", message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(stage, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, stage, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// As extracts a PipelineError from err's chain
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// TypeOf returns the ErrorType carried by err, or "" for foreign errors
func TypeOf(err error) ErrorType {
	if pe, ok := As(err); ok {
		return pe.Type
	}
	return ""
}

// IsRecoverable reports whether err is a row-level failure the stage can skip
func IsRecoverable(err error) bool {
	if pe, ok := As(err); ok {
		return pe.IsRecoverable()
	}
	return false
}

// IsFatal reports whether err must abort the stage
func IsFatal(err error) bool {
	if pe, ok := As(err); ok {
		return pe.IsFatal()
	}
	return false
}

// IsRetryable reports whether err may succeed when the row is attempted again
func IsRetryable(err error) bool {
	if pe, ok := As(err); ok {
		return pe.IsRetryable()
	}
	return false
}
