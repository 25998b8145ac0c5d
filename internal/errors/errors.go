package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Malformed repository URL, always user-correctable
	ErrorTypeInvalidURL ErrorType = iota
	// Remote resource (repository, path, readme) does not exist
	ErrorTypeNotFound
	// Remote API quota exhausted
	ErrorTypeRateLimit
	// Remote API failed: malformed response, auth failure, decoding failure
	ErrorTypeUpstream
	// A mandatory ingestion step failed
	ErrorTypeAnalysisFailed
	// Retrieval requested before ingestion completed
	ErrorTypeNotAnalyzed
	// Persistent store failure
	ErrorTypeStorage
	// Missing or invalid configuration
	ErrorTypeConfig
	// Invalid input other than URLs
	ErrorTypeValidation
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, request fails
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Sentinels for errors.Is; matching is by ErrorType only.
var (
	ErrInvalidURL     = &Error{Type: ErrorTypeInvalidURL, Message: "invalid repository url"}
	ErrNotFound       = &Error{Type: ErrorTypeNotFound, Message: "not found"}
	ErrRateLimit      = &Error{Type: ErrorTypeRateLimit, Message: "rate limited"}
	ErrUpstream       = &Error{Type: ErrorTypeUpstream, Message: "upstream error"}
	ErrAnalysisFailed = &Error{Type: ErrorTypeAnalysisFailed, Message: "analysis failed"}
	ErrNotAnalyzed    = &Error{Type: ErrorTypeNotAnalyzed, Message: "repository not analyzed"}
	ErrStorage        = &Error{Type: ErrorTypeStorage, Message: "storage error"}
	ErrConfig         = &Error{Type: ErrorTypeConfig, Message: "configuration error"}
	ErrValidation     = &Error{Type: ErrorTypeValidation, Message: "validation error"}
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeInvalidURL:
		return "INVALID_URL"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeRateLimit:
		return "RATE_LIMIT"
	case ErrorTypeUpstream:
		return "UPSTREAM"
	case ErrorTypeAnalysisFailed:
		return "ANALYSIS_FAILED"
	case ErrorTypeNotAnalyzed:
		return "NOT_ANALYZED"
	case ErrorTypeStorage:
		return "STORAGE"
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// InvalidURLf reports a repository URL that does not match a hosting pattern
func InvalidURLf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInvalidURL, SeverityHigh, fmt.Sprintf(format, args...))
}

// NotFound wraps a remote "resource absent" failure
func NotFound(err error, message string) *Error {
	return Wrap(err, ErrorTypeNotFound, SeverityMedium, message)
}

// NotFoundf reports an absent resource with no underlying cause
func NotFoundf(format string, args ...interface{}) *Error {
	return New(ErrorTypeNotFound, SeverityMedium, fmt.Sprintf(format, args...))
}

// RateLimit wraps a remote quota failure
func RateLimit(err error, message string) *Error {
	return Wrap(err, ErrorTypeRateLimit, SeverityHigh, message)
}

// Upstream wraps any other remote failure
func Upstream(err error, message string) *Error {
	return Wrap(err, ErrorTypeUpstream, SeverityHigh, message)
}

// Upstreamf creates an upstream error without an underlying cause
func Upstreamf(format string, args ...interface{}) *Error {
	return New(ErrorTypeUpstream, SeverityHigh, fmt.Sprintf(format, args...))
}

// AnalysisFailed wraps the failure of a mandatory ingestion step
func AnalysisFailed(err error, repoID string) *Error {
	return Wrap(err, ErrorTypeAnalysisFailed, SeverityHigh, "analysis failed for "+repoID).
		WithContext("repo", repoID)
}

// NotAnalyzed reports a retrieval against a repository with no analysis record
func NotAnalyzed(repoID string) *Error {
	return New(ErrorTypeNotAnalyzed, SeverityMedium, fmt.Sprintf("repository %s has not been analyzed", repoID)).
		WithContext("repo", repoID)
}

// StorageError wraps a persistent store error
func StorageError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityCritical, message)
}

// StorageErrorf wraps a persistent store error with formatting
func StorageErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityCritical, fmt.Sprintf(format, args...))
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.IsFatal()
	}

	return false
}
