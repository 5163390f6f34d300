package core

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Predefined Error Values
// =============================================================================

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrRegistryLookup = errors.New("prompt registry lookup failed")
	ErrParse          = errors.New("parse error")
	ErrRecursionLimit = errors.New("graph recursion limit reached")

	ErrRateLimited    = errors.New("rate limited")
	ErrTimeout        = errors.New("operation timed out")
	ErrNoAPIKey       = errors.New("API key not configured")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNetworkError   = errors.New("network error")
	ErrServerError    = errors.New("server error")
	ErrEmptyResponse  = errors.New("empty model response")
)

// =============================================================================
// Core Error Types
// =============================================================================

// ConfigError reports an invalid organization, role or model setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// RegistryError wraps a failed prompt lookup with the role name that triggered it.
type RegistryError struct {
	Name  string
	Cause error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("couldn't retrieve role %q from prompt registry: %v", e.Name, e.Cause)
}

func (e *RegistryError) Unwrap() []error {
	return []error{ErrRegistryLookup, e.Cause}
}

// ParseError is raised when a structurally required element is missing.
type ParseError struct {
	Parser  string
	Line    int // 1-based, 0 when not tied to a line
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s parser: line %d: %s", e.Parser, e.Line, e.Message)
	}
	return fmt.Sprintf("%s parser: %s", e.Parser, e.Message)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// NodeError represents a failure inside a workflow node
type NodeError struct {
	Node      string
	Step      int
	Cause     error
	Timestamp time.Time
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed (step %d): %v", e.Node, e.Step, e.Cause)
}

func (e *NodeError) Unwrap() error {
	return e.Cause
}

// RetryableError wraps errors that can be retried with timing information
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
	MaxRetries int
	Attempts   int
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (attempt %d/%d, retry after %v): %v",
		e.Attempts, e.MaxRetries, e.RetryAfter, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// CanRetry checks if more retries are allowed
func (e *RetryableError) CanRetry() bool {
	return e.Attempts < e.MaxRetries
}

// =============================================================================
// Error Classification Functions
// =============================================================================

// IsRetryable determines if an error can be retried
func IsRetryable(err error) bool {
	if err == nil || IsTerminal(err) {
		return false
	}

	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return retryable.CanRetry()
	}

	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNetworkError) ||
		errors.Is(err, ErrServerError) ||
		errors.Is(err, ErrEmptyResponse)
}

// IsTerminal determines if an error is terminal (cannot be retried)
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrRegistryLookup) ||
		errors.Is(err, ErrParse) ||
		errors.Is(err, ErrRecursionLimit) ||
		errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidInput)
}

// =============================================================================
// Error Creation Helpers
// =============================================================================

func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func NewRegistryError(name string, cause error) *RegistryError {
	return &RegistryError{Name: name, Cause: cause}
}

func NewParseError(parser string, line int, format string, args ...any) *ParseError {
	return &ParseError{Parser: parser, Line: line, Message: fmt.Sprintf(format, args...)}
}

// NewNodeError creates a new NodeError with timestamp
func NewNodeError(node string, step int, cause error) *NodeError {
	return &NodeError{
		Node:      node,
		Step:      step,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewRetryableError creates a new RetryableError
func NewRetryableError(err error, retryAfter time.Duration, maxRetries, attempts int) *RetryableError {
	return &RetryableError{
		Err:        err,
		RetryAfter: retryAfter,
		MaxRetries: maxRetries,
		Attempts:   attempts,
	}
}
