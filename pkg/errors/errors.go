// Package errors provides the error taxonomy of the membersync job.
// Every failure that crosses a package boundary is one of these typed
// errors, so the orchestrator can classify it, log the triggering record
// and pick the process exit code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join are re-exported so callers only import this package.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Sentinel errors for the membersync system
var (
	// ErrUnauthorized indicates the directory API rejected the login
	ErrUnauthorized = errors.New("unauthorized")

	// ErrFetch indicates a read from one of the remote systems failed
	ErrFetch = errors.New("fetch failed")

	// ErrWrite indicates a create, update or delete call failed
	ErrWrite = errors.New("write failed")

	// ErrEndOfPages marks the end of the enrollment page stream.
	// It is not a failure.
	ErrEndOfPages = errors.New("end of pages")

	// ErrRateLimited indicates that the API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates that a remote system is temporarily unavailable
	ErrUnavailable = errors.New("remote unavailable")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAmbiguousMatch indicates an identity matched more than one record
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrUntagged indicates a directory user reached the membership phase
	// without a desired contributor state
	ErrUntagged = errors.New("user has no desired contributor state")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// APIError represents a non-success HTTP response from a remote API.
type APIError struct {
	API        string // "directory" or "enrollment"
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error on %s (status %d): %s", e.API, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error on %s: %s", e.API, e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return target == ErrRateLimited
	case e.StatusCode >= http.StatusInternalServerError:
		return target == ErrUnavailable
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return target == ErrUnauthorized
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(api, endpoint string, statusCode int, message string) *APIError {
	return &APIError{
		API:        api,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
	}
}

// AuthError represents a rejected login against the directory API.
type AuthError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("login rejected by %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("login failed on %s: %s", e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// FetchError represents a failed read: the directory listing or one
// enrollment page. Page is -1 for reads that are not paginated.
type FetchError struct {
	Source     string
	Page       int
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("fetch %s page %d: %v", e.Source, e.Page, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// NewFetchError creates a FetchError for a non-paginated source.
func NewFetchError(source string, err error) *FetchError {
	return &FetchError{Source: source, Page: -1, StatusCode: statusOf(err), Err: err}
}

// NewPageFetchError creates a FetchError for one page of a paginated source.
func NewPageFetchError(source string, page int, err error) *FetchError {
	return &FetchError{Source: source, Page: page, StatusCode: statusOf(err), Err: err}
}

// WriteError represents a failed create, update or delete call.
// Target names the record the write was about (user email, wallet id...).
type WriteError struct {
	Operation  string
	Target     string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Target, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}

// NewWriteError creates a new WriteError
func NewWriteError(operation, target string, err error) *WriteError {
	return &WriteError{Operation: operation, Target: target, StatusCode: statusOf(err), Err: err}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Key     string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error for %s: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(key, message string, err error) *ConfigError {
	return &ConfigError{Key: key, Message: message, Err: err}
}

// ParseError represents a response body that could not be decoded.
type ParseError struct {
	Format  string
	Source  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parse error in %s: %s", e.Format, e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConflictError reports an identity that matched more than one record.
type ConflictError struct {
	Key        string   // the identity that collided, e.g. "email:a@x.edu"
	Candidates []string // ids or emails of the colliding records
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("identity %s matches %d records: %v", e.Key, len(e.Candidates), e.Candidates)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// Phase names a step of a run. Each phase maps to its own exit code.
type Phase string

// Phases of a run, in execution order.
const (
	PhaseConfig     Phase = "config"
	PhaseLogin      Phase = "login"
	PhaseDirectory  Phase = "directory-fetch"
	PhaseEnrollment Phase = "enrollment-fetch"
	PhasePlan       Phase = "plan"
	PhaseUsers      Phase = "users"
	PhaseMembership Phase = "membership"
)

// PhaseError wraps the error that stopped a run at a phase boundary.
type PhaseError struct {
	Phase Phase
	Err   error
}

// Error implements the error interface
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// InPhase wraps err as a PhaseError. It returns nil for a nil error.
func InPhase(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: phase, Err: err}
}

var phaseExitCodes = map[Phase]int{
	PhaseConfig:     2,
	PhaseLogin:      3,
	PhaseDirectory:  4,
	PhaseEnrollment: 5,
	PhasePlan:       6,
	PhaseUsers:      7,
	PhaseMembership: 8,
}

// ExitCode returns the process exit code for err: 0 for nil, the phase's
// code for a PhaseError or ConfigError, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) {
		if code, ok := phaseExitCodes[phaseErr.Phase]; ok {
			return code
		}
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return phaseExitCodes[PhaseConfig]
	}
	return 1
}

// Helper functions for error checking

// IsUnauthorized checks if an error is an authentication failure
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable reports whether a failed call may succeed if issued again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// IsEndOfPages checks if an error marks the end of a page stream
func IsEndOfPages(err error) bool {
	return errors.Is(err, ErrEndOfPages)
}

// statusOf extracts the HTTP status carried by an APIError in err's chain.
func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, source string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, Source: source, Message: err.Error(), Err: err}
}
