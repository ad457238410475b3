// Package constants provides shared constants used throughout membersync:
// timeouts, paging and fan-out limits, file permissions, and the wire
// values both remote systems agree on.
package constants

import "time"

// Timeout constants
const (
	// DefaultHTTPTimeout bounds a single call to either remote API
	DefaultHTTPTimeout = 30 * time.Second

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// Limit constants
const (
	// DefaultPageSize is the number of enrollment records requested per page
	DefaultPageSize = 100

	// DefaultChunkSize is the number of remote writes in flight at once
	DefaultChunkSize = 5

	// MaxChunkSize caps the configured chunk size
	MaxChunkSize = 50

	// MaxPages stops a runaway pagination loop against a misbehaving server
	MaxPages = 10000
)

// FilePermissions is the permission for log files the CLI creates (rw-r--r--)
const FilePermissions = 0644

// Directory API wire values
const (
	// CredentialEmail is the credential type holding the institutional email
	CredentialEmail = "etuMail"

	// CredentialNumericID is the credential type holding the student number
	CredentialNumericID = "etuId"

	// CredentialLogin is the credential type holding the ERP login name
	CredentialLogin = "etuLogin"

	// PlaceholderPIN marks a user whose PIN has not been generated yet
	PlaceholderPIN = "notGenerated"

	// PlaceholderPassword marks a user whose password has not been generated yet
	PlaceholderPassword = "notGenerated"
)

// Enrollment API wire values
const (
	// DefaultERPKeyParam is the query parameter carrying the ERP API key
	DefaultERPKeyParam = "DOLAPIKEY"
)
