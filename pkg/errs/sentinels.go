// Package errs contains the sentinel error kinds shared by every layer of the
// CLI. Callers match them with errors.Is; cmd maps them to exit codes.
package errs

import "errors"

var (
	// ErrConfig indicates a missing or invalid configuration value.
	ErrConfig = errors.New("configuration error")

	// ErrInvalidArgument indicates a rejected command-line argument
	// (date format, mixed date kinds, verdict, report type).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAuthentication indicates the token endpoint refused the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnauthorized indicates a report endpoint kept answering 401 after a
	// fresh token was obtained.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRetryBudgetExceeded indicates transient API errors (429/503/504)
	// persisted past the configured number of attempts.
	ErrRetryBudgetExceeded = errors.New("retry budget exceeded")

	// ErrMalformedResponse indicates a response body that does not match the
	// expected schema.
	ErrMalformedResponse = errors.New("malformed response")
)
