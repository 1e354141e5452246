package cmd

import (
	"errors"

	"github.com/perchrh/ackhttp/packages/http"
)

// Exit codes for ackhttp CLI
const (
	// ExitSuccess indicates the request succeeded
	ExitSuccess = 0

	// ExitRequestFailure indicates a non-2xx status or a failed schema check
	ExitRequestFailure = 1

	// ExitInvalidURL indicates the target URL could not be built
	ExitInvalidURL = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries a process exit code through cobra's RunE. A nil err
// means the failure has already been reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCodeFor maps an error returned by a command to a process exit code.
// Errors without an explicit code are cobra usage errors.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch http.KindOf(err) {
	case http.KindInvalidURL:
		return ExitInvalidURL
	case http.KindTransport:
		return ExitNetworkError
	}
	return ExitUsageError
}

// outcomeExitCode maps a request outcome to a process exit code.
func outcomeExitCode(o *http.Outcome) int {
	switch o.Kind() {
	case http.KindNone:
		return ExitSuccess
	case http.KindNonSuccessStatus:
		return ExitRequestFailure
	case http.KindInvalidURL:
		return ExitInvalidURL
	case http.KindTransport:
		return ExitNetworkError
	default:
		return ExitUsageError
	}
}
