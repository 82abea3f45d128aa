// Package clierr holds the CLI-level error types and the SilentError
// wrapper used by ai-barometer's command surface (hydrate, retry, and
// the process entry point). Each is a small standalone error type
// checked with errors.As, not part of a type hierarchy.
package clierr

import "fmt"

// SilentError marks an error that has already been reported to the
// user (e.g. a detailed message printed to stderr by the command
// itself). The CLI dispatch layer checks for it with errors.As and
// skips printing the error a second time.
type SilentError struct {
	err error
}

// NewSilentError wraps err so the dispatch layer won't print it again.
func NewSilentError(err error) *SilentError {
	return &SilentError{err: err}
}

func (e *SilentError) Error() string {
	return e.err.Error()
}

func (e *SilentError) Unwrap() error {
	return e.err
}

// ConsentDeclined indicates the push gate's consent prompt was
// answered no, or defaulted to no on non-interactive stdin. It is
// never surfaced to the user beyond the first prompt.
type ConsentDeclined struct{}

func (ConsentDeclined) Error() string { return "push consent declined" }

// InvalidSince indicates a malformed --since duration was passed to
// hydrate; this is the one hydration failure that aborts before any
// work is done.
type InvalidSince struct {
	Raw string
}

func (e InvalidSince) Error() string {
	return fmt.Sprintf("invalid --since value %q: expected a form like \"7d\"", e.Raw)
}
