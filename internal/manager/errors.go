package manager

import (
	"errors"
	"strings"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(reason string) error { return tooBusyError{reason: reason} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// modelNotLoadedError is returned when no chatbot is available to answer.
type modelNotLoadedError struct{}

func (modelNotLoadedError) Error() string { return "model not loaded" }

// ErrModelNotLoaded is returned by Respond before the first successful load.
var ErrModelNotLoaded error = modelNotLoadedError{}

// IsModelNotLoaded reports whether err indicates that no model is loaded.
func IsModelNotLoaded(err error) bool {
	var e modelNotLoadedError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp)
// so the HTTP layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// invalidSettingsError lists every settings field out of range.
type invalidSettingsError struct{ problems []string }

func (e invalidSettingsError) Error() string {
	return "invalid settings: " + strings.Join(e.problems, "; ")
}

// IsInvalidSettings reports whether err was produced by settings validation.
func IsInvalidSettings(err error) bool {
	var e invalidSettingsError
	return errors.As(err, &e)
}
