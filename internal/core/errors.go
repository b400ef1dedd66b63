package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an unknown job id or artifact.
	ErrNotFound = errors.New("not found")

	// ErrNoExistingFilter reports a disable-only save against a store
	// that has never held a filter.
	ErrNoExistingFilter = errors.New("no saved filter to disable")
)

// ValidationError reports a malformed request; surfaced as a 4xx.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ConfigurationError aborts a whole batch before any per-file work starts,
// for example when the enabled custom filter is unreadable.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ConversionError is a per-file subprocess failure. It never escalates past
// the file it belongs to.
type ConversionError struct {
	File   string
	Detail string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s: %s", e.File, e.Detail)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
