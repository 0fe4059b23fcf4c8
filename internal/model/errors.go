package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Fatal error classes. Wrapped errors keep these in their chain so callers
// can classify with eris.Is.
var (
	ErrMalformedInput = eris.New("malformed input")
	ErrEmptyDataset   = eris.New("empty dataset")
)

// ConfigError reports an invalid grouping, KPI name, field, or parameter.
// It is always fatal to the run.
type ConfigError struct {
	Kind  string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("configuration error: unknown %s %q", e.Kind, e.Value)
	if e.Err != nil {
		msg = fmt.Sprintf("configuration error: invalid %s %q: %v", e.Kind, e.Value, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError builds a ConfigError for an unknown value.
func NewConfigError(kind, value string) *ConfigError {
	return &ConfigError{Kind: kind, Value: value}
}

// IsConfigError returns true if err or anything in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StructuralInvalidity describes why a raw row could not become an
// InjuryRecord. It is counted per reason, never fatal.
type StructuralInvalidity struct {
	Line   int
	Reason Reason
	Column string
	Detail string
}

func (e *StructuralInvalidity) Error() string {
	msg := fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	if e.Column != "" {
		msg += " (" + e.Column + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
