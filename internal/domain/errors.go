package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidInput covers every rejected request payload.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidDescriptor rejects client input before any scoring happens.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	// ErrUnknownPolicyVersion means the requested policy was never published.
	ErrUnknownPolicyVersion = errors.New("unknown policy version")
	// ErrNotSaved marks a check that was computed but could not be persisted.
	ErrNotSaved = errors.New("check computed but not saved")
	ErrNotFound = errors.New("not found")
)

// ValidationError lists per-field problems. It matches ErrInvalidInput and
// Err (ErrInvalidDescriptor when nil) with errors.Is.
type ValidationError struct {
	Err    error
	Fields map[string]string
}

// Kind is the sentinel this error reports as.
func (e *ValidationError) Kind() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidDescriptor
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, seen := e.Fields[field]; !seen {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", e.Kind(), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput || target == e.Kind()
}

// UnknownPolicyError names the missing version.
type UnknownPolicyError struct {
	Version string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownPolicyVersion, e.Version)
}

func (e *UnknownPolicyError) Is(target error) bool { return target == ErrUnknownPolicyVersion }
