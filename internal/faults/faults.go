// Package faults defines the error taxonomy shared by the directory and
// router: validation, authorization, lifecycle-state, rate-limit, and
// pause failures. Callers match with errors.As or the Is* helpers.
package faults

import (
	"errors"
	"fmt"
)

// Rate-limit sub-rules carried by RateLimitError.
const (
	RuleTooFrequent    = "too-frequent"
	RuleWindowExceeded = "window-exceeded"
)

// ValidationError reports malformed or empty input, an already-registered
// owner, or an unknown target.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// AuthorizationError reports a caller that is not permitted to perform an
// owner- or authority-gated operation.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "authorization: " + e.Reason }

// StateError reports an operation that is invalid for the record's current
// lifecycle state (already active, already inactive, already delivered).
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return "state: " + e.Reason }

// RateLimitError reports a rejected send. Rule names the sub-rule that
// tripped: RuleTooFrequent or RuleWindowExceeded.
type RateLimitError struct {
	Rule   string
	Reason string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit (%s): %s", e.Rule, e.Reason)
}

// PausedError reports an operation blocked by the pause gate.
type PausedError struct {
	Domain string
}

func (e *PausedError) Error() string {
	return fmt.Sprintf("paused: %s operations are halted", e.Domain)
}

func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...any) error {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

func Statef(format string, args ...any) error {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}

func RateLimited(rule, format string, args ...any) error {
	return &RateLimitError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

func IsState(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

// IsRateLimited reports whether err is a RateLimitError, and if so which
// sub-rule tripped.
func IsRateLimited(err error) (string, bool) {
	var e *RateLimitError
	if errors.As(err, &e) {
		return e.Rule, true
	}
	return "", false
}

func IsPaused(err error) bool {
	var e *PausedError
	return errors.As(err, &e)
}
