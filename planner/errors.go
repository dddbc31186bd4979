/*
errors.go - Error types for the planner layer

Validation and storage sentinels live here; use errors.Is against them.
Engine computations themselves do not produce errors; malformed input is
caught at this boundary and wrapped in a RecordError naming the offending
record, so list-level operations can report exactly which entry is broken.
*/
package planner

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// Validation (construction-time, see Record.Validate).
	ErrAmountNotPositive  = errors.New("amount must be positive")
	ErrDueMonthOutOfRange = errors.New("due month must be between 1 and 12")
	ErrEndBeforeStart     = errors.New("end date precedes start date")

	// Storage.
	ErrRecordNotFound = errors.New("record not found")
	ErrUserExists     = errors.New("user already exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrUserInactive   = errors.New("user is deactivated")

	// User administration.
	ErrSelfDelete = errors.New("cannot delete own account")
	ErrLastAdmin  = errors.New("at least one admin must remain")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RecordError attributes a failure to one specific record, so a bad entry in
// a list never masquerades as a failure of the whole set.
type RecordError struct {
	RecordID string
	Field    string
	Err      error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record %s: %s: %v", e.RecordID, e.Field, e.Err)
	}
	return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsValidation reports whether the error is a construction-time validation
// failure (as opposed to a storage or crypto failure).
func IsValidation(err error) bool {
	return errors.Is(err, ErrAmountNotPositive) ||
		errors.Is(err, ErrDueMonthOutOfRange) ||
		errors.Is(err, ErrEndBeforeStart)
}
