// Package serrors defines the error kinds shared across the flockd core.
// Callers classify failures with errors.Is and wrap with fmt.Errorf("%w").
package serrors

import "errors"

var (
	// ErrNotFound reports that a referenced viewer, user, post or
	// conversation does not exist (or was deleted).
	ErrNotFound = errors.New("not found")

	// ErrValidation reports a content or privacy constraint violation on a
	// create/update operation. Always surfaced to the caller immediately.
	ErrValidation = errors.New("validation failed")

	// ErrTransientFetch reports a query that failed or timed out. The live
	// reconciliation loop swallows these up to its retry budget.
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrConflictingState reports that a toggle's server-confirmed state
	// disagreed with the optimistic guess. Recovered locally, never shown
	// to the user.
	ErrConflictingState = errors.New("conflicting state")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
