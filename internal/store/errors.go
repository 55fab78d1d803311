package store

import (
	"errors"
	"fmt"

	"github.com/moneta-app/engine/internal/validate"
)

// ErrNotFound is returned when a mutation targets an entity that does not
// exist in the current snapshot.
var ErrNotFound = errors.New("entity not found")

// ErrAccountInactive is returned when a write targets a deactivated account.
var ErrAccountInactive = errors.New("account is inactive")

// ErrReferenced is returned when a delete targets an entity that other
// entities still reference. Callers should void or reassign instead.
var ErrReferenced = errors.New("entity is still referenced")

// ErrCurrencyMismatch is returned when a transfer is attempted between
// accounts of different currencies. The engine performs no conversion, so
// such a pair could never satisfy the zero-sum transfer invariant.
var ErrCurrencyMismatch = errors.New("accounts use different currencies")

// ValidationError reports the hard violations that caused a mutation to be
// rejected. The snapshot is unchanged when this error is returned.
type ValidationError struct {
	Violations []validate.Violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mutation rejected: %s", validate.Summary(e.Violations))
}
