package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal is a savings target. Saved is advanced by explicit contributions
// through the store, never derived from transactions.
type Goal struct {
	// ID is the unique identifier for the goal (UUID format).
	ID string `json:"id"`

	// Name is the user-visible goal name.
	Name string `json:"name"`

	// Target is the amount the user wants to save.
	Target decimal.Decimal `json:"target"`

	// Saved is the amount contributed so far.
	Saved decimal.Decimal `json:"saved"`

	// Deadline is when the user wants the goal funded. Zero if open-ended.
	Deadline time.Time `json:"deadline,omitempty"`

	// AccountID optionally references the account holding the saved money.
	AccountID string `json:"account_id,omitempty"`
}

// Reached reports whether the goal is fully funded.
func (g *Goal) Reached() bool {
	return g.Saved.GreaterThanOrEqual(g.Target)
}
