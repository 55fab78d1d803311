package models

import (
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// AccountType tags the kind of account.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
)

// ParseAccountType parses a string into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountChecking, AccountSavings, AccountCredit, AccountCash, AccountInvestment:
		return AccountType(s), nil
	default:
		return "", fmt.Errorf("unknown account type: %q", s)
	}
}

func (t AccountType) String() string { return string(t) }

// Account is a container of money. Balance is a cache derived from the
// non-voided transactions referencing the account; the validator recomputes
// it on every committed mutation.
type Account struct {
	// ID is the unique identifier for the account (UUID format).
	ID string `json:"id"`

	// Name is the user-visible account name.
	Name string `json:"name"`

	// Type tags the account kind.
	Type AccountType `json:"type"`

	// Currency is the ISO 4217 code of the account's currency.
	Currency string `json:"currency"`

	// Balance is the cached sum of all non-voided transactions on the account.
	Balance decimal.Decimal `json:"balance"`

	// Active reports whether new transactions may be written to the account.
	// Inactive accounts keep their history but reject new writes.
	Active bool `json:"active"`

	// ReconciledAt is when the user last confirmed the balance against the
	// real-world account. Zero if never reconciled.
	ReconciledAt time.Time `json:"reconciled_at,omitempty"`
}

// ValidCurrency reports whether code is a known ISO 4217 currency.
func ValidCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// CurrencyFraction returns the number of minor-unit digits for the currency,
// defaulting to 2 for unknown codes.
func CurrencyFraction(code string) int32 {
	if cur := money.GetCurrency(code); cur != nil {
		return int32(cur.Fraction)
	}
	return 2
}
