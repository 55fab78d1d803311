package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BudgetPeriod is the recurring interval a budget limit applies to.
type BudgetPeriod string

const (
	PeriodWeekly    BudgetPeriod = "weekly"
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodYearly    BudgetPeriod = "yearly"
)

// ParseBudgetPeriod parses a string into a BudgetPeriod.
func ParseBudgetPeriod(s string) (BudgetPeriod, error) {
	switch BudgetPeriod(s) {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return BudgetPeriod(s), nil
	default:
		return "", fmt.Errorf("unknown budget period: %q", s)
	}
}

func (p BudgetPeriod) String() string { return string(p) }

// RolloverPolicy controls what happens to unspent budget at period end.
type RolloverPolicy string

const (
	// RolloverNone discards unspent budget at period end.
	RolloverNone RolloverPolicy = "none"
	// RolloverCarry adds unspent budget to the next period's limit.
	RolloverCarry RolloverPolicy = "carry"
	// RolloverReset carries a deficit but never a surplus.
	RolloverReset RolloverPolicy = "reset"
)

// ParseRolloverPolicy parses a string into a RolloverPolicy.
func ParseRolloverPolicy(s string) (RolloverPolicy, error) {
	switch RolloverPolicy(s) {
	case RolloverNone, RolloverCarry, RolloverReset:
		return RolloverPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown rollover policy: %q", s)
	}
}

func (p RolloverPolicy) String() string { return string(p) }

// Budget is a recurring spending limit attached to a category.
type Budget struct {
	// ID is the unique identifier for the budget (UUID format).
	ID string `json:"id"`

	// CategoryID references the category the budget tracks.
	CategoryID string `json:"category_id"`

	// Period is the recurring interval of the limit.
	Period BudgetPeriod `json:"period"`

	// Limit is the spending limit per period.
	Limit decimal.Decimal `json:"limit"`

	// Rollover controls carry-over of unspent budget between periods.
	Rollover RolloverPolicy `json:"rollover"`
}
