package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Origin tags how a transaction entered the ledger.
type Origin string

const (
	// OriginManual is a transaction entered by hand.
	OriginManual Origin = "manual"
	// OriginImported is a transaction ingested from a bank statement import.
	OriginImported Origin = "imported"
	// OriginRule is a transaction created by an automation rule.
	OriginRule Origin = "rule"
	// OriginSplit is a leg derived from splitting another transaction.
	OriginSplit Origin = "split"
)

// ParseOrigin parses a string into an Origin.
func ParseOrigin(s string) (Origin, error) {
	switch Origin(s) {
	case OriginManual, OriginImported, OriginRule, OriginSplit:
		return Origin(s), nil
	default:
		return "", fmt.Errorf("unknown origin: %q", s)
	}
}

func (o Origin) String() string { return string(o) }

// Transaction is a single signed movement of money on one account.
//
// A transfer is a pair of transactions on two accounts sharing a
// TransferGroupID; the legs sum to zero when both are in the same currency.
// A split replaces one transaction with derived legs sharing a SplitGroupID;
// the parent is voided and the legs sum to the parent amount.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string `json:"id"`

	// AccountID references the owning Account.
	AccountID string `json:"account_id"`

	// CounterAccountID references the other account of a transfer, empty
	// otherwise.
	CounterAccountID string `json:"counter_account_id,omitempty"`

	// Amount is the signed amount in the transaction's currency. Never zero.
	Amount decimal.Decimal `json:"amount"`

	// Currency is the ISO 4217 code of the amount.
	Currency string `json:"currency"`

	// CategoryID references a Category, empty for uncategorized.
	CategoryID string `json:"category_id,omitempty"`

	// Timestamp is when the transaction occurred.
	Timestamp time.Time `json:"timestamp"`

	// Note is the free-text note or merchant description.
	Note string `json:"note,omitempty"`

	// Tags is the sorted, de-duplicated tag set.
	Tags []string `json:"tags,omitempty"`

	// Origin tags how the transaction entered the ledger.
	Origin Origin `json:"origin"`

	// RuleIDs records the automation rules that were applied to the
	// transaction, for audit. Entries for since-deleted rules are pruned
	// by the validator's repair pass.
	RuleIDs []string `json:"rule_ids,omitempty"`

	// TransferGroupID links the two legs of a transfer.
	TransferGroupID string `json:"transfer_group_id,omitempty"`

	// SplitGroupID links a split parent with its derived legs.
	SplitGroupID string `json:"split_group_id,omitempty"`

	// Voided marks the transaction as soft-deleted. Voided transactions are
	// kept for audit but excluded from balances.
	Voided bool `json:"voided,omitempty"`

	// ReviewFlag marks the transaction for user review. Once set by a rule
	// it is never cleared by a later rule.
	ReviewFlag bool `json:"review_flag,omitempty"`
}

// HasTag reports whether the transaction carries the given tag.
func (t *Transaction) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// AddTag adds a tag, keeping the tag set sorted and unique.
func (t *Transaction) AddTag(tag string) {
	if tag == "" || t.HasTag(tag) {
		return
	}
	t.Tags = append(t.Tags, tag)
	slices.Sort(t.Tags)
}

// NormalizeTags sorts and de-duplicates the tag set in place.
func (t *Transaction) NormalizeTags() {
	slices.Sort(t.Tags)
	t.Tags = slices.Compact(t.Tags)
	if len(t.Tags) == 0 {
		t.Tags = nil
	}
}

// Clone returns a deep copy of the transaction.
func (t Transaction) Clone() Transaction {
	t.Tags = slices.Clone(t.Tags)
	t.RuleIDs = slices.Clone(t.RuleIDs)
	return t
}
