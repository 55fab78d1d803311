package validate

import (
	"fmt"
	"strings"
)

// Severity classifies a violation. Hard violations must block the mutation
// that introduced them; soft violations are surfaced to the caller but do not
// block.
type Severity int

const (
	// Soft violations are repairable or informational (balance drift, orphan
	// rule references, history on inactive accounts).
	Soft Severity = iota
	// Hard violations break referential or numeric integrity and must never
	// be committed (dangling references, transfer mismatches, cycles).
	Hard
)

func (s Severity) String() string {
	if s == Hard {
		return "hard"
	}
	return "soft"
}

// Code identifies the kind of violation.
type Code string

const (
	CodeDuplicateID      Code = "duplicate_id"
	CodeDanglingAccount  Code = "dangling_account"
	CodeDanglingCategory Code = "dangling_category"
	CodeDanglingBudget   Code = "dangling_budget"
	CodeZeroAmount       Code = "zero_amount"
	CodeUnknownCurrency  Code = "unknown_currency"
	CodeCategoryCycle    Code = "category_cycle"
	CodeTransferMismatch Code = "transfer_mismatch"
	CodeBalanceDrift     Code = "balance_drift"
	CodeOrphanRuleRef    Code = "orphan_rule_ref"
	CodeInactiveAccount  Code = "inactive_account"
)

// Violation reports one integrity problem found in a snapshot.
type Violation struct {
	Code     Code
	Severity Severity
	EntityID string
	Message  string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s violation %s on %s: %s", v.Severity, v.Code, v.EntityID, v.Message)
}

// HasHard reports whether any violation in the list is hard.
func HasHard(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == Hard {
			return true
		}
	}
	return false
}

// Filter returns the violations of the given severity.
func Filter(vs []Violation, sev Severity) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

// Summary renders a one-line digest of the violations, for logs.
func Summary(vs []Violation) string {
	if len(vs) == 0 {
		return "no violations"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v.Code)
	}
	return fmt.Sprintf("%d violations: %s", len(vs), strings.Join(parts, ", "))
}
