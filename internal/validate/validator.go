// Package validate checks and repairs cross-entity integrity of a snapshot.
//
// Validate is a pure scan returning violations; Repair applies only
// deterministic, non-destructive fixes (recomputing cached balances, pruning
// references to deleted rules, normalizing tag sets) and reports everything
// else as a violation rather than guessing.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/moneta-app/engine/internal/models"
)

// Validate scans the snapshot and returns all violations found, in
// deterministic collection order. It never mutates the snapshot.
func Validate(s *models.Snapshot) []Violation {
	var vs []Violation
	vs = append(vs, checkDuplicateIDs(s)...)
	vs = append(vs, checkTransactions(s)...)
	vs = append(vs, checkCategories(s)...)
	vs = append(vs, checkBudgets(s)...)
	vs = append(vs, checkGoals(s)...)
	vs = append(vs, checkTransfers(s)...)
	vs = append(vs, checkBalances(s)...)
	return vs
}

// Repair returns a deep copy of the snapshot with all deterministic fixes
// applied, plus the violations remaining afterwards. Repair is idempotent:
// repairing an already-repaired snapshot changes nothing.
func Repair(s *models.Snapshot) (*models.Snapshot, []Violation) {
	fixed := s.Clone()

	knownRules := make(map[string]bool, len(fixed.Rules))
	for _, r := range fixed.Rules {
		knownRules[r.ID] = true
	}
	for i := range fixed.Transactions {
		tx := &fixed.Transactions[i]
		tx.NormalizeTags()
		if len(tx.RuleIDs) > 0 {
			kept := tx.RuleIDs[:0]
			for _, id := range tx.RuleIDs {
				if knownRules[id] {
					kept = append(kept, id)
				}
			}
			tx.RuleIDs = kept
			if len(tx.RuleIDs) == 0 {
				tx.RuleIDs = nil
			}
		}
	}

	balances := computeBalances(fixed)
	for i := range fixed.Accounts {
		fixed.Accounts[i].Balance = balances[fixed.Accounts[i].ID]
	}

	return fixed, Validate(fixed)
}

// computeBalances sums non-voided transactions per account.
func computeBalances(s *models.Snapshot) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(s.Accounts))
	for _, a := range s.Accounts {
		balances[a.ID] = decimal.Zero
	}
	for _, tx := range s.Transactions {
		if tx.Voided {
			continue
		}
		if b, ok := balances[tx.AccountID]; ok {
			balances[tx.AccountID] = b.Add(tx.Amount)
		}
	}
	return balances
}

func checkDuplicateIDs(s *models.Snapshot) []Violation {
	var vs []Violation
	seen := make(map[string]string)
	note := func(id, kind string) {
		if id == "" {
			return
		}
		if prev, ok := seen[id]; ok {
			vs = append(vs, Violation{
				Code:     CodeDuplicateID,
				Severity: Hard,
				EntityID: id,
				Message:  fmt.Sprintf("%s id already used by %s", kind, prev),
			})
			return
		}
		seen[id] = kind
	}
	for _, a := range s.Accounts {
		note(a.ID, "account")
	}
	for _, t := range s.Transactions {
		note(t.ID, "transaction")
	}
	for _, c := range s.Categories {
		note(c.ID, "category")
	}
	for _, b := range s.Budgets {
		note(b.ID, "budget")
	}
	for _, g := range s.Goals {
		note(g.ID, "goal")
	}
	for _, r := range s.Rules {
		note(r.ID, "rule")
	}
	return vs
}

func checkTransactions(s *models.Snapshot) []Violation {
	var vs []Violation
	knownRules := make(map[string]bool, len(s.Rules))
	for _, r := range s.Rules {
		knownRules[r.ID] = true
	}
	for i := range s.Transactions {
		tx := &s.Transactions[i]
		if tx.Amount.IsZero() {
			vs = append(vs, Violation{
				Code:     CodeZeroAmount,
				Severity: Hard,
				EntityID: tx.ID,
				Message:  "transaction amount is zero",
			})
		}
		acct := s.AccountByID(tx.AccountID)
		if acct == nil {
			vs = append(vs, Violation{
				Code:     CodeDanglingAccount,
				Severity: Hard,
				EntityID: tx.ID,
				Message:  fmt.Sprintf("account %s does not exist", tx.AccountID),
			})
		} else if !acct.Active && !tx.Voided {
			vs = append(vs, Violation{
				Code:     CodeInactiveAccount,
				Severity: Soft,
				EntityID: tx.ID,
				Message:  fmt.Sprintf("account %s is inactive", tx.AccountID),
			})
		}
		if tx.CounterAccountID != "" && s.AccountByID(tx.CounterAccountID) == nil {
			vs = append(vs, Violation{
				Code:     CodeDanglingAccount,
				Severity: Hard,
				EntityID: tx.ID,
				Message:  fmt.Sprintf("counter account %s does not exist", tx.CounterAccountID),
			})
		}
		if tx.CategoryID != "" && s.CategoryByID(tx.CategoryID) == nil {
			vs = append(vs, Violation{
				Code:     CodeDanglingCategory,
				Severity: Hard,
				EntityID: tx.ID,
				Message:  fmt.Sprintf("category %s does not exist", tx.CategoryID),
			})
		}
		if tx.Currency != "" && !models.ValidCurrency(tx.Currency) {
			vs = append(vs, Violation{
				Code:     CodeUnknownCurrency,
				Severity: Soft,
				EntityID: tx.ID,
				Message:  fmt.Sprintf("currency %q is not a known ISO 4217 code", tx.Currency),
			})
		}
		for _, id := range tx.RuleIDs {
			if !knownRules[id] {
				vs = append(vs, Violation{
					Code:     CodeOrphanRuleRef,
					Severity: Soft,
					EntityID: tx.ID,
					Message:  fmt.Sprintf("applied rule %s no longer exists", id),
				})
			}
		}
	}
	return vs
}

func checkCategories(s *models.Snapshot) []Violation {
	var vs []Violation
	for _, c := range s.Categories {
		if c.ParentID != "" && s.CategoryByID(c.ParentID) == nil {
			vs = append(vs, Violation{
				Code:     CodeDanglingCategory,
				Severity: Hard,
				EntityID: c.ID,
				Message:  fmt.Sprintf("parent category %s does not exist", c.ParentID),
			})
		}
		if c.BudgetID != "" && s.BudgetByID(c.BudgetID) == nil {
			vs = append(vs, Violation{
				Code:     CodeDanglingBudget,
				Severity: Hard,
				EntityID: c.ID,
				Message:  fmt.Sprintf("budget %s does not exist", c.BudgetID),
			})
		}
	}
	// Cycle detection: walk each category's parent chain with a visited set.
	for _, c := range s.Categories {
		visited := map[string]bool{c.ID: true}
		cur := c.ParentID
		for cur != "" {
			if visited[cur] {
				vs = append(vs, Violation{
					Code:     CodeCategoryCycle,
					Severity: Hard,
					EntityID: c.ID,
					Message:  fmt.Sprintf("parent chain cycles through %s", cur),
				})
				break
			}
			visited[cur] = true
			parent := s.CategoryByID(cur)
			if parent == nil {
				break // dangling parent reported above
			}
			cur = parent.ParentID
		}
	}
	return vs
}

func checkBudgets(s *models.Snapshot) []Violation {
	var vs []Violation
	for _, b := range s.Budgets {
		if s.CategoryByID(b.CategoryID) == nil {
			vs = append(vs, Violation{
				Code:     CodeDanglingCategory,
				Severity: Hard,
				EntityID: b.ID,
				Message:  fmt.Sprintf("category %s does not exist", b.CategoryID),
			})
		}
	}
	return vs
}

func checkGoals(s *models.Snapshot) []Violation {
	var vs []Violation
	for _, g := range s.Goals {
		if g.AccountID != "" && s.AccountByID(g.AccountID) == nil {
			vs = append(vs, Violation{
				Code:     CodeDanglingAccount,
				Severity: Hard,
				EntityID: g.ID,
				Message:  fmt.Sprintf("account %s does not exist", g.AccountID),
			})
		}
	}
	return vs
}

func checkTransfers(s *models.Snapshot) []Violation {
	var vs []Violation
	groups := make(map[string][]*models.Transaction)
	var order []string
	for i := range s.Transactions {
		tx := &s.Transactions[i]
		if tx.TransferGroupID == "" {
			continue
		}
		if _, ok := groups[tx.TransferGroupID]; !ok {
			order = append(order, tx.TransferGroupID)
		}
		groups[tx.TransferGroupID] = append(groups[tx.TransferGroupID], tx)
	}
	for _, gid := range order {
		legs := groups[gid]
		if len(legs) != 2 {
			vs = append(vs, Violation{
				Code:     CodeTransferMismatch,
				Severity: Hard,
				EntityID: gid,
				Message:  fmt.Sprintf("transfer group has %d legs, want 2", len(legs)),
			})
			continue
		}
		a, b := legs[0], legs[1]
		if a.Voided != b.Voided {
			vs = append(vs, Violation{
				Code:     CodeTransferMismatch,
				Severity: Hard,
				EntityID: gid,
				Message:  "transfer legs disagree on void state",
			})
		}
		// The zero-sum check needs a shared currency. The store refuses to
		// create cross-currency transfers; a stored pair is legacy data the
		// validator cannot verify, so it is surfaced rather than blocking
		// every future commit.
		if a.Currency != b.Currency {
			vs = append(vs, Violation{
				Code:     CodeTransferMismatch,
				Severity: Soft,
				EntityID: gid,
				Message:  fmt.Sprintf("legs in %s and %s cannot be checked for a zero sum", a.Currency, b.Currency),
			})
		} else if !a.Amount.Add(b.Amount).IsZero() {
			vs = append(vs, Violation{
				Code:     CodeTransferMismatch,
				Severity: Hard,
				EntityID: gid,
				Message:  fmt.Sprintf("transfer legs sum to %s, want 0", a.Amount.Add(b.Amount)),
			})
		}
	}
	return vs
}

func checkBalances(s *models.Snapshot) []Violation {
	var vs []Violation
	balances := computeBalances(s)
	for _, a := range s.Accounts {
		want := balances[a.ID]
		if !a.Balance.Equal(want) {
			vs = append(vs, Violation{
				Code:     CodeBalanceDrift,
				Severity: Soft,
				EntityID: a.ID,
				Message:  fmt.Sprintf("cached balance %s, transactions sum to %s", a.Balance, want),
			})
		}
	}
	return vs
}
