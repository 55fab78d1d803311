package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/moneta-app/engine/internal/dedupe"
	"github.com/moneta-app/engine/internal/metrics"
	"github.com/moneta-app/engine/internal/models"
	"github.com/moneta-app/engine/internal/rules"
	"github.com/moneta-app/engine/internal/validate"
)

// TxResult reports the full outcome of inserting a transaction: the
// committed transaction after rules ran, derived split legs if a rule asked
// for a split, duplicate candidates for the caller to confirm, and non-fatal
// warnings surfaced along the way.
type TxResult struct {
	Tx             models.Transaction
	SplitLegs      []models.Transaction
	Duplicates     []dedupe.Candidate
	RuleWarnings   []rules.Warning
	SoftViolations []validate.Violation
}

// AddTransaction runs the full write pipeline: defaults, automation rules,
// duplicate scan, validation, commit, persist. On a hard violation the
// snapshot is unchanged and a *ValidationError is returned. Duplicates never
// block the insert; confirming or voiding is the caller's decision.
func (e *Engine) AddTransaction(ctx context.Context, tx models.Transaction) (*TxResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Origin == "" {
		tx.Origin = models.OriginManual
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = e.now()
	}
	acct := e.snap.AccountByID(tx.AccountID)
	if acct == nil {
		return nil, fmt.Errorf("account %s: %w", tx.AccountID, ErrNotFound)
	}
	if !acct.Active {
		return nil, fmt.Errorf("account %s: %w", tx.AccountID, ErrAccountInactive)
	}
	if tx.Currency == "" {
		tx.Currency = acct.Currency
	}
	tx.NormalizeTags()

	res := e.rules.Apply(tx, e.snap.Rules)
	metrics.RulesApplied.Add(float64(len(res.Applied)))
	metrics.RuleWarnings.Add(float64(len(res.Warnings)))
	warnings := res.Warnings
	committed := res.Tx

	// Duplicate scan runs against the pre-mutation window, after rules so a
	// renamed note is compared the way it will be stored.
	dups := e.det.FindCandidates(committed, e.snap.Transactions)
	metrics.DuplicatesFlagged.Add(float64(len(dups)))

	var legs []models.Transaction
	if res.SplitFractions != nil {
		built, err := buildSplitLegs(committed, res.SplitFractions)
		if err != nil {
			warnings = append(warnings, rules.Warning{RuleID: res.SplitRuleID, Message: err.Error()})
		} else {
			legs = built
			committed.SplitGroupID = splitGroupID(committed.ID)
			committed.Voided = true
		}
	}

	soft, err := e.commitLocked(ctx, func(next *models.Snapshot) error {
		next.Transactions = append(next.Transactions, committed)
		next.Transactions = append(next.Transactions, legs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &TxResult{
		Tx:             committed,
		SplitLegs:      legs,
		Duplicates:     dups,
		RuleWarnings:   warnings,
		SoftViolations: soft,
	}, nil
}

// UpdateTransaction replaces an existing transaction wholesale.
func (e *Engine) UpdateTransaction(ctx context.Context, tx models.Transaction) ([]validate.Violation, error) {
	tx.NormalizeTags()
	return e.commit(ctx, func(next *models.Snapshot) error {
		existing := next.TransactionByID(tx.ID)
		if existing == nil {
			return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
		}
		*existing = tx
		return nil
	})
}

// VoidTransaction soft-deletes a transaction. Voiding one leg of a transfer
// voids the whole group so a half-transfer can never dangle.
func (e *Engine) VoidTransaction(ctx context.Context, id string) ([]validate.Violation, error) {
	return e.commit(ctx, func(next *models.Snapshot) error {
		tx := next.TransactionByID(id)
		if tx == nil {
			return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		if tx.TransferGroupID != "" {
			for _, leg := range next.TransferLegs(tx.TransferGroupID) {
				leg.Voided = true
			}
			return nil
		}
		tx.Voided = true
		return nil
	})
}

// Transfer moves amount from one account to another as two linked legs
// committed together: both sides apply before anything persists, or neither
// does. The amount must be positive; it is debited from the source and
// credited to the destination. Both accounts must use the same currency: the
// engine performs no conversion, so a cross-currency pair could never keep
// the legs summing to zero.
func (e *Engine) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, note string, when time.Time) (out, in models.Transaction, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !amount.IsPositive() {
		return out, in, fmt.Errorf("transfer amount must be positive, got %s", amount)
	}
	if fromID == toID {
		return out, in, fmt.Errorf("transfer source and destination are the same account")
	}
	for _, id := range []string{fromID, toID} {
		acct := e.snap.AccountByID(id)
		if acct == nil {
			return out, in, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		if !acct.Active {
			return out, in, fmt.Errorf("account %s: %w", id, ErrAccountInactive)
		}
	}
	from := e.snap.AccountByID(fromID)
	to := e.snap.AccountByID(toID)
	if from.Currency != to.Currency {
		return out, in, fmt.Errorf("transfer between %s and %s accounts: %w", from.Currency, to.Currency, ErrCurrencyMismatch)
	}
	if when.IsZero() {
		when = e.now()
	}

	group := uuid.New().String()
	out = models.Transaction{
		ID:               uuid.New().String(),
		AccountID:        fromID,
		CounterAccountID: toID,
		Amount:           amount.Neg(),
		Currency:         from.Currency,
		Timestamp:        when,
		Note:             note,
		Origin:           models.OriginManual,
		TransferGroupID:  group,
	}
	in = models.Transaction{
		ID:               uuid.New().String(),
		AccountID:        toID,
		CounterAccountID: fromID,
		Amount:           amount,
		Currency:         to.Currency,
		Timestamp:        when,
		Note:             note,
		Origin:           models.OriginManual,
		TransferGroupID:  group,
	}

	if _, err := e.commitLocked(ctx, func(next *models.Snapshot) error {
		next.Transactions = append(next.Transactions, out, in)
		return nil
	}); err != nil {
		return models.Transaction{}, models.Transaction{}, err
	}
	return out, in, nil
}

// SplitTransaction voids the target and replaces it with derived legs in the
// given proportions, all in one commit.
func (e *Engine) SplitTransaction(ctx context.Context, id string, fractions []decimal.Decimal) ([]models.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := e.snap.TransactionByID(id)
	if src == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if src.Voided {
		return nil, fmt.Errorf("transaction %s is voided", id)
	}
	legs, err := buildSplitLegs(src.Clone(), fractions)
	if err != nil {
		return nil, err
	}

	if _, err := e.commitLocked(ctx, func(next *models.Snapshot) error {
		parent := next.TransactionByID(id)
		parent.SplitGroupID = splitGroupID(id)
		parent.Voided = true
		next.Transactions = append(next.Transactions, legs...)
		return nil
	}); err != nil {
		return nil, err
	}
	return legs, nil
}

// Transactions returns a copy of the transactions on an account within the
// given time range. Zero bounds are open.
func (e *Engine) Transactions(accountID string, from, to time.Time) []models.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Transaction
	for i := range e.snap.Transactions {
		tx := &e.snap.Transactions[i]
		if accountID != "" && tx.AccountID != accountID {
			continue
		}
		if !from.IsZero() && tx.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && tx.Timestamp.After(to) {
			continue
		}
		out = append(out, tx.Clone())
	}
	return out
}

func splitGroupID(parentID string) string { return "sg-" + parentID }

// buildSplitLegs derives the split legs of a transaction. Leg amounts are
// rounded to the currency's minor unit; the last leg absorbs the remainder so
// the legs always sum exactly to the parent amount.
func buildSplitLegs(parent models.Transaction, fractions []decimal.Decimal) ([]models.Transaction, error) {
	one := decimal.NewFromInt(1)
	sum := decimal.Zero
	for _, f := range fractions {
		if !f.IsPositive() {
			return nil, fmt.Errorf("split fraction %s is not positive", f)
		}
		sum = sum.Add(f)
	}
	if len(fractions) < 2 || !sum.Equal(one) {
		return nil, fmt.Errorf("split fractions must be at least 2 and sum to 1")
	}

	frac := models.CurrencyFraction(parent.Currency)
	group := splitGroupID(parent.ID)
	legs := make([]models.Transaction, len(fractions))
	remaining := parent.Amount
	for i, f := range fractions {
		var amount decimal.Decimal
		if i == len(fractions)-1 {
			amount = remaining
		} else {
			amount = parent.Amount.Mul(f).Round(frac)
			remaining = remaining.Sub(amount)
		}
		if amount.IsZero() {
			return nil, fmt.Errorf("split leg %d rounds to zero", i+1)
		}
		leg := parent.Clone()
		leg.ID = fmt.Sprintf("%s-s%d", parent.ID, i+1)
		leg.Amount = amount
		leg.Origin = models.OriginSplit
		leg.SplitGroupID = group
		leg.TransferGroupID = ""
		leg.CounterAccountID = ""
		leg.Voided = false
		legs[i] = leg
	}
	return legs, nil
}
