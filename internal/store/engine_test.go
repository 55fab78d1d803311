package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/moneta-app/engine/internal/migrate"
	"github.com/moneta-app/engine/internal/models"
	"github.com/moneta-app/engine/internal/persist"
	"github.com/moneta-app/engine/internal/validate"
)

var testClock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// newTestEngine opens an engine on a throwaway file gateway and seeds two
// accounts, a category, and a categorization rule.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	gw, err := persist.NewFile(filepath.Join(t.TempDir(), "snapshot.json"), "")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	e, violations, err := Open(ctx, gw, Options{
		SyncSave: true,
		Now:      func() time.Time { return testClock },
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("Open() violations = %v, want none", violations)
	}
	t.Cleanup(func() {
		if err := e.Close(ctx); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	for _, a := range []models.Account{
		{ID: "acc-1", Name: "Checking", Type: models.AccountChecking, Currency: "EUR"},
		{ID: "acc-2", Name: "Savings", Type: models.AccountSavings, Currency: "EUR"},
	} {
		if _, err := e.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", a.ID, err)
		}
	}
	if _, err := e.CreateCategory(ctx, models.Category{ID: "cat-groceries", Name: "Groceries"}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if _, err := e.CreateRule(ctx, models.Rule{
		ID:   "rule-groceries",
		Name: "groceries",
		Conditions: []models.Condition{
			{Field: models.FieldNote, Op: models.OpContains, Value: "rewe"},
		},
		Actions: []models.Action{
			{Kind: models.ActionSetCategory, Value: "cat-groceries"},
			{Kind: models.ActionAddTag, Value: "food"},
		},
		Enabled: true,
	}); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	return e
}

func TestAddTransactionPipeline(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-42.00"),
		Note:      "REWE Supermarkt Berlin",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	// Defaults.
	if res.Tx.ID == "" || res.Tx.Currency != "EUR" || res.Tx.Origin != models.OriginManual {
		t.Errorf("defaults not applied: %+v", res.Tx)
	}
	if !res.Tx.Timestamp.Equal(testClock) {
		t.Errorf("Timestamp = %v, want clock time", res.Tx.Timestamp)
	}

	// Rules ran before commit.
	if res.Tx.CategoryID != "cat-groceries" || !res.Tx.HasTag("food") {
		t.Errorf("rules not applied: %+v", res.Tx)
	}
	if len(res.Tx.RuleIDs) != 1 || res.Tx.RuleIDs[0] != "rule-groceries" {
		t.Errorf("RuleIDs = %v, want [rule-groceries]", res.Tx.RuleIDs)
	}

	// Commit repaired the cached balance.
	acct, err := e.Account("acc-1")
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if !acct.Balance.Equal(decimal.RequireFromString("-42.00")) {
		t.Errorf("balance = %s, want -42.00", acct.Balance)
	}
}

func TestAddTransactionRejections(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if err := e.DeactivateAccount(ctx, "acc-2"); err != nil {
		t.Fatalf("DeactivateAccount() error = %v", err)
	}
	before := e.View()

	tests := []struct {
		name    string
		tx      models.Transaction
		wantErr error
	}{
		{
			name:    "unknown account",
			tx:      models.Transaction{AccountID: "acc-missing", Amount: decimal.NewFromInt(-5)},
			wantErr: ErrNotFound,
		},
		{
			name:    "inactive account",
			tx:      models.Transaction{AccountID: "acc-2", Amount: decimal.NewFromInt(-5)},
			wantErr: ErrAccountInactive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.AddTransaction(ctx, tt.tx); !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddTransaction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := e.View(); len(got.Transactions) != len(before.Transactions) {
		t.Errorf("rejected mutations changed the snapshot: %d -> %d transactions",
			len(before.Transactions), len(got.Transactions))
	}
}

func TestAddTransactionRejectsZeroAmountUnchanged(t *testing.T) {
	e := newTestEngine(t)
	before := e.View()

	_, err := e.AddTransaction(context.Background(), models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.Zero,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("AddTransaction() error = %v, want *ValidationError", err)
	}
	if !validate.HasHard(verr.Violations) {
		t.Errorf("Violations = %v, want hard", verr.Violations)
	}
	if got := e.View(); len(got.Transactions) != len(before.Transactions) {
		t.Error("rejected zero-amount transaction still landed in the snapshot")
	}
}

func TestAddTransactionSurfacesDuplicates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-9.90"),
		Note:      "Netflix",
		Timestamp: testClock.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("first AddTransaction() error = %v", err)
	}

	second, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-9.90"),
		Note:      "Netflix",
		Timestamp: testClock,
	})
	if err != nil {
		t.Fatalf("second AddTransaction() error = %v", err)
	}

	if len(second.Duplicates) != 1 || second.Duplicates[0].Tx.ID != first.Tx.ID {
		t.Fatalf("Duplicates = %+v, want the first transaction", second.Duplicates)
	}
	// Duplicates warn, never block.
	if got := e.View(); len(got.Transactions) != 2 {
		t.Errorf("transactions = %d, want both inserts committed", len(got.Transactions))
	}
}

func TestTransferCommitsBothLegsTogether(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	out, in, err := e.Transfer(ctx, "acc-1", "acc-2", decimal.NewFromInt(50), "vacation fund", time.Time{})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	if out.TransferGroupID == "" || out.TransferGroupID != in.TransferGroupID {
		t.Errorf("legs not linked: out=%q in=%q", out.TransferGroupID, in.TransferGroupID)
	}
	if !out.Amount.Equal(decimal.NewFromInt(-50)) || !in.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("leg amounts = %s / %s, want -50 / 50", out.Amount, in.Amount)
	}
	if out.CounterAccountID != "acc-2" || in.CounterAccountID != "acc-1" {
		t.Errorf("counter accounts = %q / %q", out.CounterAccountID, in.CounterAccountID)
	}

	snap := e.View()
	if vs := validate.Validate(snap); len(vs) != 0 {
		t.Errorf("snapshot invalid after transfer: %v", vs)
	}
	from, _ := e.Account("acc-1")
	to, _ := e.Account("acc-2")
	if !from.Balance.Equal(decimal.NewFromInt(-50)) || !to.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balances = %s / %s, want -50 / 50", from.Balance, to.Balance)
	}
}

func TestTransferRejections(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if err := e.DeactivateAccount(ctx, "acc-2"); err != nil {
		t.Fatalf("DeactivateAccount() error = %v", err)
	}
	if _, err := e.CreateAccount(ctx, models.Account{
		ID: "acc-usd", Name: "Travel", Type: models.AccountChecking, Currency: "USD",
	}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		amount   decimal.Decimal
		wantErr  error
	}{
		{name: "inactive destination", from: "acc-1", to: "acc-2", amount: decimal.NewFromInt(10), wantErr: ErrAccountInactive},
		{name: "unknown destination", from: "acc-1", to: "acc-nope", amount: decimal.NewFromInt(10), wantErr: ErrNotFound},
		{name: "different currencies", from: "acc-1", to: "acc-usd", amount: decimal.NewFromInt(10), wantErr: ErrCurrencyMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := e.Transfer(ctx, tt.from, tt.to, tt.amount, "", time.Time{}); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Transfer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("non-positive amount", func(t *testing.T) {
		if _, _, err := e.Transfer(ctx, "acc-1", "acc-2", decimal.NewFromInt(-10), "", time.Time{}); err == nil {
			t.Fatal("Transfer() with negative amount succeeded, want error")
		}
	})
	t.Run("same account", func(t *testing.T) {
		if _, _, err := e.Transfer(ctx, "acc-1", "acc-1", decimal.NewFromInt(10), "", time.Time{}); err == nil {
			t.Fatal("Transfer() to the same account succeeded, want error")
		}
	})

	if got := e.View(); len(got.Transactions) != 0 {
		t.Errorf("rejected transfers left %d transactions behind", len(got.Transactions))
	}
}

func TestVoidTransferVoidsBothLegs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	out, in, err := e.Transfer(ctx, "acc-1", "acc-2", decimal.NewFromInt(50), "", time.Time{})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if _, err := e.VoidTransaction(ctx, in.ID); err != nil {
		t.Fatalf("VoidTransaction() error = %v", err)
	}

	snap := e.View()
	for _, id := range []string{out.ID, in.ID} {
		tx := snap.TransactionByID(id)
		if tx == nil || !tx.Voided {
			t.Errorf("leg %s not voided", id)
		}
	}
	from, _ := e.Account("acc-1")
	to, _ := e.Account("acc-2")
	if !from.Balance.IsZero() || !to.Balance.IsZero() {
		t.Errorf("balances after void = %s / %s, want 0 / 0", from.Balance, to.Balance)
	}
}

func TestSplitTransaction(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-10.01"),
		Note:      "shared dinner",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	fractions := []decimal.Decimal{
		decimal.RequireFromString("0.5"),
		decimal.RequireFromString("0.3"),
		decimal.RequireFromString("0.2"),
	}
	legs, err := e.SplitTransaction(ctx, res.Tx.ID, fractions)
	if err != nil {
		t.Fatalf("SplitTransaction() error = %v", err)
	}
	if len(legs) != 3 {
		t.Fatalf("got %d legs, want 3", len(legs))
	}

	sum := decimal.Zero
	for _, leg := range legs {
		sum = sum.Add(leg.Amount)
		if leg.Origin != models.OriginSplit || leg.SplitGroupID == "" {
			t.Errorf("leg %s = origin %q group %q, want split origin and group", leg.ID, leg.Origin, leg.SplitGroupID)
		}
	}
	if !sum.Equal(res.Tx.Amount) {
		t.Errorf("legs sum to %s, want exactly %s", sum, res.Tx.Amount)
	}

	snap := e.View()
	parent := snap.TransactionByID(res.Tx.ID)
	if parent == nil || !parent.Voided || parent.SplitGroupID != legs[0].SplitGroupID {
		t.Errorf("parent after split = %+v, want voided in the split group", parent)
	}
	acct, _ := e.Account("acc-1")
	if !acct.Balance.Equal(res.Tx.Amount) {
		t.Errorf("balance = %s, want unchanged %s", acct.Balance, res.Tx.Amount)
	}
}

func TestSplitTransactionRejectsBadFractions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-10.00"),
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	bad := []decimal.Decimal{decimal.RequireFromString("0.5")}
	if _, err := e.SplitTransaction(ctx, res.Tx.ID, bad); err == nil {
		t.Fatal("SplitTransaction() with a single fraction succeeded, want error")
	}
	if tx := e.View().TransactionByID(res.Tx.ID); tx.Voided {
		t.Error("failed split still voided the parent")
	}
}

func TestAddTransactionSplitRule(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	half := decimal.RequireFromString("0.5")
	if _, err := e.CreateRule(ctx, models.Rule{
		ID:   "rule-split",
		Name: "halve shared costs",
		Conditions: []models.Condition{
			{Field: models.FieldNote, Op: models.OpContains, Value: "shared"},
		},
		Actions: []models.Action{
			{Kind: models.ActionSplit, Fractions: []decimal.Decimal{half, half}},
		},
		Enabled: true,
	}); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	res, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-30.00"),
		Note:      "shared groceries",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	if len(res.SplitLegs) != 2 {
		t.Fatalf("SplitLegs = %d, want 2", len(res.SplitLegs))
	}
	if !res.Tx.Voided {
		t.Error("split parent not voided")
	}
	for _, leg := range res.SplitLegs {
		if !leg.Amount.Equal(decimal.RequireFromString("-15.00")) {
			t.Errorf("leg amount = %s, want -15.00", leg.Amount)
		}
	}
}

func TestReparentCategoryRejectsCycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.CreateCategory(ctx, models.Category{ID: "cat-food", Name: "Food", ParentID: "cat-groceries"}); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	err := e.ReparentCategory(ctx, "cat-groceries", "cat-food")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ReparentCategory() error = %v, want *ValidationError", err)
	}

	if cat := e.View().CategoryByID("cat-groceries"); cat.ParentID != "" {
		t.Errorf("rejected reparent stuck: ParentID = %q", cat.ParentID)
	}
}

func TestDeleteCategoryReferenced(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// The seeded rule targets cat-groceries.
	if err := e.DeleteCategory(ctx, "cat-groceries"); !errors.Is(err, ErrReferenced) {
		t.Fatalf("DeleteCategory() error = %v, want ErrReferenced", err)
	}

	if err := e.DeleteRule(ctx, "rule-groceries"); err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}
	if err := e.DeleteCategory(ctx, "cat-groceries"); err != nil {
		t.Fatalf("DeleteCategory() after removing the reference error = %v", err)
	}
}

func TestDeleteBudgetClearsBackReference(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b, err := e.CreateBudget(ctx, models.Budget{
		CategoryID: "cat-groceries",
		Period:     models.PeriodMonthly,
		Limit:      decimal.NewFromInt(300),
		Rollover:   models.RolloverNone,
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	if cat := e.View().CategoryByID("cat-groceries"); cat.BudgetID != b.ID {
		t.Fatalf("category BudgetID = %q, want %q", cat.BudgetID, b.ID)
	}

	if err := e.DeleteBudget(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBudget() error = %v", err)
	}
	if cat := e.View().CategoryByID("cat-groceries"); cat.BudgetID != "" {
		t.Errorf("category BudgetID = %q after delete, want empty", cat.BudgetID)
	}
}

func TestReorderRules(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.CreateRule(ctx, models.Rule{
		ID:         "rule-2",
		Name:       "second",
		Conditions: []models.Condition{{Field: models.FieldNote, Op: models.OpContains, Value: "x"}},
		Actions:    []models.Action{{Kind: models.ActionAddTag, Value: "x"}},
		Enabled:    true,
	}); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	if err := e.ReorderRules(ctx, []string{"rule-2", "rule-groceries"}); err != nil {
		t.Fatalf("ReorderRules() error = %v", err)
	}
	snap := e.View()
	if snap.RuleByID("rule-2").Priority != 1 || snap.RuleByID("rule-groceries").Priority != 2 {
		t.Errorf("priorities = %d / %d, want 1 / 2",
			snap.RuleByID("rule-2").Priority, snap.RuleByID("rule-groceries").Priority)
	}

	if err := e.ReorderRules(ctx, []string{"rule-2"}); err == nil {
		t.Error("ReorderRules() with a missing id succeeded, want error")
	}
}

func TestPreviewRuleDoesNotCommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-12.00"),
		Note:      "shell station",
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	r, err := e.CreateRule(ctx, models.Rule{
		Name:       "fuel",
		Conditions: []models.Condition{{Field: models.FieldNote, Op: models.OpContains, Value: "shell"}},
		Actions:    []models.Action{{Kind: models.ActionAddTag, Value: "fuel"}},
		Enabled:    false,
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	previews, err := e.PreviewRule(ctx, r.ID, 0)
	if err != nil {
		t.Fatalf("PreviewRule() error = %v", err)
	}
	if len(previews) != 1 {
		t.Fatalf("previews = %d, want 1", len(previews))
	}
	if !previews[0].After.HasTag("fuel") || previews[0].Before.HasTag("fuel") {
		t.Errorf("preview = %+v, want tag only on After", previews[0])
	}

	for _, tx := range e.View().Transactions {
		if tx.HasTag("fuel") {
			t.Error("preview mutated the committed snapshot")
		}
	}
}

// captureGateway records the first account's name carried by each save so a
// test can observe the order in which commits reach durable storage. Setting
// holdOn makes the save carrying that name block until held is closed,
// forcing two background saves to overlap.
type captureGateway struct {
	mu      sync.Mutex
	names   []string
	holdOn  string
	held    chan struct{}
	entered chan struct{}
}

func (g *captureGateway) Save(ctx context.Context, snap *models.Snapshot) error {
	name := ""
	if len(snap.Accounts) > 0 {
		name = snap.Accounts[0].Name
	}
	g.mu.Lock()
	hold := g.holdOn != "" && name == g.holdOn
	if hold {
		g.holdOn = ""
	}
	g.mu.Unlock()
	if hold {
		g.entered <- struct{}{}
		<-g.held
	}
	g.mu.Lock()
	g.names = append(g.names, name)
	g.mu.Unlock()
	return nil
}

func (g *captureGateway) Load(ctx context.Context) (migrate.RawSnapshot, error) {
	return migrate.RawSnapshot{}, persist.ErrNoSnapshot
}

func (g *captureGateway) Close() error { return nil }

func TestBackgroundSavesNeverRegress(t *testing.T) {
	ctx := context.Background()
	gw := &captureGateway{
		held:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	e, _, err := Open(ctx, gw, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := e.CreateAccount(ctx, models.Account{
		ID: "acc-1", Name: "Checking", Type: models.AccountChecking, Currency: "EUR",
	}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	// Stall the save of the first rename until the second rename's save has
	// had every chance to complete; the stalled older save must not land on
	// top of the newer one.
	gw.mu.Lock()
	gw.holdOn = "Old"
	gw.mu.Unlock()
	if err := e.RenameAccount(ctx, "acc-1", "Old"); err != nil {
		t.Fatalf("RenameAccount(Old) error = %v", err)
	}
	<-gw.entered
	if err := e.RenameAccount(ctx, "acc-1", "New"); err != nil {
		t.Fatalf("RenameAccount(New) error = %v", err)
	}
	close(gw.held)
	e.saveWG.Wait()

	gw.mu.Lock()
	names := append([]string(nil), gw.names...)
	gw.mu.Unlock()
	if len(names) == 0 || names[len(names)-1] != "New" {
		t.Fatalf("durable snapshot regressed: save order %v, want New last", names)
	}

	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestReopenRestoresState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")

	gw, err := persist.NewFile(path, "")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	e, _, err := Open(ctx, gw, Options{SyncSave: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := e.CreateAccount(ctx, models.Account{ID: "acc-1", Name: "Checking", Type: models.AccountChecking, Currency: "EUR"}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if _, err := e.AddTransaction(ctx, models.Transaction{
		AccountID: "acc-1",
		Amount:    decimal.RequireFromString("-7.50"),
		Note:      "kiosk",
		Timestamp: testClock,
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	want := e.View()
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	gw2, err := persist.NewFile(path, "")
	if err != nil {
		t.Fatalf("reopen NewFile() error = %v", err)
	}
	e2, violations, err := Open(ctx, gw2, Options{SyncSave: true})
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer e2.Close(ctx)
	if len(violations) != 0 {
		t.Fatalf("reopen violations = %v, want none", violations)
	}

	opt := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(want, e2.View(), opt); diff != "" {
		t.Errorf("state lost across reopen (-want +got):\n%s", diff)
	}
}
