package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/moneta-app/engine/internal/migrate"
	"github.com/moneta-app/engine/internal/models"
)

func sampleSnapshot() *models.Snapshot {
	s := models.NewSnapshot()
	s.Accounts = []models.Account{
		{ID: "acc-1", Name: "Checking", Type: models.AccountChecking, Currency: "EUR", Balance: decimal.RequireFromString("-12.50"), Active: true},
	}
	s.Categories = []models.Category{
		{ID: "cat-1", Name: "Groceries"},
	}
	s.Transactions = []models.Transaction{
		{
			ID: "tx-1", AccountID: "acc-1", Amount: decimal.RequireFromString("-12.50"), Currency: "EUR",
			CategoryID: "cat-1", Timestamp: time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC),
			Note: "market", Tags: []string{"food"}, Origin: models.OriginManual,
		},
	}
	s.Rules = []models.Rule{
		{
			ID: "rule-1", Name: "groceries",
			Conditions: []models.Condition{{Field: models.FieldNote, Op: models.OpContains, Value: "market"}},
			Actions:    []models.Action{{Kind: models.ActionSetCategory, Value: "cat-1"}},
			Priority:   1, Enabled: true,
		},
	}
	return s
}

var cmpOpts = cmp.Options{
	cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
}

// roundTrip saves and loads through the gateway and decodes the result.
func roundTrip(t *testing.T, gw Gateway, snap *models.Snapshot) *models.Snapshot {
	t.Helper()
	ctx := context.Background()
	if err := gw.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	raw, err := gw.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := migrate.NewRunner().Run(raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return got
}

func TestFileGatewayRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
	}{
		{name: "plain"},
		{name: "encrypted", passphrase: "correct horse battery staple"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := NewFile(filepath.Join(t.TempDir(), "snapshot.json"), tt.passphrase)
			if err != nil {
				t.Fatalf("NewFile() error = %v", err)
			}
			defer gw.Close()

			want := sampleSnapshot()
			want.Sort()
			got := roundTrip(t, gw, want)
			if diff := cmp.Diff(want, got, cmpOpts); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileGatewayLoadAbsent(t *testing.T) {
	gw, err := NewFile(filepath.Join(t.TempDir(), "snapshot.json"), "")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if _, err := gw.Load(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load() error = %v, want ErrNoSnapshot", err)
	}
}

func TestFileGatewayWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")

	gw, err := NewFile(path, "right")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if err := gw.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tests := []struct {
		name       string
		passphrase string
	}{
		{name: "wrong passphrase", passphrase: "wrong"},
		{name: "no passphrase configured", passphrase: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad, err := NewFile(path, tt.passphrase)
			if err != nil {
				t.Fatalf("NewFile() error = %v", err)
			}
			_, err = bad.Load(ctx)
			if !errors.Is(err, ErrCannotDecrypt) {
				t.Fatalf("Load() error = %v, want ErrCannotDecrypt", err)
			}
		})
	}
}

func TestFileGatewayFailedSaveKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gw, err := NewFile(filepath.Join(dir, "snapshot.json"), "")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}

	want := sampleSnapshot()
	want.Sort()
	if err := gw.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Point the gateway at an unwritable location; the save must fail
	// without touching the previous file.
	goodPath := gw.path
	gw.path = filepath.Join(dir, "missing", "snapshot.json")
	broken := sampleSnapshot()
	broken.Accounts[0].Name = "should never land"
	if err := gw.Save(ctx, broken); err == nil {
		t.Fatal("Save() to unwritable path succeeded, want error")
	}

	gw.path = goodPath
	got := roundTrip(t, gw, want)
	if diff := cmp.Diff(want, got, cmpOpts); diff != "" {
		t.Errorf("previous snapshot damaged (-want +got):\n%s", diff)
	}
}

func TestSQLiteGatewayRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
	}{
		{name: "plain"},
		{name: "encrypted", passphrase: "hunter2hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := NewSQLite(filepath.Join(t.TempDir(), "moneta.db"), tt.passphrase)
			if err != nil {
				t.Fatalf("NewSQLite() error = %v", err)
			}
			defer gw.Close()

			want := sampleSnapshot()
			want.Sort()
			got := roundTrip(t, gw, want)
			if diff := cmp.Diff(want, got, cmpOpts); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSQLiteGatewayReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	gw, err := NewSQLite(filepath.Join(t.TempDir(), "moneta.db"), "")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer gw.Close()

	first := sampleSnapshot()
	if err := gw.Save(ctx, first); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	second := sampleSnapshot()
	second.Accounts[0].Name = "Renamed"
	second.Sort()
	if err := gw.Save(ctx, second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	raw, err := gw.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := migrate.NewRunner().Run(raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Accounts[0].Name != "Renamed" {
		t.Errorf("account name = %q, want Renamed", got.Accounts[0].Name)
	}

	var n int
	if err := gw.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if n != 1 {
		t.Errorf("stored snapshots = %d, want 1", n)
	}
}

func TestSQLiteGatewayLoadAbsent(t *testing.T) {
	gw, err := NewSQLite(filepath.Join(t.TempDir(), "moneta.db"), "")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer gw.Close()
	if _, err := gw.Load(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load() error = %v, want ErrNoSnapshot", err)
	}
}
