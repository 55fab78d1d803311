package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/moneta-app/engine/internal/migrate"
	"github.com/moneta-app/engine/internal/models"
	"github.com/moneta-app/engine/internal/persist"
	"github.com/moneta-app/engine/internal/validate"
)

// loadMigrated loads the stored snapshot and upgrades it in memory.
func loadMigrated(ctx context.Context, gw persist.Gateway) (*models.Snapshot, error) {
	raw, err := gw.Load(ctx)
	if err != nil {
		return nil, err
	}
	return migrate.NewRunner().Run(raw)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

// infoCmd prints the stored schema version and entity counts.
type infoCmd struct {
	snapshotFlags
}

func (*infoCmd) Name() string     { return "info" }
func (*infoCmd) Synopsis() string { return "print snapshot version and entity counts" }
func (*infoCmd) Usage() string {
	return `ledgerctl info [-path <snapshot>] [-backend file|sqlite]

  Prints the stored schema version and per-collection entity counts without
  modifying anything.
`
}
func (c *infoCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *infoCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	gw, err := c.gateway()
	if err != nil {
		return fail(err)
	}
	defer gw.Close()

	raw, err := gw.Load(ctx)
	if errors.Is(err, persist.ErrNoSnapshot) {
		fmt.Println("no snapshot stored")
		return subcommands.ExitSuccess
	}
	if err != nil {
		return fail(err)
	}

	fmt.Printf("schema version: %d (current: %d)\n", raw.SchemaVersion, models.SchemaVersion)
	for _, key := range []string{"accounts", "transactions", "categories", "budgets", "goals", "rules"} {
		n := 0
		if list, ok := raw.Doc[key].([]any); ok {
			n = len(list)
		}
		fmt.Printf("%-13s %d\n", key, n)
	}
	return subcommands.ExitSuccess
}

// validateCmd migrates in memory and reports violations.
type validateCmd struct {
	snapshotFlags
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check snapshot integrity" }
func (*validateCmd) Usage() string {
	return `ledgerctl validate [-path <snapshot>] [-backend file|sqlite]

  Migrates the snapshot in memory and prints every integrity violation.
  Exits non-zero when hard violations are present. Nothing is written.
`
}
func (c *validateCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *validateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	gw, err := c.gateway()
	if err != nil {
		return fail(err)
	}
	defer gw.Close()

	snap, err := loadMigrated(ctx, gw)
	if err != nil {
		return fail(err)
	}

	violations := validate.Validate(snap)
	if len(violations) == 0 {
		fmt.Println("ok: no violations")
		return subcommands.ExitSuccess
	}
	for _, v := range violations {
		fmt.Printf("%-4s %-18s %-36s %s\n", v.Severity, v.Code, v.EntityID, v.Message)
	}
	if validate.HasHard(violations) {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// migrateCmd upgrades the stored snapshot durably.
type migrateCmd struct {
	snapshotFlags
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "upgrade the stored snapshot to the current schema" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate [-path <snapshot>] [-backend file|sqlite]

  Upgrades the stored snapshot to the current schema version and rewrites it
  durably. A snapshot from a newer app version is refused.
`
}
func (c *migrateCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	gw, err := c.gateway()
	if err != nil {
		return fail(err)
	}
	defer gw.Close()

	raw, err := gw.Load(ctx)
	if err != nil {
		return fail(err)
	}
	if raw.SchemaVersion == models.SchemaVersion {
		fmt.Println("already at current schema version")
		return subcommands.ExitSuccess
	}

	snap, err := migrate.NewRunner().Run(raw)
	if err != nil {
		return fail(err)
	}
	if err := gw.Save(ctx, snap); err != nil {
		return fail(err)
	}
	fmt.Printf("migrated from version %d to %d\n", raw.SchemaVersion, models.SchemaVersion)
	return subcommands.ExitSuccess
}

// exportCmd writes a validated JSON view for external consumers.
type exportCmd struct {
	snapshotFlags
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a migrated, validated JSON view" }
func (*exportCmd) Usage() string {
	return `ledgerctl export [-path <snapshot>] [-backend file|sqlite] [-o <file>]

  Migrates and repairs the snapshot in memory and writes the resulting JSON
  document to stdout or -o. The stored snapshot is not modified.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.out, "o", "", "output file (default stdout)")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	gw, err := c.gateway()
	if err != nil {
		return fail(err)
	}
	defer gw.Close()

	snap, err := loadMigrated(ctx, gw)
	if err != nil {
		return fail(err)
	}
	snap, violations := validate.Repair(snap)
	if validate.HasHard(violations) {
		return fail(fmt.Errorf("snapshot has hard violations, refusing to export: %s", validate.Summary(violations)))
	}
	snap.Sort()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fail(err)
	}
	data = append(data, '\n')
	if c.out == "" {
		os.Stdout.Write(data)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(c.out, data, 0600); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
