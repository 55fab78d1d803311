// ledgerctl is a maintenance CLI for Moneta engine snapshots: inspect,
// validate, migrate, and export the durable state outside the app.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"github.com/moneta-app/engine/internal/persist"
	"github.com/moneta-app/engine/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// snapshotFlags are the storage flags shared by every subcommand.
type snapshotFlags struct {
	path       string
	backend    string
	passphrase string
}

func (s *snapshotFlags) register(f *flag.FlagSet) {
	f.StringVar(&s.path, "path", getEnv("SNAPSHOT_PATH", "./data/snapshot.json"), "snapshot file or database path")
	f.StringVar(&s.backend, "backend", getEnv("SNAPSHOT_BACKEND", "file"), "storage backend: file or sqlite")
	s.passphrase = os.Getenv("SNAPSHOT_PASSPHRASE")
}

func (s *snapshotFlags) gateway() (persist.Gateway, error) {
	switch s.backend {
	case "file":
		return persist.NewFile(s.path, s.passphrase)
	case "sqlite":
		return persist.NewSQLite(s.path, s.passphrase)
	default:
		return nil, fmt.Errorf("unknown backend %q (want file or sqlite)", s.backend)
	}
}

func main() {
	// Missing .env is fine; the flags have defaults.
	_ = godotenv.Load()
	logging.Setup()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(&infoCmd{}, "snapshot")
	commander.Register(&validateCmd{}, "snapshot")
	commander.Register(&migrateCmd{}, "snapshot")
	commander.Register(&exportCmd{}, "snapshot")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
