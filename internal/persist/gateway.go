// Package persist saves and loads versioned snapshots durably.
//
// Two backends are provided: a single-file gateway (write-new-then-swap, so
// an interrupted save never corrupts the previous snapshot) and a SQLite
// gateway using the pure Go driver. Both optionally wrap the serialized
// document in an authenticated encryption envelope when a passphrase is
// configured.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/moneta-app/engine/internal/migrate"
	"github.com/moneta-app/engine/internal/models"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// ErrCannotDecrypt is returned by Load when the stored snapshot is encrypted
// and the configured passphrase is missing or wrong, or the ciphertext fails
// authentication. It is never silently turned into an empty snapshot.
var ErrCannotDecrypt = errors.New("cannot decrypt snapshot")

// Gateway persists snapshots. Save fully replaces the previous durable
// snapshot or leaves it intact on failure; Load returns the raw, unmigrated
// document for the migration runner.
type Gateway interface {
	Save(ctx context.Context, snap *models.Snapshot) error
	Load(ctx context.Context) (migrate.RawSnapshot, error)
	Close() error
}

// encode serializes a snapshot deterministically (collections sorted by ID,
// schema_version first) and seals it when a passphrase is set.
func encode(snap *models.Snapshot, passphrase string) ([]byte, error) {
	out := snap.Clone()
	out.SchemaVersion = models.SchemaVersion
	out.Sort()
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	if passphrase == "" {
		return data, nil
	}
	return seal(data, passphrase)
}

// decode parses stored bytes into a raw snapshot, opening the encryption
// envelope first when present.
func decode(data []byte, passphrase string) (migrate.RawSnapshot, error) {
	plain, err := openSealed(data, passphrase)
	if err != nil {
		return migrate.RawSnapshot{}, err
	}
	raw, err := migrate.ParseRaw(plain)
	if err != nil {
		return migrate.RawSnapshot{}, fmt.Errorf("stored snapshot is corrupt: %w", err)
	}
	return raw, nil
}
