package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moneta-app/engine/internal/migrate"
	"github.com/moneta-app/engine/internal/models"
)

// Ensure FileGateway implements Gateway
var _ Gateway = (*FileGateway)(nil)

// FileGateway stores the snapshot as a single file. Saves go through a
// temporary file followed by a rename, so a crash mid-save leaves the
// previous snapshot untouched.
type FileGateway struct {
	path       string
	passphrase string
}

// NewFile creates a file gateway at the given path, creating parent
// directories as needed. An empty passphrase disables encryption.
func NewFile(path, passphrase string) (*FileGateway, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileGateway{path: path, passphrase: passphrase}, nil
}

// Save atomically replaces the stored snapshot.
func (g *FileGateway) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(snap, g.passphrase)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(g.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), g.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. Returns ErrNoSnapshot when the file does
// not exist and ErrCannotDecrypt when the envelope cannot be opened.
func (g *FileGateway) Load(ctx context.Context) (migrate.RawSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return migrate.RawSnapshot{}, err
	}
	data, err := os.ReadFile(g.path)
	if os.IsNotExist(err) {
		return migrate.RawSnapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return migrate.RawSnapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decode(data, g.passphrase)
}

// Close is a no-op for the file gateway.
func (g *FileGateway) Close() error { return nil }
