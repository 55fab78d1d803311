package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/moneta-app/engine/internal/migrate"
	"github.com/moneta-app/engine/internal/models"
)

// Ensure SQLiteGateway implements Gateway
var _ Gateway = (*SQLiteGateway)(nil)

// SQLiteGateway stores snapshots in a SQLite database. The swap of old
// snapshot for new happens inside one transaction, so readers either see the
// previous snapshot or the new one, never a partial write.
type SQLiteGateway struct {
	db         *sql.DB
	passphrase string
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    schema_version INTEGER NOT NULL,
    payload BLOB NOT NULL,
    saved_at INTEGER NOT NULL
);
`

// NewSQLite creates a SQLite gateway at the given database path, creating
// parent directories and the schema as needed. An empty passphrase disables
// encryption of the payload blob.
func NewSQLite(dbPath, passphrase string) (*SQLiteGateway, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return &SQLiteGateway{db: db, passphrase: passphrase}, nil
}

// Save replaces the stored snapshot in a single transaction.
func (g *SQLiteGateway) Save(ctx context.Context, snap *models.Snapshot) error {
	data, err := encode(snap, g.passphrase)
	if err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (schema_version, payload, saved_at) VALUES (?, ?, ?)",
		models.SchemaVersion, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read snapshot id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE id != ?", id); err != nil {
		return fmt.Errorf("failed to drop previous snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. Returns ErrNoSnapshot when the table is
// empty and ErrCannotDecrypt when the envelope cannot be opened.
func (g *SQLiteGateway) Load(ctx context.Context) (migrate.RawSnapshot, error) {
	var payload []byte
	err := g.db.QueryRowContext(ctx,
		"SELECT payload FROM snapshots ORDER BY id DESC LIMIT 1",
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return migrate.RawSnapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return migrate.RawSnapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decode(payload, g.passphrase)
}

// Close closes the database connection.
func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}
