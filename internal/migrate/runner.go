// Package migrate upgrades persisted snapshots across schema versions.
//
// Persisted snapshots are opaque JSON documents until they have been brought
// up to the current schema version; the runner applies single-step upgraders
// strictly in sequence and refuses to guess when faced with a newer version
// or a gap in the upgrade chain.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/moneta-app/engine/internal/models"
)

// ErrUnsupportedSchema marks a snapshot written by a newer app version.
// There is no lossy downgrade path; the caller should offer
// restore-from-backup or reset.
var ErrUnsupportedSchema = errors.New("unsupported schema version")

// ErrMissingUpgrader marks a gap in the upgrade chain. This is a build
// configuration error, never a user-data problem.
var ErrMissingUpgrader = errors.New("missing migration step")

// RawSnapshot is a persisted snapshot before migration: its schema version
// plus the still-opaque document.
type RawSnapshot struct {
	SchemaVersion int
	Doc           map[string]any
}

// ParseRaw decodes serialized snapshot bytes into a RawSnapshot.
func ParseRaw(data []byte) (RawSnapshot, error) {
	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return RawSnapshot{}, fmt.Errorf("failed to parse snapshot document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return RawSnapshot{}, fmt.Errorf("failed to parse snapshot document: %w", err)
	}
	return RawSnapshot{SchemaVersion: probe.SchemaVersion, Doc: doc}, nil
}

// Upgrader transforms a document from schema version From to From+1. The
// transform must be pure and safe to re-run on a document that was already
// partially upgraded but not yet persisted with the new version number.
type Upgrader struct {
	From        int
	Description string
	Up          func(doc map[string]any) (map[string]any, error)
}

// Runner applies upgraders sequentially up to the current schema version.
type Runner struct {
	current   int
	upgraders map[int]Upgrader
}

// NewRunner returns a runner loaded with the full upgrade history up to
// models.SchemaVersion.
func NewRunner() *Runner {
	r := &Runner{current: models.SchemaVersion, upgraders: make(map[int]Upgrader)}
	for _, u := range history() {
		r.upgraders[u.From] = u
	}
	return r
}

// Current returns the schema version the runner migrates to.
func (r *Runner) Current() int { return r.current }

// Run upgrades the raw snapshot to the current schema version and decodes it.
// The input is not mutated; running twice on the same raw snapshot yields the
// same result.
func (r *Runner) Run(raw RawSnapshot) (*models.Snapshot, error) {
	v := raw.SchemaVersion
	if v <= 0 {
		return nil, fmt.Errorf("%w: snapshot has no schema version", ErrUnsupportedSchema)
	}
	if v > r.current {
		return nil, fmt.Errorf("%w: snapshot version %d is newer than supported version %d",
			ErrUnsupportedSchema, v, r.current)
	}

	doc, err := deepCopy(raw.Doc)
	if err != nil {
		return nil, fmt.Errorf("failed to copy snapshot document: %w", err)
	}

	for ; v < r.current; v++ {
		up, ok := r.upgraders[v]
		if !ok {
			return nil, fmt.Errorf("%w: no upgrader from version %d", ErrMissingUpgrader, v)
		}
		doc, err = up.Up(doc)
		if err != nil {
			return nil, fmt.Errorf("migration from version %d (%s) failed: %w", up.From, up.Description, err)
		}
	}

	doc["schema_version"] = r.current
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode migrated document: %w", err)
	}
	snap := models.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to decode migrated snapshot: %w", err)
	}
	snap.SchemaVersion = r.current
	snap.Sort()
	return snap, nil
}

func deepCopy(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
