// Package store owns the in-memory entity collections and runs the mutation
// pipeline: every write is validated, scored for duplicates, and passed
// through the automation rules before it commits, and every commit is a
// fully-validated point that the persistence gateway can serialize.
//
// The Engine is the lifecycle-scoped state container for the whole app:
// opened once at start (load, migrate, repair, hydrate), flushed and closed
// at exit. Mutations are serialized in arrival order; a mutation completes
// its whole pipeline before the next one starts.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/moneta-app/engine/internal/dedupe"
	"github.com/moneta-app/engine/internal/metrics"
	"github.com/moneta-app/engine/internal/migrate"
	"github.com/moneta-app/engine/internal/models"
	"github.com/moneta-app/engine/internal/persist"
	"github.com/moneta-app/engine/internal/rules"
	"github.com/moneta-app/engine/internal/validate"
)

// Options configures an Engine.
type Options struct {
	// Dedupe tunes the duplicate detector. Zero value means DefaultConfig.
	Dedupe dedupe.Config

	// SyncSave makes commits save to the gateway before returning instead
	// of in the background. Used by the CLI and tests.
	SyncSave bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine owns the canonical snapshot and serializes all mutations to it.
type Engine struct {
	mu     sync.Mutex
	snap   *models.Snapshot
	gw     persist.Gateway
	det    *dedupe.Detector
	rules  *rules.Engine
	now    func() time.Time
	sync   bool
	saveWG sync.WaitGroup

	// saveMu serializes gateway writes. commitGen is bumped per commit under
	// mu; savedGen tracks the newest generation handed to the gateway, under
	// saveMu. A save whose generation is not newer than savedGen is stale and
	// dropped, so the durable snapshot never regresses to an older commit.
	saveMu    sync.Mutex
	commitGen uint64
	savedGen  uint64
}

// Open loads the durable snapshot through the gateway, migrates it to the
// current schema, repairs what can be repaired deterministically, and
// hydrates the engine. The returned violations are whatever repair could not
// fix; hard entries mean the stored data needs user attention, but the
// engine still opens so the app can show it.
func Open(ctx context.Context, gw persist.Gateway, opts Options) (*Engine, []validate.Violation, error) {
	raw, err := gw.Load(ctx)
	var snap *models.Snapshot
	switch {
	case errors.Is(err, persist.ErrNoSnapshot):
		slog.Info("No stored snapshot, starting fresh")
		snap = models.NewSnapshot()
	case err != nil:
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	default:
		snap, err = migrate.NewRunner().Run(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to migrate snapshot: %w", err)
		}
		if raw.SchemaVersion < models.SchemaVersion {
			slog.Info("Snapshot migrated",
				"from_version", raw.SchemaVersion,
				"to_version", models.SchemaVersion,
			)
		}
	}

	snap, violations := validate.Repair(snap)
	if len(violations) > 0 {
		slog.Warn("Snapshot has violations after repair", "summary", validate.Summary(violations))
	}

	cfg := opts.Dedupe
	if cfg == (dedupe.Config{}) {
		cfg = dedupe.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		snap:  snap,
		gw:    gw,
		det:   dedupe.New(cfg),
		rules: rules.New(),
		now:   now,
		sync:  opts.SyncSave,
	}

	// Persist the migrated/repaired state so the stored document is only
	// marked upgraded once it is durably written.
	if err := gw.Save(ctx, snap); err != nil {
		metrics.SnapshotSaveFailures.Inc()
		return nil, nil, fmt.Errorf("failed to persist migrated snapshot: %w", err)
	}
	metrics.SnapshotSaves.Inc()

	return e, violations, nil
}

// Close waits for in-flight saves and flushes a final snapshot.
func (e *Engine) Close(ctx context.Context) error {
	e.saveWG.Wait()
	e.mu.Lock()
	snap := e.snap
	e.mu.Unlock()
	if err := e.gw.Save(ctx, snap); err != nil {
		metrics.SnapshotSaveFailures.Inc()
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	metrics.SnapshotSaves.Inc()
	return e.gw.Close()
}

// View returns a deep copy of the current snapshot for read-only
// collaborators (exporters, notification schedulers). The copy is fully
// migrated and validated; writing to it affects nothing.
func (e *Engine) View() *models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone()
}

// commitLocked runs mutate on a working copy, repairs and validates it, and
// swaps it in when no hard violation remains. Soft violations are returned
// for the caller to surface. Must be called with e.mu held.
func (e *Engine) commitLocked(ctx context.Context, mutate func(next *models.Snapshot) error) ([]validate.Violation, error) {
	next := e.snap.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	repaired, violations := validate.Repair(next)
	if validate.HasHard(violations) {
		metrics.MutationsRejected.Inc()
		return nil, &ValidationError{Violations: validate.Filter(violations, validate.Hard)}
	}

	e.snap = repaired
	metrics.MutationsCommitted.Inc()
	e.persistCommitted(ctx)
	return validate.Filter(violations, validate.Soft), nil
}

// commit is commitLocked behind the mutation lock.
func (e *Engine) commit(ctx context.Context, mutate func(next *models.Snapshot) error) ([]validate.Violation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked(ctx, mutate)
}

// persistCommitted saves the snapshot swapped in by the current commit.
// Commits never mutate a published snapshot, only replace it, so the pointer
// can be serialized after the lock is released. Each commit is tagged with a
// generation so overlapping background saves cannot land out of order.
func (e *Engine) persistCommitted(ctx context.Context) {
	e.commitGen++
	gen := e.commitGen
	snap := e.snap
	if e.sync {
		e.save(ctx, snap, gen)
		return
	}
	e.saveWG.Add(1)
	go func() {
		defer e.saveWG.Done()
		// The save must outlive the request that triggered it.
		e.save(context.WithoutCancel(ctx), snap, gen)
	}()
}

// save hands one commit's snapshot to the gateway. Writes are serialized and
// a commit older than the newest one already written is dropped: without the
// generation check, a slow save of commit N could overwrite the durable copy
// of commit N+1.
func (e *Engine) save(ctx context.Context, snap *models.Snapshot, gen uint64) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if gen <= e.savedGen {
		return
	}
	e.savedGen = gen
	if err := e.gw.Save(ctx, snap); err != nil {
		// The gateway guarantees the previous durable snapshot is intact.
		metrics.SnapshotSaveFailures.Inc()
		slog.Error("Snapshot save failed", "error", err)
		return
	}
	metrics.SnapshotSaves.Inc()
}
