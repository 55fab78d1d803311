// Package metrics exposes engine counters on the default prometheus
// registry. The embedding app decides whether and where to serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsCommitted counts store mutations that passed validation.
	MutationsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneta_mutations_committed_total",
		Help: "Store mutations committed after validation.",
	})

	// MutationsRejected counts store mutations rejected on hard violations.
	MutationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneta_mutations_rejected_total",
		Help: "Store mutations rejected by the integrity validator.",
	})

	// RulesApplied counts automation rules that matched a transaction.
	RulesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneta_rules_applied_total",
		Help: "Automation rules applied to transactions.",
	})

	// RuleWarnings counts malformed rules skipped during evaluation.
	RuleWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneta_rule_warnings_total",
		Help: "Malformed automation rules skipped with a warning.",
	})

	// DuplicatesFlagged counts duplicate candidates surfaced to callers.
	DuplicatesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneta_duplicates_flagged_total",
		Help: "Duplicate transaction candidates surfaced to the caller.",
	})

	// SnapshotSaves counts successful snapshot saves.
	SnapshotSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneta_snapshot_saves_total",
		Help: "Snapshots saved durably.",
	})

	// SnapshotSaveFailures counts failed snapshot saves. The previous
	// durable snapshot stays intact when a save fails.
	SnapshotSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneta_snapshot_save_failures_total",
		Help: "Snapshot saves that failed.",
	})
)
