// Package dedupe scores incoming transactions against recent history to flag
// likely duplicate entries, e.g. a manual entry followed by the same purchase
// arriving in a statement import.
//
// The detector only reports candidates; it never merges or deletes. The
// caller decides what to do with them, typically by asking the user.
package dedupe

import (
	"sort"
	"time"

	"github.com/moneta-app/engine/internal/models"
)

// Config tunes the detector. The defaults are deliberate guesses at typical
// finance-app behavior and are meant to be adjusted per deployment.
type Config struct {
	// Window is the maximum timestamp distance between the new transaction
	// and an existing one for the pair to be considered.
	Window time.Duration

	// Threshold is the minimum combined score for a candidate to surface.
	Threshold float64

	// AmountWeight scores an exact amount and currency match.
	AmountWeight float64

	// TextWeight scales the note similarity contribution.
	TextWeight float64

	// CategoryWeight scores a category match.
	CategoryWeight float64
}

// DefaultConfig returns the stock configuration: ±3 day window, 0.75
// threshold, weights 0.5 amount / 0.3 text / 0.2 category.
func DefaultConfig() Config {
	return Config{
		Window:         72 * time.Hour,
		Threshold:      0.75,
		AmountWeight:   0.5,
		TextWeight:     0.3,
		CategoryWeight: 0.2,
	}
}

// Candidate pairs an existing transaction with its similarity score.
type Candidate struct {
	Tx    models.Transaction
	Score float64
}

// Detector finds likely duplicates of a new transaction.
type Detector struct {
	cfg Config
}

// New creates a detector with the given configuration.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// FindCandidates scores the new transaction against the existing ones and
// returns candidates at or above the threshold, ordered by score descending,
// then timestamp ascending, then ID. The same inputs always produce the same
// ordered list; nothing is mutated.
func (d *Detector) FindCandidates(newTx models.Transaction, existing []models.Transaction) []Candidate {
	var out []Candidate
	for _, tx := range existing {
		if tx.ID == newTx.ID || tx.Voided || tx.AccountID != newTx.AccountID {
			continue
		}
		delta := tx.Timestamp.Sub(newTx.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta > d.cfg.Window {
			continue
		}
		score := d.score(newTx, tx)
		if score >= d.cfg.Threshold {
			out = append(out, Candidate{Tx: tx.Clone(), Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Tx.Timestamp.Equal(out[j].Tx.Timestamp) {
			return out[i].Tx.Timestamp.Before(out[j].Tx.Timestamp)
		}
		return out[i].Tx.ID < out[j].Tx.ID
	})
	return out
}

func (d *Detector) score(a, b models.Transaction) float64 {
	var score float64
	if a.Amount.Equal(b.Amount) && a.Currency == b.Currency {
		score += d.cfg.AmountWeight
	}
	score += d.cfg.TextWeight * textSimilarity(a.Note, b.Note)
	if a.CategoryID != "" && a.CategoryID == b.CategoryID {
		score += d.cfg.CategoryWeight
	}
	return score
}
