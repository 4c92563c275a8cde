package engine

import (
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region reason

// Reason is the machine-readable outcome of an admission evaluation.
// The check order in Evaluate is fixed, so the first failing check
// deterministically selects the reason.
type Reason string

const (
	ReasonApproved          Reason = "approved"
	ReasonLowConfidence     Reason = "low_confidence"
	ReasonGlobalCooldown    Reason = "global_cooldown"
	ReasonPerIntentCooldown Reason = "per_intent_cooldown"
	ReasonDismissCooldown   Reason = "dismiss_cooldown"
	ReasonRateLimited       Reason = "rate_limited"
	ReasonDuplicateWindow   Reason = "duplicate_window"
	ReasonDisabled          Reason = "disabled"
)

// #endregion reason

// #region config

// Config holds the admission policy thresholds.
type Config struct {
	ConfidenceThreshold float32
	GlobalCooldown      time.Duration
	PerIntentCooldown   time.Duration
	DismissCooldown     time.Duration
	SameIntentWindow    time.Duration
	MaxPopupsPerHour    int
}

// DefaultConfig returns the production admission policy.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		GlobalCooldown:      60 * time.Second,
		PerIntentCooldown:   180 * time.Second,
		DismissCooldown:     600 * time.Second,
		SameIntentWindow:    900 * time.Second,
		MaxPopupsPerHour:    5,
	}
}

// #endregion config

// #region decision

// Decision is the result of one admission evaluation. Produced fresh per
// evaluation; only an approval mutates shared state (the ledger).
type Decision struct {
	Approved bool
	Intent   *intent.Candidate
	Reason   Reason

	// AdjustedConfidence is the post-decay confidence the threshold check
	// saw. Zero when the evaluation short-circuited before the decay step.
	AdjustedConfidence float32

	DecidedAt time.Time
}

// #endregion decision
