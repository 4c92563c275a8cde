package engine

import (
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/decay"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
	"github.com/orbitdesk/orbit/go-companion/internal/ledger"
)

// #region engine

// Engine applies the admission policy to candidate intents. It is the sole
// writer of the cooldown ledger; the decay model is read here and written by
// the behavior state machine on terminal transitions.
type Engine struct {
	ledger *ledger.Ledger
	decay  *decay.Model
}

// New creates an engine over the given ledger and decay model.
func New(l *ledger.Ledger, d *decay.Model) *Engine {
	return &Engine{ledger: l, decay: d}
}

// #endregion engine

// #region evaluate

// Evaluate runs the fixed-order admission checks against a candidate.
// The first failing check determines the reason. Rejected evaluations never
// mutate shared state, so Evaluate is safe to call speculatively; an approval
// records the admission in the ledger before returning.
func (e *Engine) Evaluate(candidate intent.Candidate, now time.Time, config Config, enabled bool) Decision {
	reject := func(reason Reason, adjusted float32) Decision {
		return Decision{
			Approved:           false,
			Intent:             &candidate,
			Reason:             reason,
			AdjustedConfidence: adjusted,
			DecidedAt:          now,
		}
	}

	// 1. Kill switch and the "no opinion" sentinel collapse to the same
	//    non-intrusive outcome.
	if !enabled || candidate.Type == intent.None {
		return reject(ReasonDisabled, 0)
	}

	// 2. Confidence threshold on the decay-adjusted value.
	adjusted := e.decay.AdjustedConfidence(candidate.Type, candidate.Confidence)
	if adjusted < config.ConfidenceThreshold {
		return reject(ReasonLowConfidence, adjusted)
	}

	// 3. Global cooldown.
	if last, ok := e.ledger.LastFiredGlobal(); ok && now.Sub(last) < config.GlobalCooldown {
		return reject(ReasonGlobalCooldown, adjusted)
	}

	// 4. Per-intent cooldown.
	if last, ok := e.ledger.LastFired(candidate.Type); ok && now.Sub(last) < config.PerIntentCooldown {
		return reject(ReasonPerIntentCooldown, adjusted)
	}

	// 5. Dismiss cooldown.
	if last, ok := e.ledger.LastDismissedAt(); ok && now.Sub(last) < config.DismissCooldown {
		return reject(ReasonDismissCooldown, adjusted)
	}

	// 6. Hourly rate limit (rolling 3600s window).
	if e.ledger.CountLastHour(now) >= config.MaxPopupsPerHour {
		return reject(ReasonRateLimited, adjusted)
	}

	// 7. Duplicate window: same type as the immediately preceding admission.
	if typ, at, ok := e.ledger.LastAdmitted(); ok && typ == candidate.Type && now.Sub(at) < config.SameIntentWindow {
		return reject(ReasonDuplicateWindow, adjusted)
	}

	// 8. Admit.
	e.ledger.RecordAdmission(candidate.Type, now)
	return Decision{
		Approved:           true,
		Intent:             &candidate,
		Reason:             ReasonApproved,
		AdjustedConfidence: adjusted,
		DecidedAt:          now,
	}
}

// #endregion evaluate
