package decay

import "github.com/orbitdesk/orbit/go-companion/internal/intent"

// #region constants

const (
	penaltyPerDismiss = 0.1
	minFactor         = 0.5 // penalty floor: a type is never silenced below half confidence
)

// #endregion constants

// #region model

// Model tracks per-intent-type accept/dismiss history and derives an adjusted
// confidence for candidates. Process-scoped, owned by the orchestration loop;
// reset only on process restart.
type Model struct {
	accepts   map[intent.IntentType]int
	dismisses map[intent.IntentType]int
}

// New returns an empty decay model.
func New() *Model {
	return &Model{
		accepts:   make(map[intent.IntentType]int),
		dismisses: make(map[intent.IntentType]int),
	}
}

// #endregion model

// #region adjusted-confidence

// AdjustedConfidence applies the dismiss penalty to a base confidence.
// The penalty only applies while dismissals outnumber accepts, and the factor
// floors at minFactor so early dismissals cannot permanently silence a type.
func (m *Model) AdjustedConfidence(t intent.IntentType, base float32) float32 {
	d := m.dismisses[t]
	a := m.accepts[t]
	if d <= a {
		return base
	}
	factor := 1 - penaltyPerDismiss*float32(d)
	if factor < minFactor {
		factor = minFactor
	}
	return base * factor
}

// #endregion adjusted-confidence

// #region feedback

// RecordFeedback registers an explicit user verdict on an intent type.
// Only accept and dismiss reach here; defer and timeout are ambiguous
// non-responses and must not bias the model.
func (m *Model) RecordFeedback(t intent.IntentType, accepted bool) {
	if accepted {
		m.accepts[t]++
		return
	}
	m.dismisses[t]++
}

// Counts returns the accept and dismiss totals for the given type.
func (m *Model) Counts(t intent.IntentType) (accepts, dismisses int) {
	return m.accepts[t], m.dismisses[t]
}

// #endregion feedback

// #region reset

// Reset clears all history. Used by tests and the replay harness.
func (m *Model) Reset() {
	m.accepts = make(map[intent.IntentType]int)
	m.dismisses = make(map[intent.IntentType]int)
}

// #endregion reset
