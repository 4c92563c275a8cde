package ledger

import (
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region ledger-struct

// Ledger tracks the timestamps and counters the decision engine needs to
// enforce cooldowns and rate limits. It is owned by the single-threaded
// orchestration loop; no internal locking.
type Ledger struct {
	lastFiredGlobal time.Time // zero = never fired
	lastFiredByType map[intent.IntentType]time.Time
	lastDismissedAt time.Time // zero = never dismissed

	// Rolling one-hour admission window, oldest first. Entries are inserted
	// only on admission and evicted lazily on read.
	firedLastHour []time.Time

	lastAdmittedType intent.IntentType
	lastAdmittedAt   time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		lastFiredByType: make(map[intent.IntentType]time.Time),
	}
}

// #endregion ledger-struct

// #region record

// RecordAdmission marks that a candidate of the given type was admitted at the
// given instant. Called only by the decision engine on approval.
func (l *Ledger) RecordAdmission(t intent.IntentType, at time.Time) {
	l.lastFiredGlobal = at
	l.lastFiredByType[t] = at
	l.firedLastHour = append(l.firedLastHour, at)
	l.lastAdmittedType = t
	l.lastAdmittedAt = at
}

// RecordDismiss marks that the user dismissed a visible suggestion.
func (l *Ledger) RecordDismiss(at time.Time) {
	l.lastDismissedAt = at
}

// #endregion record

// #region queries

// CountLastHour prunes admissions older than one hour relative to at and
// returns the remaining count. The prune mutates the window, but the result
// is idempotent for repeated queries at the same instant.
func (l *Ledger) CountLastHour(at time.Time) int {
	cutoff := at.Add(-time.Hour)
	i := 0
	for i < len(l.firedLastHour) && !l.firedLastHour[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.firedLastHour = append(l.firedLastHour[:0], l.firedLastHour[i:]...)
	}
	return len(l.firedLastHour)
}

// LastFiredGlobal returns the most recent admission time, if any.
func (l *Ledger) LastFiredGlobal() (time.Time, bool) {
	return l.lastFiredGlobal, !l.lastFiredGlobal.IsZero()
}

// LastFired returns the most recent admission time for the given type, if any.
func (l *Ledger) LastFired(t intent.IntentType) (time.Time, bool) {
	at, ok := l.lastFiredByType[t]
	return at, ok
}

// LastDismissedAt returns the most recent dismiss time, if any.
func (l *Ledger) LastDismissedAt() (time.Time, bool) {
	return l.lastDismissedAt, !l.lastDismissedAt.IsZero()
}

// LastAdmitted returns the type and time of the immediately preceding
// admission, if any.
func (l *Ledger) LastAdmitted() (intent.IntentType, time.Time, bool) {
	return l.lastAdmittedType, l.lastAdmittedAt, !l.lastAdmittedAt.IsZero()
}

// #endregion queries

// #region reset

// Reset clears all tracked state. Used by tests and the replay harness.
func (l *Ledger) Reset() {
	l.lastFiredGlobal = time.Time{}
	l.lastFiredByType = make(map[intent.IntentType]time.Time)
	l.lastDismissedAt = time.Time{}
	l.firedLastHour = nil
	l.lastAdmittedType = ""
	l.lastAdmittedAt = time.Time{}
}

// #endregion reset
