package fsm

import (
	"log"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/decay"
	"github.com/orbitdesk/orbit/go-companion/internal/engine"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
	"github.com/orbitdesk/orbit/go-companion/internal/ledger"
)

// #region transition-table

// transitions maps state × event → next state. The kill switch is handled
// separately because it applies from every state.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventContextChanged: StateObserving,
	},
	StateObserving: {
		EventDecisionApproved: StateSuggesting,
		EventDecisionRejected: StateIdle,
	},
	StateSuggesting: {
		EventUserAccept:    StateExecuting,
		EventUserDismiss:   StateSuppressed,
		EventUserDefer:     StateIdle,
		EventBubbleTimeout: StateIdle,
	},
	StateExecuting: {
		EventExecutionDone: StateIdle,
	},
	StateSuppressed: {
		EventCooldownElapsed: StateIdle,
	},
	StateCooldownGlobal: {
		EventKillSwitchOn: StateIdle,
	},
}

// #endregion transition-table

// #region machine

// Machine is the behavior state machine. It consumes admission decisions and
// user actions, owns the single pending-intent slot, and projects the render
// contract. Owned by the single-threaded orchestration loop; no locking.
type Machine struct {
	ledger *ledger.Ledger
	decay  *decay.Model
	config Config

	current  State
	previous State
	pending  *intent.Candidate

	// Monotonic deadlines, checked at event-processing time rather than via
	// cancellable timers. Zero means unarmed.
	bubbleDeadline  time.Time
	executeDeadline time.Time
}

// New returns a machine in the idle state.
func New(l *ledger.Ledger, d *decay.Model, config Config) *Machine {
	return &Machine{
		ledger:   l,
		decay:    d,
		config:   config,
		current:  StateIdle,
		previous: StateIdle,
	}
}

// SetConfig replaces the timing knobs. The caller validates beforehand;
// a config is applied whole or not at all.
func (m *Machine) SetConfig(config Config) {
	m.config = config
}

// Current returns the current behavior state.
func (m *Machine) Current() State {
	return m.current
}

// Previous returns the state before the most recent transition.
func (m *Machine) Previous() State {
	return m.previous
}

// Pending returns the pending intent, if any.
func (m *Machine) Pending() *intent.Candidate {
	return m.pending
}

// #endregion machine

// #region fire

// fire validates an event against the transition table and moves the machine.
// Returns false (without mutation) when the event is not legal in the current
// state.
func (m *Machine) fire(ev Event) bool {
	next, ok := transitions[m.current][ev]
	if !ok {
		log.Printf("[FSM] event %s ignored in state %s", ev, m.current)
		return false
	}
	log.Printf("[FSM] %s -> %s (event: %s)", m.current, next, ev)
	m.previous = m.current
	m.current = next
	return true
}

// #endregion fire

// #region context

// HandleContextChanged moves idle → observing when a cycle begins. Any
// candidate outcome (including none) resolves observing in the same cycle,
// so a tick arriving mid-suggestion is superseded rather than preemptive.
func (m *Machine) HandleContextChanged(now time.Time) bool {
	return m.fire(EventContextChanged)
}

// #endregion context

// #region decision

// HandleDecision resolves an observing cycle with the engine's verdict.
// Approval arms the bubble deadline and fills the single pending slot;
// rejection clears it and returns to idle.
func (m *Machine) HandleDecision(d engine.Decision, now time.Time) bool {
	if m.current != StateObserving {
		return false
	}
	if d.Approved && d.Intent != nil {
		if !m.fire(EventDecisionApproved) {
			return false
		}
		pending := *d.Intent
		m.pending = &pending
		m.bubbleDeadline = now.Add(m.config.BubbleTimeout)
		return true
	}
	if !m.fire(EventDecisionRejected) {
		return false
	}
	m.clearPending()
	return true
}

// #endregion decision

// #region user-action

// HandleUserAction applies a response to the currently visible suggestion.
// Only an explicit accept or dismiss feeds the decay model; defer is an
// ambiguous non-response and must not bias it. Actions arriving when nothing
// is pending are stale: dropped with a warning, no state mutation.
func (m *Machine) HandleUserAction(a intent.UserAction, now time.Time) bool {
	if m.current != StateSuggesting || m.pending == nil {
		log.Printf("[FSM] stale user action %q in state %s, dropped", a, m.current)
		return false
	}
	pendingType := m.pending.Type

	switch a {
	case intent.ActionAccept:
		if !m.fire(EventUserAccept) {
			return false
		}
		m.decay.RecordFeedback(pendingType, true)
		m.executeDeadline = now.Add(m.config.ExecuteTimeout)
		m.bubbleDeadline = time.Time{}
		return true
	case intent.ActionDismiss:
		if !m.fire(EventUserDismiss) {
			return false
		}
		m.ledger.RecordDismiss(now)
		m.decay.RecordFeedback(pendingType, false)
		m.clearPending()
		return true
	case intent.ActionDefer:
		if !m.fire(EventUserDefer) {
			return false
		}
		m.clearPending()
		return true
	default:
		log.Printf("[FSM] unknown user action %q, dropped", a)
		return false
	}
}

// #endregion user-action

// #region execution

// HandleExecutionDone completes an accepted suggestion and returns to idle.
func (m *Machine) HandleExecutionDone(now time.Time) bool {
	if !m.fire(EventExecutionDone) {
		return false
	}
	m.clearPending()
	return true
}

// #endregion execution

// #region tick

// Tick advances deadline-driven transitions: bubble timeout, execution
// auto-complete, and suppressed cooldown release. Deadlines superseded by an
// earlier user action were cleared and are simply never consulted.
func (m *Machine) Tick(now time.Time) bool {
	switch m.current {
	case StateSuggesting:
		if !m.bubbleDeadline.IsZero() && !now.Before(m.bubbleDeadline) {
			if m.fire(EventBubbleTimeout) {
				m.clearPending()
				return true
			}
		}
	case StateExecuting:
		if !m.executeDeadline.IsZero() && !now.Before(m.executeDeadline) {
			return m.HandleExecutionDone(now)
		}
	case StateSuppressed:
		if last, ok := m.ledger.LastDismissedAt(); ok && now.Sub(last) >= m.config.DismissCooldown {
			return m.fire(EventCooldownElapsed)
		}
	}
	return false
}

// #endregion tick

// #region kill-switch

// SetKillSwitch forces the machine into or out of the global cooldown state.
// Disabling applies from every state and drops any pending suggestion.
func (m *Machine) SetKillSwitch(enabled bool, now time.Time) bool {
	if !enabled {
		if m.current == StateCooldownGlobal {
			return false
		}
		log.Printf("[FSM] %s -> %s (event: %s)", m.current, StateCooldownGlobal, EventKillSwitchOff)
		m.previous = m.current
		m.current = StateCooldownGlobal
		m.clearPending()
		return true
	}
	return m.fire(EventKillSwitchOn)
}

// #endregion kill-switch

// #region helpers

func (m *Machine) clearPending() {
	m.pending = nil
	m.bubbleDeadline = time.Time{}
	m.executeDeadline = time.Time{}
}

// #endregion helpers
