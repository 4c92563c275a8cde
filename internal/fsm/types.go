package fsm

import "time"

// #region state

// State is the current behavior mode of the companion.
type State string

const (
	StateIdle           State = "idle"
	StateObserving      State = "observing"
	StateSuggesting     State = "suggesting"
	StateExecuting      State = "executing"
	StateSuppressed     State = "suppressed"
	StateCooldownGlobal State = "cooldown_global"
)

// #endregion state

// #region event

// Event triggers a state transition.
type Event string

const (
	EventContextChanged   Event = "context_changed"
	EventDecisionApproved Event = "decision_approved"
	EventDecisionRejected Event = "decision_rejected"
	EventUserAccept       Event = "user_accept"
	EventUserDefer        Event = "user_defer"
	EventUserDismiss      Event = "user_dismiss"
	EventBubbleTimeout    Event = "bubble_timeout"
	EventExecutionDone    Event = "execution_done"
	EventCooldownElapsed  Event = "cooldown_elapsed"
	EventKillSwitchOff    Event = "kill_switch_disabled"
	EventKillSwitchOn     Event = "kill_switch_enabled"
)

// #endregion event

// #region config

// Config holds the state machine's timing knobs.
type Config struct {
	BubbleTimeout   time.Duration // no user action within this → auto-dismiss to idle
	ExecuteTimeout  time.Duration // executing auto-completes after this
	DismissCooldown time.Duration // suppressed releases to idle after this
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		BubbleTimeout:   60 * time.Second,
		ExecuteTimeout:  10 * time.Second,
		DismissCooldown: 600 * time.Second,
	}
}

// #endregion config

// #region render-contract

// Bubble is the visible suggestion payload for the rendering surface.
type Bubble struct {
	Text    string   `json:"text"`
	Actions []string `json:"actions"`
}

// Contract is the render contract: a deterministic projection of the current
// state plus the pending intent. The surface is purely a renderer and must
// never infer state on its own.
type Contract struct {
	State   State   `json:"state"`
	Emotion string  `json:"emotion"`
	Bubble  *Bubble `json:"bubble"`
	Visible bool    `json:"visible"`
}

// Action labels shown on a suggestion bubble, in render order.
const (
	AcceptLabel  = "Yes"
	DeferLabel   = "Later"
	DismissLabel = "Dismiss"
)

const processingText = "Working on it..."

// #endregion render-contract
