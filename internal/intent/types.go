package intent

import "time"

// #region intent-type

// IntentType classifies the kind of suggestion a candidate proposes.
type IntentType string

const (
	SuggestHelp IntentType = "suggest_help"
	Info        IntentType = "info"
	Remind      IntentType = "remind"
	None        IntentType = "none" // sentinel: no suggestion this cycle
)

// ParseIntentType maps a wire string to an IntentType.
// Unknown strings collapse to None so a malformed generator reply degrades to silence.
func ParseIntentType(s string) IntentType {
	switch IntentType(s) {
	case SuggestHelp, Info, Remind, None:
		return IntentType(s)
	default:
		return None
	}
}

// #endregion intent-type

// #region candidate

// Candidate is a proposed suggestion with a type and confidence, not yet admitted.
type Candidate struct {
	Type       IntentType
	Confidence float32 // [0, 1]
	Message    string
	Reasoning  string
	CreatedAt  time.Time
}

// NoCandidate returns the "no opinion" sentinel candidate.
func NoCandidate(at time.Time) Candidate {
	return Candidate{Type: None, CreatedAt: at}
}

// #endregion candidate

// #region snapshot

// Snapshot is an immutable context sample delivered once per tick.
type Snapshot struct {
	ActiveApp         string    `json:"active_app"`
	WindowTitle       string    `json:"window_title"`
	IdleSeconds       float64   `json:"idle_seconds"`
	RecentErrors      int       `json:"recent_errors"`
	RecentFileChanges int       `json:"recent_file_changes"`
	CapturedAt        time.Time `json:"captured_at"`
}

// Interesting reports whether the snapshot is worth a generation cycle:
// long idle, a burst of file changes, or any recent error.
func (s Snapshot) Interesting() bool {
	if s.IdleSeconds >= 180 {
		return true
	}
	if s.RecentFileChanges > 3 {
		return true
	}
	if s.RecentErrors > 0 {
		return true
	}
	return false
}

// #endregion snapshot

// #region user-action

// UserAction is a response from the rendering surface to a visible suggestion.
type UserAction string

const (
	ActionAccept  UserAction = "accept"
	ActionDefer   UserAction = "defer"
	ActionDismiss UserAction = "dismiss"
)

// ParseUserAction maps a wire string to a UserAction.
// Returns false for unknown actions; callers drop those without state mutation.
func ParseUserAction(s string) (UserAction, bool) {
	switch UserAction(s) {
	case ActionAccept, ActionDefer, ActionDismiss:
		return UserAction(s), true
	default:
		return "", false
	}
}

// #endregion user-action
