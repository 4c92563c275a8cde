package fsm

// #region contract

// Contract projects the current state and pending intent into the render
// contract. Visibility is an affirmative, fully-validated outcome: every
// non-suggesting, non-executing state renders as silence.
func (m *Machine) Contract() Contract {
	switch m.current {
	case StateSuggesting:
		text := ""
		if m.pending != nil {
			text = m.pending.Message
		}
		return Contract{
			State:   StateSuggesting,
			Emotion: "helpful",
			Bubble: &Bubble{
				Text:    text,
				Actions: []string{AcceptLabel, DeferLabel, DismissLabel},
			},
			Visible: true,
		}
	case StateExecuting:
		return Contract{
			State:   StateExecuting,
			Emotion: "working",
			Bubble: &Bubble{
				Text:    processingText,
				Actions: []string{},
			},
			Visible: true,
		}
	case StateObserving:
		return Contract{State: StateObserving, Emotion: "curious", Visible: false}
	case StateSuppressed:
		return Contract{State: StateSuppressed, Emotion: "quiet", Visible: false}
	case StateCooldownGlobal:
		return Contract{State: StateCooldownGlobal, Emotion: "quiet", Visible: false}
	default:
		return Contract{State: StateIdle, Emotion: "neutral", Visible: false}
	}
}

// Equal reports whether two contracts would render identically.
func (c Contract) Equal(other Contract) bool {
	if c.State != other.State || c.Emotion != other.Emotion || c.Visible != other.Visible {
		return false
	}
	if (c.Bubble == nil) != (other.Bubble == nil) {
		return false
	}
	if c.Bubble == nil {
		return true
	}
	if c.Bubble.Text != other.Bubble.Text || len(c.Bubble.Actions) != len(other.Bubble.Actions) {
		return false
	}
	for i := range c.Bubble.Actions {
		if c.Bubble.Actions[i] != other.Bubble.Actions[i] {
			return false
		}
	}
	return true
}

// #endregion contract
