package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/engine"
	"github.com/orbitdesk/orbit/go-companion/internal/fsm"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: an admission
// policy, a timeline of events, and the expected outcomes.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Events          []FixtureEvent          `json:"events"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors the admission and timing knobs with JSON tags.
// Durations are whole seconds. Zero values fall back to defaults.
type FixtureConfig struct {
	ConfidenceThreshold float32 `json:"confidence_threshold"`
	GlobalCooldown      int     `json:"global_cooldown"`
	PerIntentCooldown   int     `json:"per_intent_cooldown"`
	DismissCooldown     int     `json:"dismiss_cooldown"`
	SameIntentWindow    int     `json:"same_intent_window"`
	MaxPopupsPerHour    int     `json:"max_popups_per_hour"`
	BubbleTimeout       int     `json:"bubble_timeout"`
	ExecuteTimeout      int     `json:"execute_timeout"`
}

// FixtureEvent is one timeline entry. Kind selects which fields apply:
//
//	candidate — AtSeconds, Intent, Confidence, Message
//	action    — AtSeconds, Action
//	toggle    — AtSeconds, Enabled
//	tick      — AtSeconds only (deadline advancement)
type FixtureEvent struct {
	ID         string  `json:"id"`
	AtSeconds  int     `json:"at_seconds"`
	Kind       string  `json:"kind"`
	Intent     string  `json:"intent,omitempty"`
	Confidence float32 `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`
	Action     string  `json:"action,omitempty"`
	Enabled    *bool   `json:"enabled,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per event.
type FixtureExpectedResult struct {
	ID     string `json:"id"`
	State  string `json:"state,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// EngineConfig converts the fixture knobs to a domain engine config.
// Unset fields take the production defaults.
func (fc *FixtureConfig) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if fc.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = fc.ConfidenceThreshold
	}
	if fc.GlobalCooldown > 0 {
		cfg.GlobalCooldown = time.Duration(fc.GlobalCooldown) * time.Second
	}
	if fc.PerIntentCooldown > 0 {
		cfg.PerIntentCooldown = time.Duration(fc.PerIntentCooldown) * time.Second
	}
	if fc.DismissCooldown > 0 {
		cfg.DismissCooldown = time.Duration(fc.DismissCooldown) * time.Second
	}
	if fc.SameIntentWindow > 0 {
		cfg.SameIntentWindow = time.Duration(fc.SameIntentWindow) * time.Second
	}
	if fc.MaxPopupsPerHour > 0 {
		cfg.MaxPopupsPerHour = fc.MaxPopupsPerHour
	}
	return cfg
}

// FSMConfig converts the fixture knobs to a domain behavior config.
func (fc *FixtureConfig) FSMConfig() fsm.Config {
	cfg := fsm.DefaultConfig()
	if fc.BubbleTimeout > 0 {
		cfg.BubbleTimeout = time.Duration(fc.BubbleTimeout) * time.Second
	}
	if fc.ExecuteTimeout > 0 {
		cfg.ExecuteTimeout = time.Duration(fc.ExecuteTimeout) * time.Second
	}
	if fc.DismissCooldown > 0 {
		cfg.DismissCooldown = time.Duration(fc.DismissCooldown) * time.Second
	}
	return cfg
}

// ToEvent converts a fixture entry to a domain timeline event.
func (fe *FixtureEvent) ToEvent(start time.Time) (Event, error) {
	ev := Event{
		ID: fe.ID,
		At: start.Add(time.Duration(fe.AtSeconds) * time.Second),
	}
	switch fe.Kind {
	case "candidate":
		ev.Kind = EventCandidate
		ev.Candidate = intent.Candidate{
			Type:       intent.ParseIntentType(fe.Intent),
			Confidence: fe.Confidence,
			Message:    fe.Message,
			CreatedAt:  ev.At,
		}
	case "action":
		action, ok := intent.ParseUserAction(fe.Action)
		if !ok {
			return Event{}, fmt.Errorf("event %s: unknown action %q", fe.ID, fe.Action)
		}
		ev.Kind = EventAction
		ev.Action = action
	case "toggle":
		if fe.Enabled == nil {
			return Event{}, fmt.Errorf("event %s: toggle requires enabled", fe.ID)
		}
		ev.Kind = EventToggle
		ev.Enabled = *fe.Enabled
	case "tick":
		ev.Kind = EventTick
	default:
		return Event{}, fmt.Errorf("event %s: unknown kind %q", fe.ID, fe.Kind)
	}
	return ev, nil
}

// #endregion fixture-loader
