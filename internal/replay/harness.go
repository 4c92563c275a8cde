// Package replay re-runs a recorded timeline of candidates and user actions
// through a fresh admission pipeline, entirely in-memory, so policy changes
// can be audited deterministically.
package replay

import (
	"fmt"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/decay"
	"github.com/orbitdesk/orbit/go-companion/internal/engine"
	"github.com/orbitdesk/orbit/go-companion/internal/fsm"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
	"github.com/orbitdesk/orbit/go-companion/internal/ledger"
)

// #region types

// EventKind selects how a timeline entry is applied.
type EventKind string

const (
	EventCandidate EventKind = "candidate"
	EventAction    EventKind = "action"
	EventToggle    EventKind = "toggle"
	EventTick      EventKind = "tick"
)

// Event is one entry on the replay timeline.
type Event struct {
	ID        string
	At        time.Time
	Kind      EventKind
	Candidate intent.Candidate
	Action    intent.UserAction
	Enabled   bool
}

// Result captures the pipeline outcome of one event.
type Result struct {
	ID    string
	Kind  EventKind
	State fsm.State

	// Candidate events only.
	Approved bool
	Reason   engine.Reason
	Adjusted float32
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalEvents int
	Candidates  int
	Admissions  int
	ByReason    map[engine.Reason]int
	FinalState  fsm.State
}

// #endregion types

// #region replay

// Replay runs the timeline through a fresh ledger, decay model, engine, and
// state machine. Events must be in chronological order.
func Replay(events []Event, engineCfg engine.Config, fsmCfg fsm.Config) []Result {
	l := ledger.New()
	d := decay.New()
	eng := engine.New(l, d)
	machine := fsm.New(l, d, fsmCfg)

	enabled := true
	results := make([]Result, 0, len(events))

	for _, ev := range events {
		machine.Tick(ev.At)

		res := Result{ID: ev.ID, Kind: ev.Kind}
		switch ev.Kind {
		case EventCandidate:
			if machine.Current() == fsm.StateIdle {
				machine.HandleContextChanged(ev.At)
			}
			decision := eng.Evaluate(ev.Candidate, ev.At, engineCfg, enabled)
			machine.HandleDecision(decision, ev.At)
			res.Approved = decision.Approved
			res.Reason = decision.Reason
			res.Adjusted = decision.AdjustedConfidence
		case EventAction:
			machine.HandleUserAction(ev.Action, ev.At)
		case EventToggle:
			if ev.Enabled != enabled {
				enabled = ev.Enabled
				machine.SetKillSwitch(enabled, ev.At)
			}
		case EventTick:
			// Tick already ran above.
		}

		res.State = machine.Current()
		results = append(results, res)
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{
		TotalEvents: len(results),
		ByReason:    make(map[engine.Reason]int),
	}
	for _, r := range results {
		if r.Kind == EventCandidate {
			s.Candidates++
			s.ByReason[r.Reason]++
			if r.Approved {
				s.Admissions++
			}
		}
		s.FinalState = r.State
	}
	return s
}

// #endregion replay

// #region run-fixture

// RunFixture replays a fixture from its start time and verifies the expected
// results. Returns the per-event results and the first mismatch, if any.
func RunFixture(f *Fixture, start time.Time) ([]Result, error) {
	events := make([]Event, 0, len(f.Events))
	for i := range f.Events {
		ev, err := f.Events[i].ToEvent(start)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	results := Replay(events, f.Config.EngineConfig(), f.Config.FSMConfig())

	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	for _, want := range f.ExpectedResults {
		got, ok := byID[want.ID]
		if !ok {
			return results, fmt.Errorf("expected result for unknown event %q", want.ID)
		}
		if want.State != "" && string(got.State) != want.State {
			return results, fmt.Errorf("event %s: state %s, want %s", want.ID, got.State, want.State)
		}
		if want.Reason != "" && string(got.Reason) != want.Reason {
			return results, fmt.Errorf("event %s: reason %s, want %s", want.ID, got.Reason, want.Reason)
		}
	}
	return results, nil
}

// #endregion run-fixture
