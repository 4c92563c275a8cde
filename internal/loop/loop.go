// Package loop runs the companion's single-threaded orchestration cycle:
// sample context, generate a candidate intent, run admission, drive the
// behavior state machine, publish render contracts.
package loop

import (
	"context"
	"log"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/brain"
	"github.com/orbitdesk/orbit/go-companion/internal/config"
	"github.com/orbitdesk/orbit/go-companion/internal/decay"
	"github.com/orbitdesk/orbit/go-companion/internal/engine"
	"github.com/orbitdesk/orbit/go-companion/internal/fsm"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
	"github.com/orbitdesk/orbit/go-companion/internal/ledger"
	"github.com/orbitdesk/orbit/go-companion/internal/store"
)

// #region interfaces

// Sampler provides the latest context snapshot. A sampling error skips the
// cycle; the companion never acts on stale or missing context.
type Sampler interface {
	Sample() (intent.Snapshot, error)
}

// Publisher pushes render contracts toward the UI.
type Publisher interface {
	Broadcast(fsm.Contract)
}

// Recorder persists snapshots and decisions. Recording failures are logged
// and ignored; observability never blocks the pipeline.
type Recorder interface {
	SaveSnapshot(intent.Snapshot) error
	LogDecision(store.DecisionRecord) error
}

// Deps bundles the loop's collaborators. Actions and Toggles may be nil when
// no UI is attached (replay, tests).
type Deps struct {
	Sampler   Sampler
	Generator brain.Generator
	Publisher Publisher
	Recorder  Recorder
	Actions   <-chan intent.UserAction
	Toggles   <-chan bool
}

// #endregion interfaces

// #region loop-struct

// Loop owns the ledger, decay model, engine, and state machine. Everything
// here runs on one goroutine; external inputs arrive only through channels.
type Loop struct {
	cfg  config.Config
	deps Deps

	ledger  *ledger.Ledger
	decay   *decay.Model
	engine  *engine.Engine
	machine *fsm.Machine

	enabled bool

	configs chan config.Config
	ticker  *time.Ticker

	lastContract fsm.Contract
	published    bool
}

// New builds a loop from a validated configuration.
func New(cfg config.Config, deps Deps) *Loop {
	l := ledger.New()
	d := decay.New()
	lp := &Loop{
		cfg:     cfg,
		deps:    deps,
		ledger:  l,
		decay:   d,
		engine:  engine.New(l, d),
		machine: fsm.New(l, d, cfg.FSM()),
		enabled: cfg.Enabled,
		configs: make(chan config.Config, 1),
	}
	if !cfg.Enabled {
		lp.machine.SetKillSwitch(false, time.Now())
	}
	return lp
}

// State returns the current behavior state.
func (l *Loop) State() fsm.State {
	return l.machine.Current()
}

// Enabled reports the kill-switch position.
func (l *Loop) Enabled() bool {
	return l.enabled
}

// #endregion loop-struct

// #region run

// Run drives the loop until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.ticker = time.NewTicker(l.cfg.PollEvery())
	defer l.ticker.Stop()

	log.Printf("[LOOP] started (poll=%s, enabled=%v)", l.cfg.PollEvery(), l.enabled)
	l.publishIfChanged()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[LOOP] stopped")
			return nil
		case <-l.ticker.C:
			l.Cycle(time.Now())
		case a := <-l.deps.Actions:
			l.HandleAction(a, time.Now())
		case enabled := <-l.deps.Toggles:
			l.SetEnabled(enabled, time.Now())
		case cfg := <-l.configs:
			l.applyConfig(cfg)
		}
	}
}

// SubmitConfig validates a reloaded configuration and queues it for the loop
// goroutine. An invalid config is rejected whole; the running one stays.
func (l *Loop) SubmitConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	select {
	case l.configs <- cfg:
	default:
		// A pending reload is superseded.
		<-l.configs
		l.configs <- cfg
	}
	return nil
}

func (l *Loop) applyConfig(cfg config.Config) {
	l.cfg = cfg
	l.machine.SetConfig(cfg.FSM())
	if l.ticker != nil {
		l.ticker.Reset(cfg.PollEvery())
	}
	log.Printf("[LOOP] config reloaded (poll=%s, threshold=%.2f)", cfg.PollEvery(), cfg.ConfidenceThreshold)
}

// #endregion run

// #region cycle

// Cycle runs one orchestration pass at the given instant. Exposed with an
// explicit clock so replay and tests drive it deterministically.
func (l *Loop) Cycle(now time.Time) {
	l.machine.Tick(now)

	snap, err := l.deps.Sampler.Sample()
	if err != nil {
		log.Printf("[LOOP] no context, skipping cycle: %v", err)
		l.publishIfChanged()
		return
	}
	if l.deps.Recorder != nil {
		if err := l.deps.Recorder.SaveSnapshot(snap); err != nil {
			log.Printf("[LOOP] snapshot not persisted: %v", err)
		}
	}

	if l.machine.Current() == fsm.StateIdle && snap.Interesting() {
		l.machine.HandleContextChanged(now)
	}

	if l.machine.Current() == fsm.StateObserving {
		l.observe(snap, now)
	}

	l.publishIfChanged()
}

// observe resolves one observing pass: generate, admit, transition.
func (l *Loop) observe(snap intent.Snapshot, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.GeneratorDeadline())
	defer cancel()

	candidate, err := l.deps.Generator.Generate(ctx, snap)
	if err != nil {
		log.Printf("[LOOP] generator failed, treating as no opinion: %v", err)
		candidate = intent.NoCandidate(now)
	}

	decision := l.engine.Evaluate(candidate, now, l.cfg.Engine(), l.enabled)
	l.machine.HandleDecision(decision, now)

	if candidate.Type == intent.None {
		return
	}
	log.Printf("[LOOP] %s %s (reason=%s, adjusted=%.2f)",
		verdict(decision.Approved), candidate.Type, decision.Reason, decision.AdjustedConfidence)
	if l.deps.Recorder != nil {
		rec := store.DecisionRecord{
			IntentType:         candidate.Type,
			Confidence:         candidate.Confidence,
			AdjustedConfidence: decision.AdjustedConfidence,
			Approved:           decision.Approved,
			Reason:             decision.Reason,
			Message:            candidate.Message,
			StateAfter:         l.machine.Current(),
			DecidedAt:          now,
		}
		if err := l.deps.Recorder.LogDecision(rec); err != nil {
			log.Printf("[LOOP] decision not persisted: %v", err)
		}
	}
}

func verdict(approved bool) string {
	if approved {
		return "admitted"
	}
	return "rejected"
}

// #endregion cycle

// #region events

// HandleAction applies a user response to the state machine.
func (l *Loop) HandleAction(a intent.UserAction, now time.Time) {
	l.machine.HandleUserAction(a, now)
	l.publishIfChanged()
}

// SetEnabled flips the kill switch. Disabling forces the machine into its
// global cooldown state and drops any visible suggestion.
func (l *Loop) SetEnabled(enabled bool, now time.Time) {
	if enabled == l.enabled {
		return
	}
	l.enabled = enabled
	log.Printf("[LOOP] kill switch: enabled=%v", enabled)
	l.machine.SetKillSwitch(enabled, now)
	l.publishIfChanged()
}

// #endregion events

// #region publish

// publishIfChanged broadcasts the render contract only when it differs from
// the last published one, so the UI never repaints redundantly.
func (l *Loop) publishIfChanged() {
	if l.deps.Publisher == nil {
		return
	}
	contract := l.machine.Contract()
	if l.published && contract.Equal(l.lastContract) {
		return
	}
	l.deps.Publisher.Broadcast(contract)
	l.lastContract = contract
	l.published = true
}

// #endregion publish
