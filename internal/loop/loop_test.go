package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/config"
	"github.com/orbitdesk/orbit/go-companion/internal/engine"
	"github.com/orbitdesk/orbit/go-companion/internal/fsm"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
	"github.com/orbitdesk/orbit/go-companion/internal/store"
)

var t0 = time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

// #region stubs

type stubSampler struct {
	snap intent.Snapshot
	err  error
}

func (s *stubSampler) Sample() (intent.Snapshot, error) {
	return s.snap, s.err
}

type stubGenerator struct {
	candidate intent.Candidate
	err       error
	calls     int
}

func (g *stubGenerator) Generate(ctx context.Context, snap intent.Snapshot) (intent.Candidate, error) {
	g.calls++
	if g.err != nil {
		return intent.NoCandidate(snap.CapturedAt), g.err
	}
	return g.candidate, nil
}

type recordingPublisher struct {
	contracts []fsm.Contract
}

func (p *recordingPublisher) Broadcast(c fsm.Contract) {
	p.contracts = append(p.contracts, c)
}

func (p *recordingPublisher) last(t *testing.T) fsm.Contract {
	t.Helper()
	if len(p.contracts) == 0 {
		t.Fatal("nothing published")
	}
	return p.contracts[len(p.contracts)-1]
}

type memRecorder struct {
	snaps     []intent.Snapshot
	decisions []store.DecisionRecord
}

func (r *memRecorder) SaveSnapshot(s intent.Snapshot) error {
	r.snaps = append(r.snaps, s)
	return nil
}

func (r *memRecorder) LogDecision(rec store.DecisionRecord) error {
	r.decisions = append(r.decisions, rec)
	return nil
}

// #endregion stubs

func interestingSnapshot() intent.Snapshot {
	return intent.Snapshot{ActiveApp: "code", IdleSeconds: 300, CapturedAt: t0}
}

func helpCandidate(conf float32) intent.Candidate {
	return intent.Candidate{
		Type:       intent.SuggestHelp,
		Confidence: conf,
		Message:    "need a hand?",
		CreatedAt:  t0,
	}
}

func newLoop(sampler Sampler, gen *stubGenerator) (*Loop, *recordingPublisher, *memRecorder) {
	pub := &recordingPublisher{}
	rec := &memRecorder{}
	l := New(config.Default(), Deps{
		Sampler:   sampler,
		Generator: gen,
		Publisher: pub,
		Recorder:  rec,
	})
	return l, pub, rec
}

func TestCycleSkipsWithoutContext(t *testing.T) {
	l, _, rec := newLoop(&stubSampler{err: errors.New("no snapshot yet")}, &stubGenerator{})
	l.Cycle(t0)
	if l.State() != fsm.StateIdle {
		t.Fatalf("expected idle after skipped cycle, got %s", l.State())
	}
	if len(rec.snaps) != 0 {
		t.Fatal("no snapshot should be persisted on sampling failure")
	}
}

func TestQuietContextNeverInvokesGenerator(t *testing.T) {
	gen := &stubGenerator{candidate: helpCandidate(0.9)}
	l, _, _ := newLoop(&stubSampler{snap: intent.Snapshot{ActiveApp: "code", IdleSeconds: 5, CapturedAt: t0}}, gen)
	l.Cycle(t0)
	if gen.calls != 0 {
		t.Fatalf("generator should not run on a quiet snapshot, ran %d times", gen.calls)
	}
	if l.State() != fsm.StateIdle {
		t.Fatalf("expected idle, got %s", l.State())
	}
}

func TestAdmissionPathPublishesSuggestion(t *testing.T) {
	gen := &stubGenerator{candidate: helpCandidate(0.9)}
	l, pub, rec := newLoop(&stubSampler{snap: interestingSnapshot()}, gen)

	l.Cycle(t0)

	if l.State() != fsm.StateSuggesting {
		t.Fatalf("expected suggesting, got %s", l.State())
	}
	contract := pub.last(t)
	if !contract.Visible || contract.Bubble == nil || contract.Bubble.Text != "need a hand?" {
		t.Fatalf("unexpected contract: %+v", contract)
	}
	if len(rec.snaps) != 1 {
		t.Fatalf("snapshot should be persisted, got %d", len(rec.snaps))
	}
	if len(rec.decisions) != 1 || !rec.decisions[0].Approved || rec.decisions[0].Reason != engine.ReasonApproved {
		t.Fatalf("unexpected decision log: %+v", rec.decisions)
	}
	if rec.decisions[0].StateAfter != fsm.StateSuggesting {
		t.Fatalf("decision should record post-transition state, got %s", rec.decisions[0].StateAfter)
	}
}

func TestGeneratorFailureDegradesToSilence(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model timeout")}
	l, _, rec := newLoop(&stubSampler{snap: interestingSnapshot()}, gen)

	l.Cycle(t0)

	if l.State() != fsm.StateIdle {
		t.Fatalf("generator failure must resolve to idle, got %s", l.State())
	}
	if len(rec.decisions) != 0 {
		t.Fatalf("no-opinion cycles must not be logged, got %+v", rec.decisions)
	}
}

func TestContractNotRepublishedWhenUnchanged(t *testing.T) {
	gen := &stubGenerator{candidate: intent.NoCandidate(t0)}
	l, pub, _ := newLoop(&stubSampler{snap: interestingSnapshot()}, gen)

	l.Cycle(t0)
	first := len(pub.contracts)
	l.Cycle(t0.Add(10 * time.Second))
	l.Cycle(t0.Add(20 * time.Second))

	if len(pub.contracts) != first {
		t.Fatalf("idle contract republished: %d -> %d", first, len(pub.contracts))
	}
}

func TestDismissSuppressesFollowups(t *testing.T) {
	gen := &stubGenerator{candidate: helpCandidate(0.9)}
	l, pub, _ := newLoop(&stubSampler{snap: interestingSnapshot()}, gen)

	l.Cycle(t0)
	if l.State() != fsm.StateSuggesting {
		t.Fatalf("expected suggesting, got %s", l.State())
	}

	l.HandleAction(intent.ActionDismiss, t0.Add(5*time.Second))
	if l.State() != fsm.StateSuppressed {
		t.Fatalf("dismiss should suppress, got %s", l.State())
	}
	if c := pub.last(t); c.Visible {
		t.Fatal("suppressed contract must not be visible")
	}

	// Still inside the dismiss cooldown: the machine holds in suppressed and
	// the generator is never consulted.
	calls := gen.calls
	l.Cycle(t0.Add(2 * time.Minute))
	if l.State() != fsm.StateSuppressed {
		t.Fatalf("expected suppressed, got %s", l.State())
	}
	if gen.calls != calls {
		t.Fatal("generator must not run while suppressed")
	}

	// After the 600s cooldown the machine releases to idle.
	l.Cycle(t0.Add(11 * time.Minute))
	if l.State() == fsm.StateSuppressed {
		t.Fatal("suppression should release after the cooldown")
	}
}

func TestStaleActionIgnored(t *testing.T) {
	gen := &stubGenerator{candidate: intent.NoCandidate(t0)}
	l, _, _ := newLoop(&stubSampler{snap: interestingSnapshot()}, gen)

	l.Cycle(t0)
	l.HandleAction(intent.ActionAccept, t0.Add(time.Second))
	if l.State() != fsm.StateIdle {
		t.Fatalf("stale accept must not move the machine, got %s", l.State())
	}
}

func TestKillSwitch(t *testing.T) {
	gen := &stubGenerator{candidate: helpCandidate(0.9)}
	l, pub, _ := newLoop(&stubSampler{snap: interestingSnapshot()}, gen)

	l.Cycle(t0)
	if l.State() != fsm.StateSuggesting {
		t.Fatalf("expected suggesting, got %s", l.State())
	}

	l.SetEnabled(false, t0.Add(time.Second))
	if l.State() != fsm.StateCooldownGlobal {
		t.Fatalf("disable should force cooldown_global, got %s", l.State())
	}
	if c := pub.last(t); c.Visible {
		t.Fatal("disabled companion must not show anything")
	}

	// While disabled, cycles are inert.
	calls := gen.calls
	l.Cycle(t0.Add(10 * time.Second))
	if gen.calls != calls {
		t.Fatal("generator must not run while disabled")
	}

	l.SetEnabled(true, t0.Add(20*time.Second))
	if l.State() != fsm.StateIdle {
		t.Fatalf("re-enable should return to idle, got %s", l.State())
	}
}

func TestStartsDisabledWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Enabled = false
	l := New(cfg, Deps{Sampler: &stubSampler{snap: interestingSnapshot()}, Generator: &stubGenerator{}})
	if l.State() != fsm.StateCooldownGlobal {
		t.Fatalf("disabled config should start in cooldown_global, got %s", l.State())
	}
}

func TestConfigReloadTightensThreshold(t *testing.T) {
	gen := &stubGenerator{candidate: helpCandidate(0.8)}
	l, _, rec := newLoop(&stubSampler{snap: interestingSnapshot()}, gen)

	strict := config.Default()
	strict.ConfidenceThreshold = 0.95
	l.applyConfig(strict)

	l.Cycle(t0)
	if l.State() != fsm.StateIdle {
		t.Fatalf("0.80 candidate must fail a 0.95 threshold, got %s", l.State())
	}
	if len(rec.decisions) != 1 || rec.decisions[0].Reason != engine.ReasonLowConfidence {
		t.Fatalf("unexpected decision log: %+v", rec.decisions)
	}
}

func TestSubmitConfigRejectsInvalid(t *testing.T) {
	l, _, _ := newLoop(&stubSampler{snap: interestingSnapshot()}, &stubGenerator{})

	bad := config.Default()
	bad.ConfidenceThreshold = 2
	if err := l.SubmitConfig(bad); err == nil {
		t.Fatal("invalid config must be rejected whole")
	}

	good := config.Default()
	good.PollInterval = 30
	if err := l.SubmitConfig(good); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
