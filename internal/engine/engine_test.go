package engine

import (
	"testing"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/decay"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
	"github.com/orbitdesk/orbit/go-companion/internal/ledger"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newEngine() (*Engine, *ledger.Ledger, *decay.Model) {
	l := ledger.New()
	d := decay.New()
	return New(l, d), l, d
}

// openConfig has every guard loose so individual checks can be exercised.
func openConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		GlobalCooldown:      0,
		PerIntentCooldown:   0,
		DismissCooldown:     0,
		SameIntentWindow:    0,
		MaxPopupsPerHour:    1000,
	}
}

func candidate(typ intent.IntentType, confidence float32) intent.Candidate {
	return intent.Candidate{Type: typ, Confidence: confidence, Message: "m", CreatedAt: t0}
}

func TestDisabledKillSwitch(t *testing.T) {
	e, l, _ := newEngine()
	d := e.Evaluate(candidate(intent.SuggestHelp, 0.95), t0, openConfig(), false)
	if d.Approved || d.Reason != ReasonDisabled {
		t.Fatalf("expected disabled rejection, got approved=%v reason=%s", d.Approved, d.Reason)
	}
	if _, ok := l.LastFiredGlobal(); ok {
		t.Fatal("rejection must not touch the ledger")
	}
}

func TestNoneCandidateIsDisabled(t *testing.T) {
	e, _, _ := newEngine()
	d := e.Evaluate(intent.NoCandidate(t0), t0, openConfig(), true)
	if d.Approved || d.Reason != ReasonDisabled {
		t.Fatalf("none sentinel should reject with disabled, got approved=%v reason=%s", d.Approved, d.Reason)
	}
}

func TestLowConfidenceLeavesLedgerUnchanged(t *testing.T) {
	e, l, _ := newEngine()
	d := e.Evaluate(candidate(intent.SuggestHelp, 0.5), t0, openConfig(), true)
	if d.Approved || d.Reason != ReasonLowConfidence {
		t.Fatalf("expected low_confidence, got approved=%v reason=%s", d.Approved, d.Reason)
	}
	if _, ok := l.LastFiredGlobal(); ok {
		t.Fatal("ledger must be unchanged on low_confidence")
	}
	if n := l.CountLastHour(t0); n != 0 {
		t.Fatalf("window must be empty, got %d", n)
	}
}

func TestDecayedConfidenceBelowThreshold(t *testing.T) {
	e, _, dm := newEngine()
	// 3 dismissals: 0.9 * 0.7 = 0.63 < 0.7
	for i := 0; i < 3; i++ {
		dm.RecordFeedback(intent.SuggestHelp, false)
	}
	d := e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0, openConfig(), true)
	if d.Approved || d.Reason != ReasonLowConfidence {
		t.Fatalf("expected low_confidence after decay, got approved=%v reason=%s", d.Approved, d.Reason)
	}
	if d.AdjustedConfidence < 0.62 || d.AdjustedConfidence > 0.64 {
		t.Fatalf("expected adjusted confidence ~0.63, got %.4f", d.AdjustedConfidence)
	}
}

func TestGlobalCooldown(t *testing.T) {
	e, _, _ := newEngine()
	cfg := openConfig()
	cfg.GlobalCooldown = 60 * time.Second

	if d := e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0, cfg, true); !d.Approved {
		t.Fatalf("first candidate should be admitted, got %s", d.Reason)
	}
	d := e.Evaluate(candidate(intent.Info, 0.9), t0.Add(30*time.Second), cfg, true)
	if d.Approved || d.Reason != ReasonGlobalCooldown {
		t.Fatalf("expected global_cooldown, got approved=%v reason=%s", d.Approved, d.Reason)
	}
}

func TestPerIntentCooldownWindow(t *testing.T) {
	e, _, _ := newEngine()
	cfg := openConfig()
	cfg.PerIntentCooldown = 180 * time.Second

	if d := e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0, cfg, true); !d.Approved {
		t.Fatalf("first candidate should be admitted, got %s", d.Reason)
	}

	// Same type at t0+170s: still cooling down.
	d := e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0.Add(170*time.Second), cfg, true)
	if d.Approved || d.Reason != ReasonPerIntentCooldown {
		t.Fatalf("expected per_intent_cooldown at +170s, got approved=%v reason=%s", d.Approved, d.Reason)
	}

	// Same type at t0+181s with all other guards satisfied: admitted.
	d = e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0.Add(181*time.Second), cfg, true)
	if !d.Approved {
		t.Fatalf("expected admission at +181s, got %s", d.Reason)
	}
}

func TestDismissCooldownOverridesConfidence(t *testing.T) {
	e, l, _ := newEngine()
	cfg := openConfig()
	cfg.DismissCooldown = 600 * time.Second
	l.RecordDismiss(t0)

	d := e.Evaluate(candidate(intent.SuggestHelp, 0.99), t0.Add(95*time.Second), cfg, true)
	if d.Approved || d.Reason != ReasonDismissCooldown {
		t.Fatalf("expected dismiss_cooldown regardless of confidence, got approved=%v reason=%s", d.Approved, d.Reason)
	}

	d = e.Evaluate(candidate(intent.SuggestHelp, 0.99), t0.Add(601*time.Second), cfg, true)
	if !d.Approved {
		t.Fatalf("expected admission after dismiss cooldown elapsed, got %s", d.Reason)
	}
}

func TestRateLimited(t *testing.T) {
	e, _, _ := newEngine()
	cfg := openConfig()
	cfg.MaxPopupsPerHour = 3

	types := []intent.IntentType{intent.SuggestHelp, intent.Info, intent.Remind}
	for i, typ := range types {
		at := t0.Add(time.Duration(i) * time.Minute)
		if d := e.Evaluate(candidate(typ, 0.9), at, cfg, true); !d.Approved {
			t.Fatalf("admission %d should pass, got %s", i, d.Reason)
		}
	}

	d := e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0.Add(10*time.Minute), cfg, true)
	if d.Approved || d.Reason != ReasonRateLimited {
		t.Fatalf("expected rate_limited, got approved=%v reason=%s", d.Approved, d.Reason)
	}

	// Once the oldest admissions roll out of the window, admissions resume.
	d = e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0.Add(62*time.Minute), cfg, true)
	if !d.Approved {
		t.Fatalf("expected admission after window rolled, got %s", d.Reason)
	}
}

func TestDuplicateWindow(t *testing.T) {
	e, _, _ := newEngine()
	cfg := openConfig()
	cfg.SameIntentWindow = 900 * time.Second

	if d := e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0, cfg, true); !d.Approved {
		t.Fatalf("first candidate should be admitted, got %s", d.Reason)
	}

	// Same type again inside the window.
	d := e.Evaluate(candidate(intent.SuggestHelp, 0.9), t0.Add(5*time.Minute), cfg, true)
	if d.Approved || d.Reason != ReasonDuplicateWindow {
		t.Fatalf("expected duplicate_window, got approved=%v reason=%s", d.Approved, d.Reason)
	}

	// A different type is not a duplicate.
	d = e.Evaluate(candidate(intent.Info, 0.9), t0.Add(6*time.Minute), cfg, true)
	if !d.Approved {
		t.Fatalf("different type should be admitted, got %s", d.Reason)
	}
}

func TestCheckOrderIsDeterministic(t *testing.T) {
	// With multiple guards failing at once, the first check in the fixed
	// order selects the reason: confidence before cooldowns.
	e, l, _ := newEngine()
	cfg := openConfig()
	cfg.GlobalCooldown = time.Hour
	l.RecordAdmission(intent.SuggestHelp, t0)
	l.RecordDismiss(t0)

	d := e.Evaluate(candidate(intent.SuggestHelp, 0.1), t0.Add(time.Second), cfg, true)
	if d.Reason != ReasonLowConfidence {
		t.Fatalf("expected low_confidence to win the tie-break, got %s", d.Reason)
	}
}

func TestRejectedEvaluateIsIdempotent(t *testing.T) {
	e, _, _ := newEngine()
	cfg := openConfig()
	c := candidate(intent.SuggestHelp, 0.4)

	first := e.Evaluate(c, t0, cfg, true)
	second := e.Evaluate(c, t0, cfg, true)

	if first.Approved || second.Approved {
		t.Fatal("both evaluations should reject")
	}
	if first.Reason != second.Reason || first.AdjustedConfidence != second.AdjustedConfidence || !first.DecidedAt.Equal(second.DecidedAt) {
		t.Fatalf("identical inputs diverged: %+v vs %+v", first, second)
	}
}

func TestAdmissionRecordsLedger(t *testing.T) {
	e, l, _ := newEngine()
	d := e.Evaluate(candidate(intent.Remind, 0.9), t0, openConfig(), true)
	if !d.Approved || d.Reason != ReasonApproved {
		t.Fatalf("expected approval, got approved=%v reason=%s", d.Approved, d.Reason)
	}
	if d.Intent == nil || d.Intent.Type != intent.Remind {
		t.Fatalf("decision should carry the admitted intent, got %+v", d.Intent)
	}
	global, ok := l.LastFiredGlobal()
	if !ok || !global.Equal(t0) {
		t.Fatalf("admission must stamp the ledger, got %v (ok=%v)", global, ok)
	}
	if n := l.CountLastHour(t0); n != 1 {
		t.Fatalf("expected 1 windowed admission, got %d", n)
	}
}
