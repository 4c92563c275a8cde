package brain

import (
	"context"
	"log"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region brain

// Brain is the candidate generator boundary: a mode-selected wrapper around
// the Ollama and rule generators with graceful fallback. The loop treats any
// error as "no opinion", so the companion degrades to silence, never noise.
type Brain struct {
	mode   Mode
	ollama *OllamaGenerator
	rules  *RuleGenerator

	// Cached auto-mode probe so every tick does not pay for a failing
	// dial. Rechecked after healthTTL.
	healthy   bool
	healthAt  time.Time
	healthTTL time.Duration
}

// New creates a brain in the given mode.
func New(mode Mode, ollama *OllamaGenerator) *Brain {
	return &Brain{
		mode:      mode,
		ollama:    ollama,
		rules:     NewRuleGenerator(),
		healthTTL: time.Minute,
	}
}

// Generate produces one candidate for the snapshot.
func (b *Brain) Generate(ctx context.Context, snap intent.Snapshot) (intent.Candidate, error) {
	switch b.mode {
	case ModeRule:
		return b.rules.Generate(ctx, snap)
	case ModeOllama:
		return b.ollama.Generate(ctx, snap)
	default:
		if b.ollamaReachable(ctx) {
			c, err := b.ollama.Generate(ctx, snap)
			if err == nil {
				return c, nil
			}
			log.Printf("[BRAIN] ollama failed, falling back to rules: %v", err)
			b.healthy = false
		}
		return b.rules.Generate(ctx, snap)
	}
}

// ollamaReachable probes the server, caching the result for healthTTL.
func (b *Brain) ollamaReachable(ctx context.Context) bool {
	if b.ollama == nil {
		return false
	}
	if !b.healthAt.IsZero() && time.Since(b.healthAt) < b.healthTTL {
		return b.healthy
	}
	b.healthy = b.ollama.Healthy(ctx)
	b.healthAt = time.Now()
	if !b.healthy {
		log.Printf("[BRAIN] ollama unreachable, using rule generator")
	}
	return b.healthy
}

// #endregion brain
