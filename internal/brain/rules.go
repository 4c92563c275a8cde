package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region message-pool

// suggestMessages is the rotating pool for help suggestions. The generator
// picks the least-used message and never repeats the previous one, so the
// companion does not sound like a broken record.
var suggestMessages = []string{
	"Been idle a while — need a hand?",
	"Stuck on something? I can help dig.",
	"Want me to summarize today's progress?",
	"Need a second opinion on this code?",
	"Want me to look up docs or examples?",
	"Looks like a tricky one. Want to talk it through?",
	"Need help debugging that?",
	"Want a fresh perspective?",
}

// #endregion message-pool

// #region rule-generator

// RuleGenerator derives candidates from snapshot heuristics alone. It is the
// deterministic fallback when no model is reachable, and self-throttles help
// suggestions independently of the admission policy downstream.
type RuleGenerator struct {
	usage         map[string]int
	lastMessage   string
	lastSuggestAt time.Time
	minSuggestGap time.Duration
}

// NewRuleGenerator returns a rule generator with the production throttle.
func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{
		usage:         make(map[string]int),
		minSuggestGap: 15 * time.Minute,
	}
}

// Generate derives a candidate from the snapshot. Never fails; quiet context
// yields the none sentinel.
func (g *RuleGenerator) Generate(ctx context.Context, snap intent.Snapshot) (intent.Candidate, error) {
	at := snap.CapturedAt

	// Long idle or recent errors: offer help.
	if snap.IdleSeconds >= 300 || snap.RecentErrors > 0 {
		if !g.lastSuggestAt.IsZero() && at.Sub(g.lastSuggestAt) < g.minSuggestGap {
			return intent.NoCandidate(at), nil
		}
		msg := g.nextMessage()
		g.lastSuggestAt = at
		return intent.Candidate{
			Type:       intent.SuggestHelp,
			Confidence: g.confidence(snap),
			Message:    msg,
			Reasoning:  "rule: long idle or recent errors",
			CreatedAt:  at,
		}, nil
	}

	// A burst of file edits: low-key status note.
	if snap.RecentFileChanges > 3 {
		return intent.Candidate{
			Type:       intent.Info,
			Confidence: 0.72,
			Message:    fmt.Sprintf("You've touched %d files recently — want a checkpoint summary?", snap.RecentFileChanges),
			Reasoning:  "rule: file change burst",
			CreatedAt:  at,
		}, nil
	}

	return intent.NoCandidate(at), nil
}

// #endregion rule-generator

// #region helpers

// confidence maps snapshot strength to [0.70, 0.90].
func (g *RuleGenerator) confidence(snap intent.Snapshot) float32 {
	c := float32(0.70)
	if snap.IdleSeconds >= 300 {
		c += 0.10
	} else if snap.IdleSeconds >= 180 {
		c += 0.05
	}
	if snap.RecentErrors > 0 {
		c += 0.05
	}
	if c > 0.90 {
		c = 0.90
	}
	return c
}

// nextMessage returns the least-used message, skipping the previous one.
func (g *RuleGenerator) nextMessage() string {
	best := ""
	bestCount := -1
	for _, m := range suggestMessages {
		if m == g.lastMessage {
			continue
		}
		if bestCount == -1 || g.usage[m] < bestCount {
			best = m
			bestCount = g.usage[m]
		}
	}
	if best == "" {
		best = suggestMessages[0]
	}
	g.usage[best]++
	g.lastMessage = best
	return best
}

// #endregion helpers
