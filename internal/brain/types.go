package brain

import (
	"context"

	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region generator-interface

// Generator turns a context snapshot into zero-or-one candidate intent.
// Implementations must respect ctx cancellation; the orchestration loop
// bounds every call with a timeout and treats failure as "no opinion".
type Generator interface {
	Generate(ctx context.Context, snap intent.Snapshot) (intent.Candidate, error)
}

// #endregion generator-interface

// #region mode

// Mode selects which generator backs the brain.
type Mode string

const (
	ModeAuto   Mode = "auto"   // Ollama when reachable, rules otherwise
	ModeOllama Mode = "ollama" // Ollama only
	ModeRule   Mode = "rule"   // deterministic rules only
)

// ParseMode maps a config string to a Mode, defaulting to auto.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeOllama, ModeRule:
		return Mode(s)
	default:
		return ModeAuto
	}
}

// #endregion mode
