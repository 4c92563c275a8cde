package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region ollama-generator

// OllamaGenerator produces candidate intents from a local Ollama server.
type OllamaGenerator struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaGenerator creates a generator against a local Ollama server.
func NewOllamaGenerator(endpoint, model string) *OllamaGenerator {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaGenerator{
		endpoint: endpoint,
		model:    model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Healthy reports whether the Ollama server answers at all.
func (g *OllamaGenerator) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", g.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// #endregion ollama-generator

// #region generate

const intentPrompt = `You are a quiet desktop companion. Given the user's current context,
decide whether a single short suggestion is warranted.

Context:
- active app: %s
- idle seconds: %.0f
- recent errors: %d
- recent file changes: %d

Reply with strict JSON only, no prose:
{"intent": "suggest_help"|"info"|"remind"|"none", "confidence": 0.0-1.0, "message": "...", "reasoning": "..."}
If nothing is worth saying, use intent "none".`

// Generate asks the model for a candidate intent. A malformed reply degrades
// to the none sentinel rather than an error; transport failures are errors
// the caller maps to "no opinion".
func (g *OllamaGenerator) Generate(ctx context.Context, snap intent.Snapshot) (intent.Candidate, error) {
	prompt := fmt.Sprintf(intentPrompt, snap.ActiveApp, snap.IdleSeconds, snap.RecentErrors, snap.RecentFileChanges)

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return intent.Candidate{}, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return intent.Candidate{}, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return intent.Candidate{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return intent.Candidate{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(msg))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return intent.Candidate{}, fmt.Errorf("decode generate response: %w", err)
	}

	return parseIntentJSON(result.Response, snap.CapturedAt), nil
}

// parseIntentJSON turns the model's JSON reply into a candidate.
// Anything unparseable or out of range collapses to the none sentinel.
func parseIntentJSON(raw string, at time.Time) intent.Candidate {
	var reply ollamaIntentReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return intent.NoCandidate(at)
	}

	typ := intent.ParseIntentType(reply.Intent)
	if typ == intent.None {
		return intent.NoCandidate(at)
	}
	if reply.Message == "" {
		return intent.NoCandidate(at)
	}

	confidence := reply.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return intent.Candidate{
		Type:       typ,
		Confidence: confidence,
		Message:    reply.Message,
		Reasoning:  reply.Reasoning,
		CreatedAt:  at,
	}
}

// #endregion generate

// #region api-types

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaIntentReply struct {
	Intent     string  `json:"intent"`
	Confidence float32 `json:"confidence"`
	Message    string  `json:"message"`
	Reasoning  string  `json:"reasoning"`
}

// #endregion api-types
