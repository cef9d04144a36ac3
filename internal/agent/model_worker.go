package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kc-vaultik/shapex-studio/internal/model"
)

// ModelWorker runs one stage against an LLM provider.
type ModelWorker struct {
	role     Role
	provider model.Provider
	config   Config
}

func NewModelWorker(role Role, provider model.Provider, config Config) (*ModelWorker, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("unsupported role %q", role)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = defaultModelName
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 8000
	}
	return &ModelWorker{role: role, provider: provider, config: config}, nil
}

func (w *ModelWorker) Role() Role {
	return w.role
}

func (w *ModelWorker) Run(ctx context.Context, wc Context, onChunk func(string)) (Output, error) {
	resp, err := w.provider.Complete(ctx, model.CompletionRequest{
		Model:        w.config.Model,
		SystemPrompt: w.config.SystemPrompt,
		UserPrompt:   buildUserPrompt(wc.Idea, wc.Prior),
		MaxTokens:    w.config.MaxTokens,
		Temperature:  w.config.Temperature,
		OnChunk:      onChunk,
	})
	if err != nil {
		return Output{}, fmt.Errorf("%s completion: %w", w.role, err)
	}

	structured, err := extractJSON(resp.Content)
	if err != nil {
		return Output{}, fmt.Errorf("%s output: %w", w.role, err)
	}

	out := Output{
		Role:       w.role,
		RawOutput:  resp.Content,
		Structured: structured,
		TokensUsed: resp.Usage.TotalTokens(),
		CostUSD:    costUSD(resp.Model, resp.Usage),
		Model:      resp.Model,
	}
	if err := validateOutput(out); err != nil {
		return Output{}, err
	}
	return out, nil
}

// extractJSON pulls the JSON object out of a completion, tolerating the
// markdown code fences models like to wrap it in.
func extractJSON(raw string) (json.RawMessage, error) {
	candidate := strings.TrimSpace(raw)
	if i := strings.Index(candidate, "```json"); i >= 0 {
		rest := candidate[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			candidate = strings.TrimSpace(rest[:j])
		}
	} else if i := strings.Index(candidate, "```"); i >= 0 {
		rest := candidate[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			candidate = strings.TrimSpace(rest[:j])
		}
	}

	if candidate == "" {
		return nil, fmt.Errorf("empty completion")
	}
	var decoded json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return nil, fmt.Errorf("parse structured output: %w", err)
	}
	return decoded, nil
}
