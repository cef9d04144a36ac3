package model

import "context"

// Provider is a streaming text-completion backend. Stage workers are
// single-turn: one system prompt, one user prompt, one completion.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64

	// OnChunk, when set, is called with each streamed text delta in
	// arrival order, before Complete returns.
	OnChunk func(text string)
}

type CompletionResponse struct {
	Content    string
	Usage      Usage
	Model      string
	StopReason string
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}
