package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
)

type AnthropicOption func(*AnthropicProvider)

type AnthropicProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	provider := &AnthropicProvider{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: defaultAnthropicEndpoint,
		client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider
}

func WithAnthropicEndpoint(endpoint string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			p.endpoint = trimmed
		}
	}
}

func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) {
		if client != nil {
			p.client = client
		}
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type anthropicErrorEnvelope struct {
	Error anthropicError `json:"error"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var _ Provider = (*AnthropicProvider)(nil)

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return CompletionResponse{}, errors.New("anthropic api key is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return CompletionResponse{}, errors.New("model is required")
	}
	if req.MaxTokens <= 0 {
		return CompletionResponse{}, errors.New("max tokens must be greater than zero")
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		return CompletionResponse{}, errors.New("user prompt is required")
	}

	payload := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
		Messages:    []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
		System:      req.SystemPrompt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CompletionResponse{}, parseAnthropicAPIError(resp)
	}

	parsed, err := parseAnthropicSSE(io.LimitReader(resp.Body, 8<<20), req.OnChunk)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("decode anthropic response: %w", err)
	}
	if strings.TrimSpace(parsed.content) == "" {
		return CompletionResponse{}, errors.New("anthropic response contained no text")
	}

	modelName := parsed.model
	if modelName == "" {
		modelName = req.Model
	}

	return CompletionResponse{
		Content: parsed.content,
		Usage: Usage{
			InputTokens:  parsed.usage.InputTokens,
			OutputTokens: parsed.usage.OutputTokens,
		},
		Model:      modelName,
		StopReason: parsed.stopReason,
	}, nil
}

type anthropicSSEEvent struct {
	Type    string               `json:"type"`
	Message *anthropicSSEMessage `json:"message"`
	Delta   *anthropicSSEDelta   `json:"delta"`
	Usage   *anthropicUsage      `json:"usage"`
	Error   *anthropicError      `json:"error"`
}

type anthropicSSEMessage struct {
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type anthropicSSEDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	StopReason string `json:"stop_reason"`
}

type anthropicStreamResult struct {
	content    string
	model      string
	stopReason string
	usage      anthropicUsage
}

// parseAnthropicSSE consumes a messages-API event stream, invoking onChunk
// for each text delta in arrival order.
func parseAnthropicSSE(reader io.Reader, onChunk func(string)) (anthropicStreamResult, error) {
	stream := bufio.NewReader(reader)
	var content strings.Builder
	result := anthropicStreamResult{}
	seenData := false

	processData := func(payload string) (bool, error) {
		payload = strings.TrimSpace(payload)
		if payload == "" || payload == "[DONE]" {
			return false, nil
		}
		seenData = true

		var event anthropicSSEEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return false, fmt.Errorf("parse anthropic stream event: %w", err)
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				if model := strings.TrimSpace(event.Message.Model); model != "" {
					result.model = model
				}
				result.usage.InputTokens = event.Message.Usage.InputTokens
				if event.Message.Usage.OutputTokens != 0 {
					result.usage.OutputTokens = event.Message.Usage.OutputTokens
				}
			}
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				content.WriteString(event.Delta.Text)
				if onChunk != nil {
					onChunk(event.Delta.Text)
				}
			}
		case "message_delta":
			if event.Delta != nil {
				if stopReason := strings.TrimSpace(event.Delta.StopReason); stopReason != "" {
					result.stopReason = stopReason
				}
			}
			if event.Usage != nil {
				if event.Usage.InputTokens != 0 {
					result.usage.InputTokens = event.Usage.InputTokens
				}
				if event.Usage.OutputTokens != 0 {
					result.usage.OutputTokens = event.Usage.OutputTokens
				}
			}
		case "message_stop":
			result.content = content.String()
			return true, nil
		case "error":
			return false, fmt.Errorf("anthropic stream error: %s", anthropicSSEErrorMessage(event, payload))
		}

		return false, nil
	}

	for {
		line, err := stream.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return anthropicStreamResult{}, err
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(trimmed, "data:") {
			done, parseErr := processData(strings.TrimPrefix(trimmed, "data:"))
			if parseErr != nil {
				return anthropicStreamResult{}, parseErr
			}
			if done {
				return result, nil
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	result.content = content.String()
	if seenData {
		return result, nil
	}
	return anthropicStreamResult{}, errors.New("anthropic stream ended without data")
}

func anthropicSSEErrorMessage(event anthropicSSEEvent, payload string) string {
	if event.Error != nil {
		if message := strings.TrimSpace(event.Error.Message); message != "" {
			return message
		}
		if errorType := strings.TrimSpace(event.Error.Type); errorType != "" {
			return errorType
		}
	}
	if payload = strings.TrimSpace(payload); payload != "" {
		return payload
	}
	return "unknown stream failure"
}

func parseAnthropicAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	message := strings.TrimSpace(string(body))
	if len(body) > 0 {
		var parsed anthropicErrorEnvelope
		if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
			message = parsed.Error.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("anthropic rate limited: %s", message)
	}
	return fmt.Errorf("anthropic api status %d: %s", resp.StatusCode, message)
}
