package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements LLMProvider using the OpenAI-compatible API.
// It supports OpenRouter, Anthropic, OpenAI, and other compatible endpoints.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimSuffix(apiBase, "/"),
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// DefaultModel returns the configured default model.
func (p *OpenAIProvider) DefaultModel() string {
	return p.defaultModel
}

// Complete sends a completion request to the OpenAI-compatible API.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	const op = "complete"

	messages := []map[string]any{}
	if req.System != "" {
		system := map[string]any{"role": "system", "content": req.System}
		if req.CacheHint {
			system["cache_control"] = map[string]any{"type": "ephemeral"}
		}
		messages = append(messages, system)
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":       p.defaultModel,
		"messages":    messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, NewAIError(op, KindValidation, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, NewAIError(op, KindValidation, fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.keyFor(req.APIKeyOverride))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewAIError(op, KindTransient, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewAIError(op, KindTransient, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewAIError(op, kindForStatus(resp.StatusCode),
			fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncateBody(respBody)))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, NewAIError(op, KindInvalidResponse, fmt.Errorf("parse response: %w", err))
	}
	if len(apiResp.Choices) == 0 {
		return nil, NewAIError(op, KindInvalidResponse, fmt.Errorf("no choices in response"))
	}

	return &Completion{
		Content: apiResp.Choices[0].Message.Content,
		Model:   apiResp.Model,
		Usage: TokenUsage{
			Input:  apiResp.Usage.PromptTokens,
			Output: apiResp.Usage.CompletionTokens,
			Cached: apiResp.Usage.PromptTokensDetails.CachedTokens,
		},
	}, nil
}

// Speak converts text to audio using the OpenAI TTS API.
func (p *OpenAIProvider) Speak(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	const op = "speak"

	if req.Voice == "" {
		req.Voice = "nova"
	}
	body := map[string]any{
		"model":           "tts-1",
		"input":           req.Text,
		"voice":           req.Voice,
		"response_format": "mp3",
	}
	if req.Speed > 0 {
		body["speed"] = req.Speed
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, NewAIError(op, KindValidation, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/audio/speech", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, NewAIError(op, KindValidation, fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.keyFor(req.APIKeyOverride))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewAIError(op, KindTransient, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, NewAIError(op, kindForStatus(resp.StatusCode),
			fmt.Errorf("TTS API error (status %d): %s", resp.StatusCode, truncateBody(respBody)))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewAIError(op, KindTransient, fmt.Errorf("read response: %w", err))
	}

	return &TTSResponse{AudioData: audioData, Format: "mp3"}, nil
}

func (p *OpenAIProvider) keyFor(override string) string {
	if override != "" {
		return override
	}
	return p.apiKey
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// OpenAI API response types
type openAIResponse struct {
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		TotalTokens         int `json:"total_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

type openAIChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}
