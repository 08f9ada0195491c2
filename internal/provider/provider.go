// Package provider implements the external LLM, web-search, and voice
// collaborators plus the typed error taxonomy and retry wrapper around them.
package provider

import (
	"context"
)

// LLMProvider is the interface for LLM API clients. The chat core holds two
// instances: a fast/cheap tier for matching and skill ranking, and a smart
// tier for profile generation and evolution analysis.
type LLMProvider interface {
	// Complete sends a text-completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
	// Speak converts text to audio.
	Speak(ctx context.Context, req *TTSRequest) (*TTSResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// CompletionRequest contains the parameters for a completion request.
type CompletionRequest struct {
	System         string
	Prompt         string
	MaxTokens      int
	Temperature    float64
	CacheHint      bool
	APIKeyOverride string
}

// Completion contains the response from a completion request.
type Completion struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage contains token counts for one call. Cached tokens are input
// tokens served from the upstream prompt cache at a discounted rate.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Cached int `json:"cached"`
}

// TTSRequest contains parameters for speech synthesis.
type TTSRequest struct {
	Text           string
	Voice          string
	Speed          float64
	APIKeyOverride string
}

// TTSResponse contains the synthesized audio.
type TTSResponse struct {
	AudioData []byte
	Format    string
}

// SearchResult is a single web-search hit.
type SearchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	PublishedDate string `json:"publishedDate,omitempty"`
}

// Searcher is the interface for web-search clients.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}
