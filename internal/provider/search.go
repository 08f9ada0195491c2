package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SearchClient queries a Brave-compatible web-search API. Requests are
// paced to at most one per second and bounded by a hard timeout; callers
// treat failures as "no context available" rather than failing the request.
type SearchClient struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time
	minGap   time.Duration
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewSearchClient creates a search client with a 5s request timeout and a
// 1 request/second rate floor.
func NewSearchClient(apiKey, apiBase string) *SearchClient {
	if apiBase == "" {
		apiBase = "https://api.search.brave.com/res/v1"
	}
	return &SearchClient{
		apiKey:     apiKey,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		minGap:     time.Second,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Search returns up to count web results for query.
func (c *SearchClient) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	const op = "search"

	if strings.TrimSpace(query) == "" {
		return nil, NewAIError(op, KindValidation, fmt.Errorf("empty query"))
	}
	if count <= 0 {
		count = 5
	}
	c.pace()

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.apiBase+"/web/search?"+q.Encode(), nil)
	if err != nil {
		return nil, NewAIError(op, KindValidation, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
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
			fmt.Errorf("search API error (status %d): %s", resp.StatusCode, truncateBody(respBody)))
	}

	var apiResp braveResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, NewAIError(op, KindInvalidResponse, fmt.Errorf("parse response: %w", err))
	}

	results := make([]SearchResult, 0, len(apiResp.Web.Results))
	for _, r := range apiResp.Web.Results {
		results = append(results, SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Description,
			PublishedDate: r.PageAge,
		})
	}
	return results, nil
}

// pace enforces the 1 req/s floor across concurrent callers.
func (c *SearchClient) pace() {
	c.mu.Lock()
	now := c.now()
	wait := c.minGap - now.Sub(c.lastCall)
	if wait > 0 {
		c.lastCall = now.Add(wait)
	} else {
		c.lastCall = now
		wait = 0
	}
	c.mu.Unlock()

	if wait > 0 {
		c.sleep(wait)
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	} `json:"web"`
}
