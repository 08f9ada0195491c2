package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-test",
			"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19,
			          "prompt_tokens_details": {"cached_tokens": 4}}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("key-1", srv.URL, "gpt-test")
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		System: "be brief", Prompt: "hi", MaxTokens: 100, Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello" {
		t.Fatalf("content = %q", resp.Content)
	}
	if resp.Usage.Input != 12 || resp.Usage.Output != 7 || resp.Usage.Cached != 4 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if gotAuth != "Bearer key-1" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestOpenAIProvider_APIKeyOverride(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("default-key", srv.URL, "m")
	_, err := p.Complete(context.Background(), &CompletionRequest{Prompt: "x", APIKeyOverride: "user-key"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer user-key" {
		t.Fatalf("override not applied, auth = %q", gotAuth)
	}
}

func TestOpenAIProvider_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{429, KindRateLimited},
		{402, KindQuotaExceeded},
		{500, KindTransient},
		{400, KindValidation},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error":"nope"}`))
		}))
		p := NewOpenAIProvider("k", srv.URL, "m")
		_, err := p.Complete(context.Background(), &CompletionRequest{Prompt: "x"})
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if KindOf(err) != tc.want {
			t.Errorf("status %d: kind = %v, want %v", tc.status, KindOf(err), tc.want)
		}
	}
}

func TestOpenAIProvider_MalformedBodyIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL, "m")
	_, err := p.Complete(context.Background(), &CompletionRequest{Prompt: "x"})
	if KindOf(err) != KindInvalidResponse {
		t.Fatalf("expected invalid_response, got %v", err)
	}
}

func TestSearchClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "brave-key" {
			t.Errorf("token header = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "beekeeping basics" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(`{"web":{"results":[
			{"title":"Bees 101","url":"https://example.com/bees","description":"intro","page_age":"2026-01-01"},
			{"title":"Hive care","url":"https://example.com/hive","description":"care"}
		]}}`))
	}))
	defer srv.Close()

	c := NewSearchClient("brave-key", srv.URL)
	c.minGap = 0
	results, err := c.Search(context.Background(), "beekeeping basics", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Bees 101" || results[0].PublishedDate != "2026-01-01" {
		t.Fatalf("first result = %+v", results[0])
	}
}

func TestSearchClient_EmptyQueryRejected(t *testing.T) {
	c := NewSearchClient("k", "http://unused.invalid")
	_, err := c.Search(context.Background(), "  ", 5)
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchClient_PacesRequests(t *testing.T) {
	c := NewSearchClient("k", "http://unused.invalid")
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var slept time.Duration
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c.sleep = func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		slept += d
		now = now.Add(d)
	}

	c.pace()
	if slept != 0 {
		t.Fatalf("first call should not sleep, slept %v", slept)
	}
	c.pace()
	if slept != time.Second {
		t.Fatalf("second immediate call should wait the 1s floor, slept %v", slept)
	}
}
