package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebSearchTool queries an external search API and returns titled snippets.
type WebSearchTool struct {
	endpoint   string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

func NewWebSearchTool(endpoint, apiKey string, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{
		endpoint:   endpoint,
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Use for recent events or anything outside the knowledge base."
}

func (t *WebSearchTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"query":       map[string]any{"type": "string", "description": "The search query"},
		"max_results": map[string]any{"type": "integer", "description": "Maximum results to return"},
	}, []string{"query"})
}

func (t *WebSearchTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("invalid tool arguments: query is required")
	}
	if in.MaxResults <= 0 || in.MaxResults > t.maxResults {
		in.MaxResults = t.maxResults
	}

	body, err := json.Marshal(map[string]any{
		"query":       in.Query,
		"max_results": in.MaxResults,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var out struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(out.Results) == 0 {
		return "No results found for " + in.Query + ".", nil
	}

	var b strings.Builder
	for i, r := range out.Results {
		snippet := r.Content
		if len(snippet) > 300 {
			snippet = snippet[:300] + "..."
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, r.Title, r.URL, snippet)
	}
	return b.String(), nil
}
