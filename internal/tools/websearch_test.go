package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearchRequiresQuery(t *testing.T) {
	tool := NewWebSearchTool("http://unused", "key", 5)

	_, err := tool.Call(context.Background(), json.RawMessage(`{"query":"  "}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestWebSearchFormatsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "golang sse", body["query"])
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Server-sent events in Go", "url": "https://example.com/sse", "content": "How to stream"},
			},
		})
	}))
	defer server.Close()

	tool := NewWebSearchTool(server.URL, "key", 5)
	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"golang sse"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Server-sent events in Go")
	assert.Contains(t, out, "https://example.com/sse")
}

func TestWebSearchClampsMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(3), body["max_results"])
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer server.Close()

	tool := NewWebSearchTool(server.URL, "key", 3)
	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"q","max_results":50}`))
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}
