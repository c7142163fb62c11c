package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quibitai/quibit-rag/internal/knowledge"
)

// SearchKnowledgeTool runs semantic search over the client's knowledge base.
// It is constructed per request so the client scope travels with the tool
// instead of through ambient state.
type SearchKnowledgeTool struct {
	store    *knowledge.Store
	clientID string
	topK     int
}

func NewSearchKnowledgeTool(store *knowledge.Store, clientID string, topK int) *SearchKnowledgeTool {
	if topK <= 0 {
		topK = 5
	}
	return &SearchKnowledgeTool{store: store, clientID: clientID, topK: topK}
}

func (t *SearchKnowledgeTool) Name() string { return "search_knowledge" }

func (t *SearchKnowledgeTool) Description() string {
	return "Search the internal knowledge base semantically. Use for questions about company documents, policies or ingested files."
}

func (t *SearchKnowledgeTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"query": map[string]any{"type": "string", "description": "The search query"},
	}, []string{"query"})
}

func (t *SearchKnowledgeTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("invalid tool arguments: query is required")
	}

	results, err := t.store.Search(ctx, t.clientID, in.Query, t.topK)
	if err != nil {
		return "", fmt.Errorf("knowledge search: %w", err)
	}
	if len(results) == 0 {
		return "No matching documents in the knowledge base.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant documents:\n", len(results))
	for _, r := range results {
		snippet := r.Content
		if len(snippet) > 400 {
			snippet = snippet[:400] + "..."
		}
		fmt.Fprintf(&b, "- [%s] (score %.2f) %s\n", r.DocumentID, r.Score, snippet)
	}
	return b.String(), nil
}
