// Package knowledge is the semantic search layer over ingested documents,
// backed by a persistent chromem-go vector store with one collection per
// client workspace.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
)

// SearchResult is a single semantic-search hit.
type SearchResult struct {
	DocumentID string
	Content    string
	Score      float32
}

type Store struct {
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
}

// New creates (or opens) the persistent vector store at dataDir/knowledge/.
func New(dataDir string, embedFn chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(dataDir, "knowledge")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create knowledge dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	return &Store{db: db, embedFn: embedFn}, nil
}

// NewEphemeral returns a non-persistent store for tests and local runs.
func NewEphemeral(embedFn chromem.EmbeddingFunc) *Store {
	return &Store{db: chromem.NewDB(), embedFn: embedFn}
}

func collectionName(clientID string) string {
	return "client_" + clientID
}

// collection resolves the client's collection; chromem creates it atomically
// on first use, so concurrent callers always converge on the same one.
func (s *Store) collection(clientID string) (*chromem.Collection, error) {
	col, err := s.db.GetOrCreateCollection(collectionName(clientID), nil, s.embedFn)
	if err != nil {
		return nil, fmt.Errorf("collection for client %s: %w", clientID, err)
	}
	return col, nil
}

// Upsert indexes (or re-indexes) a document for a client.
func (s *Store) Upsert(ctx context.Context, clientID, docID, content string, metadata map[string]string) error {
	col, err := s.collection(clientID)
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{
		ID:       docID,
		Content:  content,
		Metadata: metadata,
	})
}

// Search returns the top-k documents most semantically similar to the query.
func (s *Store) Search(ctx context.Context, clientID, query string, k int) ([]SearchResult, error) {
	col, err := s.collection(clientID)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			DocumentID: r.ID,
			Content:    r.Content,
			Score:      r.Similarity,
		})
	}
	return out, nil
}
