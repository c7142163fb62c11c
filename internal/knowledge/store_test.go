package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEmbedding maps text onto one of two fixed directions so similarity
// ranking is deterministic without a real embedding API.
func testEmbedding(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "invoice") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func TestSearchEmptyCollection(t *testing.T) {
	store := NewEphemeral(testEmbedding)

	results, err := store.Search(context.Background(), "client-1", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsertAndSearchRanksBySimilarity(t *testing.T) {
	store := NewEphemeral(testEmbedding)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "client-1", "doc-1", "invoice processing policy", nil))
	require.NoError(t, store.Upsert(ctx, "client-1", "doc-2", "holiday schedule", nil))

	results, err := store.Search(ctx, "client-1", "how do we handle an invoice?", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-1", results[0].DocumentID)
}

func TestCollectionsAreScopedPerClient(t *testing.T) {
	store := NewEphemeral(testEmbedding)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "client-1", "doc-1", "invoice policy", nil))

	results, err := store.Search(ctx, "client-2", "invoice", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "documents must not leak across client collections")
}

func TestConcurrentFirstUseConvergesOnOneCollection(t *testing.T) {
	store := NewEphemeral(testEmbedding)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				errs[i] = store.Upsert(ctx, "client-1", fmt.Sprintf("doc-%d", i), "invoice policy", nil)
				return
			}
			_, errs[i] = store.Search(ctx, "client-1", "invoice", 5)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, "client-1", "invoice", 10)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestSearchClampsKToCollectionSize(t *testing.T) {
	store := NewEphemeral(testEmbedding)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "client-1", "doc-1", "invoice policy", nil))

	results, err := store.Search(ctx, "client-1", "invoice", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
