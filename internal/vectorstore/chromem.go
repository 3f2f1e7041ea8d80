// Package vectorstore maintains the embedded vector index used for
// semantic product search. Embeddings are always computed upstream and
// passed in; the index never calls an embedding API itself.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// Match is a single semantic search hit
type Match struct {
	ProductID  string
	Similarity float32
}

// Store wraps a persistent chromem collection keyed by product ID
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens (or creates) the persistent index at path
func New(path, collectionName string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	// Embeddings arrive precomputed; reaching this func is a bug.
	noEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("vectorstore: embedding must be precomputed")
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("opening vector collection: %w", err)
	}

	return &Store{db: db, collection: collection}, nil
}

// Upsert indexes a product embedding, replacing any previous entry
func (s *Store) Upsert(ctx context.Context, productID string, embedding []float32, inStock bool) error {
	if productID == "" {
		return errors.New("vectorstore: empty product ID")
	}
	if len(embedding) == 0 {
		return errors.New("vectorstore: empty embedding")
	}

	doc := chromem.Document{
		ID:        productID,
		Content:   productID,
		Embedding: embedding,
		Metadata: map[string]string{
			"in_stock": fmt.Sprintf("%t", inStock),
		},
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("indexing product %s: %w", productID, err)
	}
	return nil
}

// Delete removes a product from the index. Missing IDs are not an error.
func (s *Store) Delete(ctx context.Context, productID string) error {
	return s.collection.Delete(ctx, nil, nil, productID)
}

// Query returns the k nearest products to the query embedding. Only
// in-stock products are considered. k is clamped to the collection
// size; an empty index returns no matches.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, k, map[string]string{"in_stock": "true"}, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{ProductID: r.ID, Similarity: r.Similarity})
	}
	return matches, nil
}

// Count returns the number of indexed products
func (s *Store) Count() int {
	return s.collection.Count()
}
