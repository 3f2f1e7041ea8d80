package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/vectorstore"
)

const defaultSemanticK = 20

// SearchProductStore is the product read surface search needs
type SearchProductStore interface {
	Search(ctx context.Context, q repository.SearchQuery) ([]models.Product, int64, error)
	GetByProductIDs(ctx context.Context, productIDs []string) ([]models.Product, error)
}

// QueryEmbedder embeds free-text queries
type QueryEmbedder interface {
	Enabled() bool
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs nearest-neighbor lookups over the product index
type VectorSearcher interface {
	Query(ctx context.Context, embedding []float32, k int) ([]vectorstore.Match, error)
}

// SearchService answers keyword and semantic product searches
type SearchService struct {
	products SearchProductStore
	embedder QueryEmbedder
	index    VectorSearcher
}

// NewSearchService creates a new search service. embedder and index
// may be nil; semantic searches then degrade to keyword search.
func NewSearchService(products SearchProductStore, embedder QueryEmbedder, index VectorSearcher) *SearchService {
	return &SearchService{products: products, embedder: embedder, index: index}
}

// Search runs a keyword and filter search
func (s *SearchService) Search(ctx context.Context, q repository.SearchQuery) ([]models.Product, int64, error) {
	return s.products.Search(ctx, q)
}

// SemanticResult is the outcome of a semantic search
type SemanticResult struct {
	Products []models.Product `json:"products"`
	// Semantic is false when the query fell back to keyword search
	Semantic bool `json:"semantic"`
}

// SemanticSearch finds the products nearest to a free-text query in
// embedding space. Any embedding or index failure degrades to keyword
// search rather than erroring.
func (s *SearchService) SemanticSearch(ctx context.Context, text, gender string, k int) (*SemanticResult, error) {
	if k <= 0 {
		k = defaultSemanticK
	}

	if s.embedder == nil || s.index == nil || !s.embedder.Enabled() {
		return s.fallback(ctx, text, gender, k)
	}

	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		logrus.WithError(err).Warn("Query embedding failed, falling back to keyword search")
		return s.fallback(ctx, text, gender, k)
	}

	// Overfetch so gender filtering still leaves k results
	fetchK := k
	if gender != "" {
		fetchK = k * 3
	}

	matches, err := s.index.Query(ctx, embedding, fetchK)
	if err != nil {
		logrus.WithError(err).Warn("Vector search failed, falling back to keyword search")
		return s.fallback(ctx, text, gender, k)
	}
	if len(matches) == 0 {
		return s.fallback(ctx, text, gender, k)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ProductID)
	}

	products, err := s.products.GetByProductIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	if gender != "" {
		products = filterByGender(products, gender)
	}
	if len(products) > k {
		products = products[:k]
	}

	return &SemanticResult{Products: products, Semantic: true}, nil
}

func (s *SearchService) fallback(ctx context.Context, text, gender string, k int) (*SemanticResult, error) {
	products, _, err := s.products.Search(ctx, repository.SearchQuery{
		Text:   text,
		Gender: gender,
		Limit:  k,
	})
	if err != nil {
		return nil, err
	}
	return &SemanticResult{Products: products, Semantic: false}, nil
}

func filterByGender(products []models.Product, gender string) []models.Product {
	gender = strings.ToLower(gender)
	var out []models.Product
	for _, p := range products {
		if string(p.Gender) == gender || p.Gender == models.GenderUnisex {
			out = append(out, p)
		}
	}
	return out
}
