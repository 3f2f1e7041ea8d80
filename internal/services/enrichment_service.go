package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrEmbeddingsDisabled is returned when no embedding API key is
// configured. Enrichment is optional; callers skip it and move on.
var ErrEmbeddingsDisabled = errors.New("embeddings disabled: no API key configured")

// EmbeddingClient computes text embeddings
type EmbeddingClient interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
	Configured() bool
}

// EnrichmentService computes product embeddings with a primary model
// and a cheaper fallback. A circuit breaker protects sync runs from a
// flapping embedding API.
type EnrichmentService struct {
	client        EmbeddingClient
	primaryModel  string
	fallbackModel string
	breaker       *clients.CircuitBreaker
}

// NewEnrichmentService creates a new enrichment service
func NewEnrichmentService(client EmbeddingClient, primaryModel, fallbackModel string) *EnrichmentService {
	return &EnrichmentService{
		client:        client,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		breaker:       clients.NewCircuitBreaker(5, 2*time.Minute),
	}
}

// Enabled reports whether embeddings can be computed at all
func (s *EnrichmentService) Enabled() bool {
	return s.client != nil && s.client.Configured()
}

// BuildEmbeddingText assembles the text that represents a product in
// embedding space
func (s *EnrichmentService) BuildEmbeddingText(p *models.Product) string {
	parts := []string{p.Name, p.Brand, p.Category, p.Color, p.Style}
	parts = append(parts, p.Fabric...)
	parts = append(parts, p.Tags...)
	parts = append(parts, string(p.Gender), p.Occasion, p.Season, p.Description)

	var nonEmpty []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(part))
		}
	}
	return strings.Join(nonEmpty, " ")
}

// EmbedText computes an embedding for a single text, trying the
// primary model first and the fallback model on failure
func (s *EnrichmentService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if !s.Enabled() {
		return nil, ErrEmbeddingsDisabled
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}
	if !s.breaker.Allow() {
		return nil, errors.New("embedding API circuit open")
	}

	embedding, primaryErr := s.embedWith(ctx, s.primaryModel, text)
	if primaryErr == nil {
		s.breaker.RecordSuccess()
		return embedding, nil
	}

	if s.fallbackModel != "" && s.fallbackModel != s.primaryModel {
		logrus.WithError(primaryErr).WithField("model", s.primaryModel).
			Warn("Primary embedding model failed, trying fallback")

		embedding, fallbackErr := s.embedWith(ctx, s.fallbackModel, text)
		if fallbackErr == nil {
			s.breaker.RecordSuccess()
			return embedding, nil
		}
		s.breaker.RecordFailure()
		return nil, fmt.Errorf("embedding failed on both models: %w", fallbackErr)
	}

	s.breaker.RecordFailure()
	return nil, fmt.Errorf("embedding failed: %w", primaryErr)
}

// EmbedProduct computes a product's embedding. Failures are soft: the
// product stays valid without one.
func (s *EnrichmentService) EmbedProduct(ctx context.Context, p *models.Product) ([]float32, error) {
	return s.EmbedText(ctx, s.BuildEmbeddingText(p))
}

func (s *EnrichmentService) embedWith(ctx context.Context, model, text string) ([]float32, error) {
	results, err := s.client.Embed(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 || len(results[0]) == 0 {
		return nil, errors.New("embedding API returned no vector")
	}
	return results[0], nil
}
