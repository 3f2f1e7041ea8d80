package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"catalog-sync-service/internal/clients/feed"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/normalize"
	"catalog-sync-service/internal/repository"
)

// FeedFetcher fetches the raw product feed
type FeedFetcher interface {
	FetchAll(ctx context.Context) ([]feed.Item, error)
}

// ProductStore is the product persistence surface the sync needs
type ProductStore interface {
	Upsert(ctx context.Context, product *models.Product) error
	UpdateEmbedding(ctx context.Context, productID string, embedding models.Vector) error
	GetByProductID(ctx context.Context, productID string) (*models.Product, error)
	CountAll(ctx context.Context) (int64, error)
	InvalidateLatest(ctx context.Context)
}

// SyncStore records sync runs and their logs
type SyncStore interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	UpdateRun(ctx context.Context, run *models.SyncRun) error
	GetRunByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error)
	ListRuns(ctx context.Context, opts repository.RunListOptions) ([]models.SyncRun, int64, error)
	CreateLog(ctx context.Context, log *models.SyncLog) error
	GetRunLogs(ctx context.Context, runID uuid.UUID, opts repository.LogListOptions) ([]models.SyncLog, error)
	GetStats(ctx context.Context) (*repository.SyncStats, error)
}

// VectorIndex is the semantic index refreshed during sync
type VectorIndex interface {
	Upsert(ctx context.Context, productID string, embedding []float32, inStock bool) error
}

// Enricher computes product embeddings
type Enricher interface {
	Enabled() bool
	EmbedProduct(ctx context.Context, p *models.Product) ([]float32, error)
}

// SyncConfig tunes a sync service
type SyncConfig struct {
	FeedSource      string
	DefaultCurrency string
	// EnrichConcurrency is how many embedding calls run at once.
	// Defaults to 1: the embedding provider throttles aggressively.
	EnrichConcurrency int
}

// SyncService orchestrates feed synchronization: fetch, normalize,
// enrich, persist. One sync runs at a time.
type SyncService struct {
	fetcher  FeedFetcher
	products ProductStore
	syncRepo SyncStore
	index    VectorIndex
	enricher Enricher
	config   SyncConfig

	mu      sync.Mutex
	running bool
}

// NewSyncService creates a new sync service. index and enricher may be
// nil; sync then persists products without embeddings.
func NewSyncService(
	fetcher FeedFetcher,
	products ProductStore,
	syncRepo SyncStore,
	index VectorIndex,
	enricher Enricher,
	cfg SyncConfig,
) *SyncService {
	return &SyncService{
		fetcher:  fetcher,
		products: products,
		syncRepo: syncRepo,
		index:    index,
		enricher: enricher,
		config:   cfg,
	}
}

// SyncResult summarizes a completed sync run
type SyncResult struct {
	RunID       uuid.UUID            `json:"runId"`
	TotalItems  int                  `json:"totalItems"`
	SyncedCount int                  `json:"syncedCount"`
	FailedCount int                  `json:"failedCount"`
	EmbedCount  int                  `json:"embedCount"`
	Failures    []models.ItemFailure `json:"failures,omitempty"`
	FetchFailed bool                 `json:"fetchFailed"`
	CachedCount int64                `json:"cachedCount,omitempty"`
}

// ErrSyncInProgress is returned when a sync is already running
var ErrSyncInProgress = fmt.Errorf("a sync is already in progress")

// Sync runs a full feed synchronization. A feed fetch failure is soft:
// the run is recorded as failed but previously synced products remain
// served, and the returned result reports the cached count.
func (s *SyncService) Sync(ctx context.Context, triggeredBy models.TriggerType) (*SyncResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	now := time.Now()
	run := &models.SyncRun{
		ID:          uuid.New(),
		FeedSource:  s.config.FeedSource,
		Status:      models.SyncStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   &now,
	}
	if err := s.syncRepo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	s.logEvent(ctx, run.ID, models.LogLevelInfo, "Sync started", nil)

	items, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return s.failFetch(ctx, run, err)
	}

	result := &SyncResult{RunID: run.ID, TotalItems: len(items)}
	opts := normalize.Options{
		DefaultCurrency: s.config.DefaultCurrency,
		FeedSource:      s.config.FeedSource,
	}

	var pending []string
	for _, item := range items {
		select {
		case <-ctx.Done():
			return s.abort(run, result, ctx.Err())
		default:
		}

		id := item.Identity()
		if id == "" {
			result.FailedCount++
			result.Failures = append(result.Failures, models.ItemFailure{
				Stage: models.StageNormalize,
				Error: "item has no product identifier",
			})
			continue
		}

		product := normalize.Normalize(item, now, opts)
		if err := s.products.Upsert(ctx, &product); err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, models.ItemFailure{
				ProductID: id,
				Stage:     models.StagePersist,
				Error:     err.Error(),
			})
			s.logEvent(ctx, run.ID, models.LogLevelError, "Failed to persist product", models.JSONB{
				"productId": id,
				"error":     err.Error(),
			})
			continue
		}
		result.SyncedCount++
		pending = append(pending, id)
	}

	s.enrichAll(ctx, run, result, pending)

	s.products.InvalidateLatest(ctx)

	completed := time.Now()
	run.Status = models.SyncStatusCompleted
	run.CompletedAt = &completed
	run.TotalItems = result.TotalItems
	run.SyncedCount = result.SyncedCount
	run.FailedCount = result.FailedCount
	run.EmbedCount = result.EmbedCount
	run.Failures = result.Failures
	if err := s.syncRepo.UpdateRun(ctx, run); err != nil {
		logrus.WithError(err).Error("Failed to finalize sync run")
	}

	s.logEvent(ctx, run.ID, models.LogLevelInfo, "Sync completed", models.JSONB{
		"total":    result.TotalItems,
		"synced":   result.SyncedCount,
		"failed":   result.FailedCount,
		"embedded": result.EmbedCount,
	})

	return result, nil
}

// enrichAll embeds the synced products with bounded concurrency.
// Enrichment failures never fail the item; the product stays synced.
func (s *SyncService) enrichAll(ctx context.Context, run *models.SyncRun, result *SyncResult, productIDs []string) {
	if s.enricher == nil || !s.enricher.Enabled() || len(productIDs) == 0 {
		return
	}

	limiter := newEnrichLimiter(s.config.EnrichConcurrency)
	var wg sync.WaitGroup
	var resultMu sync.Mutex

	for _, id := range productIDs {
		release, err := limiter.acquire(ctx)
		if err != nil {
			break
		}

		wg.Add(1)
		go func(productID string) {
			defer wg.Done()
			defer release()

			embedded, failure := s.enrich(ctx, productID)

			resultMu.Lock()
			if failure != nil {
				result.Failures = append(result.Failures, *failure)
			} else if embedded {
				result.EmbedCount++
			}
			resultMu.Unlock()

			if failure != nil {
				s.logEvent(ctx, run.ID, models.LogLevelWarn, "Failed to embed product", models.JSONB{
					"productId": productID,
					"error":     failure.Error,
				})
			}
		}(id)
	}
	wg.Wait()
}

// enrich computes and stores an embedding for the product, reusing a
// stored one when present
func (s *SyncService) enrich(ctx context.Context, productID string) (bool, *models.ItemFailure) {
	product, err := s.products.GetByProductID(ctx, productID)
	if err != nil {
		return false, &models.ItemFailure{ProductID: productID, Stage: models.StageEnrich, Error: err.Error()}
	}

	if product.HasEmbedding() {
		// Refresh the index entry so stock status stays current
		if s.index != nil {
			if err := s.index.Upsert(ctx, productID, product.Embedding, product.InStock); err != nil {
				return false, &models.ItemFailure{ProductID: productID, Stage: models.StageEnrich, Error: err.Error()}
			}
		}
		return false, nil
	}

	embedding, err := s.enricher.EmbedProduct(ctx, product)
	if err != nil {
		return false, &models.ItemFailure{ProductID: productID, Stage: models.StageEnrich, Error: err.Error()}
	}

	if err := s.products.UpdateEmbedding(ctx, productID, embedding); err != nil {
		return false, &models.ItemFailure{ProductID: productID, Stage: models.StageEnrich, Error: err.Error()}
	}
	if s.index != nil {
		if err := s.index.Upsert(ctx, productID, embedding, product.InStock); err != nil {
			return false, &models.ItemFailure{ProductID: productID, Stage: models.StageEnrich, Error: err.Error()}
		}
	}
	return true, nil
}

// failFetch records a fetch failure and reports how many previously
// synced products remain available
func (s *SyncService) failFetch(ctx context.Context, run *models.SyncRun, fetchErr error) (*SyncResult, error) {
	s.logEvent(ctx, run.ID, models.LogLevelError, "Feed fetch failed", models.JSONB{
		"error": fetchErr.Error(),
	})

	cached, countErr := s.products.CountAll(ctx)
	if countErr != nil {
		logrus.WithError(countErr).Warn("Failed to count cached products")
	}

	completed := time.Now()
	run.Status = models.SyncStatusFailed
	run.FetchFailed = true
	run.ErrorMessage = fetchErr.Error()
	run.CompletedAt = &completed
	if err := s.syncRepo.UpdateRun(ctx, run); err != nil {
		logrus.WithError(err).Error("Failed to finalize sync run")
	}

	return &SyncResult{RunID: run.ID, FetchFailed: true, CachedCount: cached}, nil
}

// abort finalizes a run cut short by context cancellation
func (s *SyncService) abort(run *models.SyncRun, result *SyncResult, cause error) (*SyncResult, error) {
	completed := time.Now()
	run.Status = models.SyncStatusFailed
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &completed
	run.TotalItems = result.TotalItems
	run.SyncedCount = result.SyncedCount
	run.FailedCount = result.FailedCount
	run.EmbedCount = result.EmbedCount
	run.Failures = result.Failures
	if err := s.syncRepo.UpdateRun(context.Background(), run); err != nil {
		logrus.WithError(err).Error("Failed to finalize aborted sync run")
	}
	return nil, cause
}

// GetRun retrieves a sync run by ID
func (s *SyncService) GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	return s.syncRepo.GetRunByID(ctx, id)
}

// ListRuns lists sync runs
func (s *SyncService) ListRuns(ctx context.Context, opts repository.RunListOptions) ([]models.SyncRun, int64, error) {
	return s.syncRepo.ListRuns(ctx, opts)
}

// GetRunLogs retrieves logs for a sync run
func (s *SyncService) GetRunLogs(ctx context.Context, runID uuid.UUID, opts repository.LogListOptions) ([]models.SyncLog, error) {
	return s.syncRepo.GetRunLogs(ctx, runID, opts)
}

// GetStats retrieves aggregate sync statistics
func (s *SyncService) GetStats(ctx context.Context) (*repository.SyncStats, error) {
	return s.syncRepo.GetStats(ctx)
}

// RunScheduler triggers a sync every interval until ctx is cancelled
func (s *SyncService) RunScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sync(ctx, models.TriggerScheduled); err != nil && err != ErrSyncInProgress {
				logrus.WithError(err).Error("Scheduled sync failed")
			}
		}
	}
}

// logEvent writes a structured log row for a sync run
func (s *SyncService) logEvent(ctx context.Context, runID uuid.UUID, level models.LogLevel, message string, data models.JSONB) {
	log := &models.SyncLog{
		ID:        uuid.New(),
		SyncRunID: runID,
		Level:     level,
		Message:   message,
		Data:      data,
	}
	if err := s.syncRepo.CreateLog(ctx, log); err != nil {
		logrus.WithError(err).Warn("Failed to write sync log")
	}
}
