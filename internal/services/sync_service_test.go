package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"catalog-sync-service/internal/clients/feed"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

// MockFeedFetcher is a mock implementation of FeedFetcher
type MockFeedFetcher struct {
	mock.Mock
}

var _ FeedFetcher = (*MockFeedFetcher)(nil)

func (m *MockFeedFetcher) FetchAll(ctx context.Context) ([]feed.Item, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]feed.Item), args.Error(1)
}

// MockProductStore is a mock implementation of ProductStore
type MockProductStore struct {
	mock.Mock
}

var _ ProductStore = (*MockProductStore)(nil)

func (m *MockProductStore) Upsert(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductStore) UpdateEmbedding(ctx context.Context, productID string, embedding models.Vector) error {
	args := m.Called(ctx, productID, embedding)
	return args.Error(0)
}

func (m *MockProductStore) GetByProductID(ctx context.Context, productID string) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductStore) CountAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductStore) InvalidateLatest(ctx context.Context) {
	m.Called(ctx)
}

// MockSyncStore is a mock implementation of SyncStore
type MockSyncStore struct {
	mock.Mock
}

var _ SyncStore = (*MockSyncStore)(nil)

func (m *MockSyncStore) CreateRun(ctx context.Context, run *models.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncStore) UpdateRun(ctx context.Context, run *models.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncStore) GetRunByID(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *MockSyncStore) ListRuns(ctx context.Context, opts repository.RunListOptions) ([]models.SyncRun, int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]models.SyncRun), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncStore) CreateLog(ctx context.Context, log *models.SyncLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockSyncStore) GetRunLogs(ctx context.Context, runID uuid.UUID, opts repository.LogListOptions) ([]models.SyncLog, error) {
	args := m.Called(ctx, runID, opts)
	return args.Get(0).([]models.SyncLog), args.Error(1)
}

func (m *MockSyncStore) GetStats(ctx context.Context) (*repository.SyncStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(*repository.SyncStats), args.Error(1)
}

// MockVectorIndex is a mock implementation of VectorIndex
type MockVectorIndex struct {
	mock.Mock
}

var _ VectorIndex = (*MockVectorIndex)(nil)

func (m *MockVectorIndex) Upsert(ctx context.Context, productID string, embedding []float32, inStock bool) error {
	args := m.Called(ctx, productID, embedding, inStock)
	return args.Error(0)
}

// MockEnricher is a mock implementation of Enricher
type MockEnricher struct {
	mock.Mock
}

var _ Enricher = (*MockEnricher)(nil)

func (m *MockEnricher) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockEnricher) EmbedProduct(ctx context.Context, p *models.Product) ([]float32, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func testSyncService(fetcher *MockFeedFetcher, products *MockProductStore, syncStore *MockSyncStore, index *MockVectorIndex, enricher *MockEnricher) *SyncService {
	var idx VectorIndex
	if index != nil {
		idx = index
	}
	var enr Enricher
	if enricher != nil {
		enr = enricher
	}
	return NewSyncService(fetcher, products, syncStore, idx, enr, SyncConfig{
		FeedSource:      "affiliate-feed",
		DefaultCurrency: "USD",
	})
}

func feedItems(n int) []feed.Item {
	items := make([]feed.Item, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, feed.Item{
			ProductID: fmt.Sprintf("sku-%d", i),
			Name:      fmt.Sprintf("Product %d", i),
		})
	}
	return items
}

func TestSyncToleratesPerItemFailures(t *testing.T) {
	fetcher := new(MockFeedFetcher)
	products := new(MockProductStore)
	syncStore := new(MockSyncStore)

	fetcher.On("FetchAll", mock.Anything).Return(feedItems(10), nil)
	syncStore.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("CreateLog", mock.Anything, mock.Anything).Return(nil)
	products.On("InvalidateLatest", mock.Anything).Return()

	// Item 5 is poisoned; everything else persists fine
	products.On("Upsert", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.ProductID == "sku-5"
	})).Return(errors.New("constraint violation"))
	products.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	service := testSyncService(fetcher, products, syncStore, nil, nil)
	result, err := service.Sync(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 10, result.TotalItems)
	assert.Equal(t, 9, result.SyncedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "sku-5", result.Failures[0].ProductID)
	assert.Equal(t, models.StagePersist, result.Failures[0].Stage)
	assert.False(t, result.FetchFailed)
}

func TestSyncSkipsItemsWithoutIdentity(t *testing.T) {
	fetcher := new(MockFeedFetcher)
	products := new(MockProductStore)
	syncStore := new(MockSyncStore)

	items := []feed.Item{
		{ProductID: "sku-1"},
		{Name: "no identifier at all"},
	}
	fetcher.On("FetchAll", mock.Anything).Return(items, nil)
	syncStore.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("CreateLog", mock.Anything, mock.Anything).Return(nil)
	products.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	products.On("InvalidateLatest", mock.Anything).Return()

	service := testSyncService(fetcher, products, syncStore, nil, nil)
	result, err := service.Sync(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.StageNormalize, result.Failures[0].Stage)
	products.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestSyncFetchFailureIsSoft(t *testing.T) {
	fetcher := new(MockFeedFetcher)
	products := new(MockProductStore)
	syncStore := new(MockSyncStore)

	fetcher.On("FetchAll", mock.Anything).Return(nil, errors.New("feed unreachable"))
	syncStore.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("CreateLog", mock.Anything, mock.Anything).Return(nil)
	products.On("CountAll", mock.Anything).Return(int64(42), nil)

	var finalized *models.SyncRun
	syncStore.On("UpdateRun", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		finalized = args.Get(1).(*models.SyncRun)
	}).Return(nil)

	service := testSyncService(fetcher, products, syncStore, nil, nil)
	result, err := service.Sync(context.Background(), models.TriggerManual)

	// Fetch failure is soft: the caller still gets a result
	require.NoError(t, err)
	assert.True(t, result.FetchFailed)
	assert.Equal(t, int64(42), result.CachedCount)
	assert.Equal(t, 0, result.SyncedCount)

	require.NotNil(t, finalized)
	assert.Equal(t, models.SyncStatusFailed, finalized.Status)
	assert.True(t, finalized.FetchFailed)
	assert.Equal(t, "feed unreachable", finalized.ErrorMessage)

	products.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSyncEnrichesProductsWithoutEmbeddings(t *testing.T) {
	fetcher := new(MockFeedFetcher)
	products := new(MockProductStore)
	syncStore := new(MockSyncStore)
	index := new(MockVectorIndex)
	enricher := new(MockEnricher)

	fetcher.On("FetchAll", mock.Anything).Return(feedItems(2), nil)
	syncStore.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("CreateLog", mock.Anything, mock.Anything).Return(nil)
	products.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	products.On("InvalidateLatest", mock.Anything).Return()
	enricher.On("Enabled").Return(true)

	// sku-1 has no embedding yet, sku-2 already does
	products.On("GetByProductID", mock.Anything, "sku-1").Return(&models.Product{ProductID: "sku-1", InStock: true}, nil)
	products.On("GetByProductID", mock.Anything, "sku-2").Return(&models.Product{
		ProductID: "sku-2",
		InStock:   true,
		Embedding: models.Vector{0.5, 0.5},
	}, nil)

	embedding := []float32{0.1, 0.2, 0.3}
	enricher.On("EmbedProduct", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.ProductID == "sku-1"
	})).Return(embedding, nil)
	products.On("UpdateEmbedding", mock.Anything, "sku-1", models.Vector(embedding)).Return(nil)
	index.On("Upsert", mock.Anything, "sku-1", embedding, true).Return(nil)
	index.On("Upsert", mock.Anything, "sku-2", []float32{0.5, 0.5}, true).Return(nil)

	service := testSyncService(fetcher, products, syncStore, index, enricher)
	result, err := service.Sync(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SyncedCount)
	assert.Equal(t, 1, result.EmbedCount)
	enricher.AssertNumberOfCalls(t, "EmbedProduct", 1)
	index.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestSyncEmbeddingFailureIsSoft(t *testing.T) {
	fetcher := new(MockFeedFetcher)
	products := new(MockProductStore)
	syncStore := new(MockSyncStore)
	enricher := new(MockEnricher)

	fetcher.On("FetchAll", mock.Anything).Return(feedItems(1), nil)
	syncStore.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("CreateLog", mock.Anything, mock.Anything).Return(nil)
	products.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	products.On("InvalidateLatest", mock.Anything).Return()
	products.On("GetByProductID", mock.Anything, "sku-1").Return(&models.Product{ProductID: "sku-1"}, nil)
	enricher.On("Enabled").Return(true)
	enricher.On("EmbedProduct", mock.Anything, mock.Anything).Return(nil, errors.New("model overloaded"))

	service := testSyncService(fetcher, products, syncStore, nil, enricher)
	result, err := service.Sync(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	// Product stays synced; the failure is recorded at the enrich stage
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, 0, result.EmbedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.StageEnrich, result.Failures[0].Stage)
}

func TestSyncRejectsConcurrentRuns(t *testing.T) {
	fetcher := new(MockFeedFetcher)
	products := new(MockProductStore)
	syncStore := new(MockSyncStore)

	started := make(chan struct{})
	release := make(chan struct{})
	fetcher.On("FetchAll", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]feed.Item{}, nil)
	syncStore.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	syncStore.On("CreateLog", mock.Anything, mock.Anything).Return(nil)
	products.On("InvalidateLatest", mock.Anything).Return()

	service := testSyncService(fetcher, products, syncStore, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := service.Sync(context.Background(), models.TriggerScheduled)
		done <- err
	}()

	<-started
	_, err := service.Sync(context.Background(), models.TriggerManual)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
}
