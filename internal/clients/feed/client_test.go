package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:   serverURL,
		AppID:     "app-123",
		APIKey:    "key-456",
		PageSize:  2,
		RateLimit: 1000,
	})
}

func TestFetchPageSendsAuthHeaders(t *testing.T) {
	var gotAPIKey, gotAppID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("api_key")
		gotAppID = r.Header.Get("X-App-ID")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), 0, 10)
	require.NoError(t, err)

	assert.Equal(t, "key-456", gotAPIKey)
	assert.Equal(t, "app-123", gotAppID)
}

func TestFetchPagePaginationParams(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Contains(t, r.URL.Path, "/api/apps/app-123/entities/ProductFeed")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), 40, 20)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "limit=20")
	assert.Contains(t, gotQuery, "offset=40")
}

func TestDecodePayloadShapes(t *testing.T) {
	item := Item{ProductID: "p1", Name: "Linen shirt"}
	itemJSON, err := json.Marshal([]Item{item})
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"bare array", string(itemJSON)},
		{"results wrapper", fmt.Sprintf(`{"results": %s}`, itemJSON)},
		{"data wrapper", fmt.Sprintf(`{"data": %s}`, itemJSON)},
		{"items wrapper", fmt.Sprintf(`{"items": %s}`, itemJSON)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := decodePayload([]byte(tt.body))
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "p1", items[0].ProductID)
		})
	}
}

func TestDecodePayloadUnexpectedShape(t *testing.T) {
	_, err := decodePayload([]byte(`{"foo": "bar"}`))
	assert.ErrorIs(t, err, ErrUnexpectedShape)

	_, err = decodePayload([]byte(`"just a string"`))
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestFetchAllPaginatesUntilShortPage(t *testing.T) {
	pages := [][]Item{
		{{ProductID: "p1"}, {ProductID: "p2"}},
		{{ProductID: "p3"}, {ProductID: "p4"}},
		{{ProductID: "p5"}},
	}
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Less(t, requests, len(pages))
		page := pages[requests]
		requests++
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	items, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, requests)
	require.Len(t, items, 5)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "p5", items[4].ProductID)
}

func TestFetchPageServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": "bad key"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestItemIdentity(t *testing.T) {
	assert.Equal(t, "p1", Item{ProductID: "p1", ID: "legacy"}.Identity())
	assert.Equal(t, "legacy", Item{ID: "legacy"}.Identity())
	assert.Empty(t, Item{}.Identity())
}
