// Package secrets resolves service credentials from Google Cloud
// Secret Manager. Config values of the form gcp-secret://<id> are
// replaced with the secret's latest version at startup.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// RefPrefix marks a config value as a Secret Manager reference
const RefPrefix = "gcp-secret://"

// IsRef reports whether a config value is a Secret Manager reference
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// cacheEntry is a resolved secret with expiration
type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Manager reads secrets from Google Cloud Secret Manager with a short
// in-process cache
type Manager struct {
	client    *secretmanager.Client
	projectID string

	cacheMu  sync.RWMutex
	cache    map[string]*cacheEntry
	cacheTTL time.Duration
}

// NewManager creates a new Secret Manager client for the project
func NewManager(ctx context.Context, projectID string) (*Manager, error) {
	if projectID == "" {
		return nil, fmt.Errorf("secret manager requires a project ID")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &Manager{
		client:    client,
		projectID: projectID,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  5 * time.Minute,
	}, nil
}

// Close closes the Secret Manager client
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Get returns the latest version of the named secret
func (m *Manager) Get(ctx context.Context, secretID string) (string, error) {
	name := m.secretName(secretID)

	m.cacheMu.RLock()
	if entry, ok := m.cache[name]; ok && time.Now().Before(entry.expiresAt) {
		m.cacheMu.RUnlock()
		return entry.value, nil
	}
	m.cacheMu.RUnlock()

	result, err := m.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name + "/versions/latest",
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", secretID, err)
	}
	value := string(result.Payload.Data)

	m.cacheMu.Lock()
	m.cache[name] = &cacheEntry{value: value, expiresAt: time.Now().Add(m.cacheTTL)}
	m.cacheMu.Unlock()

	return value, nil
}

// Resolve returns the value itself, or the referenced secret when the
// value carries the gcp-secret:// prefix
func (m *Manager) Resolve(ctx context.Context, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	return m.Get(ctx, strings.TrimPrefix(value, RefPrefix))
}

// InvalidateCache drops a cached secret
func (m *Manager) InvalidateCache(secretID string) {
	m.cacheMu.Lock()
	delete(m.cache, m.secretName(secretID))
	m.cacheMu.Unlock()
}

func (m *Manager) secretName(secretID string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", m.projectID, sanitizeSecretID(secretID))
}

// sanitizeSecretID replaces characters GCP secret IDs do not allow.
// Secret IDs may contain alphanumerics, hyphens, and underscores only.
func sanitizeSecretID(input string) string {
	var result strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}
