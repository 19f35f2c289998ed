package storage

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	catalogapp "github.com/printmarket/backend/internal/application/catalog"
)

var _ catalogapp.ObjectStorage = (*StubObjectStorage)(nil)

// StubObjectStorage is used in development when no bucket credentials are
// configured. It issues fake URLs and treats every key as uploaded unless it
// was deleted.
type StubObjectStorage struct {
	baseURL string

	mu      sync.RWMutex
	deleted map[string]struct{}
}

// NewStubObjectStorage creates a stub that builds URLs under baseURL
func NewStubObjectStorage(baseURL string) *StubObjectStorage {
	if baseURL == "" {
		baseURL = "http://localhost:9000/printmarket-models"
	}
	return &StubObjectStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		deleted: make(map[string]struct{}),
	}
}

func (s *StubObjectStorage) signedURL(key string, expiresAt time.Time) string {
	q := url.Values{}
	q.Set("expires", expiresAt.UTC().Format(time.RFC3339))
	return s.baseURL + "/" + key + "?" + q.Encode()
}

// GenerateUploadURL returns a fake presigned URL
func (s *StubObjectStorage) GenerateUploadURL(_ context.Context, storageKey, _ string, expiresIn time.Duration) (string, time.Time, error) {
	if err := validateKey(storageKey); err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(expiresIn)
	s.mu.Lock()
	delete(s.deleted, storageKey)
	s.mu.Unlock()
	return s.signedURL(storageKey, expiresAt), expiresAt, nil
}

// GenerateDownloadURL returns a fake presigned URL
func (s *StubObjectStorage) GenerateDownloadURL(_ context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if err := validateKey(storageKey); err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(expiresIn)
	return s.signedURL(storageKey, expiresAt), expiresAt, nil
}

// ObjectExists is true for every key that has not been deleted
func (s *StubObjectStorage) ObjectExists(_ context.Context, storageKey string) (bool, error) {
	if err := validateKey(storageKey); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, gone := s.deleted[storageKey]
	s.mu.RUnlock()
	return !gone, nil
}

// DeleteObject remembers the key as deleted
func (s *StubObjectStorage) DeleteObject(_ context.Context, storageKey string) error {
	if err := validateKey(storageKey); err != nil {
		return err
	}
	s.mu.Lock()
	s.deleted[storageKey] = struct{}{}
	s.mu.Unlock()
	return nil
}
