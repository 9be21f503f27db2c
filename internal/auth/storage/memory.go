package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Object is a stored object in a MemoryStore.
type Object struct {
	Body        []byte
	ContentType string
}

// MemoryStore keeps objects in memory. Presigned URLs it returns are not
// servable; they exist so local development and tests see realistic shapes.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
	now     func() time.Time
}

var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store whose public URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://uploads"
	}
	return &MemoryStore{objects: map[string]Object{}, baseURL: baseURL, now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.ReadSeeker, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Body: data, ContentType: contentType}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Get returns the object stored at key.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

func (m *MemoryStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return m.presign(key, "PUT", contentType, ttl), nil
}

func (m *MemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return m.presign(key, "GET", "", ttl), nil
}

func (m *MemoryStore) presign(key, method, contentType string, ttl time.Duration) string {
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", fmt.Sprint(m.now().Add(ttl).Unix()))
	if contentType != "" {
		q.Set("contentType", contentType)
	}
	return joinURL(m.baseURL, key) + "?" + q.Encode()
}

func (m *MemoryStore) PublicURL(key string) string {
	return joinURL(m.baseURL, key)
}
