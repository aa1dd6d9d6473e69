package service

import (
	"context"
	"sync"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

// memoryCache is an in-memory Cache for tests. Errors injected through the
// err fields are returned by the matching method.
type memoryCache struct {
	mu       sync.Mutex
	values   map[string]string
	ttls     map[string]time.Duration
	getErr   error
	setErr   error
	setNXErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setNXErr != nil {
		return false, m.setNXErr
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return true, nil
}

type stubProvider struct {
	tmpl  *deliveryDomain.Template
	err   error
	calls int
}

func (s *stubProvider) FetchTemplate(ctx context.Context, templateKey string) (*deliveryDomain.Template, error) {
	s.calls++
	return s.tmpl, s.err
}
