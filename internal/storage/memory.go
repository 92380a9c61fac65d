package storage

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"scriptcheck/internal/services"
)

// MemoryStore is an in-process ObjectStore for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) PutFile(_ context.Context, key, localPath, _ string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "put", key, err)
	}
	s.store(key, data)
	return nil
}

func (s *MemoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "put", key, err)
	}
	s.store(key, data)
	return nil
}

func (s *MemoryStore) GetFile(ctx context.Context, key, localPath string) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "get", key, err)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "storage", "get", key, nil)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) RemovePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

func (s *MemoryStore) store(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
}
