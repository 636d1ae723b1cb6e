// Package kv is the client's durable key-value storage.
package kv

import (
	"context"
	"sync"

	"github.com/and161185/fin-keeper/internal/errs"
)

// Well-known keys.
const (
	KeyPendingOperations = "pendingOperations"
	KeyPreferences       = "preferences"
)

// Store persists opaque values by string key.
type Store interface {
	// Get returns errs.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove is a no-op for absent keys.
	Remove(ctx context.Context, key string) error
	// Update is an atomic read-modify-write of one key, also across processes
	// sharing the store. fn sees the current value (found is false when absent);
	// a nil result removes the key. An error from fn leaves the key untouched.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// UpdateFunc computes the next value of a key.
type UpdateFunc func(cur []byte, found bool) ([]byte, error)

// Memory is an in-process Store.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.m[key] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[key]
	next, err := fn(append([]byte(nil), cur...), ok)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.m, key)
		return nil
	}
	s.m[key] = append([]byte(nil), next...)
	return nil
}
