package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MockS3Service is an in-memory FileOpener for testing
type MockS3Service struct {
	objects map[string][]byte // map of key to content
	opens   map[string]int
	err     error
	mu      sync.RWMutex
}

// NewMockS3Service creates an empty mock bucket
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{
		objects: make(map[string][]byte),
		opens:   make(map[string]int),
	}
}

// PutObject stores content under key
func (m *MockS3Service) PutObject(key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(content)
}

// FailWith makes every Open return err until cleared with nil
func (m *MockS3Service) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Open returns a reader over the stored content
func (m *MockS3Service) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens[name]++
	if m.err != nil {
		return nil, m.err
	}
	content, exists := m.objects[name]
	if !exists {
		return nil, fmt.Errorf("object not found in mock S3: %s", name)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// OpenCount returns how many times name was opened
func (m *MockS3Service) OpenCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opens[name]
}

// Describe names the mock location
func (m *MockS3Service) Describe() string {
	return "s3://mock/"
}
