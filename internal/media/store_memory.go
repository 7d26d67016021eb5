package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"seriosity/pkg/platform/sentinel"
)

const memoryScheme = "mem://"

// InMemoryStore keeps blobs in process memory. Used when no bucket is
// configured and in tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string]Blob)}
}

// Store reads body fully and returns a mem:// reference.
func (s *InMemoryStore) Store(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	ref := memoryScheme + key
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = Blob{ContentType: contentType, Data: data}
	return ref, nil
}

func (s *InMemoryStore) Open(_ context.Context, ref string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[ref]
	if !ok {
		return nil, "", sentinel.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.Data)), blob.ContentType, nil
}

// Delete is idempotent; unknown references are ignored.
func (s *InMemoryStore) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, memoryScheme) {
		return fmt.Errorf("not a memory reference: %q", ref)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

// Len reports how many blobs are held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
