package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
)

// Ensure MemoryContentStore implements ContentStore
var _ ecommerce.ContentStore = (*MemoryContentStore)(nil)

// MemoryContentStore keeps storefront documents in process memory.
// Use it for local development and demos; contents are lost on restart.
type MemoryContentStore struct {
	mu       sync.RWMutex
	files    map[string]ecommerce.ContentFile
	revision int64
}

// NewMemoryContentStore creates an empty in-memory content store
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{files: make(map[string]ecommerce.ContentFile)}
}

// Get implements ecommerce.ContentStore
func (s *MemoryContentStore) Get(_ context.Context, creds integration.PlatformCredentials, path string) (ecommerce.ContentFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[memoryKey(creds, path)]
	if !ok {
		return ecommerce.ContentFile{}, fmt.Errorf("%w: %s", ecommerce.ErrContentNotFound, path)
	}
	f.Content = append([]byte(nil), f.Content...)
	return f, nil
}

// Put implements ecommerce.ContentStore
func (s *MemoryContentStore) Put(_ context.Context, creds integration.PlatformCredentials, file ecommerce.ContentFile, _ string) (string, error) {
	key := memoryKey(creds, file.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.files[key]
	switch {
	case file.Version == "" && exists,
		file.Version != "" && (!exists || current.Version != file.Version):
		return "", fmt.Errorf("%w: %s", ecommerce.ErrContentConflict, file.Path)
	}
	s.revision++
	stored := ecommerce.ContentFile{
		Path:    file.Path,
		Content: append([]byte(nil), file.Content...),
		Version: strconv.FormatInt(s.revision, 10),
	}
	s.files[key] = stored
	return stored.Version, nil
}

// Len returns the number of stored documents
func (s *MemoryContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func memoryKey(creds integration.PlatformCredentials, path string) string {
	return creds.StoreID + "\x00" + path
}
