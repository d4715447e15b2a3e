package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"go.uber.org/zap"
)

// MemoryStore keeps documents in process memory. Used by tests and the CLI dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	logger *zap.Logger
	docs   map[string]*Document
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger: logger.Named("storage.memory"),
		docs:   make(map[string]*Document),
	}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, errorx.ErrDocumentNotFound
	}
	cp := *doc
	cp.Data = append([]byte(nil), doc.Data...)
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, data []byte, expectRev int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if doc, ok := s.docs[key]; ok {
		current = doc.Revision
	}
	if !checkRevision(current, expectRev) {
		return 0, errorx.ErrRevisionConflict
	}

	next := current + 1
	s.docs[key] = &Document{
		Key:       key,
		Data:      append([]byte(nil), data...),
		Revision:  next,
		UpdatedAt: time.Now(),
	}
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
