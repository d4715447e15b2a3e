package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"go.uber.org/zap"
)

const diskExt = ".json"

// DiskStore keeps one JSON envelope file per document under baseDir.
// Writes go to a temp file first and are renamed into place.
type DiskStore struct {
	mu      sync.Mutex
	logger  *zap.Logger
	baseDir string
}

var _ Store = (*DiskStore)(nil)

type diskEnvelope struct {
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
	Data      string    `json:"data"`
}

// NewDiskStore creates a new disk store
func NewDiskStore(logger *zap.Logger, baseDir string) (*DiskStore, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &DiskStore{
		logger:  logger.Named("storage.disk"),
		baseDir: baseDir,
	}, nil
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.baseDir, url.PathEscape(key)+diskExt)
}

func (s *DiskStore) Load(_ context.Context, key string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(key)
}

// read must be called with s.mu held
func (s *DiskStore) read(key string) (*Document, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errorx.ErrDocumentNotFound
		}
		return nil, err
	}

	var env diskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// A hand-edited or foreign file: hand the bytes to the caller as an unversioned document.
		s.logger.Warn("unreadable document envelope",
			zap.String("key", key),
			zap.Error(err))
		return &Document{Key: key, Data: raw}, nil
	}
	return &Document{
		Key:       key,
		Data:      []byte(env.Data),
		Revision:  env.Revision,
		UpdatedAt: env.UpdatedAt,
	}, nil
}

func (s *DiskStore) Save(_ context.Context, key string, data []byte, expectRev int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	doc, err := s.read(key)
	switch {
	case err == nil:
		current = doc.Revision
	case !errors.Is(err, errorx.ErrDocumentNotFound):
		return 0, err
	}
	if !checkRevision(current, expectRev) {
		return 0, errorx.ErrRevisionConflict
	}

	next := current + 1
	out, err := json.MarshalIndent(diskEnvelope{
		Revision:  next,
		UpdatedAt: time.Now().UTC(),
		Data:      string(data),
	}, "", "  ")
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.baseDir, ".tmp-*")
	if err != nil {
		return 0, err
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return next, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, diskExt) || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, diskExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *DiskStore) Close() error {
	return nil
}
