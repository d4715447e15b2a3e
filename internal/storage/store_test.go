package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/config"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(zap.NewNop(), config.RedisStorageConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        mr.Addr(),
		Prefix:      "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestDBStore(t *testing.T) *DBStore {
	t.Helper()
	s, err := NewDBStore(zap.NewNop(), SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	return s
}

func allStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(zap.NewNop()),
		"disk":   newTestDiskStore(t),
		"redis":  newTestRedisStore(t),
		"db":     newTestDBStore(t),
	}
}

func TestStore_RoundTripAndRevisions(t *testing.T) {
	for name, s := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Load(ctx, cnst.KeySites)
			assert.ErrorIs(t, err, errorx.ErrDocumentNotFound)

			rev, err := s.Save(ctx, cnst.KeySites, []byte(`{"central":{"id":"central"}}`), 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), rev)

			doc, err := s.Load(ctx, cnst.KeySites)
			require.NoError(t, err)
			assert.Equal(t, cnst.KeySites, doc.Key)
			assert.JSONEq(t, `{"central":{"id":"central"}}`, string(doc.Data))
			assert.Equal(t, int64(1), doc.Revision)
			assert.False(t, doc.UpdatedAt.IsZero())

			// creating again must conflict
			_, err = s.Save(ctx, cnst.KeySites, []byte(`{}`), 0)
			assert.ErrorIs(t, err, errorx.ErrRevisionConflict)

			// stale revision must conflict and leave the document untouched
			rev, err = s.Save(ctx, cnst.KeySites, []byte(`{"a":{}}`), 1)
			require.NoError(t, err)
			assert.Equal(t, int64(2), rev)
			_, err = s.Save(ctx, cnst.KeySites, []byte(`{"b":{}}`), 1)
			assert.ErrorIs(t, err, errorx.ErrRevisionConflict)
			doc, err = s.Load(ctx, cnst.KeySites)
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":{}}`, string(doc.Data))

			// overwrite ignores the revision
			rev, err = s.Save(ctx, cnst.KeySites, []byte(`{"c":{}}`), AnyRevision)
			require.NoError(t, err)
			assert.Equal(t, int64(3), rev)
			rev, err = s.Save(ctx, cnst.KeyCurrentSite, []byte("central"), AnyRevision)
			require.NoError(t, err)
			assert.Equal(t, int64(1), rev)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{cnst.KeyCurrentSite, cnst.KeySites}, keys)

			require.NoError(t, s.Delete(ctx, cnst.KeySites))
			require.NoError(t, s.Delete(ctx, cnst.KeySites)) // idempotent
			_, err = s.Load(ctx, cnst.KeySites)
			assert.ErrorIs(t, err, errorx.ErrDocumentNotFound)
			keys, err = s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{cnst.KeyCurrentSite}, keys)
		})
	}
}

func TestStore_ConcurrentWritersOneWins(t *testing.T) {
	for name, s := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Save(ctx, cnst.KeyAccessRules, []byte(`{}`), 0)
			require.NoError(t, err)

			const writers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.Save(ctx, cnst.KeyAccessRules, []byte(`{"x":{}}`), 1); err == nil {
						mu.Lock()
						successes++
						mu.Unlock()
					} else {
						assert.ErrorIs(t, err, errorx.ErrRevisionConflict)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, successes)
		})
	}
}

func TestDiskStore_KeysWithSeparatorsAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(zap.NewNop(), dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Save(ctx, "tenant/a b", []byte(`"x"`), 0)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant/a b"}, keys)

	// a file that is not an envelope is surfaced as an unversioned document
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.json"), []byte(`{"central":`), 0o644))
	doc, err := s.Load(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Revision)
	assert.Equal(t, `{"central":`, string(doc.Data))

	rev, err := s.Save(ctx, "legacy", []byte(`{}`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
}

func TestDiskStore_KeysDuringWrites(t *testing.T) {
	s, err := NewDiskStore(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "doc-" + string(rune('a'+i))
			rev := int64(0)
			for range 10 {
				next, err := s.Save(ctx, key, []byte(`{}`), rev)
				assert.NoError(t, err)
				rev = next
			}
		}()
	}

	for range 20 {
		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		for _, k := range keys {
			_, err := s.Load(ctx, k)
			assert.NoError(t, err, k)
		}
	}
	wg.Wait()

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 8)
}

func TestRedisStore_CorruptRevision(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(zap.NewNop(), config.RedisStorageConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	mr.HSet("{medlinkx}:doc:broken", "data", "{}", "rev", "nope")
	_, err = s.Load(context.Background(), "broken")
	assert.ErrorIs(t, err, errorx.ErrCorruptDocument)
}

func TestNewDBStore_InvalidType(t *testing.T) {
	_, err := NewDBStore(zap.NewNop(), DatabaseType("oracle"), "")
	assert.ErrorIs(t, err, ErrInvalidDatabaseType)
}

func TestNewStore(t *testing.T) {
	logger := zap.NewNop()

	t.Run("memory", func(t *testing.T) {
		s, err := NewStore(logger, &config.StorageConfig{Type: cnst.StorageTypeMemory})
		require.NoError(t, err)
		_, ok := s.(*MemoryStore)
		assert.True(t, ok)
	})

	t.Run("disk", func(t *testing.T) {
		s, err := NewStore(logger, &config.StorageConfig{Type: cnst.StorageTypeDisk, Disk: config.DiskStorageConfig{Path: t.TempDir()}})
		require.NoError(t, err)
		_, ok := s.(*DiskStore)
		assert.True(t, ok)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := NewStore(logger, &config.StorageConfig{Type: cnst.StorageTypeRedis, Redis: config.RedisStorageConfig{Addr: mr.Addr()}})
		require.NoError(t, err)
		defer s.Close()
		_, ok := s.(*RedisStore)
		assert.True(t, ok)
	})

	t.Run("db", func(t *testing.T) {
		s, err := NewStore(logger, &config.StorageConfig{
			Type:     cnst.StorageTypeDB,
			Database: config.DatabaseConfig{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "medlinkx.db")},
		})
		require.NoError(t, err)
		defer s.Close()
		_, ok := s.(*DBStore)
		assert.True(t, ok)
	})

	t.Run("unsupported", func(t *testing.T) {
		s, err := NewStore(logger, &config.StorageConfig{Type: "etcd"})
		assert.Error(t, err)
		assert.Nil(t, s)
		assert.Contains(t, err.Error(), "unsupported storage type: etcd")
	})
}
