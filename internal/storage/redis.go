package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/config"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldData    = "data"
	fieldRev     = "rev"
	fieldUpdated = "updated"
)

// RedisStore keeps each document in a hash and tracks keys in a set.
// All keys share one hash tag so transactions stay on a single cluster slot.
type RedisStore struct {
	logger *zap.Logger
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-based store
func NewRedisStore(logger *zap.Logger, cfg config.RedisStorageConfig) (*RedisStore, error) {
	addrs := utils.SplitByMultipleDelimiters(cfg.Addr, ";", ",")
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = cfg.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "medlinkx"
	}
	return &RedisStore{
		logger: logger.Named("storage.redis"),
		client: client,
		prefix: "{" + prefix + "}",
	}, nil
}

func (s *RedisStore) docKey(key string) string {
	return s.prefix + ":doc:" + key
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":keys"
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Document, error) {
	values, err := s.client.HGetAll(ctx, s.docKey(key)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errorx.ErrDocumentNotFound
	}

	rev, err := strconv.ParseInt(values[fieldRev], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad revision for %s", errorx.ErrCorruptDocument, key)
	}
	doc := &Document{Key: key, Data: []byte(values[fieldData]), Revision: rev}
	if nanos, err := strconv.ParseInt(values[fieldUpdated], 10, 64); err == nil {
		doc.UpdatedAt = time.Unix(0, nanos)
	}
	return doc, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, data []byte, expectRev int64) (int64, error) {
	k := s.docKey(key)
	var next int64

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, fieldRev).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if !checkRevision(current, expectRev) {
			return errorx.ErrRevisionConflict
		}

		next = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k,
				fieldData, data,
				fieldRev, next,
				fieldUpdated, time.Now().UnixNano())
			pipe.SAdd(ctx, s.indexKey(), key)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, errorx.ErrRevisionConflict
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(key))
		pipe.SRem(ctx, s.indexKey(), key)
		return nil
	})
	return err
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
