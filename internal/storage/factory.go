package storage

import (
	"fmt"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/config"

	"go.uber.org/zap"
)

// NewStore creates a new document store based on configuration
func NewStore(logger *zap.Logger, cfg *config.StorageConfig) (Store, error) {
	logger.Info("Initializing document storage", zap.String("type", cfg.Type))
	switch cfg.Type {
	case cnst.StorageTypeMemory:
		return NewMemoryStore(logger), nil
	case cnst.StorageTypeDisk:
		return NewDiskStore(logger, cfg.Disk.Path)
	case cnst.StorageTypeRedis:
		return NewRedisStore(logger, cfg.Redis)
	case cnst.StorageTypeDB:
		dsn, err := cfg.Database.GetDSN()
		if err != nil {
			return nil, err
		}
		return NewDBStore(logger, DatabaseType(cfg.Database.Type), dsn)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
