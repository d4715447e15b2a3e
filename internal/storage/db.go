package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// DatabaseType represents the supported database types
type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgres"
	MySQL      DatabaseType = "mysql"
	SQLite     DatabaseType = "sqlite"
)

// ErrInvalidDatabaseType is returned for a database type NewDBStore cannot open
var ErrInvalidDatabaseType = errors.New("invalid database type")

// documentRecord is the single table backing every document
type documentRecord struct {
	Key       string    `gorm:"column:doc_key;primaryKey;size:191"`
	Data      string    `gorm:"column:data;type:text"`
	Revision  int64     `gorm:"column:revision;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (documentRecord) TableName() string {
	return "medlinkx_documents"
}

// DBStore implements the Store interface using a database
type DBStore struct {
	logger *zap.Logger
	db     *gorm.DB
}

var _ Store = (*DBStore)(nil)

// NewDBStore creates a new database-based store
func NewDBStore(logger *zap.Logger, dbType DatabaseType, dsn string) (*DBStore, error) {
	logger = logger.Named("storage.db")

	var dialector gorm.Dialector
	switch dbType {
	case PostgreSQL:
		dialector = postgres.Open(dsn)
	case MySQL:
		dialector = mysql.Open(dsn)
	case SQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDatabaseType, dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbType == SQLite {
		// one connection keeps ":memory:" databases shared and serializes writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// Auto migrate the schema
	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DBStore{
		logger: logger,
		db:     db,
	}, nil
}

func (s *DBStore) Load(ctx context.Context, key string) (*Document, error) {
	var rec documentRecord
	err := s.db.WithContext(ctx).Where("doc_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Document{
		Key:       rec.Key,
		Data:      []byte(rec.Data),
		Revision:  rec.Revision,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (s *DBStore) Save(ctx context.Context, key string, data []byte, expectRev int64) (int64, error) {
	if expectRev == AnyRevision {
		return s.overwrite(ctx, key, data)
	}
	if expectRev == 0 {
		return s.insert(s.db.WithContext(ctx), key, data)
	}

	res := s.db.WithContext(ctx).
		Model(&documentRecord{}).
		Where("doc_key = ? AND revision = ?", key, expectRev).
		Updates(map[string]any{
			"data":       string(data),
			"revision":   expectRev + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errorx.ErrRevisionConflict
	}
	return expectRev + 1, nil
}

func (s *DBStore) insert(db *gorm.DB, key string, data []byte) (int64, error) {
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&documentRecord{
		Key:       key,
		Data:      string(data),
		Revision:  1,
		UpdatedAt: time.Now().UTC(),
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errorx.ErrRevisionConflict
	}
	return 1, nil
}

// overwrite retries a conditional write against the latest revision
func (s *DBStore) overwrite(ctx context.Context, key string, data []byte) (int64, error) {
	for attempt := 0; attempt < 5; attempt++ {
		var current int64
		doc, err := s.Load(ctx, key)
		switch {
		case err == nil:
			current = doc.Revision
		case !errors.Is(err, errorx.ErrDocumentNotFound):
			return 0, err
		}

		next, err := s.Save(ctx, key, data, current)
		if errors.Is(err, errorx.ErrRevisionConflict) {
			continue
		}
		return next, err
	}
	return 0, errorx.ErrRevisionConflict
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("doc_key = ?", key).Delete(&documentRecord{}).Error
}

func (s *DBStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&documentRecord{}).
		Order("doc_key asc").
		Pluck("doc_key", &keys).Error
	return keys, err
}

// Close closes the database connection
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
