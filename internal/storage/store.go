package storage

import (
	"context"
	"time"
)

// AnyRevision makes Save overwrite whatever revision is stored.
const AnyRevision int64 = -1

// Document is one persisted JSON value together with its version stamp.
type Document struct {
	Key       string
	Data      []byte
	Revision  int64
	UpdatedAt time.Time
}

// Store persists independent documents keyed by name.
//
// Save is a compare-and-swap: it succeeds only when the stored revision equals
// expectRev (0 meaning "must not exist yet") and returns the new revision.
// A lost race is reported as errorx.ErrRevisionConflict.
type Store interface {
	Load(ctx context.Context, key string) (*Document, error)
	Save(ctx context.Context, key string, data []byte, expectRev int64) (int64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

func checkRevision(current, expect int64) bool {
	return expect == AnyRevision || current == expect
}
