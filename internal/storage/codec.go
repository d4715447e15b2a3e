package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"github.com/tidwall/gjson"
)

// Source tells where the value returned by a load came from.
type Source string

const (
	// SourceStored means the document decoded cleanly.
	SourceStored Source = "stored"
	// SourceSalvaged means some entries were dropped and the rest kept.
	SourceSalvaged Source = "salvaged"
	// SourceDefaults means the built-in defaults replaced a missing or unusable document.
	SourceDefaults Source = "defaults"
)

// LoadResult describes how a document load was recovered.
type LoadResult struct {
	Key      string
	Source   Source
	Revision int64
	// Dropped lists entry ids discarded during salvage.
	Dropped []string
	// Cause is why the stored value was not used as-is. Nil for SourceStored.
	Cause error
}

// Recovered reports whether anything other than the stored document was used.
func (r LoadResult) Recovered() bool {
	return r.Source != SourceStored
}

// MapCodec reads and writes a document shaped as {id: T}.
type MapCodec[T any] struct {
	Key string
	// Defaults builds the value used when nothing usable is stored.
	Defaults func() map[string]T
	// Check validates one decoded entry. Entries failing it are dropped.
	Check func(id string, v T) error
	// RequireEntries falls back to defaults when the stored map is empty.
	RequireEntries bool
}

// Load never fails on bad data: missing, corrupt or partially corrupt documents are
// recovered and the outcome reported in LoadResult. Only backend errors are returned.
func (c MapCodec[T]) Load(ctx context.Context, s Store) (map[string]T, LoadResult, error) {
	res := LoadResult{Key: c.Key}

	doc, err := s.Load(ctx, c.Key)
	if errors.Is(err, errorx.ErrDocumentNotFound) {
		res.Source = SourceDefaults
		res.Cause = err
		return c.defaults(), res, nil
	}
	if err != nil {
		return nil, res, fmt.Errorf("failed to load %s: %w", c.Key, err)
	}
	res.Revision = doc.Revision

	var decoded map[string]T
	if err := json.Unmarshal(doc.Data, &decoded); err != nil || decoded == nil {
		if err == nil {
			err = errors.New("document is null")
		}
		res.Cause = fmt.Errorf("%w: %v", errorx.ErrCorruptDocument, err)
		decoded, res.Dropped = salvage[T](doc.Data)
		res.Source = SourceSalvaged
	} else {
		res.Source = SourceStored
	}

	out := make(map[string]T, len(decoded))
	for id, v := range decoded {
		if c.Check != nil {
			if err := c.Check(id, v); err != nil {
				res.Dropped = append(res.Dropped, id)
				if res.Cause == nil {
					res.Cause = fmt.Errorf("%w: entry %q: %v", errorx.ErrCorruptDocument, id, err)
				}
				continue
			}
		}
		out[id] = v
	}
	if len(res.Dropped) > 0 {
		res.Source = SourceSalvaged
	}

	if len(out) == 0 && (res.Source == SourceSalvaged || c.RequireEntries) {
		if res.Cause == nil {
			res.Cause = fmt.Errorf("%w: no entries", errorx.ErrCorruptDocument)
		}
		res.Source = SourceDefaults
		return c.defaults(), res, nil
	}
	return out, res, nil
}

// Save encodes m and writes it with compare-and-swap on expectRev.
func (c MapCodec[T]) Save(ctx context.Context, s Store, m map[string]T, expectRev int64) (int64, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}
	return s.Save(ctx, c.Key, data, expectRev)
}

func (c MapCodec[T]) defaults() map[string]T {
	if c.Defaults == nil {
		return make(map[string]T)
	}
	return c.Defaults()
}

// salvage decodes each top-level entry on its own and keeps those that parse.
func salvage[T any](data []byte) (map[string]T, []string) {
	out := make(map[string]T)
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return out, nil
	}

	var dropped []string
	root.ForEach(func(key, value gjson.Result) bool {
		var v T
		if err := json.Unmarshal([]byte(value.Raw), &v); err != nil {
			dropped = append(dropped, key.String())
			return true
		}
		out[key.String()] = v
		return true
	})
	return out, dropped
}

// LoadString reads a scalar pointer document. Missing documents report ok=false.
func LoadString(ctx context.Context, s Store, key string) (string, bool, error) {
	doc, err := s.Load(ctx, key)
	if errors.Is(err, errorx.ErrDocumentNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(doc.Data), len(doc.Data) > 0, nil
}

// SaveString overwrites a scalar pointer document. An empty value deletes it.
func SaveString(ctx context.Context, s Store, key, value string) error {
	if value == "" {
		return s.Delete(ctx, key)
	}
	_, err := s.Save(ctx, key, []byte(value), AnyRevision)
	return err
}
