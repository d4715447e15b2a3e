package site

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/storage"
	"github.com/medlinkx/medlinkx/internal/validator"
	"github.com/medlinkx/medlinkx/pkg/utils"

	"go.uber.org/zap"
)

// maxIDAttempts bounds retries when a generated id is already taken
const maxIDAttempts = 8

// Registry owns the set of sites. Every mutation is written through to the
// store with compare-and-swap before it becomes visible to readers.
type Registry struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	store    storage.Store
	codec    storage.MapCodec[Site]
	validate *validator.Validator

	sites    map[string]Site
	rev      int64
	lastLoad storage.LoadResult

	now        func() time.Time
	newID      func(facilityCode string) string
	maxRetries int
}

type Option func(*Registry)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides how ids are derived from the facility code
func WithIDGenerator(gen func(facilityCode string) string) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithMaxRetries bounds reload-and-reapply attempts after a revision conflict
func WithMaxRetries(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithDefaults replaces the built-in fallback registry
func WithDefaults(defaults func() map[string]Site) Option {
	return func(r *Registry) { r.codec.Defaults = defaults }
}

// GenerateID slugifies the facility code and appends a time-ordered unique suffix.
func GenerateID(facilityCode string) string {
	slug := utils.Slugify(facilityCode)
	if slug == "" {
		slug = "site"
	}
	return slug + "-" + utils.NewID()
}

// NewRegistry creates a registry and loads it from the store. Corrupt or
// missing documents fall back to defaults; only backend failures are returned.
func NewRegistry(ctx context.Context, logger *zap.Logger, store storage.Store, opts ...Option) (*Registry, error) {
	r := &Registry{
		logger:   logger.Named("site.registry"),
		store:    store,
		validate: validator.Default(),
		codec: storage.MapCodec[Site]{
			Key:            cnst.KeySites,
			Defaults:       DefaultSites,
			RequireEntries: true,
		},
		now:        time.Now,
		newID:      GenerateID,
		maxRetries: 3,
	}
	r.codec.Check = r.checkStored
	for _, opt := range opts {
		opt(r)
	}

	if _, err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// checkStored keeps every entry that can still be resolved and displayed.
// Format rules (status, colors, email) apply to writes only.
func (r *Registry) checkStored(id string, s Site) error {
	if s.ID != id {
		return fmt.Errorf("id %q stored under key %q", s.ID, id)
	}
	return structural(s)
}

func structural(s Site) error {
	required := []struct{ field, value string }{
		{"id", s.ID},
		{"name", s.Name},
		{"facilityCode", s.FacilityCode},
		{"address", s.Address},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.field)
		}
	}
	return nil
}

// Reload replaces the in-memory registry with the persisted one
func (r *Registry) Reload(ctx context.Context) (storage.LoadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked(ctx)
}

func (r *Registry) reloadLocked(ctx context.Context) (storage.LoadResult, error) {
	sites, res, err := r.codec.Load(ctx, r.store)
	if err != nil {
		return res, err
	}
	if res.Recovered() {
		r.logger.Warn("site registry recovered on load",
			zap.String("key", res.Key),
			zap.String("source", string(res.Source)),
			zap.Strings("dropped", res.Dropped),
			zap.NamedError("cause", res.Cause))
	}
	for id, s := range sites {
		if s.Status == "" {
			s.Status = StatusActive
			sites[id] = s
		}
	}
	r.sites = sites
	r.rev = res.Revision
	r.lastLoad = res
	return res, nil
}

// LastLoad reports how the most recent load was resolved
func (r *Registry) LastLoad() storage.LoadResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastLoad
}

// List returns every site ordered by creation time, then id
func (r *Registry) List(_ context.Context) []Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Site, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s.Clone())
	}
	SortSites(out)
	return out
}

// Get returns the site with the given id
func (r *Registry) Get(_ context.Context, id string) (Site, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sites[id]
	if !ok {
		return Site{}, false
	}
	return s.Clone(), true
}

// Len returns the number of sites
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sites)
}

// Add validates in, assigns an id when none is supplied, and persists the new site
func (r *Registry) Add(ctx context.Context, in NewSite, actorID string) (Site, error) {
	if err := r.validate.Validate(in); err != nil {
		return Site{}, fmt.Errorf("%w: %v", errorx.ErrInvalidSite, err)
	}

	id := strings.TrimSpace(in.ID)
	generated := id == ""
	status := in.Status
	if status == "" {
		status = StatusActive
	}

	return r.mutate(ctx, cnst.ActionCreate, func(sites map[string]Site) (Site, error) {
		if generated {
			var err error
			if id, err = r.freeID(sites, in.FacilityCode); err != nil {
				return Site{}, err
			}
		} else if _, taken := sites[id]; taken {
			return Site{}, fmt.Errorf("%w: %s", errorx.ErrSiteExists, id)
		}

		s := Site{
			ID:           id,
			Name:         in.Name,
			ShortName:    in.ShortName,
			FacilityCode: in.FacilityCode,
			Address:      in.Address,
			Contact:      in.Contact,
			BedCount:     in.BedCount,
			Departments:  append([]string(nil), in.Departments...),
			Theme:        in.Theme,
			Status:       status,
			CreatedAt:    r.now().UTC(),
			CreatedBy:    actorID,
		}
		sites[id] = s
		return s, nil
	})
}

func (r *Registry) freeID(sites map[string]Site, facilityCode string) (string, error) {
	for range maxIDAttempts {
		id := r.newID(facilityCode)
		if _, taken := sites[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no free id for facility code %q after %d attempts",
		errorx.ErrSiteExists, facilityCode, maxIDAttempts)
}

// Update merges p into the site and stamps UpdatedAt
func (r *Registry) Update(ctx context.Context, id string, p Patch) (Site, error) {
	if err := r.validate.Validate(p); err != nil {
		return Site{}, fmt.Errorf("%w: %v", errorx.ErrInvalidSite, err)
	}

	return r.mutate(ctx, cnst.ActionUpdate, func(sites map[string]Site) (Site, error) {
		current, ok := sites[id]
		if !ok {
			return Site{}, fmt.Errorf("%w: %s", errorx.ErrSiteNotFound, id)
		}

		merged := p.Apply(current)
		now := r.now().UTC()
		merged.UpdatedAt = &now
		// p itself was validated above; stored fields it leaves alone are not re-checked
		if err := structural(merged); err != nil {
			return Site{}, fmt.Errorf("%w: %v", errorx.ErrInvalidSite, err)
		}
		sites[id] = merged
		return merged, nil
	})
}

// Delete removes a site. The last remaining site can never be deleted.
func (r *Registry) Delete(ctx context.Context, id string) error {
	_, err := r.mutate(ctx, cnst.ActionDelete, func(sites map[string]Site) (Site, error) {
		s, ok := sites[id]
		if !ok {
			return Site{}, fmt.Errorf("%w: %s", errorx.ErrSiteNotFound, id)
		}
		if len(sites) <= 1 {
			return Site{}, errorx.ErrLastSite
		}
		delete(sites, id)
		return s, nil
	})
	return err
}

// Seed replaces the whole registry, e.g. when importing from another installation
func (r *Registry) Seed(ctx context.Context, sites []Site) error {
	if len(sites) == 0 {
		return errorx.ErrLastSite
	}
	next := make(map[string]Site, len(sites))
	for _, s := range sites {
		if err := r.validate.Validate(s); err != nil {
			return fmt.Errorf("%w: %s: %v", errorx.ErrInvalidSite, s.ID, err)
		}
		if _, dup := next[s.ID]; dup {
			return fmt.Errorf("%w: %s", errorx.ErrSiteExists, s.ID)
		}
		next[s.ID] = s.Clone()
	}

	_, err := r.mutate(ctx, cnst.ActionSeed, func(sites map[string]Site) (Site, error) {
		clear(sites)
		maps.Copy(sites, next)
		return Site{}, nil
	})
	return err
}

// mutate applies fn to a copy of the registry, persists it and swaps it in.
// On a revision conflict the registry is reloaded and fn applied again.
func (r *Registry) mutate(ctx context.Context, action cnst.ActionType, fn func(map[string]Site) (Site, error)) (Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; ; attempt++ {
		next := make(map[string]Site, len(r.sites)+1)
		for id, s := range r.sites {
			next[id] = s.Clone()
		}

		out, err := fn(next)
		if err != nil {
			return Site{}, err
		}

		rev, err := r.codec.Save(ctx, r.store, next, r.rev)
		if err == nil {
			r.sites = next
			r.rev = rev
			r.logger.Info("site registry updated",
				zap.String("action", action.String()),
				zap.String("site_id", out.ID),
				zap.Int64("revision", rev))
			return out.Clone(), nil
		}
		if !errors.Is(err, errorx.ErrRevisionConflict) || attempt >= r.maxRetries {
			return Site{}, fmt.Errorf("failed to persist site registry: %w", err)
		}

		r.logger.Warn("site registry changed by another writer, reloading",
			zap.String("action", action.String()),
			zap.Int("attempt", attempt+1))
		if _, err := r.reloadLocked(ctx); err != nil {
			return Site{}, err
		}
	}
}
