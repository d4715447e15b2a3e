package access

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/storage"
	"github.com/medlinkx/medlinkx/internal/validator"

	"go.uber.org/zap"
)

// Store owns user to access rule mappings. Mutations are written through with
// compare-and-swap and reapplied on a fresh copy after a conflict.
type Store struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	store    storage.Store
	codec    storage.MapCodec[Rule]
	validate *validator.Validator

	rules    map[string]Rule
	rev      int64
	lastLoad storage.LoadResult

	now        func() time.Time
	normalize  bool
	maxRetries int
}

type Option func(*Store)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithNormalizedUserIDs trims and lower-cases user ids at every entry point
func WithNormalizedUserIDs(enabled bool) Option {
	return func(s *Store) { s.normalize = enabled }
}

// WithMaxRetries bounds reload-and-reapply attempts after a revision conflict
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithDefaults sets the rules used when nothing usable is persisted
func WithDefaults(defaults func() map[string]Rule) Option {
	return func(s *Store) { s.codec.Defaults = defaults }
}

// NewStore creates a rule store and loads it. Corrupt documents are recovered, not returned.
func NewStore(ctx context.Context, logger *zap.Logger, store storage.Store, opts ...Option) (*Store, error) {
	s := &Store{
		logger:   logger.Named("access.store"),
		store:    store,
		validate: validator.Default(),
		codec: storage.MapCodec[Rule]{
			Key: cnst.KeyAccessRules,
		},
		now:        time.Now,
		maxRetries: 3,
	}
	s.codec.Check = s.checkStored
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// checkStored only rejects rules filed under the wrong user. Role and
// permission tags outside the known set are kept as stored.
func (s *Store) checkStored(id string, r Rule) error {
	if r.UserID != "" && r.UserID != id {
		return fmt.Errorf("user id %q stored under key %q", r.UserID, id)
	}
	return nil
}

// UserKey returns the identifier rules are indexed by
func (s *Store) UserKey(userID string) string {
	if s.normalize {
		return strings.ToLower(strings.TrimSpace(userID))
	}
	return userID
}

// Reload replaces the in-memory rules with the persisted ones
func (s *Store) Reload(ctx context.Context) (storage.LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) (storage.LoadResult, error) {
	loaded, res, err := s.codec.Load(ctx, s.store)
	if err != nil {
		return res, err
	}
	switch {
	case errors.Is(res.Cause, errorx.ErrDocumentNotFound):
		s.logger.Info("no access rules persisted yet", zap.String("key", res.Key))
	case res.Recovered():
		s.logger.Warn("access rules recovered on load",
			zap.String("key", res.Key),
			zap.String("source", string(res.Source)),
			zap.Strings("dropped", res.Dropped),
			zap.NamedError("cause", res.Cause))
	}

	rules := make(map[string]Rule, len(loaded))
	for id, r := range loaded {
		r.UserID = s.UserKey(id)
		if r.AccessLevel == "" {
			r.AccessLevel = LevelSite
		}
		if prev, dup := rules[r.UserID]; dup {
			// two ids collapsed under normalization: keep the most recently touched rule
			if lastTouched(prev).After(lastTouched(r)) {
				r = prev
			}
			s.logger.Warn("duplicate access rules after user id normalization",
				zap.String("user_id", r.UserID))
		}
		rules[r.UserID] = r
	}

	s.rules = rules
	s.rev = res.Revision
	s.lastLoad = res
	return res, nil
}

func lastTouched(r Rule) time.Time {
	if r.UpdatedAt != nil {
		return *r.UpdatedAt
	}
	return r.CreatedAt
}

// LastLoad reports how the most recent load was resolved
func (s *Store) LastLoad() storage.LoadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLoad
}

// Get returns the rule for userID
func (s *Store) Get(_ context.Context, userID string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[s.UserKey(userID)]
	if !ok {
		return Rule{}, false
	}
	return r.Clone(), true
}

// List returns every rule ordered by user id
func (s *Store) List(_ context.Context) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b Rule) int { return cmp.Compare(a.UserID, b.UserID) })
	return out
}

// Create stores a new rule. An existing rule for the same user is replaced.
func (s *Store) Create(ctx context.Context, in NewRule, actorID string) (Rule, error) {
	if err := s.validate.Validate(in); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", errorx.ErrInvalidRule, err)
	}

	r := Rule{
		UserID:      s.UserKey(in.UserID),
		Role:        cmp.Or(in.Role, RoleViewer),
		AccessLevel: cmp.Or(in.AccessLevel, LevelSite),
		SiteAccess:  Sites(),
		Permissions: slices.Clone(in.Permissions),
		CreatedBy:   actorID,
		CreatedAt:   s.now().UTC(),
	}
	if in.SiteAccess != nil {
		r.SiteAccess = in.SiteAccess.clone()
	}
	if len(r.Permissions) == 0 {
		r.Permissions = []Permission{PermissionRead}
	}

	return s.mutate(ctx, cnst.ActionCreate, r.UserID, actorID, func(rules map[string]Rule) (Rule, bool, error) {
		if prev, exists := rules[r.UserID]; exists {
			s.logger.Info("access rule overwritten by create",
				zap.String("user_id", r.UserID),
				zap.String("previous_level", string(prev.AccessLevel)),
				zap.Stringer("previous_scope", prev.SiteAccess),
				zap.Bool("overwritten", true))
		}
		rules[r.UserID] = r
		return r, true, nil
	})
}

// Update merges p into the user's rule and stamps the updater
func (s *Store) Update(ctx context.Context, userID string, p RulePatch, actorID string) (Rule, error) {
	if err := s.validate.Validate(p); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", errorx.ErrInvalidRule, err)
	}

	key := s.UserKey(userID)
	return s.mutate(ctx, cnst.ActionUpdate, key, actorID, func(rules map[string]Rule) (Rule, bool, error) {
		current, ok := rules[key]
		if !ok {
			return Rule{}, false, fmt.Errorf("%w: %s", errorx.ErrRuleNotFound, userID)
		}
		merged := s.stamp(p.Apply(current), actorID)
		rules[key] = merged
		return merged, true, nil
	})
}

// Delete removes the user's rule
func (s *Store) Delete(ctx context.Context, userID, actorID string) error {
	key := s.UserKey(userID)
	_, err := s.mutate(ctx, cnst.ActionDelete, key, actorID, func(rules map[string]Rule) (Rule, bool, error) {
		r, ok := rules[key]
		if !ok {
			return Rule{}, false, fmt.Errorf("%w: %s", errorx.ErrRuleNotFound, userID)
		}
		delete(rules, key)
		return r, true, nil
	})
	return err
}

// GrantSite adds siteID to the user's explicit set. Unrestricted holders and
// already granted ids are left untouched.
func (s *Store) GrantSite(ctx context.Context, userID, siteID, actorID string) (Rule, error) {
	if strings.TrimSpace(siteID) == "" {
		return Rule{}, fmt.Errorf("%w: site id is required", errorx.ErrInvalidRule)
	}

	key := s.UserKey(userID)
	return s.mutate(ctx, cnst.ActionGrant, key, actorID, func(rules map[string]Rule) (Rule, bool, error) {
		current, ok := rules[key]
		if !ok {
			return Rule{}, false, fmt.Errorf("%w: %s", errorx.ErrRuleNotFound, userID)
		}
		if current.Unrestricted() || current.SiteAccess.Contains(siteID) {
			return current, false, nil
		}
		current.SiteAccess = current.SiteAccess.With(siteID)
		current = s.stamp(current, actorID)
		rules[key] = current
		return current, true, nil
	})
}

// RevokeSite removes siteID from the user's explicit set. Unrestricted holders
// are rejected with ErrWildcardRevoke; access must be downgraded through Update.
func (s *Store) RevokeSite(ctx context.Context, userID, siteID, actorID string) (Rule, error) {
	key := s.UserKey(userID)
	return s.mutate(ctx, cnst.ActionRevoke, key, actorID, func(rules map[string]Rule) (Rule, bool, error) {
		current, ok := rules[key]
		if !ok {
			return Rule{}, false, fmt.Errorf("%w: %s", errorx.ErrRuleNotFound, userID)
		}
		if current.Unrestricted() {
			return Rule{}, false, errorx.ErrWildcardRevoke
		}
		if !current.SiteAccess.Contains(siteID) {
			return current, false, nil
		}
		current.SiteAccess = current.SiteAccess.Without(siteID)
		current = s.stamp(current, actorID)
		rules[key] = current
		return current, true, nil
	})
}

// PruneSite drops siteID from every explicit set and returns how many rules changed
func (s *Store) PruneSite(ctx context.Context, siteID, actorID string) (int, error) {
	var pruned int
	_, err := s.mutate(ctx, cnst.ActionPrune, siteID, actorID, func(rules map[string]Rule) (Rule, bool, error) {
		pruned = 0
		for key, r := range rules {
			if r.SiteAccess.IsWildcard() || !r.SiteAccess.Contains(siteID) {
				continue
			}
			r.SiteAccess = r.SiteAccess.Without(siteID)
			rules[key] = s.stamp(r, actorID)
			pruned++
		}
		return Rule{}, pruned > 0, nil
	})
	return pruned, err
}

// EnsureGlobal gives each listed user a global wildcard rule unless they already have a rule
func (s *Store) EnsureGlobal(ctx context.Context, userIDs []string, actorID string) (int, error) {
	var created int
	_, err := s.mutate(ctx, cnst.ActionCreate, strings.Join(userIDs, ","), actorID, func(rules map[string]Rule) (Rule, bool, error) {
		created = 0
		for _, id := range userIDs {
			key := s.UserKey(id)
			if strings.TrimSpace(key) == "" {
				continue
			}
			if _, ok := rules[key]; ok {
				continue
			}
			rules[key] = Rule{
				UserID:      key,
				Role:        RoleSuperAdmin,
				AccessLevel: LevelGlobal,
				SiteAccess:  Wildcard(),
				Permissions: []Permission{PermissionRead, PermissionWrite, PermissionDelete, PermissionAdmin},
				CreatedBy:   actorID,
				CreatedAt:   s.now().UTC(),
			}
			created++
		}
		return Rule{}, created > 0, nil
	})
	return created, err
}

func (s *Store) stamp(r Rule, actorID string) Rule {
	now := s.now().UTC()
	r.UpdatedBy = actorID
	r.UpdatedAt = &now
	return r
}

// mutate applies fn to a copy of the rules and persists the copy when fn reports a change.
func (s *Store) mutate(ctx context.Context, action cnst.ActionType, subject, actorID string, fn func(map[string]Rule) (Rule, bool, error)) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		next := make(map[string]Rule, len(s.rules)+1)
		for id, r := range s.rules {
			next[id] = r.Clone()
		}

		out, changed, err := fn(next)
		if err != nil {
			return Rule{}, err
		}
		if !changed {
			return out.Clone(), nil
		}

		rev, err := s.codec.Save(ctx, s.store, next, s.rev)
		if err == nil {
			s.rules = next
			s.rev = rev
			s.logger.Info("access rules updated",
				zap.String("action", action.String()),
				zap.String("subject", subject),
				zap.String("actor", actorID),
				zap.Int64("revision", rev))
			return out.Clone(), nil
		}
		if !errors.Is(err, errorx.ErrRevisionConflict) || attempt >= s.maxRetries {
			return Rule{}, fmt.Errorf("failed to persist access rules: %w", err)
		}

		s.logger.Warn("access rules changed by another writer, reloading",
			zap.String("action", action.String()),
			zap.Int("attempt", attempt+1))
		if _, err := s.reloadLocked(ctx); err != nil {
			return Rule{}, err
		}
	}
}
