package selection

import (
	"context"
	"fmt"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/site"
	"github.com/medlinkx/medlinkx/internal/storage"

	"go.uber.org/zap"
)

// DefaultScope is the unscoped selection shared by CLI invocations
const DefaultScope = ""

// Pointer is the active site and business unit. It is coordination state:
// every read revalidates it against the live registry.
type Pointer struct {
	SiteID       string `json:"siteId"`
	BusinessUnit string `json:"businessUnit"`
}

// Selection persists one pointer pair per scope
type Selection struct {
	logger *zap.Logger
	store  storage.Store
}

func New(logger *zap.Logger, store storage.Store) *Selection {
	return &Selection{
		logger: logger.Named("selection"),
		store:  store,
	}
}

func keys(scope string) (siteKey, unitKey string) {
	if scope == DefaultScope {
		return cnst.KeyCurrentSite, cnst.KeyCurrentBusinessUnit
	}
	return cnst.KeyCurrentSite + ":" + scope, cnst.KeyCurrentBusinessUnit + ":" + scope
}

// Current returns the revalidated pointer for scope. A missing or stale site
// falls back to the first site in registry, and a business unit the site does
// not have falls back to its first department. Corrections are persisted.
func (s *Selection) Current(ctx context.Context, scope string, registry []site.Site) (Pointer, error) {
	siteKey, unitKey := keys(scope)

	storedSite, _, err := storage.LoadString(ctx, s.store, siteKey)
	if err != nil {
		return Pointer{}, err
	}
	storedUnit, _, err := storage.LoadString(ctx, s.store, unitKey)
	if err != nil {
		return Pointer{}, err
	}

	stored := Pointer{SiteID: storedSite, BusinessUnit: storedUnit}
	resolved := resolve(stored, registry)
	if resolved != stored {
		if stored.SiteID != "" && stored.SiteID != resolved.SiteID {
			s.logger.Info("current site no longer resolves, reselected",
				zap.String("scope", scope),
				zap.String("stale_site_id", stored.SiteID),
				zap.String("site_id", resolved.SiteID))
		}
		if err := s.write(ctx, scope, resolved); err != nil {
			return Pointer{}, err
		}
	}
	return resolved, nil
}

// SetSite makes siteID current and resets the business unit to its first department
func (s *Selection) SetSite(ctx context.Context, scope, siteID string, registry []site.Site) (Pointer, error) {
	target, ok := find(registry, siteID)
	if !ok {
		return Pointer{}, fmt.Errorf("%w: %s", errorx.ErrSiteNotFound, siteID)
	}

	p := Pointer{SiteID: target.ID, BusinessUnit: firstDepartment(target)}
	if err := s.write(ctx, scope, p); err != nil {
		return Pointer{}, err
	}
	return p, nil
}

// SetBusinessUnit selects one of the current site's departments
func (s *Selection) SetBusinessUnit(ctx context.Context, scope, unit string, registry []site.Site) (Pointer, error) {
	current, err := s.Current(ctx, scope, registry)
	if err != nil {
		return Pointer{}, err
	}
	target, ok := find(registry, current.SiteID)
	if !ok || !target.HasDepartment(unit) {
		return Pointer{}, fmt.Errorf("%w: %s", errorx.ErrUnknownBusinessUnit, unit)
	}

	current.BusinessUnit = unit
	if err := s.write(ctx, scope, current); err != nil {
		return Pointer{}, err
	}
	return current, nil
}

// Clear forgets the pointer for scope
func (s *Selection) Clear(ctx context.Context, scope string) error {
	return s.write(ctx, scope, Pointer{})
}

func (s *Selection) write(ctx context.Context, scope string, p Pointer) error {
	siteKey, unitKey := keys(scope)
	if err := storage.SaveString(ctx, s.store, siteKey, p.SiteID); err != nil {
		return fmt.Errorf("failed to persist current site: %w", err)
	}
	if err := storage.SaveString(ctx, s.store, unitKey, p.BusinessUnit); err != nil {
		return fmt.Errorf("failed to persist current business unit: %w", err)
	}
	return nil
}

func resolve(p Pointer, registry []site.Site) Pointer {
	current, ok := find(registry, p.SiteID)
	if !ok {
		if len(registry) == 0 {
			return Pointer{}
		}
		current = registry[0]
	}

	out := Pointer{SiteID: current.ID, BusinessUnit: p.BusinessUnit}
	if !current.HasDepartment(out.BusinessUnit) {
		out.BusinessUnit = firstDepartment(current)
	}
	return out
}

func find(registry []site.Site, id string) (site.Site, bool) {
	if id == "" {
		return site.Site{}, false
	}
	for _, s := range registry {
		if s.ID == id {
			return s, true
		}
	}
	return site.Site{}, false
}

func firstDepartment(s site.Site) string {
	if len(s.Departments) == 0 {
		return ""
	}
	return s.Departments[0]
}
