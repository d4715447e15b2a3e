package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medlinkx/medlinkx/internal/access"
	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/config"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/selection"
	"github.com/medlinkx/medlinkx/internal/site"
	"github.com/medlinkx/medlinkx/internal/storage"
	"github.com/medlinkx/medlinkx/pkg/metrics"
	"github.com/medlinkx/medlinkx/pkg/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Service is the application state: the site registry, the access rules,
// the resolver over them and the current selection pointers.
type Service struct {
	logger *zap.Logger

	Sites     *site.Registry
	Rules     *access.Store
	Resolver  *access.Resolver
	Selection *selection.Selection

	metrics       *metrics.Metrics
	tracer        *trace.Builder
	pruneOnDelete bool
}

type options struct {
	siteOpts      []site.Option
	ruleOpts      []access.Option
	metrics       *metrics.Metrics
	pruneOnDelete bool
	superAdmins   []string
}

type Option func(*options)

// WithMetrics records mutation and load counters on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPruneOnDelete removes a deleted site from every explicit grant
func WithPruneOnDelete(enabled bool) Option {
	return func(o *options) { o.pruneOnDelete = enabled }
}

// WithNormalizedUserIDs makes rule lookups case-insensitive
func WithNormalizedUserIDs(enabled bool) Option {
	return func(o *options) { o.ruleOpts = append(o.ruleOpts, access.WithNormalizedUserIDs(enabled)) }
}

// WithMaxRetries bounds conflict retries for both the registry and the rules
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.siteOpts = append(o.siteOpts, site.WithMaxRetries(n))
		o.ruleOpts = append(o.ruleOpts, access.WithMaxRetries(n))
	}
}

// WithClock overrides time.Now for the registry and the rules
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.siteOpts = append(o.siteOpts, site.WithClock(now))
		o.ruleOpts = append(o.ruleOpts, access.WithClock(now))
	}
}

// WithSuperAdmins ensures each id has a global wildcard rule after loading
func WithSuperAdmins(ids ...string) Option {
	return func(o *options) { o.superAdmins = append(o.superAdmins, ids...) }
}

func WithSiteOptions(opts ...site.Option) Option {
	return func(o *options) { o.siteOpts = append(o.siteOpts, opts...) }
}

func WithRuleOptions(opts ...access.Option) Option {
	return func(o *options) { o.ruleOpts = append(o.ruleOpts, opts...) }
}

// FromConfig translates the access section of the configuration into options
func FromConfig(cfg config.AccessConfig) []Option {
	return []Option{
		WithNormalizedUserIDs(cfg.NormalizeUserIDs),
		WithPruneOnDelete(cfg.PruneOnSiteDelete),
		WithMaxRetries(cfg.MaxWriteRetries),
		WithSuperAdmins(cfg.SuperAdmins...),
	}
}

// New loads the registry and rules from store. Corrupt documents are
// recovered and logged; only backend failures are returned.
func New(ctx context.Context, logger *zap.Logger, store storage.Store, opts ...Option) (*Service, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	svc := &Service{
		logger:        logger.Named("tenancy"),
		metrics:       o.metrics,
		tracer:        trace.Tracer(cnst.TraceTenancy),
		pruneOnDelete: o.pruneOnDelete,
	}

	scope := svc.tracer.Start(ctx, cnst.SpanLoad)
	defer scope.End()

	var err error
	svc.Sites, err = site.NewRegistry(scope.Ctx, logger, store, o.siteOpts...)
	if err != nil {
		scope.Fail(err)
		return nil, fmt.Errorf("failed to load site registry: %w", err)
	}
	svc.Rules, err = access.NewStore(scope.Ctx, logger, store, o.ruleOpts...)
	if err != nil {
		scope.Fail(err)
		return nil, fmt.Errorf("failed to load access rules: %w", err)
	}
	svc.Resolver = access.NewResolver(svc.Rules)
	svc.Selection = selection.New(logger, store)

	svc.recordLoad(scope, svc.Sites.LastLoad(), svc.Rules.LastLoad())

	if len(o.superAdmins) > 0 {
		created, err := svc.Rules.EnsureGlobal(scope.Ctx, o.superAdmins, "system")
		if err != nil {
			scope.Fail(err)
			return nil, fmt.Errorf("failed to provision super admins: %w", err)
		}
		if created > 0 {
			svc.logger.Info("provisioned super admin rules", zap.Int("count", created))
		}
	}
	return svc, nil
}

// Load re-reads every document from storage
func (s *Service) Load(ctx context.Context) error {
	scope := s.tracer.Start(ctx, cnst.SpanLoad)
	defer scope.End()

	sites, err := s.Sites.Reload(scope.Ctx)
	if err != nil {
		scope.Fail(err)
		return err
	}
	rules, err := s.Rules.Reload(scope.Ctx)
	if err != nil {
		scope.Fail(err)
		return err
	}
	s.recordLoad(scope, sites, rules)
	return nil
}

func (s *Service) recordLoad(scope *trace.SpanScope, results ...storage.LoadResult) {
	for _, res := range results {
		s.metrics.DocumentLoaded(res.Key, string(res.Source))
		if res.Recovered() {
			scope.WithAttrs(
				attribute.String(cnst.AttrLoadSource, string(res.Source)),
				attribute.Int(cnst.AttrDroppedCount, len(res.Dropped)),
			)
		}
	}
}

// ListSites returns the whole registry in display order
func (s *Service) ListSites(ctx context.Context) []site.Site {
	return s.Sites.List(ctx)
}

// GetSite returns the site or ErrSiteNotFound
func (s *Service) GetSite(ctx context.Context, id string) (site.Site, error) {
	st, ok := s.Sites.Get(ctx, id)
	if !ok {
		return site.Site{}, fmt.Errorf("%w: %s", errorx.ErrSiteNotFound, id)
	}
	return st, nil
}

func (s *Service) AddSite(ctx context.Context, in site.NewSite, actorID string) (site.Site, error) {
	scope := s.tracer.Start(ctx, cnst.SpanSiteAdd).WithAttrs(attribute.String(cnst.AttrActorID, actorID))
	defer scope.End()

	start := time.Now()
	out, err := s.Sites.Add(scope.Ctx, in, actorID)
	s.done(scope, cnst.KeySites, cnst.ActionCreate, start, err)
	if err == nil {
		scope.WithAttrs(attribute.String(cnst.AttrSiteID, out.ID))
	}
	return out, err
}

func (s *Service) UpdateSite(ctx context.Context, id string, p site.Patch, actorID string) (site.Site, error) {
	scope := s.tracer.Start(ctx, cnst.SpanSiteUpdate).WithAttrs(
		attribute.String(cnst.AttrSiteID, id),
		attribute.String(cnst.AttrActorID, actorID),
	)
	defer scope.End()

	start := time.Now()
	out, err := s.Sites.Update(scope.Ctx, id, p)
	s.done(scope, cnst.KeySites, cnst.ActionUpdate, start, err)
	return out, err
}

// Seed replaces the registry contents. Selection pointers are revalidated
// lazily; grants naming sites that are gone stay until pruned.
func (s *Service) Seed(ctx context.Context, sites []site.Site, actorID string) error {
	scope := s.tracer.Start(ctx, cnst.SpanSiteSeed).WithAttrs(
		attribute.String(cnst.AttrActorID, actorID),
		attribute.Int("medlinkx.site_count", len(sites)),
	)
	defer scope.End()

	start := time.Now()
	err := s.Sites.Seed(scope.Ctx, sites)
	s.done(scope, cnst.KeySites, cnst.ActionSeed, start, err)
	if err == nil {
		s.logger.Info("registry seeded", zap.Int("sites", len(sites)), zap.String("actor", actorID))
	}
	return err
}

// DeleteSite removes the site, moves the viewer's current pointer off it and,
// when enabled, prunes it from every explicit grant. The returned pointer is
// the viewer's selection after the delete.
func (s *Service) DeleteSite(ctx context.Context, siteID string, v Viewer, actorID string) (selection.Pointer, error) {
	scope := s.tracer.Start(ctx, cnst.SpanSiteDelete).WithAttrs(
		attribute.String(cnst.AttrSiteID, siteID),
		attribute.String(cnst.AttrScope, v.Scope),
		attribute.String(cnst.AttrActorID, actorID),
	)
	defer scope.End()

	start := time.Now()
	err := s.Sites.Delete(scope.Ctx, siteID)
	s.done(scope, cnst.KeySites, cnst.ActionDelete, start, err)
	if err != nil {
		return selection.Pointer{}, err
	}

	ptr, err := s.Selection.Current(scope.Ctx, v.Scope, s.selectable(scope.Ctx, v))
	if err != nil {
		scope.Fail(err)
		return selection.Pointer{}, err
	}

	if s.pruneOnDelete {
		start = time.Now()
		n, err := s.Rules.PruneSite(scope.Ctx, siteID, actorID)
		s.done(scope, cnst.KeyAccessRules, cnst.ActionPrune, start, err)
		if err != nil {
			return ptr, err
		}
		s.logger.Info("pruned deleted site from grants",
			zap.String("site_id", siteID),
			zap.Int("rules", n))
	}
	return ptr, nil
}

// GetRule returns the user's rule or ErrRuleNotFound
func (s *Service) GetRule(ctx context.Context, userID string) (access.Rule, error) {
	r, ok := s.Rules.Get(ctx, userID)
	if !ok {
		return access.Rule{}, fmt.Errorf("%w: %s", errorx.ErrRuleNotFound, userID)
	}
	return r, nil
}

func (s *Service) ListRules(ctx context.Context) []access.Rule {
	return s.Rules.List(ctx)
}

func (s *Service) CreateRule(ctx context.Context, in access.NewRule, actorID string) (access.Rule, error) {
	scope := s.ruleSpan(ctx, cnst.SpanRuleCreate, in.UserID, actorID)
	defer scope.End()

	start := time.Now()
	out, err := s.Rules.Create(scope.Ctx, in, actorID)
	s.done(scope, cnst.KeyAccessRules, cnst.ActionCreate, start, err)
	return out, err
}

func (s *Service) UpdateRule(ctx context.Context, userID string, p access.RulePatch, actorID string) (access.Rule, error) {
	scope := s.ruleSpan(ctx, cnst.SpanRuleUpdate, userID, actorID)
	defer scope.End()

	start := time.Now()
	out, err := s.Rules.Update(scope.Ctx, userID, p, actorID)
	s.done(scope, cnst.KeyAccessRules, cnst.ActionUpdate, start, err)
	return out, err
}

func (s *Service) DeleteRule(ctx context.Context, userID, actorID string) error {
	scope := s.ruleSpan(ctx, cnst.SpanRuleDelete, userID, actorID)
	defer scope.End()

	start := time.Now()
	err := s.Rules.Delete(scope.Ctx, userID, actorID)
	s.done(scope, cnst.KeyAccessRules, cnst.ActionDelete, start, err)
	return err
}

// GrantSite adds a registered site to the user's explicit set
func (s *Service) GrantSite(ctx context.Context, userID, siteID, actorID string) (access.Rule, error) {
	scope := s.ruleSpan(ctx, cnst.SpanRuleGrant, userID, actorID).WithAttrs(attribute.String(cnst.AttrSiteID, siteID))
	defer scope.End()

	start := time.Now()
	var (
		out access.Rule
		err error
	)
	if _, ok := s.Sites.Get(scope.Ctx, siteID); !ok {
		err = fmt.Errorf("%w: %s", errorx.ErrSiteNotFound, siteID)
	} else {
		out, err = s.Rules.GrantSite(scope.Ctx, userID, siteID, actorID)
	}
	s.done(scope, cnst.KeyAccessRules, cnst.ActionGrant, start, err)
	return out, err
}

// RevokeSite removes a site from the user's explicit set. The site need not
// still be registered, so stale ids can be cleaned up.
func (s *Service) RevokeSite(ctx context.Context, userID, siteID, actorID string) (access.Rule, error) {
	scope := s.ruleSpan(ctx, cnst.SpanRuleRevoke, userID, actorID).WithAttrs(attribute.String(cnst.AttrSiteID, siteID))
	defer scope.End()

	start := time.Now()
	out, err := s.Rules.RevokeSite(scope.Ctx, userID, siteID, actorID)
	s.done(scope, cnst.KeyAccessRules, cnst.ActionRevoke, start, err)
	return out, err
}

// VisibleSites returns the registered sites userID may access, in registry order
func (s *Service) VisibleSites(ctx context.Context, userID string) []site.Site {
	return s.Resolver.AccessibleSites(ctx, userID, s.Sites.List(ctx))
}

// CanAccess reports whether userID may access siteID
func (s *Service) CanAccess(ctx context.Context, userID, siteID string) bool {
	return s.Resolver.IsAuthorized(ctx, userID, siteID)
}

func (s *Service) IsGlobalAdmin(ctx context.Context, userID string) bool {
	return s.Resolver.IsGlobalAdmin(ctx, userID)
}

// Viewer is a selection scope together with the user whose access bounds it.
// An empty UserID sees the whole registry.
type Viewer struct {
	Scope  string
	UserID string
}

// Shared is the unscoped selection over the whole registry
var Shared = Viewer{Scope: selection.DefaultScope}

// Personal is userID's own selection, limited to the sites userID may access
func Personal(userID string) Viewer {
	return Viewer{Scope: userID, UserID: userID}
}

// selectable is the registry a viewer's pointers are resolved against
func (s *Service) selectable(ctx context.Context, v Viewer) []site.Site {
	if v.UserID == "" {
		return s.Sites.List(ctx)
	}
	return s.VisibleSites(ctx, v.UserID)
}

// CurrentSelection returns the viewer's revalidated selection
func (s *Service) CurrentSelection(ctx context.Context, v Viewer) (selection.Pointer, error) {
	return s.Selection.Current(ctx, v.Scope, s.selectable(ctx, v))
}

func (s *Service) SelectSite(ctx context.Context, v Viewer, siteID string) (selection.Pointer, error) {
	scope := s.tracer.Start(ctx, cnst.SpanSelectionChange).WithAttrs(
		attribute.String(cnst.AttrScope, v.Scope),
		attribute.String(cnst.AttrSiteID, siteID),
	)
	defer scope.End()

	ptr, err := s.Selection.SetSite(scope.Ctx, v.Scope, siteID, s.selectable(scope.Ctx, v))
	scope.Fail(err)
	return ptr, err
}

func (s *Service) SelectBusinessUnit(ctx context.Context, v Viewer, unit string) (selection.Pointer, error) {
	scope := s.tracer.Start(ctx, cnst.SpanSelectionChange).WithAttrs(attribute.String(cnst.AttrScope, v.Scope))
	defer scope.End()

	ptr, err := s.Selection.SetBusinessUnit(scope.Ctx, v.Scope, unit, s.selectable(scope.Ctx, v))
	scope.Fail(err)
	return ptr, err
}

func (s *Service) ruleSpan(ctx context.Context, name, userID, actorID string) *trace.SpanScope {
	return s.tracer.Start(ctx, name).WithAttrs(
		attribute.String(cnst.AttrUserID, userID),
		attribute.String(cnst.AttrActorID, actorID),
	)
}

func (s *Service) done(scope *trace.SpanScope, document string, action cnst.ActionType, start time.Time, err error) {
	s.metrics.MutationDone(document, action, start, err)
	if err == nil {
		return
	}
	scope.Fail(err)
	scope.WithAttrs(attribute.String(cnst.AttrErrorReason, reason(err)))
}

func reason(err error) string {
	switch {
	case errors.Is(err, errorx.ErrLastSite):
		return "last_site"
	case errors.Is(err, errorx.ErrWildcardRevoke):
		return "wildcard_revoke"
	case errors.Is(err, errorx.ErrSiteNotFound), errors.Is(err, errorx.ErrRuleNotFound):
		return "not_found"
	case errors.Is(err, errorx.ErrInvalidSite), errors.Is(err, errorx.ErrInvalidRule):
		return "invalid"
	case errors.Is(err, errorx.ErrSiteExists):
		return "exists"
	case errors.Is(err, errorx.ErrRevisionConflict):
		return "conflict"
	default:
		return "internal"
	}
}
