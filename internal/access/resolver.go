package access

import (
	"context"

	"github.com/medlinkx/medlinkx/internal/site"
)

// RuleSource is the read side the resolver needs
type RuleSource interface {
	Get(ctx context.Context, userID string) (Rule, bool)
}

// Resolver answers what a user can see. It never mutates state and never
// fails: every unknown user or site degrades to "no access".
type Resolver struct {
	rules RuleSource
}

func NewResolver(rules RuleSource) *Resolver {
	return &Resolver{rules: rules}
}

// IsAuthorized reports whether userID may act on siteID
func (r *Resolver) IsAuthorized(ctx context.Context, userID, siteID string) bool {
	rule, ok := r.rules.Get(ctx, userID)
	if !ok {
		return false
	}
	return rule.Unrestricted() || rule.SiteAccess.Contains(siteID)
}

// IsGlobalAdmin reports whether userID holds unrestricted access
func (r *Resolver) IsGlobalAdmin(ctx context.Context, userID string) bool {
	rule, ok := r.rules.Get(ctx, userID)
	return ok && rule.Unrestricted()
}

// AccessibleSites filters registry down to what userID may see, keeping registry order.
// Granted ids that no longer exist in the registry are silently ignored.
func (r *Resolver) AccessibleSites(ctx context.Context, userID string, registry []site.Site) []site.Site {
	rule, ok := r.rules.Get(ctx, userID)
	if !ok {
		return []site.Site{}
	}
	if rule.Unrestricted() {
		out := make([]site.Site, len(registry))
		copy(out, registry)
		return out
	}

	out := make([]site.Site, 0, len(registry))
	for _, s := range registry {
		if rule.SiteAccess.Contains(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// AccessibleSiteIDs is AccessibleSites reduced to ids
func (r *Resolver) AccessibleSiteIDs(ctx context.Context, userID string, registry []site.Site) []string {
	sites := r.AccessibleSites(ctx, userID, registry)
	ids := make([]string, len(sites))
	for i, s := range sites {
		ids[i] = s.ID
	}
	return ids
}
