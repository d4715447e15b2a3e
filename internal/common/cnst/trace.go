package cnst

// Tracer names used across the services
const (
	// TraceTenancy is the tracer name for registry and access rule operations
	TraceTenancy = "medlinkx/tenancy"
	// TraceAPIServer is the tracer name used by the HTTP surface
	TraceAPIServer = "medlinkx/apiserver"
)

// Common span names
const (
	SpanLoad            = "tenancy.load"
	SpanSiteAdd         = "tenancy.site.add"
	SpanSiteUpdate      = "tenancy.site.update"
	SpanSiteDelete      = "tenancy.site.delete"
	SpanSiteSeed        = "tenancy.site.seed"
	SpanRuleCreate      = "tenancy.rule.create"
	SpanRuleUpdate      = "tenancy.rule.update"
	SpanRuleDelete      = "tenancy.rule.delete"
	SpanRuleGrant       = "tenancy.rule.grant"
	SpanRuleRevoke      = "tenancy.rule.revoke"
	SpanSelectionChange = "tenancy.selection.change"
)

// Common attribute keys
const (
	AttrSiteID       = "medlinkx.site_id"
	AttrUserID       = "medlinkx.user_id"
	AttrActorID      = "medlinkx.actor_id"
	AttrScope        = "medlinkx.selection_scope"
	AttrLoadSource   = "medlinkx.load_source"
	AttrDroppedCount = "medlinkx.dropped_entries"
	AttrErrorReason  = "error.reason"
)
