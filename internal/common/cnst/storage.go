package cnst

// Storage backend types accepted by storage.NewStore
const (
	StorageTypeMemory = "memory"
	StorageTypeDisk   = "disk"
	StorageTypeRedis  = "redis"
	StorageTypeDB     = "db"
)

// Document keys. Each holds one independent JSON document.
const (
	KeySites               = "medlinkx_sites"
	KeyAccessRules         = "medlinkx_access_rules"
	KeyCurrentSite         = "medlinkx_current_site"
	KeyCurrentBusinessUnit = "medlinkx_current_business_unit"
)

// WildcardSiteAccess is the persisted marker granting every current and future site.
const WildcardSiteAccess = "*"

// LegacyWildcardSiteAccess is accepted on read and never written.
const LegacyWildcardSiteAccess = "all"

// Redis cluster types
const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
)
