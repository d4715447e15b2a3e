package errorx

import "errors"

// Registry errors
var (
	// ErrSiteNotFound is returned when a site id does not resolve in the registry
	ErrSiteNotFound = errors.New("site not found")
	// ErrSiteExists is returned when an explicitly supplied site id is already taken
	ErrSiteExists = errors.New("site already exists")
	// ErrLastSite is returned when a delete would leave the registry empty
	ErrLastSite = errors.New("cannot delete the last remaining site")
	// ErrInvalidSite is returned when site input fails validation
	ErrInvalidSite = errors.New("invalid site")
)

// Access rule errors
var (
	// ErrRuleNotFound is returned when no access rule exists for a user
	ErrRuleNotFound = errors.New("access rule not found")
	// ErrWildcardRevoke is returned when revoking a single site from a wildcard or global holder
	ErrWildcardRevoke = errors.New("cannot revoke a single site from wildcard access")
	// ErrInvalidRule is returned when access rule input fails validation
	ErrInvalidRule = errors.New("invalid access rule")
)

// Selection errors
var (
	// ErrUnknownBusinessUnit is returned when the current site has no such department
	ErrUnknownBusinessUnit = errors.New("unknown business unit for current site")
)

// Storage errors
var (
	// ErrDocumentNotFound is returned by a store when the key holds no document
	ErrDocumentNotFound = errors.New("document not found")
	// ErrRevisionConflict is returned when a compare-and-swap write loses to another writer
	ErrRevisionConflict = errors.New("document revision conflict")
	// ErrCorruptDocument marks persisted data that could not be decoded
	ErrCorruptDocument = errors.New("corrupt document")
)

// Authentication and authorization errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
