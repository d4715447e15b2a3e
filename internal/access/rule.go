package access

import (
	"slices"
	"time"
)

// Role is informational only. No operation consults it.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RoleNurse      Role = "nurse"
	RoleStaff      Role = "staff"
	RoleViewer     Role = "viewer"
)

// Level is the breadth of a grant
type Level string

const (
	LevelGlobal Level = "global"
	LevelSite   Level = "site"
)

// Permission tags are stored with a rule and returned to callers as-is.
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionDelete Permission = "delete"
	PermissionAdmin  Permission = "admin"
)

// Rule is one user's access grant
type Rule struct {
	UserID      string       `json:"userId" validate:"notblank"`
	Role        Role         `json:"role" validate:"omitempty,oneof=super_admin admin doctor nurse staff viewer"`
	AccessLevel Level        `json:"accessLevel" validate:"omitempty,oneof=global site"`
	SiteAccess  Scope        `json:"siteAccess"`
	Permissions []Permission `json:"permissions"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedBy   string       `json:"updatedBy,omitempty"`
	UpdatedAt   *time.Time   `json:"updatedAt,omitempty"`
}

// Unrestricted is true for a global access level or a wildcard scope; either one is enough.
func (r Rule) Unrestricted() bool {
	return r.AccessLevel == LevelGlobal || r.SiteAccess.IsWildcard()
}

func (r Rule) Clone() Rule {
	r.SiteAccess = r.SiteAccess.clone()
	r.Permissions = slices.Clone(r.Permissions)
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		r.UpdatedAt = &t
	}
	return r
}

// NewRule is the input for Store.Create. Empty fields take defaults:
// role viewer, level site, an empty site set and read permission.
type NewRule struct {
	UserID      string       `json:"userId" validate:"notblank"`
	Role        Role         `json:"role,omitempty" validate:"omitempty,oneof=super_admin admin doctor nurse staff viewer"`
	AccessLevel Level        `json:"accessLevel,omitempty" validate:"omitempty,oneof=global site"`
	SiteAccess  *Scope       `json:"siteAccess,omitempty"`
	Permissions []Permission `json:"permissions,omitempty" validate:"omitempty,dive,oneof=read write delete admin"`
}

// RulePatch lists the fields an update may change. Nil means unchanged.
type RulePatch struct {
	Role        *Role         `json:"role,omitempty" validate:"omitempty,oneof=super_admin admin doctor nurse staff viewer"`
	AccessLevel *Level        `json:"accessLevel,omitempty" validate:"omitempty,oneof=global site"`
	SiteAccess  *Scope        `json:"siteAccess,omitempty"`
	Permissions *[]Permission `json:"permissions,omitempty" validate:"omitempty,dive,oneof=read write delete admin"`
}

// Apply merges p into r and returns the result. r is not modified.
func (p RulePatch) Apply(r Rule) Rule {
	out := r.Clone()
	if p.Role != nil {
		out.Role = *p.Role
	}
	if p.AccessLevel != nil {
		out.AccessLevel = *p.AccessLevel
	}
	if p.SiteAccess != nil {
		out.SiteAccess = p.SiteAccess.clone()
	}
	if p.Permissions != nil {
		out.Permissions = slices.Clone(*p.Permissions)
	}
	return out
}
