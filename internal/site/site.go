package site

import (
	"cmp"
	"slices"
	"time"
)

// Status is the operational state of a facility
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Website string `json:"website,omitempty"`
}

// Theme holds the three brand colors of a facility
type Theme struct {
	Primary   string `json:"primary,omitempty" validate:"omitempty,hexcolor"`
	Secondary string `json:"secondary,omitempty" validate:"omitempty,hexcolor"`
	Accent    string `json:"accent,omitempty" validate:"omitempty,hexcolor"`
}

// Site is one tenant facility
type Site struct {
	ID           string     `json:"id" validate:"notblank"`
	Name         string     `json:"name" validate:"notblank"`
	ShortName    string     `json:"shortName,omitempty"`
	FacilityCode string     `json:"facilityCode" validate:"notblank"`
	Address      string     `json:"address" validate:"notblank"`
	Contact      Contact    `json:"contact"`
	BedCount     int        `json:"bedCount" validate:"gte=0"`
	Departments  []string   `json:"departments"`
	Theme        Theme      `json:"theme"`
	Status       Status     `json:"status" validate:"oneof=active inactive maintenance"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	CreatedBy    string     `json:"createdBy,omitempty"`
}

// Clone returns a copy that shares no slices or pointers with s
func (s Site) Clone() Site {
	s.Departments = slices.Clone(s.Departments)
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		s.UpdatedAt = &t
	}
	return s
}

// HasDepartment reports whether dept is one of the site's business units
func (s Site) HasDepartment(dept string) bool {
	return slices.Contains(s.Departments, dept)
}

// NewSite is the input for Registry.Add. ID is optional.
type NewSite struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name" validate:"notblank"`
	ShortName    string   `json:"shortName,omitempty"`
	FacilityCode string   `json:"facilityCode" validate:"notblank"`
	Address      string   `json:"address" validate:"notblank"`
	Contact      Contact  `json:"contact"`
	BedCount     int      `json:"bedCount" validate:"gte=0"`
	Departments  []string `json:"departments"`
	Theme        Theme    `json:"theme"`
	Status       Status   `json:"status,omitempty" validate:"omitempty,oneof=active inactive maintenance"`
}

// Patch lists the fields an update may change. Nil means unchanged.
type Patch struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,notblank"`
	ShortName    *string   `json:"shortName,omitempty"`
	FacilityCode *string   `json:"facilityCode,omitempty" validate:"omitempty,notblank"`
	Address      *string   `json:"address,omitempty" validate:"omitempty,notblank"`
	Contact      *Contact  `json:"contact,omitempty"`
	BedCount     *int      `json:"bedCount,omitempty" validate:"omitempty,gte=0"`
	Departments  *[]string `json:"departments,omitempty"`
	Theme        *Theme    `json:"theme,omitempty"`
	Status       *Status   `json:"status,omitempty" validate:"omitempty,oneof=active inactive maintenance"`
}

// Apply merges p into s and returns the result. s is not modified.
func (p Patch) Apply(s Site) Site {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.ShortName != nil {
		out.ShortName = *p.ShortName
	}
	if p.FacilityCode != nil {
		out.FacilityCode = *p.FacilityCode
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	if p.Contact != nil {
		out.Contact = *p.Contact
	}
	if p.BedCount != nil {
		out.BedCount = *p.BedCount
	}
	if p.Departments != nil {
		out.Departments = slices.Clone(*p.Departments)
	}
	if p.Theme != nil {
		out.Theme = *p.Theme
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	return out
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// SortSites orders by creation time, then id
func SortSites(sites []Site) {
	slices.SortFunc(sites, func(a, b Site) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
