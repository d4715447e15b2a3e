package access

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
)

// Scope is either the wildcard (every current and future site) or an explicit
// set of site ids. The set keeps grant order and never holds duplicates.
type Scope struct {
	wildcard bool
	sites    []string
}

// Wildcard grants every site, including ones created later
func Wildcard() Scope {
	return Scope{wildcard: true}
}

// Sites builds an explicit scope. Blank and repeated ids are skipped.
func Sites(ids ...string) Scope {
	s := Scope{sites: make([]string, 0, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(s.sites, id) {
			continue
		}
		s.sites = append(s.sites, id)
	}
	return s
}

func (s Scope) IsWildcard() bool {
	return s.wildcard
}

// SiteIDs returns a copy of the explicit set. Nil for the wildcard.
func (s Scope) SiteIDs() []string {
	if s.wildcard {
		return nil
	}
	return slices.Clone(s.sites)
}

// Contains reports whether siteID is granted by the scope
func (s Scope) Contains(siteID string) bool {
	return s.wildcard || slices.Contains(s.sites, siteID)
}

// With returns the scope with siteID added. The wildcard is returned unchanged.
func (s Scope) With(siteID string) Scope {
	if s.wildcard {
		return s
	}
	return Sites(append(slices.Clone(s.sites), siteID)...)
}

// Without returns the scope with siteID removed. The wildcard is returned unchanged.
func (s Scope) Without(siteID string) Scope {
	if s.wildcard {
		return s
	}
	out := Scope{sites: make([]string, 0, len(s.sites))}
	for _, id := range s.sites {
		if id != siteID {
			out.sites = append(out.sites, id)
		}
	}
	return out
}

func (s Scope) clone() Scope {
	return Scope{wildcard: s.wildcard, sites: slices.Clone(s.sites)}
}

func (s Scope) Equal(other Scope) bool {
	if s.wildcard || other.wildcard {
		return s.wildcard == other.wildcard
	}
	return slices.Equal(s.sites, other.sites)
}

func (s Scope) String() string {
	if s.wildcard {
		return cnst.WildcardSiteAccess
	}
	return "[" + strings.Join(s.sites, ",") + "]"
}

// MarshalJSON writes "*" for the wildcard and an array otherwise
func (s Scope) MarshalJSON() ([]byte, error) {
	if s.wildcard {
		return json.Marshal(cnst.WildcardSiteAccess)
	}
	if s.sites == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.sites)
}

// UnmarshalJSON accepts "*", the legacy "all", an array, or a legacy single
// site id which is promoted to a one-element set.
func (s *Scope) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = Sites()
		return nil
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		if v == cnst.WildcardSiteAccess || strings.EqualFold(v, cnst.LegacyWildcardSiteAccess) {
			*s = Wildcard()
			return nil
		}
		*s = Sites(v)
		return nil
	case len(data) > 0 && data[0] == '[':
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		*s = Sites(ids...)
		return nil
	default:
		return fmt.Errorf("siteAccess must be %q, a site id or an array of site ids", cnst.WildcardSiteAccess)
	}
}
