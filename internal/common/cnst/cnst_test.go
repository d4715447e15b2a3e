package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionType_String(t *testing.T) {
	assert.Equal(t, "Create", ActionCreate.String())
	assert.Equal(t, "Revoke", ActionRevoke.String())
}

func TestDocumentKeysAreDistinct(t *testing.T) {
	keys := []string{KeySites, KeyAccessRules, KeyCurrentSite, KeyCurrentBusinessUnit}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		_, dup := seen[k]
		assert.False(t, dup, k)
		seen[k] = struct{}{}
	}
}
