package selection

import (
	"context"
	"testing"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/site"
	"github.com/medlinkx/medlinkx/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRegistry() []site.Site {
	return []site.Site{
		{ID: "central", Departments: []string{"Emergency", "ICU"}},
		{ID: "riverside", Departments: []string{"Maternity", "Oncology"}},
		{ID: "annex"},
	}
}

func TestCurrent_DefaultsToFirstSite(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	sel := New(zap.NewNop(), store)
	ctx := context.Background()

	p, err := sel.Current(ctx, DefaultScope, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, Pointer{SiteID: "central", BusinessUnit: "Emergency"}, p)

	// the default is persisted
	v, ok, err := storage.LoadString(ctx, store, cnst.KeyCurrentSite)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "central", v)
}

func TestCurrent_RevalidatesStalePointers(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	sel := New(zap.NewNop(), store)
	ctx := context.Background()

	require.NoError(t, storage.SaveString(ctx, store, cnst.KeyCurrentSite, "demolished"))
	require.NoError(t, storage.SaveString(ctx, store, cnst.KeyCurrentBusinessUnit, "Maternity"))
	p, err := sel.Current(ctx, DefaultScope, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, Pointer{SiteID: "central", BusinessUnit: "Emergency"}, p)

	require.NoError(t, storage.SaveString(ctx, store, cnst.KeyCurrentSite, "riverside"))
	require.NoError(t, storage.SaveString(ctx, store, cnst.KeyCurrentBusinessUnit, "ICU"))
	p, err = sel.Current(ctx, DefaultScope, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, Pointer{SiteID: "riverside", BusinessUnit: "Maternity"}, p)
}

func TestSetSite(t *testing.T) {
	sel := New(zap.NewNop(), storage.NewMemoryStore(zap.NewNop()))
	ctx := context.Background()

	_, err := sel.SetSite(ctx, DefaultScope, "nowhere", testRegistry())
	assert.ErrorIs(t, err, errorx.ErrSiteNotFound)

	p, err := sel.SetSite(ctx, DefaultScope, "riverside", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, Pointer{SiteID: "riverside", BusinessUnit: "Maternity"}, p)

	p, err = sel.SetSite(ctx, DefaultScope, "annex", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, Pointer{SiteID: "annex"}, p)

	got, err := sel.Current(ctx, DefaultScope, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestSetBusinessUnit(t *testing.T) {
	sel := New(zap.NewNop(), storage.NewMemoryStore(zap.NewNop()))
	ctx := context.Background()

	p, err := sel.SetBusinessUnit(ctx, DefaultScope, "ICU", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, Pointer{SiteID: "central", BusinessUnit: "ICU"}, p)

	_, err = sel.SetBusinessUnit(ctx, DefaultScope, "Oncology", testRegistry())
	assert.ErrorIs(t, err, errorx.ErrUnknownBusinessUnit)

	got, err := sel.Current(ctx, DefaultScope, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, "ICU", got.BusinessUnit)
}

func TestScopesAreIndependent(t *testing.T) {
	sel := New(zap.NewNop(), storage.NewMemoryStore(zap.NewNop()))
	ctx := context.Background()

	_, err := sel.SetSite(ctx, "alice@x.com", "riverside", testRegistry())
	require.NoError(t, err)

	def, err := sel.Current(ctx, DefaultScope, testRegistry())
	require.NoError(t, err)
	alice, err := sel.Current(ctx, "alice@x.com", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, "central", def.SiteID)
	assert.Equal(t, "riverside", alice.SiteID)

	require.NoError(t, sel.Clear(ctx, "alice@x.com"))
	alice, err = sel.Current(ctx, "alice@x.com", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, "central", alice.SiteID)
}

func TestCurrent_EmptyRegistry(t *testing.T) {
	sel := New(zap.NewNop(), storage.NewMemoryStore(zap.NewNop()))
	p, err := sel.Current(context.Background(), DefaultScope, nil)
	require.NoError(t, err)
	assert.Equal(t, Pointer{}, p)
}
