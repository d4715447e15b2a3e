package site

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

func centralOnly() map[string]Site {
	all := DefaultSites()
	return map[string]Site{DefaultCentralID: all[DefaultCentralID]}
}

func newTestRegistry(t *testing.T, store storage.Store, opts ...Option) *Registry {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore(zap.NewNop())
	}
	r, err := NewRegistry(context.Background(), zap.NewNop(), store, opts...)
	require.NoError(t, err)
	return r
}

func metro() NewSite {
	return NewSite{Name: "Metro", FacilityCode: "MET", Address: "1 St"}
}

func TestRegistry_DefaultsOnEmptyStore(t *testing.T) {
	r := newTestRegistry(t, nil)

	res := r.LastLoad()
	assert.Equal(t, storage.SourceDefaults, res.Source)
	assert.ErrorIs(t, res.Cause, errorx.ErrDocumentNotFound)

	sites := r.List(context.Background())
	require.Len(t, sites, 3)
	assert.Equal(t, []string{DefaultCentralID, DefaultRiversideID, DefaultNorthsideID},
		[]string{sites[0].ID, sites[1].ID, sites[2].ID})
}

func TestRegistry_AddGeneratesUniqueIDs(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		s, err := r.Add(ctx, metro(), "admin@x.com")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(s.ID, "met-"), s.ID)
		_, dup := seen[s.ID]
		assert.False(t, dup, s.ID)
		seen[s.ID] = struct{}{}
	}
	assert.Equal(t, 53, r.Len())
}

func TestRegistry_AddStampsAndDefaults(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	r := newTestRegistry(t, nil, WithClock(func() time.Time { return fixed }))

	s, err := r.Add(context.Background(), NewSite{
		Name:         "São Luís Norte",
		FacilityCode: "São Luís / N1",
		Address:      "Av. Central 1",
		Departments:  []string{"Emergency"},
	}, "admin@x.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.ID, "sao-luis-n1-"), s.ID)
	assert.Equal(t, fixed, s.CreatedAt)
	assert.Equal(t, "admin@x.com", s.CreatedBy)
	assert.Equal(t, StatusActive, s.Status)
	assert.Nil(t, s.UpdatedAt)

	got, ok := r.Get(context.Background(), s.ID)
	require.True(t, ok)
	assert.Equal(t, s, got)
}

func TestRegistry_AddValidation(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	cases := []NewSite{
		{FacilityCode: "X", Address: "a"},
		{Name: "X", Address: "a"},
		{Name: "X", FacilityCode: "X", Address: "   "},
		{Name: "X", FacilityCode: "X", Address: "a", Status: "closed"},
		{Name: "X", FacilityCode: "X", Address: "a", BedCount: -3},
		{Name: "X", FacilityCode: "X", Address: "a", Contact: Contact{Email: "nope"}},
		{Name: "X", FacilityCode: "X", Address: "a", Theme: Theme{Primary: "blue"}},
	}
	for _, in := range cases {
		_, err := r.Add(ctx, in, "admin")
		assert.ErrorIs(t, err, errorx.ErrInvalidSite, "%+v", in)
	}
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_AddWithExplicitID(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	in := metro()
	in.ID = "metro"
	s, err := r.Add(ctx, in, "admin")
	require.NoError(t, err)
	assert.Equal(t, "metro", s.ID)

	_, err = r.Add(ctx, in, "admin")
	assert.ErrorIs(t, err, errorx.ErrSiteExists)
}

func TestRegistry_Update(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newTestRegistry(t, nil, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	_, err := r.Update(ctx, "missing", Patch{Name: ptr("x")})
	assert.ErrorIs(t, err, errorx.ErrSiteNotFound)

	before, _ := r.Get(ctx, DefaultCentralID)
	updated, err := r.Update(ctx, DefaultCentralID, Patch{
		BedCount:    ptr(500),
		Departments: &[]string{"Emergency", "Burns"},
		Status:      ptr(StatusMaintenance),
	})
	require.NoError(t, err)
	assert.Equal(t, 500, updated.BedCount)
	assert.Equal(t, []string{"Emergency", "Burns"}, updated.Departments)
	assert.Equal(t, StatusMaintenance, updated.Status)
	assert.Equal(t, before.Name, updated.Name)
	assert.Equal(t, before.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, fixed, *updated.UpdatedAt)

	_, err = r.Update(ctx, DefaultCentralID, Patch{Name: ptr("  ")})
	assert.ErrorIs(t, err, errorx.ErrInvalidSite)
	_, err = r.Update(ctx, DefaultCentralID, Patch{Theme: &Theme{Accent: "red"}})
	assert.ErrorIs(t, err, errorx.ErrInvalidSite)

	after, _ := r.Get(ctx, DefaultCentralID)
	assert.Equal(t, updated, after)
}

func TestRegistry_DeleteLastSiteRejected(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	r := newTestRegistry(t, store, WithDefaults(centralOnly))
	ctx := context.Background()

	before := r.List(ctx)
	err := r.Delete(ctx, DefaultCentralID)
	assert.ErrorIs(t, err, errorx.ErrLastSite)
	assert.Equal(t, before, r.List(ctx))

	// nothing was written
	_, err = store.Load(ctx, cnst.KeySites)
	assert.ErrorIs(t, err, errorx.ErrDocumentNotFound)
}

func TestRegistry_Delete(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, r.Delete(ctx, "missing"), errorx.ErrSiteNotFound)
	require.NoError(t, r.Delete(ctx, DefaultNorthsideID))
	_, ok := r.Get(ctx, DefaultNorthsideID)
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RoundTripOnEveryBackend(t *testing.T) {
	newDisk := func(t *testing.T) storage.Store {
		s, err := storage.NewDiskStore(zap.NewNop(), t.TempDir())
		require.NoError(t, err)
		return s
	}
	newDB := func(t *testing.T) storage.Store {
		s, err := storage.NewDBStore(zap.NewNop(), storage.SQLite, ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	backends := map[string]func(*testing.T) storage.Store{
		"memory": func(*testing.T) storage.Store { return storage.NewMemoryStore(zap.NewNop()) },
		"disk":   newDisk,
		"db":     newDB,
	}

	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk(t)
			r := newTestRegistry(t, store)

			added, err := r.Add(ctx, NewSite{
				Name:         "Metro",
				ShortName:    "MET",
				FacilityCode: "MET",
				Address:      "1 St",
				Contact:      Contact{Phone: "+1", Email: "m@x.io", Website: "https://m.x.io"},
				BedCount:     12,
				Departments:  []string{"ER", "ICU"},
				Theme:        Theme{Primary: "#000", Secondary: "#111111", Accent: "#fff"},
			}, "admin")
			require.NoError(t, err)
			_, err = r.Update(ctx, DefaultRiversideID, Patch{ShortName: ptr("RMC")})
			require.NoError(t, err)

			reloaded := newTestRegistry(t, store)
			assert.Equal(t, storage.SourceStored, reloaded.LastLoad().Source)
			assert.Equal(t, r.List(ctx), reloaded.List(ctx))
			got, ok := reloaded.Get(ctx, added.ID)
			require.True(t, ok)
			assert.Equal(t, added, got)
		})
	}
}

func TestRegistry_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	ctx := context.Background()
	a := newTestRegistry(t, store, WithMaxRetries(50))
	b := newTestRegistry(t, store, WithMaxRetries(50))

	sa, err := a.Add(ctx, metro(), "a")
	require.NoError(t, err)
	// b still holds the pre-write view; its write must reload and reapply
	in := metro()
	in.Name = "Metro East"
	sb, err := b.Add(ctx, in, "b")
	require.NoError(t, err)

	final := newTestRegistry(t, store)
	_, okA := final.Get(ctx, sa.ID)
	_, okB := final.Get(ctx, sb.ID)
	assert.True(t, okA)
	assert.True(t, okB)
	assert.Equal(t, 5, final.Len())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(r *Registry) {
			defer wg.Done()
			_, err := r.Add(ctx, metro(), "worker")
			assert.NoError(t, err)
		}([]*Registry{a, b}[i%2])
	}
	wg.Wait()
	require.NoError(t, func() error { _, err := final.Reload(ctx); return err }())
	assert.Equal(t, 15, final.Len())
}

type conflictStore struct{ *storage.MemoryStore }

func (conflictStore) Save(context.Context, string, []byte, int64) (int64, error) {
	return 0, errorx.ErrRevisionConflict
}

func TestRegistry_RetriesAreBounded(t *testing.T) {
	r := newTestRegistry(t, conflictStore{storage.NewMemoryStore(zap.NewNop())}, WithMaxRetries(2))
	_, err := r.Add(context.Background(), metro(), "admin")
	assert.ErrorIs(t, err, errorx.ErrRevisionConflict)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_CorruptDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("unparseable falls back to defaults", func(t *testing.T) {
		store := storage.NewMemoryStore(zap.NewNop())
		_, err := store.Save(ctx, cnst.KeySites, []byte(`{"central": {"id": "central", "name": `), 0)
		require.NoError(t, err)

		r := newTestRegistry(t, store)
		assert.Equal(t, storage.SourceDefaults, r.LastLoad().Source)
		assert.ErrorIs(t, r.LastLoad().Cause, errorx.ErrCorruptDocument)
		assert.Equal(t, 3, r.Len())

		// the first write replaces the corrupt document
		_, err = r.Add(ctx, metro(), "admin")
		require.NoError(t, err)
		assert.Equal(t, storage.SourceStored, newTestRegistry(t, store).LastLoad().Source)
	})

	t.Run("bad entries are dropped", func(t *testing.T) {
		store := storage.NewMemoryStore(zap.NewNop())
		raw := `{
			"metro": {"id":"metro","name":"Metro","facilityCode":"MET","address":"1 St","status":"active","createdAt":"2024-05-01T00:00:00Z"},
			"broken": {"id":"broken","name":"B","facilityCode":"B","address":"x","bedCount":"many"},
			"nameless": {"id":"nameless","name":"","facilityCode":"N","address":"x","status":"active"}
		}`
		_, err := store.Save(ctx, cnst.KeySites, []byte(raw), 0)
		require.NoError(t, err)

		r := newTestRegistry(t, store)
		res := r.LastLoad()
		assert.Equal(t, storage.SourceSalvaged, res.Source)
		assert.ElementsMatch(t, []string{"broken", "nameless"}, res.Dropped)
		assert.Equal(t, 1, r.Len())
		_, ok := r.Get(ctx, "metro")
		assert.True(t, ok)
	})
}

func TestRegistry_LegacyFieldsSurviveLoadAndWrites(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(zap.NewNop())
	raw := `{
		"central": {"id":"central","name":"Central","facilityCode":"CEN","address":"100 Main","theme":{"primary":"blue"},"contact":{"email":"front desk"}},
		"riverside": {"id":"riverside","name":"Riverside","facilityCode":"RIV","address":"2 River Rd","status":"active"}
	}`
	_, err := store.Save(ctx, cnst.KeySites, []byte(raw), 0)
	require.NoError(t, err)

	r := newTestRegistry(t, store)
	res := r.LastLoad()
	assert.Equal(t, storage.SourceStored, res.Source)
	assert.Empty(t, res.Dropped)

	central, ok := r.Get(ctx, "central")
	require.True(t, ok)
	assert.Equal(t, "blue", central.Theme.Primary)
	assert.Equal(t, StatusActive, central.Status)

	// an unrelated write keeps the legacy entry
	_, err = r.Add(ctx, metro(), "admin")
	require.NoError(t, err)
	// so does a patch that leaves the legacy fields alone
	updated, err := r.Update(ctx, "central", Patch{BedCount: ptr(40)})
	require.NoError(t, err)
	assert.Equal(t, "blue", updated.Theme.Primary)

	reloaded := newTestRegistry(t, store)
	assert.Equal(t, 3, reloaded.Len())
	central, ok = reloaded.Get(ctx, "central")
	require.True(t, ok)
	assert.Equal(t, 40, central.BedCount)

	// new values still go through the format rules
	_, err = r.Update(ctx, "central", Patch{Theme: &Theme{Primary: "green"}})
	assert.ErrorIs(t, err, errorx.ErrInvalidSite)
}

func TestRegistry_IDGeneratorCollisionsAreBounded(t *testing.T) {
	calls := 0
	r := newTestRegistry(t, nil, WithIDGenerator(func(string) string {
		calls++
		return DefaultCentralID
	}))

	_, err := r.Add(context.Background(), metro(), "admin")
	assert.ErrorIs(t, err, errorx.ErrSiteExists)
	assert.Equal(t, maxIDAttempts, calls)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_Seed(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, r.Seed(ctx, nil), errorx.ErrLastSite)

	only := centralOnly()[DefaultCentralID]
	dup := []Site{only, only}
	assert.ErrorIs(t, r.Seed(ctx, dup), errorx.ErrSiteExists)

	require.NoError(t, r.Seed(ctx, []Site{only}))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ReturnedSitesAreCopies(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	s, _ := r.Get(ctx, DefaultCentralID)
	s.Departments[0] = "Mutated"
	again, _ := r.Get(ctx, DefaultCentralID)
	assert.Equal(t, "Emergency", again.Departments[0])
}
