package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"catalog-service/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertAscending(t *testing.T, ids []uuid.UUID) {
	t.Helper()
	for i := 1; i < len(ids); i++ {
		assert.True(t, bytes.Compare(ids[i-1][:], ids[i][:]) < 0, "ids not strictly ascending at %d", i)
	}
}

func TestResolve_ExplicitDropsForeignAndUnknownIDs(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	own := store.seedProducts("tenant-a", 3)
	foreign := store.seedProduct("tenant-b", "Other brand product")

	resolver := NewSelectionResolver(nil)
	sel := models.ExplicitSelection{IDs: []uuid.UUID{own[0], foreign, uuid.New(), own[1], own[0]}}

	resolved, err := resolver.Resolve(ctx, store, "tenant-a", sel)

	require.NoError(t, err)
	assert.Equal(t, 2, resolved.Count)
	assert.ElementsMatch(t, []uuid.UUID{own[0], own[1]}, resolved.IDs)
	assertAscending(t, resolved.IDs)
}

func TestResolve_FilterSubtractsExclusions(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	active := store.seedProducts("tenant-a", 5, func(p *models.Product) { p.Status = models.ProductStatusActive })
	store.seedProducts("tenant-a", 2)

	sel := models.FilterSelection{
		Filter:     models.ProductFilter{Statuses: []models.ProductStatus{models.ProductStatusActive}},
		ExcludeIDs: []uuid.UUID{active[1], active[3], uuid.New()},
	}

	resolved, err := NewSelectionResolver(nil).Resolve(ctx, store, "tenant-a", sel)

	require.NoError(t, err)
	assert.Equal(t, 3, resolved.Count)
	assert.ElementsMatch(t, []uuid.UUID{active[0], active[2], active[4]}, resolved.IDs)
	assertAscending(t, resolved.IDs)
}

func TestResolve_FilterIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.seedProducts("tenant-a", 4)
	store.seedProducts("tenant-b", 6)

	resolved, err := NewSelectionResolver(nil).Resolve(ctx, store, "tenant-a", models.FilterSelection{})

	require.NoError(t, err)
	assert.Equal(t, 4, resolved.Count)
	for _, id := range resolved.IDs {
		p, _ := store.product(id)
		assert.Equal(t, "tenant-a", p.TenantID)
	}
}

func TestResolve_SearchMatchesNameSkuAndBrand(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	byName := store.seedProduct("tenant-a", "Linen Shirt")
	bySKU := store.seedProduct("tenant-a", "Trousers", func(p *models.Product) { p.SKU = "LINEN-TR-01" })
	byBrand := store.seedProduct("tenant-a", "Jacket", func(p *models.Product) { p.Brand = strPtr("Linenworks") })
	store.seedProduct("tenant-a", "Wool Coat")

	query := "  linen "
	resolved, err := NewSelectionResolver(nil).Resolve(ctx, store, "tenant-a", models.FilterSelection{SearchQuery: &query})

	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{byName, bySKU, byBrand}, resolved.IDs)
}

func TestResolve_IsSideEffectFree(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.seedProducts("tenant-a", 10)
	resolver := NewSelectionResolver(nil)

	first, err := resolver.Resolve(ctx, store, "tenant-a", models.FilterSelection{})
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, store, "tenant-a", models.FilterSelection{})
	require.NoError(t, err)

	assert.Equal(t, first.IDs, second.IDs)
	assert.Equal(t, 0, store.calls.updateProducts+store.calls.deleteProducts)
}

func TestResolve_RequiresTenantAndSelection(t *testing.T) {
	resolver := NewSelectionResolver(nil)
	store := newMemoryStore()

	_, err := resolver.Resolve(context.Background(), store, "", models.FilterSelection{})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = resolver.Resolve(context.Background(), store, "tenant-a", nil)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestSortUnique(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	assert.Equal(t, []uuid.UUID{a, b, c}, sortUnique([]uuid.UUID{c, a, b, a, c}))
	assert.Equal(t, []uuid.UUID{}, sortUnique(nil))
}
