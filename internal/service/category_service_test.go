package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellergate/sellergate_api/internal/cache"
	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// categoriesClient stubs only the category surface of MarketplaceClient.
type categoriesClient struct {
	fakeClient
	body  json.RawMessage
	err   error
	calls int
}

func (c *categoriesClient) ListCategories(ctx context.Context) (json.RawMessage, error) {
	c.calls++
	return c.body, c.err
}

var sampleFlat = []models.CategoryNode{
	{ID: 1, Name: "Home", ParentID: 0, Leaf: false},
	{ID: 2, Name: "Kitchen", ParentID: 1, Leaf: false},
	{ID: 3, Name: "Kettles", ParentID: 2, Leaf: true},
	{ID: 4, Name: "Garden", ParentID: 1, Leaf: true},
	{ID: 5, Name: "Electronics", ParentID: 0, Leaf: false},
	{ID: 6, Name: "Phones", ParentID: 5, Leaf: true},
}

func TestNormalizeCategoriesBareFlatArray(t *testing.T) {
	raw := json.RawMessage(`[
		{"id": 1, "name": "Home", "parentId": null, "leaf": false},
		{"id": 2, "name": "Kitchen", "parentId": 1, "leaf": true}
	]`)

	nodes, err := NormalizeCategories(raw)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, 0, nodes[0].ParentID)
	assert.Equal(t, 1, nodes[1].ParentID)
	assert.True(t, nodes[1].Leaf)
}

func TestNormalizeCategoriesWrappedNestedTree(t *testing.T) {
	raw := json.RawMessage(`{"categories": [
		{"id": 1, "name": "Home", "subCategories": [
			{"id": 2, "name": "Kitchen", "subCategories": [
				{"id": 3, "name": "Kettles"}
			]}
		]},
		{"id": 4, "name": "Garden"}
	]}`)

	nodes, err := NormalizeCategories(raw)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	byID := map[int]models.CategoryNode{}
	for _, n := range nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, 0, byID[1].ParentID)
	assert.Equal(t, 1, byID[2].ParentID)
	assert.Equal(t, 2, byID[3].ParentID)
	assert.False(t, byID[1].Leaf)
	assert.True(t, byID[3].Leaf)
	assert.True(t, byID[4].Leaf)
}

func TestNormalizeCategoriesAlternateSpellings(t *testing.T) {
	raw := json.RawMessage(`{"data": [
		{"id": 10, "name": "Root", "isLeaf": false, "children": [
			{"id": 11, "name": "Child", "isLeaf": true}
		]},
		{"id": 12, "name": "Other", "parentCategoryId": 10, "isLeaf": true}
	]}`)

	nodes, err := NormalizeCategories(raw)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	byID := map[int]models.CategoryNode{}
	for _, n := range nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, 10, byID[11].ParentID)
	assert.Equal(t, 10, byID[12].ParentID)
	assert.True(t, byID[11].Leaf)
	assert.False(t, byID[10].Leaf)
}

func TestNormalizeCategoriesDanglingParentBecomesRoot(t *testing.T) {
	raw := json.RawMessage(`[{"id": 7, "name": "Orphan", "parentId": 999, "leaf": true}]`)

	nodes, err := NormalizeCategories(raw)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, 0, nodes[0].ParentID)
}

func TestNormalizeCategoriesUnrecognizedShape(t *testing.T) {
	_, err := NormalizeCategories(json.RawMessage(`{"message": "service unavailable"}`))
	assert.Error(t, err)
}

func TestBuildTree(t *testing.T) {
	svc := NewCategoryService(cache.NewCategoryCache(t.TempDir()))

	roots := svc.BuildTree(sampleFlat)
	require.Len(t, roots, 2)
	assert.Equal(t, 1, roots[0].ID)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "Kitchen", roots[0].Children[0].Name)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "Kettles", roots[0].Children[0].Children[0].Name)
}

func TestGetChildren(t *testing.T) {
	svc := NewCategoryService(cache.NewCategoryCache(t.TempDir()))

	children := svc.GetChildren(sampleFlat, 1)
	require.Len(t, children, 2)
	assert.Equal(t, "Kitchen", children[0].Name)
	assert.Equal(t, "Garden", children[1].Name)

	assert.Empty(t, svc.GetChildren(sampleFlat, 3))
}

func TestGetPath(t *testing.T) {
	svc := NewCategoryService(cache.NewCategoryCache(t.TempDir()))

	path, err := svc.GetPath(sampleFlat, 3)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, "Home", path[0].Name)
	assert.Equal(t, "Kitchen", path[1].Name)
	assert.Equal(t, "Kettles", path[2].Name)

	_, err = svc.GetPath(sampleFlat, 404)
	assert.ErrorIs(t, err, utils.ErrCategoryNotFound)
}

func TestGetPathTerminatesOnCycle(t *testing.T) {
	svc := NewCategoryService(cache.NewCategoryCache(t.TempDir()))

	cyclic := []models.CategoryNode{
		{ID: 1, Name: "A", ParentID: 2},
		{ID: 2, Name: "B", ParentID: 1},
	}
	path, err := svc.GetPath(cyclic, 1)
	require.NoError(t, err)
	assert.Len(t, path, 2)
}

func TestResolveLeaf(t *testing.T) {
	svc := NewCategoryService(cache.NewCategoryCache(t.TempDir()))

	// A leaf resolves to itself.
	leaf, err := svc.ResolveLeaf(sampleFlat, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, leaf.ID)

	// A branch resolves to its nearest leaf descendant: Garden at depth 1
	// beats Kettles at depth 2.
	leaf, err = svc.ResolveLeaf(sampleFlat, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, leaf.ID)

	_, err = svc.ResolveLeaf(sampleFlat, 404)
	assert.ErrorIs(t, err, utils.ErrCategoryNotFound)
}

func TestResolveLeafNoLeafDescendant(t *testing.T) {
	svc := NewCategoryService(cache.NewCategoryCache(t.TempDir()))

	flat := []models.CategoryNode{
		{ID: 1, Name: "Branch", ParentID: 0, Leaf: false},
		{ID: 2, Name: "AlsoBranch", ParentID: 1, Leaf: false},
	}
	_, err := svc.ResolveLeaf(flat, 1)
	assert.ErrorIs(t, err, utils.ErrNoLeafDescendant)
}

func TestGetFlatCategoriesLiveFetchStoresSnapshot(t *testing.T) {
	c := cache.NewCategoryCache(t.TempDir())
	svc := NewCategoryService(c)
	client := &categoriesClient{body: json.RawMessage(`[{"id": 1, "name": "Home", "leaf": true}]`)}

	res, err := svc.GetFlatCategories(context.Background(), client, "trendyol-abc", CategoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "live", res.Source)
	assert.False(t, res.CacheUsed)
	require.Len(t, res.Nodes, 1)

	// Second call inside the TTL is answered from memory without an
	// upstream call.
	res, err = svc.GetFlatCategories(context.Background(), client, "trendyol-abc", CategoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "memory", res.Source)
	assert.True(t, res.CacheUsed)
	assert.Equal(t, 1, client.calls)
}

func TestGetFlatCategoriesStaleFallbackOnFetchFailure(t *testing.T) {
	c := cache.NewCategoryCache(t.TempDir())
	svc := NewCategoryService(c)

	// Seed a stale memory snapshot.
	require.NoError(t, c.Store("hb-key", &models.CategorySnapshot{
		Flat:      []models.CategoryNode{{ID: 9, Name: "Old", Leaf: true}},
		FetchedAt: time.Now().Add(-24 * time.Hour).UnixMilli(),
		Source:    "live",
	}))

	client := &categoriesClient{err: errors.New("upstream down")}
	res, err := svc.GetFlatCategories(context.Background(), client, "hb-key", CategoryOptions{})
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.True(t, res.CacheUsed)
	assert.Equal(t, "memory", res.Source)
	assert.Equal(t, 9, res.Nodes[0].ID)
}

func TestGetFlatCategoriesDiskFallbackAfterRestart(t *testing.T) {
	dir := t.TempDir()

	// Seed the disk tier through one cache instance, then start over with
	// an empty memory tier on the same directory, as after a restart.
	seeder := cache.NewCategoryCache(dir)
	require.NoError(t, seeder.Store("ty-key", &models.CategorySnapshot{
		Flat:      []models.CategoryNode{{ID: 42, Name: "Archived", Leaf: true}},
		FetchedAt: time.Now().Add(-48 * time.Hour).UnixMilli(),
		Source:    "live",
	}))

	svc := NewCategoryService(cache.NewCategoryCache(dir))
	client := &categoriesClient{err: errors.New("upstream down")}

	res, err := svc.GetFlatCategories(context.Background(), client, "ty-key", CategoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "disk", res.Source)
	assert.True(t, res.CacheUsed)
	assert.True(t, res.Stale)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, 42, res.Nodes[0].ID)
}

func TestGetFlatCategoriesFailsWithoutAnyCache(t *testing.T) {
	svc := NewCategoryService(cache.NewCategoryCache(t.TempDir()))
	client := &categoriesClient{err: errors.New("upstream down")}

	_, err := svc.GetFlatCategories(context.Background(), client, "none", CategoryOptions{})
	assert.Error(t, err)
}

func TestGetFlatCategoriesCacheOnly(t *testing.T) {
	c := cache.NewCategoryCache(t.TempDir())
	svc := NewCategoryService(c)
	client := &categoriesClient{body: json.RawMessage(`[]`)}

	_, err := svc.GetFlatCategories(context.Background(), client, "empty", CategoryOptions{CacheOnly: true})
	assert.ErrorIs(t, err, utils.ErrCacheEmpty)
	assert.Zero(t, client.calls)
}

func TestGetFlatCategoriesForceBypassesFreshMemory(t *testing.T) {
	c := cache.NewCategoryCache(t.TempDir())
	svc := NewCategoryService(c)
	client := &categoriesClient{body: json.RawMessage(`[{"id": 1, "name": "Home", "leaf": true}]`)}

	_, err := svc.GetFlatCategories(context.Background(), client, "k", CategoryOptions{})
	require.NoError(t, err)
	_, err = svc.GetFlatCategories(context.Background(), client, "k", CategoryOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}
