package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellergate/sellergate_api/internal/models"
)

func snapshot(fetchedAt time.Time) *models.CategorySnapshot {
	return &models.CategorySnapshot{
		Flat: []models.CategoryNode{
			{ID: 1, Name: "Root", ParentID: 0},
			{ID: 2, Name: "Child", ParentID: 1, Leaf: true},
		},
		FetchedAt: fetchedAt.UnixMilli(),
		Source:    "live",
	}
}

func TestKeyIsFingerprintedPerCredential(t *testing.T) {
	c := NewCategoryCache(t.TempDir())

	a := c.Key(models.MarketplaceTrendyol, "key-a")
	b := c.Key(models.MarketplaceTrendyol, "key-b")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c.Key(models.MarketplaceHepsiburada, "key-a"))
}

func TestStoreAndFresh(t *testing.T) {
	c := NewCategoryCache(t.TempDir())
	key := c.Key(models.MarketplaceTrendyol, "key")

	_, ok := c.Fresh(key, 6*time.Hour)
	assert.False(t, ok)

	require.NoError(t, c.Store(key, snapshot(time.Now())))

	got, ok := c.Fresh(key, 6*time.Hour)
	require.True(t, ok)
	assert.Len(t, got.Flat, 2)
}

func TestFreshExpiresButMemoryRemains(t *testing.T) {
	c := NewCategoryCache(t.TempDir())
	key := c.Key(models.MarketplaceTrendyol, "key")

	require.NoError(t, c.Store(key, snapshot(time.Now().Add(-7*time.Hour))))

	_, ok := c.Fresh(key, 6*time.Hour)
	assert.False(t, ok)

	// The stale snapshot is still reachable as a fallback.
	got, ok := c.Memory(key)
	require.True(t, ok)
	assert.Equal(t, "live", got.Source)
}

func TestDiskSurvivesNewProcess(t *testing.T) {
	dir := t.TempDir()
	key := NewCategoryCache(dir).Key(models.MarketplaceHepsiburada, "key")

	require.NoError(t, NewCategoryCache(dir).Store(key, snapshot(time.Now())))

	// Fresh cache instance simulates a restarted process: memory empty,
	// disk populated.
	c := NewCategoryCache(dir)
	_, ok := c.Memory(key)
	assert.False(t, ok)

	got, ok := c.Disk(key)
	require.True(t, ok)
	assert.Len(t, got.Flat, 2)
}

func TestStoreOverwritesDisk(t *testing.T) {
	c := NewCategoryCache(t.TempDir())
	key := c.Key(models.MarketplaceTrendyol, "key")

	first := snapshot(time.Now())
	require.NoError(t, c.Store(key, first))

	second := snapshot(time.Now())
	second.Flat = append(second.Flat, models.CategoryNode{ID: 3, Name: "New", ParentID: 1, Leaf: true})
	require.NoError(t, c.Store(key, second))

	got, ok := c.Disk(key)
	require.True(t, ok)
	assert.Len(t, got.Flat, 3)
}
