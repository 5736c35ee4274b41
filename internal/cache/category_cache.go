package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sellergate/sellergate_api/internal/models"
)

// CategoryCache is the two-tier store for flattened category trees:
// an in-process memory tier and an on-disk JSON snapshot used only as a
// fallback when both the live fetch and the memory tier fail.
//
// Entries are keyed by (marketplace, credential fingerprint) so tenants
// with different credentials for the same marketplace never collide.
// Snapshots are immutable once published; refresh replaces the map entry
// wholesale, so concurrent readers never observe a torn write.
type CategoryCache struct {
	dir string

	mu  sync.RWMutex
	mem map[string]*models.CategorySnapshot
}

// NewCategoryCache creates a CategoryCache whose disk tier lives in dir.
func NewCategoryCache(dir string) *CategoryCache {
	return &CategoryCache{
		dir: dir,
		mem: make(map[string]*models.CategorySnapshot),
	}
}

// Key derives the cache key for one marketplace connection.
func (c *CategoryCache) Key(marketplace models.Marketplace, apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return fmt.Sprintf("%s-%s", marketplace, hex.EncodeToString(sum[:])[:12])
}

// Fresh returns the memory-tier snapshot if it is younger than ttl.
func (c *CategoryCache) Fresh(key string, ttl time.Duration) (*models.CategorySnapshot, bool) {
	snap, ok := c.Memory(key)
	if !ok {
		return nil, false
	}
	age := time.Since(time.UnixMilli(snap.FetchedAt))
	if age >= ttl {
		return nil, false
	}
	return snap, true
}

// Memory returns the memory-tier snapshot regardless of age.
func (c *CategoryCache) Memory(key string) (*models.CategorySnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.mem[key]
	return snap, ok
}

// Store publishes a snapshot to the memory tier and rewrites the disk
// tier. The disk write is best-effort: category data is derived and
// re-fetchable, so a failed rewrite only costs the fallback.
func (c *CategoryCache) Store(key string, snap *models.CategorySnapshot) error {
	c.mu.Lock()
	c.mem[key] = snap
	c.mu.Unlock()

	return c.writeDisk(key, snap)
}

// Disk reads the on-disk snapshot; (nil, false) when none exists or the
// file is unreadable.
func (c *CategoryCache) Disk(key string) (*models.CategorySnapshot, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var snap models.CategorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

// writeDisk rewrites the snapshot file atomically (temp file + rename).
// Concurrent writers race last-writer-wins, which is acceptable for a
// derived artifact.
func (c *CategoryCache) writeDisk(key string, snap *models.CategorySnapshot) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

func (c *CategoryCache) path(key string) string {
	return filepath.Join(c.dir, "categories-"+key+".json")
}
