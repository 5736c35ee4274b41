package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sellergate/sellergate_api/internal/cache"
	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// categoryTTL bounds the age of the memory tier before a live refresh.
const categoryTTL = 6 * time.Hour

// CategoryService fetches, normalizes, caches and indexes marketplace
// category trees.
type CategoryService struct {
	cache *cache.CategoryCache
}

// NewCategoryService constructs a CategoryService.
func NewCategoryService(c *cache.CategoryCache) *CategoryService {
	return &CategoryService{cache: c}
}

// CategoryOptions tune one GetFlatCategories call.
type CategoryOptions struct {
	// Force skips the freshness check and always attempts a live fetch.
	Force bool
	// CacheOnly never calls upstream; it serves memory, then disk, then
	// fails with ErrCacheEmpty.
	CacheOnly bool
}

// CategoryResult carries the flattened categories plus provenance flags
// so callers can tell live data from cache substitutions.
type CategoryResult struct {
	Nodes     []models.CategoryNode `json:"nodes"`
	CacheUsed bool                  `json:"cacheUsed"`
	Stale     bool                  `json:"stale"`
	Source    string                `json:"source"` // live, memory or disk
}

// GetFlatCategories returns the flattened category list for one
// connection. Freshness order: live memory (< TTL), live fetch, stale
// memory, disk. A stale substitution after a failed live fetch is flagged
// rather than hidden.
func (s *CategoryService) GetFlatCategories(ctx context.Context, client MarketplaceClient, cacheKey string, opts CategoryOptions) (*CategoryResult, error) {
	if !opts.Force {
		if snap, ok := s.cache.Fresh(cacheKey, categoryTTL); ok {
			return &CategoryResult{Nodes: snap.Flat, CacheUsed: true, Source: "memory"}, nil
		}
	}

	if opts.CacheOnly {
		if snap, ok := s.cache.Memory(cacheKey); ok {
			return &CategoryResult{Nodes: snap.Flat, CacheUsed: true, Source: "memory"}, nil
		}
		if snap, ok := s.cache.Disk(cacheKey); ok {
			return &CategoryResult{Nodes: snap.Flat, CacheUsed: true, Source: "disk"}, nil
		}
		return nil, fmt.Errorf("%w: no cached categories for %s", utils.ErrCacheEmpty, cacheKey)
	}

	raw, err := client.ListCategories(ctx)
	if err == nil {
		nodes, perr := NormalizeCategories(raw)
		if perr == nil {
			snap := &models.CategorySnapshot{
				Flat:      nodes,
				FetchedAt: time.Now().UnixMilli(),
				Source:    "live",
			}
			if serr := s.cache.Store(cacheKey, snap); serr != nil {
				log.Warn().Err(serr).Str("key", cacheKey).Msg("failed to persist category snapshot")
			}
			return &CategoryResult{Nodes: nodes, Source: "live"}, nil
		}
		err = perr
	}

	// Live fetch failed: substitute a stale tier when one exists, and say so.
	if snap, ok := s.cache.Memory(cacheKey); ok {
		log.Warn().Err(err).Str("key", cacheKey).Msg("live category fetch failed, serving stale memory cache")
		return &CategoryResult{Nodes: snap.Flat, CacheUsed: true, Stale: true, Source: "memory"}, nil
	}
	if snap, ok := s.cache.Disk(cacheKey); ok {
		log.Warn().Err(err).Str("key", cacheKey).Msg("live category fetch failed, serving disk cache")
		return &CategoryResult{Nodes: snap.Flat, CacheUsed: true, Stale: true, Source: "disk"}, nil
	}
	return nil, fmt.Errorf("category fetch failed with no cache fallback: %w", err)
}

// CacheKey derives the cache key for a connection's category namespace.
func (s *CategoryService) CacheKey(marketplace models.Marketplace, apiKey string) string {
	return s.cache.Key(marketplace, apiKey)
}

// BuildTree assembles the flat list into a forest in one pass. A node
// whose declared parent is absent from the list becomes a root.
func (s *CategoryService) BuildTree(flat []models.CategoryNode) []*models.CategoryTreeNode {
	index := make(map[int]*models.CategoryTreeNode, len(flat))
	for _, n := range flat {
		index[n.ID] = &models.CategoryTreeNode{CategoryNode: n, Children: []*models.CategoryTreeNode{}}
	}

	var roots []*models.CategoryTreeNode
	for _, n := range flat {
		node := index[n.ID]
		if parent, ok := index[n.ParentID]; ok && n.ParentID != 0 && n.ParentID != n.ID {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

// GetChildren returns the direct children of parentID in source order.
func (s *CategoryService) GetChildren(flat []models.CategoryNode, parentID int) []models.CategoryNode {
	var children []models.CategoryNode
	for _, n := range flat {
		if n.ParentID == parentID && n.ID != parentID {
			children = append(children, n)
		}
	}
	return children
}

// GetPath reconstructs the root-to-target path by walking parent
// pointers. The walk terminates even on cyclic or corrupt data: a
// revisited or missing parent is treated as the root boundary.
func (s *CategoryService) GetPath(flat []models.CategoryNode, categoryID int) ([]models.CategoryNode, error) {
	index := make(map[int]models.CategoryNode, len(flat))
	for _, n := range flat {
		index[n.ID] = n
	}

	node, ok := index[categoryID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", utils.ErrCategoryNotFound, categoryID)
	}

	visited := map[int]bool{}
	var reversed []models.CategoryNode
	for {
		if visited[node.ID] {
			break // cycle: treat the revisit as the root boundary
		}
		visited[node.ID] = true
		reversed = append(reversed, node)

		if node.ParentID == 0 {
			break
		}
		parent, ok := index[node.ParentID]
		if !ok {
			break // dangling parent reference: node acts as root
		}
		node = parent
	}

	path := make([]models.CategoryNode, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, nil
}

// FindLeafDescendant breadth-first searches the subtree below categoryID
// and returns the first leaf in BFS order: closest by depth, then
// left-to-right as listed by the source. Nil when the subtree holds no
// leaf.
func (s *CategoryService) FindLeafDescendant(flat []models.CategoryNode, categoryID int) *models.CategoryNode {
	children := make(map[int][]models.CategoryNode, len(flat))
	for _, n := range flat {
		if n.ID != n.ParentID {
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}

	queue := append([]models.CategoryNode{}, children[categoryID]...)
	visited := map[int]bool{categoryID: true}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node.ID] {
			continue
		}
		visited[node.ID] = true

		if node.Leaf {
			return &node
		}
		queue = append(queue, children[node.ID]...)
	}
	return nil
}

// ResolveLeaf returns categoryID itself when it is a leaf, otherwise its
// nearest leaf descendant. Marketplaces only accept product submissions
// against leaves, so a non-leaf reference is resolved deterministically
// instead of rejected.
func (s *CategoryService) ResolveLeaf(flat []models.CategoryNode, categoryID int) (*models.CategoryNode, error) {
	for _, n := range flat {
		if n.ID == categoryID {
			if n.Leaf {
				return &n, nil
			}
			if leaf := s.FindLeafDescendant(flat, categoryID); leaf != nil {
				return leaf, nil
			}
			return nil, fmt.Errorf("%w: category %d", utils.ErrNoLeafDescendant, categoryID)
		}
	}
	return nil, fmt.Errorf("%w: %d", utils.ErrCategoryNotFound, categoryID)
}

// rawCategory is the tolerant decode target for every category shape the
// upstreams produce: flat entries with parent ids, nested trees, and
// either leaf-flag spelling.
type rawCategory struct {
	ID               int           `json:"id"`
	Name             string        `json:"name"`
	ParentID         *int          `json:"parentId"`
	ParentCategoryID *int          `json:"parentCategoryId"`
	Leaf             *bool         `json:"leaf"`
	IsLeaf           *bool         `json:"isLeaf"`
	SubCategories    []rawCategory `json:"subCategories"`
	Children         []rawCategory `json:"children"`
}

// categoryWrapperKeys are envelope keys tried in order when the body is
// not a bare array.
var categoryWrapperKeys = []string{"categories", "result", "data", "items"}

// NormalizeCategories detects the response shape (bare array, wrapped
// array, or nested tree) and produces a flat node list with resolved
// parent ids and computed leaf flags. Unresolvable parent references
// default to root.
func NormalizeCategories(raw json.RawMessage) ([]models.CategoryNode, error) {
	list, ok := sniffCategoryList(raw, 0)
	if !ok {
		return nil, fmt.Errorf("unrecognized category response shape")
	}

	var flat []models.CategoryNode
	var walk func(cats []rawCategory, parentID int)
	walk = func(cats []rawCategory, parentID int) {
		for _, c := range cats {
			if c.ID == 0 && c.Name == "" {
				continue
			}

			pid := parentID
			if c.ParentID != nil {
				pid = *c.ParentID
			} else if c.ParentCategoryID != nil {
				pid = *c.ParentCategoryID
			}

			kids := c.SubCategories
			if len(kids) == 0 {
				kids = c.Children
			}

			leaf := len(kids) == 0
			if c.Leaf != nil {
				leaf = *c.Leaf
			} else if c.IsLeaf != nil {
				leaf = *c.IsLeaf
			}

			flat = append(flat, models.CategoryNode{ID: c.ID, Name: c.Name, ParentID: pid, Leaf: leaf})
			walk(kids, c.ID)
		}
	}
	walk(list, 0)

	// Parent references must point at nodes actually present; anything
	// else is treated as a root.
	ids := make(map[int]bool, len(flat))
	for _, n := range flat {
		ids[n.ID] = true
	}
	for i := range flat {
		if flat[i].ParentID != 0 && !ids[flat[i].ParentID] {
			flat[i].ParentID = 0
		}
	}
	return flat, nil
}

// sniffCategoryList tries each known shape in sequence: bare array first,
// then each wrapper key, descending at most two envelope levels.
func sniffCategoryList(raw json.RawMessage, depth int) ([]rawCategory, bool) {
	var list []rawCategory
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}

	if depth >= 2 {
		return nil, false
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false
	}
	for _, key := range categoryWrapperKeys {
		if inner, ok := envelope[key]; ok {
			if list, ok := sniffCategoryList(inner, depth+1); ok {
				return list, true
			}
		}
	}
	return nil, false
}
