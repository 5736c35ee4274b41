package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sellergate/sellergate_api/internal/service"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// CategoryHandler exposes category tree and resolution endpoints.
type CategoryHandler struct {
	syncService     *service.SyncService
	categoryService *service.CategoryService
}

// NewCategoryHandler constructs a CategoryHandler.
func NewCategoryHandler(syncService *service.SyncService, categoryService *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{syncService: syncService, categoryService: categoryService}
}

// GetCategories returns the category list for one connection, flat by
// default or assembled into a tree with ?tree=true. ?refresh=true forces
// a live fetch; ?cached=true never calls upstream.
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	result, ok := h.loadCategories(c)
	if !ok {
		return
	}

	data := gin.H{
		"cacheUsed": result.CacheUsed,
		"stale":     result.Stale,
		"source":    result.Source,
		"count":     len(result.Nodes),
	}
	if c.Query("tree") == "true" {
		data["tree"] = h.categoryService.BuildTree(result.Nodes)
	} else {
		data["categories"] = result.Nodes
	}
	utils.Success(c, 200, "Categories retrieved", data)
}

// GetChildren returns the direct children of one category.
func (h *CategoryHandler) GetChildren(c *gin.Context) {
	result, ok := h.loadCategories(c)
	if !ok {
		return
	}
	categoryID, ok := intParam(c, "categoryId")
	if !ok {
		return
	}

	children := h.categoryService.GetChildren(result.Nodes, categoryID)
	utils.Success(c, 200, "Category children retrieved", gin.H{
		"categoryId": categoryID,
		"children":   children,
	})
}

// GetPath returns the root-to-category breadcrumb path.
func (h *CategoryHandler) GetPath(c *gin.Context) {
	result, ok := h.loadCategories(c)
	if !ok {
		return
	}
	categoryID, ok := intParam(c, "categoryId")
	if !ok {
		return
	}

	path, err := h.categoryService.GetPath(result.Nodes, categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Category path retrieved", gin.H{
		"categoryId": categoryID,
		"path":       path,
	})
}

// ResolveLeaf maps a possibly-non-leaf category to the leaf that product
// submissions should target.
func (h *CategoryHandler) ResolveLeaf(c *gin.Context) {
	result, ok := h.loadCategories(c)
	if !ok {
		return
	}
	categoryID, ok := intParam(c, "categoryId")
	if !ok {
		return
	}

	leaf, err := h.categoryService.ResolveLeaf(result.Nodes, categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Leaf category resolved", gin.H{
		"requestedCategoryId": categoryID,
		"leaf":                leaf,
		"resolved":            leaf.ID != categoryID,
	})
}

// loadCategories resolves the connection client and fetches the flattened
// category list honoring the refresh and cached query flags. On failure
// it writes the error response and reports false.
func (h *CategoryHandler) loadCategories(c *gin.Context) (*service.CategoryResult, bool) {
	sc, ok := requestScope(c)
	if !ok {
		return nil, false
	}
	marketplace, ok := marketplaceParam(c)
	if !ok {
		return nil, false
	}

	client, creds, err := h.syncService.Client(sc.TenantID, sc.CustomerID, marketplace)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	opts := service.CategoryOptions{
		Force:     c.Query("refresh") == "true",
		CacheOnly: c.Query("cached") == "true",
	}
	cacheKey := h.categoryService.CacheKey(marketplace, creds.APIKey)

	result, err := h.categoryService.GetFlatCategories(c.Request.Context(), client, cacheKey, opts)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return result, true
}
