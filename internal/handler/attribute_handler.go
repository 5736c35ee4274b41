package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sellergate/sellergate_api/internal/service"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// AttributeHandler exposes category attribute endpoints.
type AttributeHandler struct {
	syncService      *service.SyncService
	categoryService  *service.CategoryService
	attributeService *service.AttributeService
}

// NewAttributeHandler constructs an AttributeHandler.
func NewAttributeHandler(syncService *service.SyncService, categoryService *service.CategoryService, attributeService *service.AttributeService) *AttributeHandler {
	return &AttributeHandler{
		syncService:      syncService,
		categoryService:  categoryService,
		attributeService: attributeService,
	}
}

// GetAttributes returns the attribute definitions for one category. With
// ?smart=true a non-leaf category is first resolved to its nearest leaf,
// and the response says which category was actually used.
func (h *AttributeHandler) GetAttributes(c *gin.Context) {
	sc, ok := requestScope(c)
	if !ok {
		return
	}
	marketplace, ok := marketplaceParam(c)
	if !ok {
		return
	}
	categoryID, ok := intParam(c, "categoryId")
	if !ok {
		return
	}

	client, creds, err := h.syncService.Client(sc.TenantID, sc.CustomerID, marketplace)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("smart") == "true" {
		cacheKey := h.categoryService.CacheKey(marketplace, creds.APIKey)
		cats, err := h.categoryService.GetFlatCategories(c.Request.Context(), client, cacheKey, service.CategoryOptions{})
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := h.attributeService.SmartAttributes(c.Request.Context(), marketplace, client, cats.Nodes, categoryID)
		if err != nil {
			respondError(c, err)
			return
		}
		utils.Success(c, 200, "Category attributes retrieved", result)
		return
	}

	attrs, err := h.attributeService.FetchCategoryAttributes(c.Request.Context(), marketplace, client, categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Category attributes retrieved", gin.H{
		"categoryId": categoryID,
		"attributes": attrs,
	})
}
