package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/repository"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// ProductHandler exposes the locally synced product catalog.
type ProductHandler struct {
	productRepo *repository.ProductRepository
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(productRepo *repository.ProductRepository) *ProductHandler {
	return &ProductHandler{productRepo: productRepo}
}

// GetProducts lists synced products, optionally filtered by source
// marketplace.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	sc, ok := requestScope(c)
	if !ok {
		return
	}

	marketplace := models.Marketplace(c.Query("marketplace"))
	if marketplace != "" && !marketplace.Valid() {
		utils.Error(c, 400, "INVALID_MARKETPLACE", "Unsupported marketplace: "+string(marketplace))
		return
	}
	page, limit := pagination(c)

	products, total, err := h.productRepo.List(sc.TenantID, sc.CustomerID, marketplace, page, limit)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to list products")
		return
	}

	utils.SuccessWithPagination(c, 200, "Products retrieved successfully", gin.H{
		"products": products,
	}, page, limit, total)
}
