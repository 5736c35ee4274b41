package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/service"
	"github.com/sellergate/sellergate_api/internal/utils"
	"github.com/sellergate/sellergate_api/pkg/httpx"
)

// scope identifies whose data a request operates on. Tenant and customer
// arrive as headers set by the gateway, with query fallbacks for direct
// calls.
type scope struct {
	TenantID   int
	CustomerID int
}

func requestScope(c *gin.Context) (scope, bool) {
	tenant := headerOrQueryInt(c, "X-Tenant-ID", "tenantId")
	customer := headerOrQueryInt(c, "X-Customer-ID", "customerId")
	if tenant <= 0 || customer <= 0 {
		utils.Error(c, 400, "MISSING_SCOPE", "Tenant and customer identifiers are required")
		return scope{}, false
	}
	return scope{TenantID: tenant, CustomerID: customer}, true
}

func headerOrQueryInt(c *gin.Context, header, query string) int {
	v := c.GetHeader(header)
	if v == "" {
		v = c.Query(query)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func marketplaceParam(c *gin.Context) (models.Marketplace, bool) {
	m := models.Marketplace(c.Param("marketplace"))
	if !m.Valid() {
		utils.Error(c, 400, "INVALID_MARKETPLACE", "Unsupported marketplace: "+string(m))
		return "", false
	}
	return m, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		utils.Error(c, 400, "INVALID_PARAMETER", "Invalid "+name)
		return 0, false
	}
	return n, true
}

func pagination(c *gin.Context) (page, limit int) {
	page = 1
	limit = 50
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return page, limit
}

// respondError maps domain errors to HTTP status codes, attaching the
// upstream attempt log when the failure carries one.
func respondError(c *gin.Context, err error) {
	var resErr *service.AttributeResolutionError
	if errors.As(err, &resErr) {
		utils.ErrorWithDetails(c, 502, "ATTRIBUTES_UNRESOLVED", resErr.Error(), gin.H{
			"categoryId": resErr.CategoryID,
			"attempts":   resErr.Attempts,
		})
		return
	}

	var upErr *httpx.UpstreamError
	if errors.As(err, &upErr) {
		utils.ErrorWithDetails(c, 502, "UPSTREAM_UNAVAILABLE", err.Error(), gin.H{
			"attempts": upErr.Attempts,
		})
		return
	}

	var abortErr *httpx.AbortError
	if errors.As(err, &abortErr) {
		utils.ErrorWithDetails(c, 502, "UPSTREAM_REJECTED", err.Error(), gin.H{
			"attempts": []httpx.Attempt{abortErr.Attempt},
		})
		return
	}

	switch {
	case errors.Is(err, utils.ErrInvalidMarketplace):
		utils.Error(c, 400, "INVALID_MARKETPLACE", err.Error())
	case errors.Is(err, utils.ErrConnectionNotConfigured):
		utils.Error(c, 404, "CONNECTION_NOT_CONFIGURED", err.Error())
	case errors.Is(err, utils.ErrCategoryNotFound):
		utils.Error(c, 404, "CATEGORY_NOT_FOUND", err.Error())
	case errors.Is(err, utils.ErrNoLeafDescendant):
		utils.Error(c, 422, "NO_LEAF_DESCENDANT", err.Error())
	case errors.Is(err, utils.ErrCacheEmpty):
		utils.Error(c, 404, "CACHE_EMPTY", err.Error())
	case errors.Is(err, utils.ErrSyncAlreadyRunning):
		utils.Error(c, 409, "SYNC_ALREADY_RUNNING", err.Error())
	case errors.Is(err, utils.ErrInvalidKeyMaterial):
		utils.Error(c, 500, "CREDENTIAL_DECRYPT_FAILED", "Stored credentials could not be decrypted")
	default:
		utils.Error(c, 500, "INTERNAL_ERROR", err.Error())
	}
}
