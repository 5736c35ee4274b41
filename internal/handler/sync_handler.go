package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/repository"
	"github.com/sellergate/sellergate_api/internal/service"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// SyncHandler exposes sync runs, status and history endpoints.
type SyncHandler struct {
	syncService   *service.SyncService
	statusService *service.StatusService
	syncLogRepo   *repository.SyncLogRepository
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(syncService *service.SyncService, statusService *service.StatusService, syncLogRepo *repository.SyncLogRepository) *SyncHandler {
	return &SyncHandler{
		syncService:   syncService,
		statusService: statusService,
		syncLogRepo:   syncLogRepo,
	}
}

// SyncProducts runs a catalog pull for one marketplace connection.
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	sc, ok := requestScope(c)
	if !ok {
		return
	}
	marketplace, ok := marketplaceParam(c)
	if !ok {
		return
	}

	result, err := h.syncService.SyncProducts(c.Request.Context(), sc.TenantID, sc.CustomerID, marketplace)
	if err != nil {
		respondError(c, err)
		return
	}

	h.statusService.Invalidate(c.Request.Context(), sc.TenantID, sc.CustomerID, marketplace)

	message := "Product sync completed"
	if result.Status == models.SyncPartial {
		message = "Product sync completed with errors"
	}
	utils.Success(c, 200, message, result)
}

// GetStatus returns connection presence, product count and last run.
func (h *SyncHandler) GetStatus(c *gin.Context) {
	sc, ok := requestScope(c)
	if !ok {
		return
	}
	marketplace, ok := marketplaceParam(c)
	if !ok {
		return
	}

	report, err := h.statusService.GetStatus(c.Request.Context(), sc.TenantID, sc.CustomerID, marketplace)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, 200, "Sync status retrieved", report)
}

// GetHistory lists past sync runs for one marketplace connection.
func (h *SyncHandler) GetHistory(c *gin.Context) {
	sc, ok := requestScope(c)
	if !ok {
		return
	}
	marketplace, ok := marketplaceParam(c)
	if !ok {
		return
	}
	page, limit := pagination(c)

	logs, total, err := h.syncLogRepo.List(sc.TenantID, sc.CustomerID, marketplace, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Sync history retrieved", gin.H{
		"runs": logs,
	}, page, limit, total)
}
