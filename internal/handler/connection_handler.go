package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sellergate/sellergate_api/internal/service"
	"github.com/sellergate/sellergate_api/internal/utils"
)

// ConnectionHandler exposes connection credential checks.
type ConnectionHandler struct {
	syncService *service.SyncService
}

// NewConnectionHandler constructs a ConnectionHandler.
func NewConnectionHandler(syncService *service.SyncService) *ConnectionHandler {
	return &ConnectionHandler{syncService: syncService}
}

// TestConnection calls the marketplace with the stored credentials and
// reports whether they work, without persisting anything.
func (h *ConnectionHandler) TestConnection(c *gin.Context) {
	sc, ok := requestScope(c)
	if !ok {
		return
	}
	marketplace, ok := marketplaceParam(c)
	if !ok {
		return
	}

	check, err := h.syncService.TestConnection(c.Request.Context(), sc.TenantID, sc.CustomerID, marketplace)
	if err != nil {
		respondError(c, err)
		return
	}

	if !check.Success {
		utils.Error(c, 502, "CONNECTION_TEST_FAILED", check.Message)
		return
	}
	utils.Success(c, 200, "Connection test passed", check)
}
