package daemonstatus

import (
	"net/http"

	"github.com/gin-gonic/gin"
	daemonstatusdomain "github.com/skystack/fleetbill/internal/daemonstatus/domain"
)

// Handler serves the read-only daemon status projection for the operations
// dashboard.
type Handler struct {
	svc daemonstatusdomain.Service
}

func NewHandler(svc daemonstatusdomain.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/billing/daemon", h.getStatus)
}

func (h *Handler) getStatus(c *gin.Context) {
	projection, err := h.svc.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status_unavailable"})
		return
	}
	if projection == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_daemon_registered"})
		return
	}
	c.JSON(http.StatusOK, projection)
}
