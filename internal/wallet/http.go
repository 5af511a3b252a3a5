package wallet

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	walletdomain "github.com/skystack/fleetbill/internal/wallet/domain"
)

// Handler exposes wallet reads and top-ups. Credits model external payment
// capture; debits only ever come from the billing executor.
type Handler struct {
	svc walletdomain.Service
}

func NewHandler(svc walletdomain.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/billing/wallets/:org_id", h.getWallet)
	r.POST("/v1/billing/wallets/:org_id/credit", h.credit)
}

type creditRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) credit(c *gin.Context) {
	orgID, err := snowflake.ParseString(c.Param("org_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_org_id"})
		return
	}

	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount"})
		return
	}

	wallet, err := h.svc.Credit(c.Request.Context(), orgID, amount)
	switch {
	case errors.Is(err, walletdomain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount"})
	case errors.Is(err, walletdomain.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet_not_found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "credit_failed"})
	default:
		c.JSON(http.StatusOK, wallet)
	}
}

func (h *Handler) getWallet(c *gin.Context) {
	orgID, err := snowflake.ParseString(c.Param("org_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_org_id"})
		return
	}

	wallet, err := h.svc.GetByOrg(c.Request.Context(), orgID)
	switch {
	case errors.Is(err, walletdomain.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet_not_found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet_unavailable"})
	default:
		c.JSON(http.StatusOK, wallet)
	}
}
