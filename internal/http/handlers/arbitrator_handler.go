package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/service"
)

type ArbitratorHandler struct {
	arbitrators *service.ArbitratorService
}

func NewArbitratorHandler(arbitrators *service.ArbitratorService) *ArbitratorHandler {
	return &ArbitratorHandler{arbitrators: arbitrators}
}

// Register POST /arbitrators
func (h *ArbitratorHandler) Register(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req struct {
		FeePercent int `json:"fee_percent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса")
		return
	}

	arb, err := h.arbitrators.Register(c.Request.Context(), account, req.FeePercent)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, arb)
}

// Activate POST /arbitrators/activate
func (h *ArbitratorHandler) Activate(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	arb, err := h.arbitrators.Activate(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, arb)
}

// Deactivate POST /arbitrators/deactivate
func (h *ArbitratorHandler) Deactivate(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	arb, err := h.arbitrators.Deactivate(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, arb)
}

// RequestUnstake POST /arbitrators/unstake
func (h *ArbitratorHandler) RequestUnstake(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req struct {
		Amount int64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "сумма должна быть положительной")
		return
	}

	u, err := h.arbitrators.RequestUnstake(c.Request.Context(), account, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

// WithdrawStake POST /arbitrators/withdraw
func (h *ArbitratorHandler) WithdrawStake(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	u, err := h.arbitrators.WithdrawStake(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

// GetArbitrator GET /arbitrators/:account
func (h *ArbitratorHandler) GetArbitrator(c *gin.Context) {
	account := c.Param("account")
	if account == "" {
		respondBadRequest(c, "не указан счёт арбитра")
		return
	}

	arb, err := h.arbitrators.GetArbitrator(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, arb)
}

// ListArbitrators GET /arbitrators
func (h *ArbitratorHandler) ListArbitrators(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	arbs, err := h.arbitrators.ListArbitrators(c.Request.Context(), activeOnly, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"arbitrators": arbs})
}
