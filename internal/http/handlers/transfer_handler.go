package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-engine/internal/service"
)

// TransferHandler принимает уведомления токен-леджера о входящих
// переводах и отдаёт журнал переводов.
type TransferHandler struct {
	transfers *service.TransferService
}

func NewTransferHandler(transfers *service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// HandleInbound POST /transfers/inbound — вебхук леджера.
// 200 — перевод применён, 4xx — леджер должен вернуть средства.
func (h *TransferHandler) HandleInbound(c *gin.Context) {
	var req struct {
		TxID   string `json:"tx_id" binding:"required"`
		From   string `json:"from" binding:"required"`
		Amount int64  `json:"amount" binding:"required"`
		Symbol string `json:"symbol" binding:"required"`
		Memo   string `json:"memo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса: "+err.Error())
		return
	}

	txID, err := uuid.Parse(req.TxID)
	if err != nil {
		respondBadRequest(c, "неверный формат tx_id")
		return
	}

	if err := h.transfers.HandleInbound(c.Request.Context(), service.InboundTransfer{
		TxID:   txID,
		From:   req.From,
		Amount: req.Amount,
		Symbol: req.Symbol,
		Memo:   req.Memo,
	}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "перевод применён"})
}

// ReplayPending POST /transfers/replay — переотправка зависших
// исходящих переводов. Право владельца проверяет сервис.
func (h *TransferHandler) ReplayPending(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	count, err := h.transfers.ReplayPending(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"replayed": count})
}

// ListMyTransfers GET /transfers/my
func (h *TransferHandler) ListMyTransfers(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	ts, err := h.transfers.ListByAccount(c.Request.Context(), account, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfers": ts})
}

// ListJobTransfers GET /jobs/:id/transfers
func (h *TransferHandler) ListJobTransfers(c *gin.Context) {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ts, err := h.transfers.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfers": ts})
}
