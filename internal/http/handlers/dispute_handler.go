package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/service"
)

type DisputeHandler struct {
	disputes *service.DisputeService
}

func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// OpenDispute POST /jobs/:id/disputes
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Reason      string `json:"reason" binding:"required"`
		EvidenceURI string `json:"evidence_uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "причина спора обязательна")
		return
	}

	d, err := h.disputes.OpenDispute(c.Request.Context(), account, jobID, service.DisputeInput{
		Reason:      req.Reason,
		EvidenceURI: req.EvidenceURI,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, d)
}

// Arbitrate POST /jobs/:id/arbitrate
func (h *DisputeHandler) Arbitrate(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req struct {
		ClientPercent *int   `json:"client_percent" binding:"required"`
		Notes         string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ClientPercent == nil {
		respondBadRequest(c, "не указана доля клиента")
		return
	}

	d, err := h.disputes.Arbitrate(c.Request.Context(), account, jobID, service.ArbitrateInput{
		ClientPercent: *req.ClientPercent,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// ListDisputes GET /jobs/:id/disputes
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ds, err := h.disputes.ListDisputes(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": ds})
}
