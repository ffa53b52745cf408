package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/service"
)

type BidHandler struct {
	bids *service.BidService
}

func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

// SubmitBid POST /jobs/:id/bids
func (h *BidHandler) SubmitBid(c *gin.Context) {
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
		Amount       int64  `json:"amount" binding:"required,gt=0"`
		TimelineSecs int64  `json:"timeline_secs" binding:"required,gt=0"`
		Proposal     string `json:"proposal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса: "+err.Error())
		return
	}

	b, err := h.bids.SubmitBid(c.Request.Context(), account, jobID, service.BidInput{
		Amount:       req.Amount,
		TimelineSecs: req.TimelineSecs,
		Proposal:     req.Proposal,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, b)
}

// ListBids GET /jobs/:id/bids
func (h *BidHandler) ListBids(c *gin.Context) {
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	bids, err := h.bids.ListBids(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// WithdrawBid DELETE /bids/:id
func (h *BidHandler) WithdrawBid(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	bidID, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.bids.WithdrawBid(c.Request.Context(), account, bidID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ставка снята"})
}

// SelectBid POST /jobs/:id/bids/:bidId/select
func (h *BidHandler) SelectBid(c *gin.Context) {
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
	bidID, err := parseIDParam(c, "bidId")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	job, err := h.bids.SelectBid(c.Request.Context(), account, jobID, bidID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
