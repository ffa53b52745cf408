package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/service"
)

type ConfigHandler struct {
	config *service.ConfigService
}

func NewConfigHandler(config *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{config: config}
}

// GetConfig GET /config
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	cfg, err := h.config.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// SetConfig PUT /config
func (h *ConfigHandler) SetConfig(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req struct {
		RegistryAccount       string `json:"registry_account"`
		ReputationAccount     string `json:"reputation_account"`
		PlatformFeeBps        int    `json:"platform_fee_bps"`
		MinJobAmount          int64  `json:"min_job_amount"`
		DefaultDeadlineDays   int    `json:"default_deadline_days" binding:"required,gt=0"`
		DisputeWindowSecs     int64  `json:"dispute_window_secs"`
		Paused                bool   `json:"paused"`
		AcceptanceTimeoutSecs int64  `json:"acceptance_timeout_secs"`
		MinArbitratorStake    int64  `json:"min_arbitrator_stake"`
		ArbUnstakeDelaySecs   int64  `json:"arb_unstake_delay_secs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса: "+err.Error())
		return
	}

	cfg, err := h.config.SetConfig(c.Request.Context(), account, service.EngineConfigInput{
		RegistryAccount:       req.RegistryAccount,
		ReputationAccount:     req.ReputationAccount,
		PlatformFeeBps:        req.PlatformFeeBps,
		MinJobAmount:          req.MinJobAmount,
		DefaultDeadlineDays:   req.DefaultDeadlineDays,
		DisputeWindowSecs:     req.DisputeWindowSecs,
		Paused:                req.Paused,
		AcceptanceTimeoutSecs: req.AcceptanceTimeoutSecs,
		MinArbitratorStake:    req.MinArbitratorStake,
		ArbUnstakeDelaySecs:   req.ArbUnstakeDelaySecs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// SetOwner PUT /config/owner
func (h *ConfigHandler) SetOwner(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req struct {
		NewOwner string `json:"new_owner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "не указан новый владелец")
		return
	}

	if err := h.config.SetOwner(c.Request.Context(), account, req.NewOwner); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "владение передано"})
}
