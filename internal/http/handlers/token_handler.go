package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/service"
)

// TokenHandler выпускает JWT для счёта. Подключается только в
// development: в бою токены выдаёт внешний шлюз аутентификации.
type TokenHandler struct {
	tokens *service.TokenManager
}

func NewTokenHandler(tokens *service.TokenManager) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// Issue POST /dev/token
func (h *TokenHandler) Issue(c *gin.Context) {
	var req struct {
		Account string `json:"account" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "не указан счёт")
		return
	}

	token, err := h.tokens.Generate(req.Account)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
