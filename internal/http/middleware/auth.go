package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextAccountKey = "account"
)

// AuthMiddleware проверяет JWT и кладёт имя счёта вызывающего в контекст.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		account, err := tokens.Parse(raw)
		if err != nil || account == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		c.Set(ContextAccountKey, account)
		c.Next()
	}
}

// LedgerAuthMiddleware защищает вебхук переводов: леджер подписывает
// уведомления статическим bearer-токеном.
func LedgerAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "невалидный токен леджера"})
			return
		}
		c.Next()
	}
}
