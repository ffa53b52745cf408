package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/http/middleware"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
)

var errAccountNotFound = errors.New("счёт не найден в контексте")

// currentAccount извлекает имя счёта вызывающего из контекста.
func currentAccount(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextAccountKey)
	if !exists {
		return "", errAccountNotFound
	}

	account, ok := raw.(string)
	if !ok || account == "" {
		return "", errAccountNotFound
	}

	return account, nil
}

// parseIDParam извлекает числовой идентификатор из URL.
func parseIDParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("неверный идентификатор")
	}
	return id, nil
}

// parseIntQuery извлекает числовой query-параметр с дефолтом.
func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// respondError отправляет ошибку клиенту: AppError со своим статусом
// и кодом, остальное — как внутренняя ошибка.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
}

// respondUnauthorized отправляет 401.
func respondUnauthorized(c *gin.Context) {
	respondError(c, apperror.ErrUnauthorized)
}

// respondBadRequest отправляет 400.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
