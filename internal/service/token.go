package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager отвечает за выпуск и проверку JWT. Subject токена —
// имя счёта в леджере: внешняя среда гарантирует аутентичность
// вызывающего, здесь только её перенос в HTTP-слой.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate выпускает токен для счёта.
func (m *TokenManager) Generate(account string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse проверяет токен и возвращает счёт вызывающего.
func (m *TokenManager) Parse(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := parsed.Claims.(*jwt.RegisteredClaims); ok && parsed.Valid && claims.Subject != "" {
		return claims.Subject, nil
	}

	return "", jwt.ErrTokenInvalidClaims
}
