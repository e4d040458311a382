package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"recipebox/pkg/logger"
	"recipebox/recipes-service/internal/app/recipes/infrastructure"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

const userIDKey = "user_id"

// JWTClaims структура claims для JWT токена
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет JWT токен в запросах для Gin.
// Токены выпускает внешний сервис, здесь только проверка подписи.
type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware создает новый middleware для аутентификации
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate требует валидный токен и кладет user_id в контекст Gin
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := m.parse(authHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// Optional пропускает анонимные запросы, но битый токен - 401
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		claims, err := m.parse(authHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

func (m *AuthMiddleware) parse(authHeader string) (*JWTClaims, error) {
	// Проверяем формат "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("Invalid authorization header format")
	}

	token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("Invalid or expired token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || claims.UserID == "" {
		return nil, errors.New("Invalid token claims")
	}

	return claims, nil
}

// RateLimit применяет sliding window лимит класса операций.
// Идентификатор - user:<id> для аутентифицированных, иначе ip:<адрес>.
// При ошибке Redis запрос пропускается.
func RateLimit(governor infrastructure.RateGovernor, class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if governor == nil {
			c.Next()
			return
		}

		identifier := clientIdentifier(c)

		decision, err := governor.Allow(c.Request.Context(), identifier, class)
		if err != nil {
			logger.Warn().Err(err).
				Str("class", class).
				Str("identifier", identifier).
				Msg("Rate governor unavailable, request allowed")
			c.Next()
			return
		}

		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
		}

		if !decision.Allowed {
			logger.Warn().
				Str("class", class).
				Str("identifier", identifier).
				Int("retry_after", decision.RetryAfter).
				Msg("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// GlobalRateLimit - token bucket на весь процесс, срабатывает до Redis
func GlobalRateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Server is overloaded"})
			return
		}
		c.Next()
	}
}

func clientIdentifier(c *gin.Context) string {
	if userID := c.GetString(userIDKey); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}
