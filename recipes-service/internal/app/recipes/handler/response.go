package handler

import (
	"errors"
	"net/http"
	"strconv"

	"recipebox/pkg/logger"
	"recipebox/recipes-service/internal/app/recipes/entity"
	"recipebox/recipes-service/internal/app/recipes/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// writeError переводит ошибку сервиса в HTTP ответ по ее классу
func writeError(c *gin.Context, err error) {
	var unknown *service.UnknownIngredientsError
	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: err.Error(), InvalidIDs: unknown.Strings()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(logger.RequestIDKey)).
			Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// currentUserID достает user_id, положенный AuthMiddleware
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(userIDKey)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func requireUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return id, ok
}

func parseIDParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

// parsePage читает page/limit; диапазоны проверяет сервис
func parsePage(c *gin.Context, defaultLimit int) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(entity.DefaultPage)))
	if err != nil {
		writeError(c, service.ErrInvalidPagination)
		return 0, 0, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil {
		writeError(c, service.ErrInvalidPagination)
		return 0, 0, false
	}
	return page, limit, true
}

func formatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
