package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"recipebox/pkg/logger"
	"recipebox/recipes-service/internal/app/recipes/infrastructure"

	"github.com/gin-gonic/gin"
)

// serveCached отдает JSON ответ через кэш; load вызывается только при промахе.
// Возвращает тело ответа, false - ошибка уже записана в ответ.
func serveCached(c *gin.Context, cache infrastructure.ResponseCache, key string, ttl time.Duration, load func(ctx context.Context) (interface{}, error)) ([]byte, bool) {
	loadJSON := func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	var (
		data []byte
		hit  bool
		err  error
	)
	if cache == nil {
		data, err = loadJSON(c.Request.Context())
	} else {
		data, hit, err = cache.Fetch(c.Request.Context(), key, ttl, loadJSON)
	}
	if err != nil {
		writeError(c, err)
		return nil, false
	}

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)

	return data, true
}

// invalidateCache сбрасывает кэш после записи; ошибка не влияет на ответ,
// устаревшие ключи доживут до TTL
func invalidateCache(c *gin.Context, cache infrastructure.ResponseCache) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateAll(c.Request.Context()); err != nil {
		logger.Warn().Err(err).Str("path", c.FullPath()).Msg("Failed to invalidate response cache")
	}
}
