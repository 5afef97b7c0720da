package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundseg/internal/logger"
	"groundseg/internal/tracking"
	"groundseg/pkg/middleware"
	"groundseg/pkg/ratelimit"
)

func newRouter(t *testing.T, store tracking.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(logger.NopLogger()))
	NewHandler(store, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetDatastrip(t *testing.T) {
	ctx := context.Background()
	store := tracking.NewMemoryStore()
	parent := "path"
	require.NoError(t, store.Create(ctx, "DS", "bucket", &parent, "DS"))
	require.NoError(t, store.UpdateTileComplete(ctx, "DS", tracking.TileInfo{TileID: "TL_2", StoragePath: "s3://bucket/path/TL_2"}))
	require.NoError(t, store.UpdateTileComplete(ctx, "DS", tracking.TileInfo{TileID: "TL_1", StoragePath: "s3://bucket/path/TL_1"}))

	w := get(newRouter(t, store), "/api/v1/datastrips/DS")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	var resp DatastripResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DS", resp.DatastripID)
	assert.Equal(t, "s3://bucket/path/DS", resp.StoragePath)
	assert.False(t, resp.Provisional)
	assert.Equal(t, 2, resp.TileCount)
	require.Len(t, resp.Tiles, 2)
	assert.Equal(t, "TL_1", resp.Tiles[0].TileID)
	assert.Equal(t, "s3://bucket/path/TL_1", resp.Tiles[0].StoragePath)
}

func TestGetDatastrip_Provisional(t *testing.T) {
	ctx := context.Background()
	store := tracking.NewMemoryStore()
	require.NoError(t, store.UpdateTileComplete(ctx, "DS", tracking.TileInfo{TileID: "TL_1"}))

	w := get(newRouter(t, store), "/api/v1/datastrips/DS")

	require.Equal(t, http.StatusOK, w.Code)
	var resp DatastripResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Provisional)
	assert.Empty(t, resp.StoragePath)
	assert.Equal(t, 1, resp.TileCount)
}

func TestGetDatastrip_NotFound(t *testing.T) {
	w := get(newRouter(t, tracking.NewMemoryStore()), "/api/v1/datastrips/missing")

	require.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error_code"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newRouter(t, tracking.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/datastrips/x", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	gin.SetMode(gin.TestMode)
	limited := gin.New()
	limited.Use(ratelimit.RateLimitMiddleware(ctx, ratelimit.RateLimitConfig{
		RPS:             0.001,
		Burst:           1,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	}))
	NewHandler(tracking.NewMemoryStore(), logger.NopLogger()).RegisterRoutes(limited)

	assert.Equal(t, http.StatusNotFound, get(limited, "/api/v1/datastrips/x").Code)

	w := get(limited, "/api/v1/datastrips/x")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestSwaggerDoc(t *testing.T) {
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc))
	assert.Equal(t, "/api/v1", doc["basePath"])
	assert.Contains(t, doc["paths"], "/datastrips/{id}")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterSwagger(router)

	w := get(router, "/swagger/doc.json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Preparation Worker Status API")
}
