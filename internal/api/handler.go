// Package api serves the read-only status API of the preparation worker.
package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"groundseg/internal/logger"
	"groundseg/internal/tracking"
	"groundseg/pkg/errors"
	"groundseg/pkg/obs"
)

type TileResponse struct {
	TileID      string    `json:"tile_id"`
	StoragePath string    `json:"storage_path"`
	CompletedAt time.Time `json:"completed_at"`
}

type DatastripResponse struct {
	DatastripID string         `json:"datastrip_id"`
	StoragePath string         `json:"storage_path,omitempty"`
	Provisional bool           `json:"provisional"`
	TileCount   int            `json:"tile_count"`
	Tiles       []TileResponse `json:"tiles"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toResponse(r *tracking.Record) DatastripResponse {
	resp := DatastripResponse{
		DatastripID: r.DatastripID,
		Provisional: r.Provisional,
		TileCount:   r.TileCount(),
		Tiles:       make([]TileResponse, 0, len(r.Tiles)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if !r.Provisional {
		parentKey := ""
		if r.ParentKey != nil {
			parentKey = *r.ParentKey
		}
		resp.StoragePath = obs.ToURL(r.Bucket, parentKey, r.Name)
	}
	for _, tile := range r.Tiles {
		resp.Tiles = append(resp.Tiles, TileResponse(tile))
	}
	sort.Slice(resp.Tiles, func(i, j int) bool { return resp.Tiles[i].TileID < resp.Tiles[j].TileID })
	return resp
}

type Handler struct {
	store  tracking.Store
	logger logger.Logger
}

func NewHandler(store tracking.Store, log logger.Logger) *Handler {
	return &Handler{store: store, logger: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/datastrips/:id", h.GetDatastrip)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	if errors.IsNotFound(err) {
		h.logger.DebugwCtx(c.Request.Context(), "Datastrip not found", "path", c.Request.URL.Path)
	} else {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// GetDatastrip godoc
// @Summary      Get a datastrip completion record
// @Tags         datastrips
// @Produce      json
// @Param        id   path      string  true  "Datastrip identifier"
// @Success      200  {object}  DatastripResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /datastrips/{id} [get]
func (h *Handler) GetDatastrip(c *gin.Context) {
	record, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(record))
}
