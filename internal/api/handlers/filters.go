package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/paperpress/paperpress/internal/assets"
	"github.com/paperpress/paperpress/internal/core"
)

type FilterHandler struct {
	filters *core.FilterStore
	log     zerolog.Logger
}

type SaveFilterRequest struct {
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Mode    *string `json:"mode"`
	Enabled *bool   `json:"enabled"`
}

func NewFilterHandler(filters *core.FilterStore, log zerolog.Logger) *FilterHandler {
	return &FilterHandler{
		filters: filters,
		log:     log,
	}
}

func (h *FilterHandler) GetDefault(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(assets.DefaultFilter))
}

func (h *FilterHandler) Get(c *gin.Context) {
	cfg := h.filters.Load()
	if cfg == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	code, err := h.filters.Code(cfg.Name)
	if err != nil && !os.IsNotExist(err) {
		h.log.Warn().Err(err).Str("name", cfg.Name).Msg("failed to read filter source")
	}

	c.JSON(http.StatusOK, gin.H{
		"name":    cfg.Name,
		"code":    code,
		"mode":    cfg.Mode,
		"enabled": cfg.Enabled,
	})
}

func (h *FilterHandler) Save(c *gin.Context) {
	var req SaveFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, err := h.filters.Save(core.SaveFilterRequest{
		Name:    req.Name,
		Code:    req.Code,
		Mode:    req.Mode,
		Enabled: req.Enabled,
	})
	if err != nil {
		var valErr *core.ValidationError
		switch {
		case errors.As(err, &valErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Msg})
		case errors.Is(err, core.ErrNoExistingFilter):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no saved filter to disable"})
		default:
			h.log.Error().Err(err).Msg("filter save failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save filter"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
	})
}

func (h *FilterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/filter/default", h.GetDefault)
	r.GET("/filter", h.Get)
	r.POST("/filter", h.Save)
}
