package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/paperpress/paperpress/internal/core"
)

type ConvertHandler struct {
	orch        *core.Orchestrator
	maxFiles    int
	maxFileSize int64
	log         zerolog.Logger
}

func NewConvertHandler(orch *core.Orchestrator, maxFiles int, maxFileSize int64, log zerolog.Logger) *ConvertHandler {
	return &ConvertHandler{
		orch:        orch,
		maxFiles:    maxFiles,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

func (h *ConvertHandler) Convert(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	parts := form.File["files"]
	if len(parts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}
	if len(parts) > h.maxFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("too many files (max %d)", h.maxFiles)})
		return
	}

	files := make([]core.UploadedFile, 0, len(parts))
	for _, part := range parts {
		if part.Size > h.maxFileSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file %s exceeds the %d byte limit", part.Filename, h.maxFileSize)})
			return
		}

		data, err := readPart(part)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file " + part.Filename})
			return
		}
		files = append(files, core.UploadedFile{Name: part.Filename, Data: data})
	}

	opts := core.BatchOptions{
		Orientation:   c.PostForm("orientation"),
		PaperSize:     c.PostForm("paperSize"),
		Watermark:     strings.EqualFold(c.PostForm("watermark"), "true"),
		WatermarkText: c.PostForm("watermarkText"),
	}

	rec, err := h.orch.RunBatch(files, opts)
	if err != nil {
		var valErr *core.ValidationError
		if errors.As(err, &valErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Msg})
			return
		}
		h.log.Error().Err(err).Msg("batch conversion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversion failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      rec.ID,
		"results": rec.Results,
	})
}

func readPart(part *multipart.FileHeader) ([]byte, error) {
	f, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *ConvertHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/convert", h.Convert)
}
