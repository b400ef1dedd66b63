package handlers

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/paperpress/paperpress/internal/core"
	"github.com/paperpress/paperpress/internal/naming"
)

type HistoryHandler struct {
	history *core.HistoryStore
	log     zerolog.Logger
}

func NewHistoryHandler(history *core.HistoryStore, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		log:     log,
	}
}

func (h *HistoryHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.history.ListActive(time.Now()))
}

// Download serves one converted artifact. Both path segments must already
// be in sanitized form, which pins the lookup inside the job's output
// directory.
func (h *HistoryHandler) Download(c *gin.Context) {
	id := c.Param("id")
	filename := c.Param("filename")

	if naming.SanitizeBaseName(id) != id || naming.SanitizeBaseName(filename) != filename {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid download path"})
		return
	}

	rec, err := h.history.FindByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	path := filepath.Join(rec.WorkDir, "pdf_output", filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.FileAttachment(path, filename)
}

// DownloadZip streams every successful artifact of a job as one archive.
func (h *HistoryHandler) DownloadZip(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.history.FindByID(id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up job"})
		return
	}

	var successes []core.FileResult
	for _, res := range rec.Results {
		if res.Success {
			successes = append(successes, res)
		}
	}
	if len(successes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "job has no successful conversions"})
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, rec.ID))

	zw := zip.NewWriter(c.Writer)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, res := range successes {
		if err := h.addZipEntry(zw, rec.WorkDir, res.Name); err != nil {
			h.log.Warn().Err(err).Str("job_id", rec.ID).Str("file", res.Name).Msg("skipping unreadable artifact in zip")
		}
	}

	if err := zw.Close(); err != nil {
		h.log.Error().Err(err).Str("job_id", rec.ID).Msg("failed to finish zip stream")
	}
}

func (h *HistoryHandler) addZipEntry(zw *zip.Writer, workDir, name string) error {
	f, err := os.Open(filepath.Join(workDir, "pdf_output", name))
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func (h *HistoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/history", h.List)
}

// RegisterDownloadRoutes attaches the artifact routes at the engine root,
// matching the paths the web client links to.
func (h *HistoryHandler) RegisterDownloadRoutes(r *gin.Engine) {
	r.GET("/download/:id/:filename", h.Download)
	r.GET("/download-zip/:id", h.DownloadZip)
}
