package handlers

import (
	"bytes"
	"net/http"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// PreviewHandler renders Markdown to HTML so the client can show an
// approximation of the document before spending a pandoc run on it.
type PreviewHandler struct {
	md  goldmark.Markdown
	log zerolog.Logger
}

type previewRequest struct {
	Markdown string `json:"markdown"`
}

func NewPreviewHandler(log zerolog.Logger) *PreviewHandler {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(false),
				),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	return &PreviewHandler{md: md, log: log}
}

func (h *PreviewHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with a markdown field"})
		return
	}

	var buf bytes.Buffer
	if err := h.md.Convert([]byte(req.Markdown), &buf); err != nil {
		h.log.Error().Err(err).Msg("markdown rendering failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render markdown"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"html": buf.String()})
}

func (h *PreviewHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/preview", h.Preview)
}
