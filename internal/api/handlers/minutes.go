package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/paperpress/paperpress/internal/ai"
	"github.com/paperpress/paperpress/internal/extract"
)

type MinutesHandler struct {
	client  *ai.MinutesClient
	enabled bool
	log     zerolog.Logger
}

func NewMinutesHandler(client *ai.MinutesClient, enabled bool, log zerolog.Logger) *MinutesHandler {
	return &MinutesHandler{
		client:  client,
		enabled: enabled,
		log:     log,
	}
}

func (h *MinutesHandler) Generate(c *gin.Context) {
	if !h.enabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "meeting minutes generation is disabled"})
		return
	}
	if !h.client.IsConfigured() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "LLM endpoint is not configured"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	transcript, err := h.fieldText(form, "transcript")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(transcript) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transcript file is required"})
		return
	}

	in := ai.MinutesInput{Transcript: transcript}
	if in.Agenda, err = h.fieldText(form, "agenda"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Context, err = h.fieldText(form, "context"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Template, err = h.fieldText(form, "template"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	markdown, err := h.client.GenerateMinutes(c.Request.Context(), in)
	if err != nil {
		var apiErr *ai.APIError
		if errors.As(err, &apiErr) {
			h.log.Error().Err(err).Int("status", apiErr.StatusCode).Msg("llm request rejected")
			c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Message})
			return
		}
		h.log.Error().Err(err).Msg("minutes generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate meeting minutes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"markdown": markdown})
}

// fieldText reads the first uploaded file of a multipart field and extracts
// its text. A missing field is not an error; it just yields "".
func (h *MinutesHandler) fieldText(form *multipart.Form, field string) (string, error) {
	parts := form.File[field]
	if len(parts) == 0 {
		return "", nil
	}

	data, err := readPart(parts[0])
	if err != nil {
		return "", errors.New("failed to read uploaded file " + parts[0].Filename)
	}

	text, err := extract.Text(data, parts[0].Filename)
	if err != nil {
		h.log.Warn().Err(err).Str("file", parts[0].Filename).Msg("text extraction failed")
		return "", errors.New("failed to extract text from " + parts[0].Filename)
	}
	return text, nil
}

func (h *MinutesHandler) RegisterRoutes(r *gin.RouterGroup, limiter gin.HandlerFunc) {
	r.POST("/generate-minutes", limiter, h.Generate)
}
