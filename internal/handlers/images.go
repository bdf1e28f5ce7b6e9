package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caidasapi/internal/apperr"
	"caidasapi/internal/models"
	"caidasapi/internal/services"
)

// UploadImage ingests a multipart file ("imagen") or a remote "url", optionally
// linking it to the event in "caida_id".
func (h *Handler) UploadImage(c *gin.Context) {
	// Room for the form fields on top of the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	req := services.IngestRequest{
		Description: strings.TrimSpace(c.PostForm("descripcion")),
		EventID:     strings.TrimSpace(c.PostForm("caida_id")),
	}

	// The link is checked before the file is staged or the url probed.
	if req.EventID != "" {
		if err := h.pipeline.CheckEvent(c.Request.Context(), req.EventID); err != nil {
			h.respondError(c, err)
			return
		}
	}

	fileHeader, err := c.FormFile("imagen")
	switch {
	case err == nil:
		if fileHeader.Size == 0 {
			h.respondError(c, apperr.Validation("uploaded file is empty"))
			return
		}
		if fileHeader.Size > h.maxUploadBytes {
			h.respondError(c, apperr.Validation(fmt.Sprintf("file too large, maximum is %d MB", h.maxUploadBytes>>20)))
			return
		}

		path, err := services.SaveUpload(fileHeader, h.uploadDir)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.logger.Debug("upload staged", zap.String("file", fileHeader.Filename), zap.Int64("size", fileHeader.Size))

		req.Source = path
		req.Temporary = true
		req.OriginalName = fileHeader.Filename

	case errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart):
		url := strings.TrimSpace(c.PostForm("url"))
		if url == "" {
			h.respondError(c, apperr.Validation("an image file (imagen) or url is required"))
			return
		}
		// Clients may only point at remote images, never at server paths.
		lower := strings.ToLower(url)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			h.respondError(c, apperr.Validation("url must use http or https"))
			return
		}
		req.Source = url

	default:
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "could not read upload, the request may be too large", err))
		return
	}

	img, err := h.pipeline.Ingest(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "image uploaded", "image": img})
}

// ListImages returns image records, filtered by ?caida_id= and by a
// case-insensitive ?descripcion= substring.
func (h *Handler) ListImages(c *gin.Context) {
	images, err := h.pipeline.ListImages(c.Request.Context(), models.ImageFilter{
		EventID:     c.Query("caida_id"),
		Description: c.Query("descripcion"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"images": images, "total": len(images)})
}
