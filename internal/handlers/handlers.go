// Package handlers translates HTTP requests into calls on the services and
// renders their results as JSON.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caidasapi/internal/services"
)

// Handler carries the services every route handler needs.
type Handler struct {
	credentials    *services.Credentials
	events         *services.Events
	pipeline       *services.Pipeline
	status         *services.Status
	logger         *zap.Logger
	uploadDir      string
	maxUploadBytes int64
}

// Deps lists what New needs.
type Deps struct {
	Credentials *services.Credentials
	Events      *services.Events
	Pipeline    *services.Pipeline
	Status      *services.Status
	Logger      *zap.Logger
	// UploadDir stages multipart uploads until the pipeline removes them.
	UploadDir   string
	MaxUploadMB int64
}

// New builds the handler set. MaxUploadMB defaults to 10 when unset.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxMB := d.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	return &Handler{
		credentials:    d.Credentials,
		events:         d.Events,
		pipeline:       d.Pipeline,
		status:         d.Status,
		logger:         logger,
		uploadDir:      d.UploadDir,
		maxUploadBytes: maxMB << 20,
	}
}

// Index lists the available endpoints.
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Fall monitoring API",
		"endpoints": gin.H{
			"registro":     "/registro (POST)",
			"login":        "/login (POST)",
			"logout":       "/logout (POST)",
			"perfil":       "/perfil (GET/PUT)",
			"imagenes":     "/imagenes (GET/POST)",
			"caidas":       "/caidas (GET/POST), /caidas/:id (GET)",
			"estadisticas": "/estadisticas (GET)",
			"metrics":      "/metrics (GET)",
		},
	})
}

// Test reports that the server is up and the database answers.
func (h *Handler) Test(c *gin.Context) {
	if err := h.status.Ping(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "server is running", "database": "ok"})
}

// Stats returns the number of users, images and falls stored.
func (h *Handler) Stats(c *gin.Context) {
	totals, err := h.status.Totals(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}
