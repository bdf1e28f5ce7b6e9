package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"caidasapi/internal/models"
	"caidasapi/internal/services"
)

type createEventRequest struct {
	Location string `json:"location" binding:"required"`
	Severity string `json:"severity" binding:"required,oneof=baja media alta"`
	Details  string `json:"details"`
	Category string `json:"category"`
}

// CreateEvent records a fall event.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	ev, err := h.events.Create(c.Request.Context(), services.EventInput{
		Category: req.Category,
		Severity: req.Severity,
		Location: req.Location,
		Details:  req.Details,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "event recorded", "event": ev})
}

// ListEvents returns events filtered by ?severidad=, ?ubicacion= and ?categoria=.
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.events.List(c.Request.Context(), models.EventFilter{
		Severity: c.Query("severidad"),
		Location: c.Query("ubicacion"),
		Category: c.Query("categoria"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// GetEvent returns one event with its images.
func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": ev})
}
