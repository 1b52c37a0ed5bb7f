package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"office-queue-backend/internal/store"
)

type bookingRequest struct {
	UserCode string `json:"user_code" binding:"required"`
}

// PostReservation handles POST /api/reservations: book a place in the
// queue. Booking errors map to stable HTTP statuses so the frontend can
// distinguish them.
func (h *Handler) PostReservation(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.RequestBooking(c.Request.Context(), req.UserCode)
	switch {
	case errors.Is(err, store.ErrUnknownUser):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user code"})
	case errors.Is(err, store.ErrDuplicateActiveReservation):
		c.JSON(http.StatusConflict, gin.H{"error": "user already has an active reservation"})
	case errors.Is(err, store.ErrQueueFull):
		c.JSON(http.StatusConflict, gin.H{"error": "queue is full"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, result)
	}
}

// GetQueue handles GET /api/queue: the waiting list with positions and
// wait estimates, same shape as the status snapshot's queue field.
func (h *Handler) GetQueue(c *gin.Context) {
	snapshot := h.engine.GetStatusSnapshot(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"queue":                  snapshot.Queue,
		"queue_size":             snapshot.QueueSize,
		"estimated_wait_minutes": snapshot.EstimatedWaitMinutes,
	})
}
