package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.GetStatusSnapshot(c.Request.Context()))
}

// StreamEvents handles GET /api/events: a server-sent-event stream that
// pushes the status snapshot on every tick. The connection ends when the
// client disconnects.
func (h *Handler) StreamEvents(c *gin.Context) {
	updates, cancel := h.hub.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("status", string(data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// PressButton handles POST /api/button: the physical direct-access button
// exposed to the kiosk frontend. The press is latched and resolved on the
// next tick, so the response only acknowledges receipt.
func (h *Handler) PressButton(c *gin.Context) {
	h.button.Press()
	h.engine.Kick()
	c.JSON(http.StatusAccepted, gin.H{"message": "button press registered"})
}
