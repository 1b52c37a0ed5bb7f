package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Simulation endpoints inject sensor readings when no GPIO hardware is
// present. They are only registered when simulation mode is on.

type simSensorsRequest struct {
	Movement   *bool    `json:"movement"`
	DistanceCM *float64 `json:"distance_cm"`
}

// PostSimSensors handles POST /api/sim/sensors.
func (h *Handler) PostSimSensors(c *gin.Context) {
	var req simSensorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Movement != nil {
		h.simMotion.SetMovement(*req.Movement)
	}
	if req.DistanceCM != nil {
		h.simDistance.SetDistance(*req.DistanceCM)
	}
	c.JSON(http.StatusOK, gin.H{"message": "sensor readings injected"})
}
