package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"office-queue-backend/internal/dyncfg"
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// PostLogin handles POST /api/admin/login.
func (h *Handler) PostLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.admin.Password == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.admin.Password)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	token := h.sessions.open()
	c.JSON(http.StatusOK, gin.H{
		"token":           token,
		"timeout_minutes": h.admin.SessionTimeoutMinutes,
	})
}

// PostLogout handles POST /api/admin/logout.
func (h *Handler) PostLogout(c *gin.Context) {
	h.sessions.close(c.GetHeader(sessionHeader))
	c.Status(http.StatusNoContent)
}

// GetSession handles GET /api/admin/session: lets the frontend probe
// whether its token is still valid.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// PostReset handles POST /api/admin/reset: clears the queue and forces
// the office back to free.
func (h *Handler) PostReset(c *gin.Context) {
	if err := h.engine.ForceReset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "system reset"})
}

// PostClearQueue handles POST /api/admin/clear_queue: drops waiting
// reservations without touching occupancy.
func (h *Handler) PostClearQueue(c *gin.Context) {
	cleared, err := h.engine.ClearQueue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// PostForceUnlock handles POST /api/admin/force_unlock: frees the office
// but keeps the waiting queue, so the next tick calls the next person.
func (h *Handler) PostForceUnlock(c *gin.Context) {
	if err := h.engine.ForceUnlock(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "office unlocked"})
}

// GetConfig handles GET /api/admin/config: every runtime tunable with its
// effective value.
func (h *Handler) GetConfig(c *gin.Context) {
	values, err := h.cfg.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, values)
}

type configUpdateRequest map[string]string

// PutConfig handles PUT /api/admin/config: applies a batch of tunable
// overrides. Validation is all-or-nothing; a single bad value rejects the
// whole batch before anything is written.
func (h *Handler) PutConfig(c *gin.Context) {
	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range req {
		if err := dyncfg.Validate(key, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	for key, value := range req {
		if err := h.cfg.Set(c.Request.Context(), key, value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(req)})
}

// DeleteConfig handles DELETE /api/admin/config: drops every override and
// falls back to the compiled defaults.
func (h *Handler) DeleteConfig(c *gin.Context) {
	if err := h.store.ResetConfig(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.cfg.Invalidate()
	if err := h.cfg.SeedDefaults(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "configuration reset to defaults"})
}

// GetStats handles GET /api/admin/stats?date=YYYY-MM-DD, defaulting to
// today.
func (h *Handler) GetStats(c *gin.Context) {
	day := time.Now()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	stats, err := h.store.DailyStats(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
