package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"office-queue-backend/internal/store"
)

// GetUsers handles GET /api/users.
func (h *Handler) GetUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

type userRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// PostUser handles POST /api/admin/users.
func (h *Handler) PostUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.CreateUser(c.Request.Context(), req.Code, req.Name); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusCreated)
}

type updateUserRequest struct {
	Name string `json:"name" binding:"required"`
}

// PutUser handles PUT /api/admin/users/:code.
func (h *Handler) PutUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.store.UpdateUser(c.Request.Context(), c.Param("code"), req.Name)
	if errors.Is(err, store.ErrUnknownUser) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user code"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteUser handles DELETE /api/admin/users/:code.
func (h *Handler) DeleteUser(c *gin.Context) {
	err := h.store.DeleteUser(c.Request.Context(), c.Param("code"))
	if errors.Is(err, store.ErrUnknownUser) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user code"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
