package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studypad/backend/internal/models"
	"studypad/backend/internal/store"
)

func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	user, err := h.store.GetUser(c.Request.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload models.Settings
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	if err := h.store.UpdateUserSettings(c.Request.Context(), userID, payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	notifications, err := h.notify.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) DismissNotification(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	err := h.notify.Dismiss(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dismiss notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification dismissed"})
}

// Search returns folders and notes matching a name query.
func (h *Handler) Search(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	results, err := h.hierarchy.Search(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}
	c.JSON(http.StatusOK, results)
}
