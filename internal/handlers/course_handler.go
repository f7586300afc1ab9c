package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studypad/backend/internal/store"
)

// CreateCoursePayload defines the expected JSON for creating a course.
type CreateCoursePayload struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateCourse(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload CreateCoursePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	course, err := h.hierarchy.CreateCourse(c.Request.Context(), userID, payload.Name)
	if err != nil {
		h.log.Errorw("course creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create course"})
		return
	}
	c.JSON(http.StatusCreated, course)
}

func (h *Handler) ListCourses(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	courses, err := h.store.ListCoursesByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch courses"})
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *Handler) GetCourse(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	course, err := h.store.GetCourse(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && course.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch course"})
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *Handler) DeleteCourse(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	course, err := h.store.GetCourse(c.Request.Context(), courseID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && course.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch course"})
		return
	}
	if err := h.hierarchy.DeleteCourse(c.Request.Context(), courseID); err != nil {
		h.log.Errorw("course deletion failed", "courseId", courseID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete course"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Course deleted successfully"})
}
