package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"studypad/backend/internal/store"
)

// CreateFolderPayload defines the expected JSON for creating a folder.
type CreateFolderPayload struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateFolder(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload CreateFolderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	courseID := c.Param("id")
	if !h.ownsCourse(c, userID, courseID) {
		return
	}
	folder, err := h.hierarchy.CreateFolder(c.Request.Context(), courseID, payload.Name)
	if err != nil {
		h.log.Errorw("folder creation failed", "courseId", courseID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create folder"})
		return
	}
	c.JSON(http.StatusCreated, folder)
}

func (h *Handler) ListFolders(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	if !h.ownsCourse(c, userID, courseID) {
		return
	}
	folders, err := h.store.ListFoldersByCourse(c.Request.Context(), courseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch folders"})
		return
	}
	c.JSON(http.StatusOK, folders)
}

// StreamFolders pushes wholesale folder snapshots over SSE until the client
// disconnects.
func (h *Handler) StreamFolders(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	if !h.ownsCourse(c, userID, courseID) {
		return
	}
	ch, err := h.hierarchy.WatchFolders(c.Request.Context(), courseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open folder stream"})
		return
	}
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("folders", snapshot)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// UpdateFolderPayload defines the expected JSON for renaming a folder.
type UpdateFolderPayload struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) RenameFolder(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload UpdateFolderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	folder, ok := h.ownedFolder(c, userID, c.Param("id"))
	if !ok {
		return
	}
	if err := h.hierarchy.RenameFolder(c.Request.Context(), folder.ID, payload.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update folder"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Folder updated successfully"})
}

func (h *Handler) DeleteFolder(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	folder, ok := h.ownedFolder(c, userID, c.Param("id"))
	if !ok {
		return
	}
	if err := h.hierarchy.DeleteFolder(c.Request.Context(), folder.ID, folder.CourseID); err != nil {
		h.log.Errorw("folder deletion failed", "folderId", folder.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete folder and its contents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Folder deleted successfully"})
}

func (h *Handler) ownsCourse(c *gin.Context, userID, courseID string) bool {
	course, err := h.store.GetCourse(c.Request.Context(), courseID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && course.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch course"})
		return false
	}
	return true
}

func (h *Handler) ownedFolder(c *gin.Context, userID, folderID string) (folder folderInfo, ok bool) {
	f, err := h.store.GetFolder(c.Request.Context(), folderID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && f.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found or you don't have permission"})
		return folderInfo{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch folder"})
		return folderInfo{}, false
	}
	return folderInfo{ID: f.ID, CourseID: f.CourseID}, true
}

type folderInfo struct {
	ID       string
	CourseID string
}
