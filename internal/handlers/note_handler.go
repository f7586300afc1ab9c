package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studypad/backend/internal/hierarchy"
	"studypad/backend/internal/models"
	"studypad/backend/internal/store"
)

// CreateNotePayload defines the expected JSON for creating a note. FolderID
// is empty for a direct note on the course.
type CreateNotePayload struct {
	CourseID string `json:"courseId" binding:"required"`
	FolderID string `json:"folderId"`
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
}

func (h *Handler) CreateNote(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload CreateNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	if !h.ownsCourse(c, userID, payload.CourseID) {
		return
	}
	note, err := h.hierarchy.CreateNote(c.Request.Context(), userID, payload.CourseID, payload.FolderID, payload.Title, payload.Content, nil)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err != nil {
		h.log.Errorw("note creation failed", "courseId", payload.CourseID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save note"})
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *Handler) ListDirectNotes(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	if !h.ownsCourse(c, userID, courseID) {
		return
	}
	notes, err := h.store.ListNotesByFileLocation(c.Request.Context(), hierarchy.FileLocation(courseID, ""))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notes"})
		return
	}
	c.JSON(http.StatusOK, notes)
}

// StreamDirectNotes pushes wholesale direct-note snapshots over SSE.
func (h *Handler) StreamDirectNotes(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	if !h.ownsCourse(c, userID, courseID) {
		return
	}
	ch, err := h.hierarchy.WatchDirectNotes(c.Request.Context(), courseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open note stream"})
		return
	}
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("notes", snapshot)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) ListFolderNotes(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	folder, ok := h.ownedFolder(c, userID, c.Param("id"))
	if !ok {
		return
	}
	notes, err := h.store.ListNotesByFileLocation(c.Request.Context(), hierarchy.FileLocation(folder.CourseID, folder.ID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notes"})
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *Handler) RecentNotes(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	notes, err := h.hierarchy.MostRecentlyUpdatedNotes(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notes"})
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *Handler) GetNote(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	note, ok := h.ownedNote(c, userID, c.Param("id"))
	if !ok {
		return
	}
	if err := h.hierarchy.TouchNoteAccess(c.Request.Context(), note.ID); err != nil {
		h.log.Debugw("note access touch failed", "noteId", note.ID, "error", err)
	}
	c.JSON(http.StatusOK, note)
}

// UpdateNotePayload defines the expected JSON for editing a note's content.
type UpdateNotePayload struct {
	Content string `json:"content"`
}

func (h *Handler) UpdateNote(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload UpdateNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	note, ok := h.ownedNote(c, userID, c.Param("id"))
	if !ok {
		return
	}
	updated, err := h.hierarchy.UpdateNoteContent(c.Request.Context(), note.ID, payload.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update note"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// AttachImage accepts a multipart image, stores it, and parses it into the
// note's content.
func (h *Handler) AttachImage(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	note, ok := h.ownedNote(c, userID, c.Param("id"))
	if !ok {
		return
	}
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read image"})
		return
	}
	updated, err := h.hierarchy.AttachImage(c.Request.Context(), note.ID, data)
	if err != nil {
		h.log.Errorw("image attach failed", "noteId", note.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GetNoteImage serves a stored attachment back to the client.
func (h *Handler) GetNoteImage(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	note, ok := h.ownedNote(c, userID, c.Param("id"))
	if !ok {
		return
	}
	data, err := h.hierarchy.NoteImage(c.Request.Context(), note.ID, c.Param("image"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	if err != nil {
		h.log.Errorw("image download failed", "noteId", note.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch image"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *Handler) DeleteNote(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	note, ok := h.ownedNote(c, userID, c.Param("id"))
	if !ok {
		return
	}
	// fileLocation encodes the parent: "{courseID}/{folderID}" with an empty
	// folder segment for direct notes.
	folderID := ""
	if idx := len(note.CourseID) + 1; idx < len(note.FileLocation) {
		folderID = note.FileLocation[idx:]
	}
	if err := h.hierarchy.DeleteNote(c.Request.Context(), note.ID, folderID); err != nil {
		h.log.Errorw("note deletion failed", "noteId", note.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete note"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted successfully"})
}

func (h *Handler) ownedNote(c *gin.Context, userID, noteID string) (*models.Note, bool) {
	note, err := h.store.GetNote(c.Request.Context(), noteID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && note.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found or you don't have permission"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch note"})
		return nil, false
	}
	return note, true
}
