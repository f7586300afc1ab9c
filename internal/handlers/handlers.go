// Package handlers wires the engines to the HTTP surface.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studypad/backend/internal/chat"
	"studypad/backend/internal/hierarchy"
	"studypad/backend/internal/middleware"
	"studypad/backend/internal/notify"
	"studypad/backend/internal/quiz"
	"studypad/backend/internal/store"
)

type Handler struct {
	store     store.Store
	hierarchy *hierarchy.Engine
	quiz      *quiz.Engine
	chat      *chat.Service
	notify    *notify.Service
	log       *zap.SugaredLogger
}

func New(st store.Store, h *hierarchy.Engine, q *quiz.Engine, c *chat.Service, n *notify.Service, log *zap.SugaredLogger) *Handler {
	return &Handler{
		store:     st,
		hierarchy: h,
		quiz:      q,
		chat:      c,
		notify:    n,
		log:       log.With("component", "handlers"),
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// userID pulls the authenticated user from the request, aborting with 401
// when the middleware did not run or rejected the token.
func (h *Handler) userID(c *gin.Context) (string, bool) {
	id := middleware.ForContext(c.Request.Context())
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return id, true
}

// Register mounts every route onto the given (already authenticated) group.
func (h *Handler) Register(api gin.IRoutes) {
	// Courses
	api.POST("/courses", h.CreateCourse)
	api.GET("/courses", h.ListCourses)
	api.GET("/courses/:id", h.GetCourse)
	api.DELETE("/courses/:id", h.DeleteCourse)

	// Folders
	api.POST("/courses/:id/folders", h.CreateFolder)
	api.GET("/courses/:id/folders", h.ListFolders)
	api.GET("/courses/:id/folders/stream", h.StreamFolders)
	api.PUT("/folders/:id", h.RenameFolder)
	api.DELETE("/folders/:id", h.DeleteFolder)

	// Notes
	api.POST("/notes", h.CreateNote)
	api.GET("/courses/:id/notes", h.ListDirectNotes)
	api.GET("/courses/:id/notes/stream", h.StreamDirectNotes)
	api.GET("/folders/:id/notes", h.ListFolderNotes)
	api.GET("/notes/recent", h.RecentNotes)
	api.GET("/notes/:id", h.GetNote)
	api.PUT("/notes/:id", h.UpdateNote)
	api.POST("/notes/:id/images", h.AttachImage)
	api.GET("/notes/:id/images/:image", h.GetNoteImage)
	api.DELETE("/notes/:id", h.DeleteNote)

	// Quiz
	api.POST("/notes/:id/quiz", h.StartQuiz)
	api.GET("/quiz/:sessionId", h.GetQuiz)
	api.POST("/quiz/:sessionId/answers", h.SubmitAnswer)
	api.DELETE("/quiz/:sessionId", h.EndQuiz)

	// Chat
	api.POST("/courses/:id/chat", h.Chat)

	// User
	api.GET("/me", h.GetMe)
	api.PUT("/me/settings", h.UpdateSettings)
	api.GET("/me/notifications", h.ListNotifications)
	api.DELETE("/notifications/:id", h.DismissNotification)

	// Search
	api.GET("/search", h.Search)
}
