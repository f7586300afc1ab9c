package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studypad/backend/internal/auth/token"
	"studypad/backend/internal/middleware"
	"studypad/backend/internal/models"
	"studypad/backend/internal/store"
)

// Handler bootstraps user documents and issues API session tokens for
// clients that prefer not to attach a Firebase ID token on every call.
type Handler struct {
	store store.Store
	log   *zap.SugaredLogger
}

func NewHandler(st store.Store, log *zap.SugaredLogger) *Handler {
	return &Handler{store: st, log: log.With("component", "auth")}
}

type SessionPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session runs behind the Firebase middleware: it finds or creates the user
// document keyed by the verified Firebase UID and returns an API JWT.
func (h *Handler) Session(c *gin.Context) {
	userID := middleware.ForContext(c.Request.Context())
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var payload SessionPayload
	_ = c.ShouldBindJSON(&payload) // optional profile fields

	user, err := h.store.GetUser(c.Request.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		user = &models.User{
			ID:            userID,
			Name:          payload.Name,
			Email:         payload.Email,
			Notifications: []string{},
			Courses:       []string{},
			Settings:      models.DefaultSettings(),
			Quizzes:       []models.QuizRecord{},
			CreatedAt:     time.Now(),
		}
		if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
			h.log.Errorw("user bootstrap failed", "userId", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	apiToken, err := token.Generate(user.ID, user.Email)
	if err != nil {
		h.log.Errorw("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": apiToken, "user": user})
}
