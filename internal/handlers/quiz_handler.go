package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studypad/backend/internal/quiz"
	"studypad/backend/internal/services"
	"studypad/backend/internal/store"
)

func (h *Handler) StartQuiz(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	note, ok := h.ownedNote(c, userID, c.Param("id"))
	if !ok {
		return
	}
	view, err := h.quiz.StartSession(c.Request.Context(), userID, note.ID)
	if errors.Is(err, services.ErrQuestionGeneration) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not generate quiz questions. Please try again."})
		return
	}
	if err != nil {
		h.log.Errorw("quiz start failed", "noteId", note.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start quiz"})
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetQuiz(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	view, err := h.quiz.GetSession(userID, c.Param("sessionId"))
	if errors.Is(err, quiz.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quiz session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quiz"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitAnswerPayload carries the selected answer index.
type SubmitAnswerPayload struct {
	SelectedAnswer *int `json:"selectedAnswer" binding:"required"`
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload SubmitAnswerPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.SelectedAnswer == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	result, err := h.quiz.SubmitAnswer(c.Request.Context(), userID, c.Param("sessionId"), *payload.SelectedAnswer)
	if errors.Is(err, quiz.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quiz session not found"})
		return
	}
	if errors.Is(err, quiz.ErrSessionComplete) {
		c.JSON(http.StatusConflict, gin.H{"error": "Quiz session is already complete"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit answer"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// EndQuiz abandons a session without grading the remaining questions.
func (h *Handler) EndQuiz(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.quiz.EndSession(userID, c.Param("sessionId")); errors.Is(err, quiz.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quiz session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quiz session ended"})
}

func (h *Handler) Chat(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var payload struct {
		Question string `json:"question" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	courseID := c.Param("id")
	if !h.ownsCourse(c, userID, courseID) {
		return
	}
	answer, err := h.chat.Ask(c.Request.Context(), userID, courseID, payload.Question)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}
	if err != nil {
		h.log.Errorw("chat failed", "courseId", courseID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "The assistant could not answer. Please try again."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
