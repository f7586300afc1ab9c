// Package chat answers questions against a course's notes, keeping a rolling
// per-(user, course) conversation history.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"studypad/backend/internal/services"
	"studypad/backend/internal/store"
)

// History stores and returns the recent conversation for a key, oldest first.
type History interface {
	Load(ctx context.Context, key string) ([]services.ChatMessage, error)
	Append(ctx context.Context, key string, msgs ...services.ChatMessage) error
}

type Service struct {
	store   store.Store
	ai      services.AIClient
	history History
	log     *zap.SugaredLogger
}

func NewService(st store.Store, ai services.AIClient, history History, log *zap.SugaredLogger) *Service {
	return &Service{
		store:   st,
		ai:      ai,
		history: history,
		log:     log.With("component", "chat"),
	}
}

func historyKey(userID, courseID string) string {
	return "chat:" + userID + ":" + courseID
}

// Ask builds a system prompt from the course's notes, restricted to note
// content when the user's notesOnlyChatScope setting is on, and sends the
// question with the stored history.
func (s *Service) Ask(ctx context.Context, userID, courseID, question string) (string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	notes, err := s.store.ListNotesByCourse(ctx, courseID)
	if err != nil {
		return "", err
	}

	var prompt strings.Builder
	prompt.WriteString("You are a study assistant for the course \"")
	prompt.WriteString(course.CourseName)
	prompt.WriteString("\".\n")
	if user.Settings.NotesOnlyChatScope {
		prompt.WriteString("Answer strictly from the notes below. If the notes do not cover the question, say so.\n\n")
	} else {
		prompt.WriteString("Prefer the notes below, supplementing with general knowledge where they fall short.\n\n")
	}
	for _, note := range notes {
		fmt.Fprintf(&prompt, "--- %s (%s) ---\n%s\n\n", note.Title, note.CreatedAt.Format(time.RFC1123), note.Content)
	}

	key := historyKey(userID, courseID)
	history, err := s.history.Load(ctx, key)
	if err != nil {
		s.log.Warnw("chat history load failed, continuing without", "error", err)
		history = nil
	}

	answer, err := s.ai.Chat(ctx, prompt.String(), history, question)
	if err != nil {
		return "", err
	}

	if err := s.history.Append(ctx, key,
		services.ChatMessage{Role: "user", Content: question},
		services.ChatMessage{Role: "assistant", Content: answer},
	); err != nil {
		s.log.Warnw("chat history append failed", "error", err)
	}
	return answer, nil
}
