// Package notify writes notification scheduling metadata; delivery is owned
// by an external push service.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studypad/backend/internal/models"
	"studypad/backend/internal/store"
)

const (
	TypeQuizRetry     = "quizRetry"
	TypeStudyReminder = "studyReminder"
)

type Service struct {
	store store.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(st store.Store, log *zap.SugaredLogger) *Service {
	return &Service{
		store: st,
		log:   log.With("component", "notify"),
		now:   time.Now,
	}
}

// ScheduleQuizRetry books a reminder for the day after a failed quiz.
func (s *Service) ScheduleQuizRetry(ctx context.Context, userID, noteID, quizID string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Settings.NotificationsEnabled {
		return nil
	}
	n := &models.Notification{
		ID:          uuid.NewString(),
		Type:        TypeQuizRetry,
		Message:     "You have a quiz to retake. A quick retry keeps the material fresh.",
		QuizID:      quizID,
		ScheduledAt: s.now().Add(24 * time.Hour),
		UserID:      userID,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return err
	}
	if err := s.store.AddNotificationToUser(ctx, userID, n.ID); err != nil {
		s.log.Warnw("notification created but user list update failed", "notificationId", n.ID, "error", err)
	}
	return nil
}

// ScheduleStudyReminder books the next periodic reminder according to the
// user's notification frequency setting.
func (s *Service) ScheduleStudyReminder(ctx context.Context, userID string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Settings.NotificationsEnabled {
		return nil
	}

	var interval time.Duration
	switch user.Settings.NotificationFrequency {
	case "weekly":
		interval = 7 * 24 * time.Hour
	case "daily", "":
		interval = 24 * time.Hour
	default:
		return fmt.Errorf("unknown notification frequency %q", user.Settings.NotificationFrequency)
	}

	n := &models.Notification{
		ID:          uuid.NewString(),
		Type:        TypeStudyReminder,
		Message:     "Time to review your notes.",
		ScheduledAt: s.now().Add(interval),
		UserID:      userID,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return err
	}
	if err := s.store.AddNotificationToUser(ctx, userID, n.ID); err != nil {
		s.log.Warnw("notification created but user list update failed", "notificationId", n.ID, "error", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ListNotificationsByUser(ctx, userID)
}

// Dismiss deletes a notification and its entry in the user's list. A
// notification belonging to another user reads as not found.
func (s *Service) Dismiss(ctx context.Context, userID, notificationID string) error {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return store.ErrNotFound
	}
	if err := s.store.DeleteNotification(ctx, notificationID); err != nil {
		return err
	}
	if err := s.store.RemoveNotificationFromUser(ctx, userID, notificationID); err != nil {
		s.log.Warnw("notification deleted but user list update failed", "notificationId", notificationID, "error", err)
	}
	return nil
}
