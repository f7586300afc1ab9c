// Package store defines the persistence contract for the application.
package store

import (
	"context"
	"errors"

	"studypad/backend/internal/models"
)

var (
	// ErrNotFound is returned when a referenced ID has no backing document.
	ErrNotFound = errors.New("not found")
)

// Store is the document-store abstraction the engines are written against.
// Implementations: mongostore (production), memstore (tests).
//
// List methods return empty slices, not errors, when nothing matches.
// Watch methods push wholesale snapshots of the matching documents: one on
// subscription and one after every observed change. Snapshots for a single
// watch arrive in order; there is no ordering guarantee across collections.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUserSettings(ctx context.Context, userID string, s models.Settings) error
	UpdateUserStreak(ctx context.Context, userID string, st models.Streak) error
	AppendQuizRecord(ctx context.Context, userID string, rec models.QuizRecord) error
	AddCourseToUser(ctx context.Context, userID, courseID string) error
	RemoveCourseFromUser(ctx context.Context, userID, courseID string) error
	AddNotificationToUser(ctx context.Context, userID, notificationID string) error
	RemoveNotificationFromUser(ctx context.Context, userID, notificationID string) error

	// Courses
	CreateCourse(ctx context.Context, c *models.Course) error
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCoursesByUser(ctx context.Context, userID string) ([]models.Course, error)
	AddFolderToCourse(ctx context.Context, courseID, folderID string) error
	RemoveFolderFromCourse(ctx context.Context, courseID, folderID string) error
	AddNoteToCourse(ctx context.Context, courseID, noteID string) error
	RemoveNoteFromCourse(ctx context.Context, courseID, noteID string) error
	DeleteCourse(ctx context.Context, id string) error

	// Folders
	CreateFolder(ctx context.Context, f *models.Folder) error
	GetFolder(ctx context.Context, id string) (*models.Folder, error)
	ListFoldersByCourse(ctx context.Context, courseID string) ([]models.Folder, error)
	RenameFolder(ctx context.Context, id, name string) error
	AddNoteToFolder(ctx context.Context, folderID, noteID string) error
	RemoveNoteFromFolder(ctx context.Context, folderID, noteID string) error
	SetRecentNoteSummary(ctx context.Context, folderID string, s models.RecentNoteSummary) error
	DeleteFolder(ctx context.Context, id string) error

	// Notes
	CreateNote(ctx context.Context, n *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotesByFileLocation(ctx context.Context, fileLocation string) ([]models.Note, error)
	ListNotesByCourse(ctx context.Context, courseID string) ([]models.Note, error)
	ListNotesByUser(ctx context.Context, userID string) ([]models.Note, error)
	UpdateNote(ctx context.Context, n *models.Note) error
	TouchNoteAccess(ctx context.Context, id string) error
	SearchFoldersByName(ctx context.Context, userID, query string) ([]models.Folder, error)
	SearchNotesByTitle(ctx context.Context, userID, query string) ([]models.Note, error)
	DeleteNote(ctx context.Context, id string) error

	// Incorrect-set: the persisted mistake-tracker per (user, note). A
	// question enters on a wrong answer and leaves only on a correct one.
	UpsertIncorrectQuestion(ctx context.Context, q *models.MCQuestion) error
	RemoveIncorrectQuestion(ctx context.Context, userID, noteID, question string) error
	ListIncorrectQuestions(ctx context.Context, userID, noteID string) ([]models.MCQuestion, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error)
	DeleteNotification(ctx context.Context, id string) error

	// Live subscriptions
	WatchFolders(ctx context.Context, courseID string) (<-chan []models.Folder, error)
	WatchDirectNotes(ctx context.Context, courseID string) (<-chan []models.Note, error)

	Close(ctx context.Context) error
}
