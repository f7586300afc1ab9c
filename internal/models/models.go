package models

import "time"

// RecentNoteSummary is a cached projection of the most recently created note
// in a folder. It is refreshed lazily and is never a source of truth.
type RecentNoteSummary struct {
	NoteID    string    `bson:"noteId" json:"noteId"`
	Title     string    `bson:"title" json:"title"`
	Summary   string    `bson:"summary" json:"summary"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type Course struct {
	ID           string   `bson:"_id" json:"id"`
	UserID       string   `bson:"userId" json:"userId"`
	CourseName   string   `bson:"courseName" json:"courseName"`
	Folders      []string `bson:"folders" json:"folders"`
	Notes        []string `bson:"notes" json:"notes"`
	FileLocation string   `bson:"fileLocation" json:"fileLocation"`
}

type Folder struct {
	ID                string             `bson:"_id" json:"id"`
	UserID            string             `bson:"userId" json:"userId"`
	FolderName        string             `bson:"folderName" json:"folderName"`
	CourseID          string             `bson:"courseId" json:"courseId"`
	Notes             []string           `bson:"notes" json:"notes"`
	FileLocation      string             `bson:"fileLocation" json:"fileLocation"`
	RecentNoteSummary *RecentNoteSummary `bson:"recentNoteSummary,omitempty" json:"recentNoteSummary,omitempty"`
}

// Note.FileLocation is "{courseID}/{folderID}", with an empty folder segment
// for notes attached directly to a course.
type Note struct {
	ID           string     `bson:"_id" json:"id"`
	UserID       string     `bson:"userId" json:"userId"`
	Title        string     `bson:"title" json:"title"`
	Summary      string     `bson:"summary" json:"summary"`
	Content      string     `bson:"content" json:"content"`
	Images       []string   `bson:"images" json:"images"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	CourseID     string     `bson:"courseId" json:"courseId"`
	FileLocation string     `bson:"fileLocation" json:"fileLocation"`
	LastAccessed *time.Time `bson:"lastAccessed,omitempty" json:"lastAccessed,omitempty"`
	LastUpdated  *time.Time `bson:"lastUpdated,omitempty" json:"lastUpdated,omitempty"`
}

// MCQuestion is persisted only while it sits in a user's incorrect-set for a
// note; questions answered correctly on first sight are never stored.
type MCQuestion struct {
	ID               string     `bson:"_id" json:"id"`
	Question         string     `bson:"question" json:"question"`
	PotentialAnswers []string   `bson:"potentialAnswers" json:"potentialAnswers"`
	CorrectAnswer    int        `bson:"correctAnswer" json:"correctAnswer"`
	UserID           string     `bson:"userId" json:"userId"`
	NoteID           string     `bson:"noteId" json:"noteId"`
	AttemptCount     int        `bson:"attemptCount" json:"attemptCount"`
	LastAttemptDate  *time.Time `bson:"lastAttemptDate,omitempty" json:"lastAttemptDate,omitempty"`
}

type Streak struct {
	CurrentStreakLength int        `bson:"currentStreakLength" json:"currentStreakLength"`
	LastQuizCompletedAt *time.Time `bson:"lastQuizCompletedAt,omitempty" json:"lastQuizCompletedAt,omitempty"`
}

type Settings struct {
	NotificationsEnabled  bool   `bson:"notificationsEnabled" json:"notificationsEnabled"`
	NotificationFrequency string `bson:"notificationFrequency" json:"notificationFrequency"`
	NotesOnlyQuizScope    bool   `bson:"notesOnlyQuizScope" json:"notesOnlyQuizScope"`
	NotesOnlyChatScope    bool   `bson:"notesOnlyChatScope" json:"notesOnlyChatScope"`
}

type QuizRecord struct {
	QuizID       string     `bson:"quizId" json:"quizId"`
	NoteID       string     `bson:"noteId" json:"noteId"`
	Questions    []string   `bson:"questions" json:"questions"`
	Passed       bool       `bson:"passed" json:"passed"`
	Reattempting bool       `bson:"reattempting" json:"reattempting"`
	CompletedAt  *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

type User struct {
	ID            string       `bson:"_id" json:"id"`
	Name          string       `bson:"name" json:"name"`
	Email         string       `bson:"email" json:"email"`
	Notifications []string     `bson:"notifications" json:"notifications"`
	Streak        Streak       `bson:"streak" json:"streak"`
	Courses       []string     `bson:"courses" json:"courses"`
	Settings      Settings     `bson:"settings" json:"settings"`
	Quizzes       []QuizRecord `bson:"quizzes" json:"quizzes"`
	CreatedAt     time.Time    `bson:"createdAt" json:"createdAt"`
}

// Notification carries scheduling metadata only; delivery is handled by an
// external push service.
type Notification struct {
	ID          string    `bson:"_id" json:"id"`
	Type        string    `bson:"type" json:"type"`
	Message     string    `bson:"message" json:"message"`
	QuizID      string    `bson:"quizId,omitempty" json:"quizId,omitempty"`
	ScheduledAt time.Time `bson:"scheduledAt" json:"scheduledAt"`
	UserID      string    `bson:"userId" json:"userId"`
}

// DefaultSettings are applied when a user document is first created.
func DefaultSettings() Settings {
	return Settings{
		NotificationsEnabled:  true,
		NotificationFrequency: "daily",
		NotesOnlyQuizScope:    true,
		NotesOnlyChatScope:    true,
	}
}
