// Package memstore is an in-memory store.Store used by tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"studypad/backend/internal/models"
	"studypad/backend/internal/store"
)

type folderWatcher struct {
	courseID string
	ch       chan []models.Folder
	done     <-chan struct{}
}

type noteWatcher struct {
	courseID string
	ch       chan []models.Note
	done     <-chan struct{}
}

type MemStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	courses       map[string]models.Course
	folders       map[string]models.Folder
	notes         map[string]models.Note
	questions     map[string]models.MCQuestion
	notifications map[string]models.Notification

	folderWatchers []*folderWatcher
	noteWatchers   []*noteWatcher
}

func New() *MemStore {
	return &MemStore{
		users:         make(map[string]models.User),
		courses:       make(map[string]models.Course),
		folders:       make(map[string]models.Folder),
		notes:         make(map[string]models.Note),
		questions:     make(map[string]models.MCQuestion),
		notifications: make(map[string]models.Notification),
	}
}

// --- Users ---

func (s *MemStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *MemStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *MemStore) UpdateUserSettings(ctx context.Context, userID string, set models.Settings) error {
	return s.mutateUser(userID, func(u *models.User) { u.Settings = set })
}

func (s *MemStore) UpdateUserStreak(ctx context.Context, userID string, st models.Streak) error {
	return s.mutateUser(userID, func(u *models.User) { u.Streak = st })
}

func (s *MemStore) AppendQuizRecord(ctx context.Context, userID string, rec models.QuizRecord) error {
	return s.mutateUser(userID, func(u *models.User) { u.Quizzes = append(u.Quizzes, rec) })
}

func (s *MemStore) AddCourseToUser(ctx context.Context, userID, courseID string) error {
	return s.mutateUser(userID, func(u *models.User) { u.Courses = addToSet(u.Courses, courseID) })
}

func (s *MemStore) RemoveCourseFromUser(ctx context.Context, userID, courseID string) error {
	return s.mutateUser(userID, func(u *models.User) { u.Courses = removeFromList(u.Courses, courseID) })
}

func (s *MemStore) AddNotificationToUser(ctx context.Context, userID, notificationID string) error {
	return s.mutateUser(userID, func(u *models.User) { u.Notifications = addToSet(u.Notifications, notificationID) })
}

func (s *MemStore) RemoveNotificationFromUser(ctx context.Context, userID, notificationID string) error {
	return s.mutateUser(userID, func(u *models.User) { u.Notifications = removeFromList(u.Notifications, notificationID) })
}

// --- Courses ---

func (s *MemStore) CreateCourse(ctx context.Context, c *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = *c
	return nil
}

func (s *MemStore) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *MemStore) ListCoursesByUser(ctx context.Context, userID string) ([]models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Course, 0)
	for _, c := range s.courses {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) AddFolderToCourse(ctx context.Context, courseID, folderID string) error {
	return s.mutateCourse(courseID, func(c *models.Course) { c.Folders = addToSet(c.Folders, folderID) })
}

func (s *MemStore) RemoveFolderFromCourse(ctx context.Context, courseID, folderID string) error {
	return s.mutateCourse(courseID, func(c *models.Course) { c.Folders = removeFromList(c.Folders, folderID) })
}

func (s *MemStore) AddNoteToCourse(ctx context.Context, courseID, noteID string) error {
	return s.mutateCourse(courseID, func(c *models.Course) { c.Notes = addToSet(c.Notes, noteID) })
}

func (s *MemStore) RemoveNoteFromCourse(ctx context.Context, courseID, noteID string) error {
	return s.mutateCourse(courseID, func(c *models.Course) { c.Notes = removeFromList(c.Notes, noteID) })
}

func (s *MemStore) DeleteCourse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.courses, id)
	return nil
}

// --- Folders ---

func (s *MemStore) CreateFolder(ctx context.Context, f *models.Folder) error {
	s.mu.Lock()
	s.folders[f.ID] = *f
	s.mu.Unlock()
	s.notifyFolderWatchers(f.CourseID)
	return nil
}

func (s *MemStore) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s *MemStore) ListFoldersByCourse(ctx context.Context, courseID string) ([]models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.foldersByCourseLocked(courseID), nil
}

func (s *MemStore) RenameFolder(ctx context.Context, id, name string) error {
	return s.mutateFolder(id, func(f *models.Folder) { f.FolderName = name })
}

func (s *MemStore) AddNoteToFolder(ctx context.Context, folderID, noteID string) error {
	return s.mutateFolder(folderID, func(f *models.Folder) { f.Notes = addToSet(f.Notes, noteID) })
}

func (s *MemStore) RemoveNoteFromFolder(ctx context.Context, folderID, noteID string) error {
	return s.mutateFolder(folderID, func(f *models.Folder) { f.Notes = removeFromList(f.Notes, noteID) })
}

func (s *MemStore) SetRecentNoteSummary(ctx context.Context, folderID string, sum models.RecentNoteSummary) error {
	return s.mutateFolder(folderID, func(f *models.Folder) { f.RecentNoteSummary = &sum })
}

func (s *MemStore) DeleteFolder(ctx context.Context, id string) error {
	s.mu.Lock()
	f, ok := s.folders[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.folders, id)
	s.mu.Unlock()
	s.notifyFolderWatchers(f.CourseID)
	return nil
}

// --- Notes ---

func (s *MemStore) CreateNote(ctx context.Context, n *models.Note) error {
	s.mu.Lock()
	s.notes[n.ID] = *n
	s.mu.Unlock()
	s.notifyNoteWatchers(n.CourseID)
	return nil
}

func (s *MemStore) GetNote(ctx context.Context, id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &n, nil
}

func (s *MemStore) ListNotesByFileLocation(ctx context.Context, fileLocation string) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Note, 0)
	for _, n := range s.notes {
		if n.FileLocation == fileLocation {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListNotesByCourse(ctx context.Context, courseID string) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Note, 0)
	for _, n := range s.notes {
		if n.CourseID == courseID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListNotesByUser(ctx context.Context, userID string) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Note, 0)
	for _, n := range s.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) UpdateNote(ctx context.Context, n *models.Note) error {
	s.mu.Lock()
	if _, ok := s.notes[n.ID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.notes[n.ID] = *n
	s.mu.Unlock()
	s.notifyNoteWatchers(n.CourseID)
	return nil
}

func (s *MemStore) TouchNoteAccess(ctx context.Context, id string) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return store.ErrNotFound
	}
	n.LastAccessed = &now
	s.notes[id] = n
	return nil
}

func (s *MemStore) SearchFoldersByName(ctx context.Context, userID, query string) ([]models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var out []models.Folder
	for _, f := range s.folders {
		if f.UserID == userID && strings.Contains(strings.ToLower(f.FolderName), q) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemStore) SearchNotesByTitle(ctx context.Context, userID, query string) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var out []models.Note
	for _, n := range s.notes {
		if n.UserID == userID && strings.Contains(strings.ToLower(n.Title), q) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *MemStore) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	n, ok := s.notes[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.notes, id)
	s.mu.Unlock()
	s.notifyNoteWatchers(n.CourseID)
	return nil
}

// --- Incorrect-set ---

func incorrectKey(userID, noteID, question string) string {
	return userID + "\x00" + noteID + "\x00" + question
}

func (s *MemStore) UpsertIncorrectQuestion(ctx context.Context, q *models.MCQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := incorrectKey(q.UserID, q.NoteID, q.Question)
	if existing, ok := s.questions[key]; ok {
		q.ID = existing.ID
	}
	s.questions[key] = *q
	return nil
}

func (s *MemStore) RemoveIncorrectQuestion(ctx context.Context, userID, noteID, question string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.questions, incorrectKey(userID, noteID, question))
	return nil
}

func (s *MemStore) ListIncorrectQuestions(ctx context.Context, userID, noteID string) ([]models.MCQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MCQuestion, 0)
	for _, q := range s.questions {
		if q.UserID == userID && q.NoteID == noteID {
			out = append(out, q)
		}
	}
	// nil lastAttemptDate sorts earliest; ID breaks remaining ties.
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastAttemptDate, out[j].LastAttemptDate
		switch {
		case ti == nil && tj == nil:
			return out[i].ID < out[j].ID
		case ti == nil:
			return true
		case tj == nil:
			return false
		case ti.Equal(*tj):
			return out[i].ID < out[j].ID
		default:
			return ti.Before(*tj)
		}
	})
	return out, nil
}

// --- Notifications ---

func (s *MemStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = *n
	return nil
}

func (s *MemStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &n, nil
}

func (s *MemStore) ListNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *MemStore) DeleteNotification(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

// --- Live subscriptions ---

func (s *MemStore) WatchFolders(ctx context.Context, courseID string) (<-chan []models.Folder, error) {
	w := &folderWatcher{courseID: courseID, ch: make(chan []models.Folder, 16), done: ctx.Done()}
	s.mu.Lock()
	s.folderWatchers = append(s.folderWatchers, w)
	w.ch <- s.foldersByCourseLocked(courseID)
	s.mu.Unlock()
	return w.ch, nil
}

func (s *MemStore) WatchDirectNotes(ctx context.Context, courseID string) (<-chan []models.Note, error) {
	w := &noteWatcher{courseID: courseID, ch: make(chan []models.Note, 16), done: ctx.Done()}
	s.mu.Lock()
	s.noteWatchers = append(s.noteWatchers, w)
	w.ch <- s.directNotesLocked(courseID)
	s.mu.Unlock()
	return w.ch, nil
}

func (s *MemStore) Close(ctx context.Context) error { return nil }

// --- helpers ---

func addToSet(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// removeFromList allocates so copies handed out by earlier reads keep their
// backing arrays intact.
func removeFromList(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func (s *MemStore) mutateUser(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *MemStore) mutateCourse(id string, fn func(*models.Course)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&c)
	s.courses[id] = c
	return nil
}

func (s *MemStore) mutateFolder(id string, fn func(*models.Folder)) error {
	s.mu.Lock()
	f, ok := s.folders[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	fn(&f)
	s.folders[id] = f
	courseID := f.CourseID
	s.mu.Unlock()
	s.notifyFolderWatchers(courseID)
	return nil
}

func (s *MemStore) foldersByCourseLocked(courseID string) []models.Folder {
	out := make([]models.Folder, 0)
	for _, f := range s.folders {
		if f.CourseID == courseID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) directNotesLocked(courseID string) []models.Note {
	out := make([]models.Note, 0)
	for _, n := range s.notes {
		if n.FileLocation == courseID+"/" {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) notifyFolderWatchers(courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.folderWatchers[:0]
	for _, w := range s.folderWatchers {
		select {
		case <-w.done:
			close(w.ch)
			continue
		default:
		}
		kept = append(kept, w)
		if w.courseID != courseID {
			continue
		}
		snapshot := s.foldersByCourseLocked(courseID)
		select {
		case w.ch <- snapshot:
		default:
			// Slow subscriber misses an intermediate snapshot; the next
			// change delivers a fresh one.
		}
	}
	s.folderWatchers = kept
}

func (s *MemStore) notifyNoteWatchers(courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.noteWatchers[:0]
	for _, w := range s.noteWatchers {
		select {
		case <-w.done:
			close(w.ch)
			continue
		default:
		}
		kept = append(kept, w)
		if w.courseID != courseID {
			continue
		}
		snapshot := s.directNotesLocked(courseID)
		select {
		case w.ch <- snapshot:
		default:
		}
	}
	s.noteWatchers = kept
}

var _ store.Store = (*MemStore)(nil)
