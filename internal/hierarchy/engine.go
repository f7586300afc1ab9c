// Package hierarchy keeps the Course/Folder/Note tree consistent: child
// documents carry courseID back-references while parents hold denormalized
// ID lists, and both sides are maintained here.
package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studypad/backend/internal/models"
	"studypad/backend/internal/services"
	"studypad/backend/internal/store"
)

// PlaceholderSummary is used when a note is created with no content; the AI
// client is never called for empty text.
const PlaceholderSummary = "No summary yet."

// FileLocation composes a note's location key. folderID is empty for notes
// attached directly to a course.
func FileLocation(courseID, folderID string) string {
	return courseID + "/" + folderID
}

type Engine struct {
	store store.Store
	ai    services.AIClient
	blobs services.BlobStore
	log   *zap.SugaredLogger
}

func NewEngine(st store.Store, ai services.AIClient, blobs services.BlobStore, log *zap.SugaredLogger) *Engine {
	return &Engine{
		store: st,
		ai:    ai,
		blobs: blobs,
		log:   log.With("component", "hierarchy"),
	}
}

func (e *Engine) CreateCourse(ctx context.Context, userID, name string) (*models.Course, error) {
	course := &models.Course{
		ID:         uuid.NewString(),
		UserID:     userID,
		CourseName: name,
		Folders:    []string{},
		Notes:      []string{},
	}
	course.FileLocation = course.ID
	if err := e.store.CreateCourse(ctx, course); err != nil {
		return nil, err
	}
	if err := e.store.AddCourseToUser(ctx, userID, course.ID); err != nil {
		// Course doc exists but the user's list was not updated; listing by
		// userId still finds it, so this drift is tolerated.
		e.log.Warnw("course created but user list update failed", "courseId", course.ID, "error", err)
	}
	return course, nil
}

// CreateFolder writes the folder document and then appends its ID to the
// parent course. The two writes are not atomic: if the second fails, the
// folder exists with a correct courseID back-reference and a re-read of
// folders by courseID remains correct.
func (e *Engine) CreateFolder(ctx context.Context, courseID, name string) (*models.Folder, error) {
	course, err := e.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	folder := &models.Folder{
		ID:           uuid.NewString(),
		UserID:       course.UserID,
		FolderName:   name,
		CourseID:     course.ID,
		Notes:        []string{},
		FileLocation: FileLocation(course.ID, ""),
	}
	if err := e.store.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	if err := e.store.AddFolderToCourse(ctx, course.ID, folder.ID); err != nil {
		return nil, fmt.Errorf("folder %s created but course update failed: %w", folder.ID, err)
	}
	return folder, nil
}

// CreateNote summarizes the content, persists the note, and appends its ID to
// the folder's note list (or the course's direct list when folderID is empty).
func (e *Engine) CreateNote(ctx context.Context, userID, courseID, folderID, title, content string, images []string) (*models.Note, error) {
	if _, err := e.store.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	if folderID != "" {
		if _, err := e.store.GetFolder(ctx, folderID); err != nil {
			return nil, err
		}
	}

	summary := PlaceholderSummary
	if content != "" {
		s, err := e.ai.Summarize(ctx, content)
		if err != nil {
			e.log.Warnw("summary generation failed, using placeholder", "error", err)
		} else {
			summary = s
		}
	}

	if images == nil {
		images = []string{}
	}
	now := time.Now()
	note := &models.Note{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        title,
		Summary:      summary,
		Content:      content,
		Images:       images,
		CreatedAt:    now,
		CourseID:     courseID,
		FileLocation: FileLocation(courseID, folderID),
	}
	if err := e.store.CreateNote(ctx, note); err != nil {
		return nil, err
	}

	if folderID != "" {
		if err := e.store.AddNoteToFolder(ctx, folderID, note.ID); err != nil {
			return nil, fmt.Errorf("note %s created but folder update failed: %w", note.ID, err)
		}
		// Cached projection; failure here never fails note creation.
		if err := e.store.SetRecentNoteSummary(ctx, folderID, models.RecentNoteSummary{
			NoteID:    note.ID,
			Title:     note.Title,
			Summary:   note.Summary,
			CreatedAt: note.CreatedAt,
		}); err != nil {
			e.log.Warnw("recent note summary update failed", "folderId", folderID, "error", err)
		}
	} else {
		if err := e.store.AddNoteToCourse(ctx, courseID, note.ID); err != nil {
			return nil, fmt.Errorf("note %s created but course update failed: %w", note.ID, err)
		}
	}
	return note, nil
}

// DeleteFolder removes, in order: every note located in the folder (with its
// stored images), the folder document, and finally the folder's entry in the
// course list. Removing the parent entry last means a mid-sequence failure
// can leave an orphaned folder ID, never a dangling folder reference.
func (e *Engine) DeleteFolder(ctx context.Context, folderID, courseID string) error {
	folder, err := e.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}

	notes, err := e.store.ListNotesByFileLocation(ctx, FileLocation(courseID, folderID))
	if err != nil {
		return err
	}
	for _, note := range notes {
		if len(note.Images) > 0 {
			if err := e.blobs.Delete(ctx, note.Images); err != nil {
				e.log.Warnw("could not delete note images", "noteId", note.ID, "error", err)
			}
		}
		if err := e.store.DeleteNote(ctx, note.ID); err != nil {
			return fmt.Errorf("delete note %s in folder %s: %w", note.ID, folderID, err)
		}
	}

	if err := e.store.DeleteFolder(ctx, folder.ID); err != nil {
		return err
	}
	if err := e.store.RemoveFolderFromCourse(ctx, courseID, folder.ID); err != nil {
		return fmt.Errorf("folder %s deleted but course update failed: %w", folder.ID, err)
	}
	return nil
}

// DeleteNote removes the note document and its images, then the parent list
// entry. folderID empty means the note sits on the course's direct list.
func (e *Engine) DeleteNote(ctx context.Context, noteID, folderID string) error {
	note, err := e.store.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if len(note.Images) > 0 {
		if err := e.blobs.Delete(ctx, note.Images); err != nil {
			e.log.Warnw("could not delete note images", "noteId", note.ID, "error", err)
		}
	}
	if err := e.store.DeleteNote(ctx, note.ID); err != nil {
		return err
	}
	if folderID != "" {
		if err := e.store.RemoveNoteFromFolder(ctx, folderID, note.ID); err != nil {
			return fmt.Errorf("note %s deleted but folder update failed: %w", note.ID, err)
		}
	} else {
		if err := e.store.RemoveNoteFromCourse(ctx, note.CourseID, note.ID); err != nil {
			return fmt.Errorf("note %s deleted but course update failed: %w", note.ID, err)
		}
	}
	return nil
}

// DeleteCourse cascades through every folder (which cascades its notes),
// every direct note, the course document, and the user's course list entry.
func (e *Engine) DeleteCourse(ctx context.Context, courseID string) error {
	course, err := e.store.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}

	folders, err := e.store.ListFoldersByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if err := e.DeleteFolder(ctx, f.ID, courseID); err != nil {
			return err
		}
	}

	direct, err := e.store.ListNotesByFileLocation(ctx, FileLocation(courseID, ""))
	if err != nil {
		return err
	}
	for _, n := range direct {
		if err := e.DeleteNote(ctx, n.ID, ""); err != nil {
			return err
		}
	}

	if err := e.store.DeleteCourse(ctx, courseID); err != nil {
		return err
	}
	if err := e.store.RemoveCourseFromUser(ctx, course.UserID, courseID); err != nil {
		e.log.Warnw("course deleted but user list update failed", "courseId", courseID, "error", err)
	}
	return nil
}

// UpdateNoteContent replaces the content, refreshes the AI summary, and bumps
// lastUpdated.
func (e *Engine) UpdateNoteContent(ctx context.Context, noteID, content string) (*models.Note, error) {
	note, err := e.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	summary := PlaceholderSummary
	if content != "" {
		s, err := e.ai.Summarize(ctx, content)
		if err != nil {
			e.log.Warnw("summary refresh failed, keeping previous", "noteId", noteID, "error", err)
			summary = note.Summary
		} else {
			summary = s
		}
	}

	now := time.Now()
	note.Content = content
	note.Summary = summary
	note.LastUpdated = &now
	if err := e.store.UpdateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// AttachImage uploads the image bytes, AI-parses them into text, appends the
// text to the note content, and records the storage path. A parse failure
// keeps the attachment but adds no text.
func (e *Engine) AttachImage(ctx context.Context, noteID string, image []byte) (*models.Note, error) {
	note, err := e.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	path, err := e.blobs.Upload(ctx, image)
	if err != nil {
		return nil, err
	}

	parsed, err := e.ai.ParseImage(ctx, image)
	if err != nil {
		e.log.Warnw("image parse failed, attaching without text", "noteId", noteID, "error", err)
		parsed = ""
	}

	now := time.Now()
	note.Images = append(note.Images, path)
	if parsed != "" {
		if note.Content != "" {
			note.Content += "\n\n"
		}
		note.Content += parsed
	}
	note.LastUpdated = &now
	if err := e.store.UpdateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// NoteImage returns the stored bytes for one of the note's attachments. Paths
// not recorded on the note are treated as not found.
func (e *Engine) NoteImage(ctx context.Context, noteID, path string) ([]byte, error) {
	note, err := e.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	for _, p := range note.Images {
		if p == path {
			return e.blobs.Download(ctx, path)
		}
	}
	return nil, store.ErrNotFound
}

func (e *Engine) RenameFolder(ctx context.Context, folderID, name string) error {
	return e.store.RenameFolder(ctx, folderID, name)
}

func (e *Engine) TouchNoteAccess(ctx context.Context, noteID string) error {
	return e.store.TouchNoteAccess(ctx, noteID)
}

// MostRecentlyUpdatedNotes orders by lastUpdated falling back to createdAt,
// descending, ties stable with respect to input order, and takes the first
// limit entries.
func (e *Engine) MostRecentlyUpdatedNotes(ctx context.Context, userID string, limit int) ([]models.Note, error) {
	notes, err := e.store.ListNotesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return effectiveTime(notes[i]).After(effectiveTime(notes[j]))
	})
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

func effectiveTime(n models.Note) time.Time {
	if n.LastUpdated != nil {
		return *n.LastUpdated
	}
	return n.CreatedAt
}

// WatchFolders opens a live subscription for a course's folders. Each
// received slice replaces the previous one wholesale.
func (e *Engine) WatchFolders(ctx context.Context, courseID string) (<-chan []models.Folder, error) {
	return e.store.WatchFolders(ctx, courseID)
}

// WatchDirectNotes is the direct-note counterpart of WatchFolders.
func (e *Engine) WatchDirectNotes(ctx context.Context, courseID string) (<-chan []models.Note, error) {
	return e.store.WatchDirectNotes(ctx, courseID)
}

// SearchResult is a flattened folder-or-note match.
type SearchResult struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CourseID  string    `json:"courseId,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Search fans out over folders and notes concurrently and merges the matches.
func (e *Engine) Search(ctx context.Context, userID, query string) ([]SearchResult, error) {
	if query == "" {
		return []SearchResult{}, nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]SearchResult, 0)

	wg.Add(1)
	go func() {
		defer wg.Done()
		folders, err := e.store.SearchFoldersByName(ctx, userID, query)
		if err != nil {
			e.log.Warnw("folder search failed", "error", err)
			return
		}
		mu.Lock()
		for _, f := range folders {
			results = append(results, SearchResult{
				Type:     "folder",
				ID:       f.ID,
				Name:     f.FolderName,
				CourseID: f.CourseID,
			})
		}
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		notes, err := e.store.SearchNotesByTitle(ctx, userID, query)
		if err != nil {
			e.log.Warnw("note search failed", "error", err)
			return
		}
		mu.Lock()
		for _, n := range notes {
			results = append(results, SearchResult{
				Type:      "note",
				ID:        n.ID,
				Name:      n.Title,
				CourseID:  n.CourseID,
				Summary:   n.Summary,
				CreatedAt: n.CreatedAt,
			})
		}
		mu.Unlock()
	}()

	wg.Wait()
	return results, nil
}
