package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"studypad/backend/internal/chat"
	"studypad/backend/internal/hierarchy"
	"studypad/backend/internal/logger"
	"studypad/backend/internal/middleware"
	"studypad/backend/internal/models"
	"studypad/backend/internal/notify"
	"studypad/backend/internal/quiz"
	"studypad/backend/internal/services"
	"studypad/backend/internal/store/memstore"
)

type fakeAI struct{}

func (fakeAI) Summarize(ctx context.Context, text string) (string, error) {
	return "summary", nil
}

func (fakeAI) GenerateQuestions(ctx context.Context, text string, count int, notesOnly bool) ([]services.GeneratedQuestion, error) {
	out := make([]services.GeneratedQuestion, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, services.GeneratedQuestion{
			Question:         fmt.Sprintf("generated question %d", i),
			PotentialAnswers: []string{"a", "b", "c", "d"},
			CorrectAnswer:    0,
		})
	}
	return out, nil
}

func (fakeAI) ParseImage(ctx context.Context, image []byte) (string, error) {
	return "parsed", nil
}

func (fakeAI) Chat(ctx context.Context, system string, history []services.ChatMessage, question string) (string, error) {
	return "answer", nil
}

type fakeBlobs struct{ n int }

func (f *fakeBlobs) Upload(ctx context.Context, data []byte) (string, error) {
	f.n++
	return fmt.Sprintf("img-%d.jpg", f.n), nil
}

func (f *fakeBlobs) Download(ctx context.Context, path string) ([]byte, error) { return nil, nil }
func (f *fakeBlobs) Delete(ctx context.Context, paths []string) error         { return nil }

type nopHistory struct{}

func (nopHistory) Load(ctx context.Context, key string) ([]services.ChatMessage, error) {
	return nil, nil
}

func (nopHistory) Append(ctx context.Context, key string, msgs ...services.ChatMessage) error {
	return nil
}

// testAuth stands in for the bearer-token middleware, binding every request
// to the user named in the X-Test-User header.
func testAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Request = c.Request.WithContext(middleware.WithUser(c.Request.Context(), user))
		}
		c.Next()
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *memstore.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memstore.New()
	log := logger.NewNop()
	ai := fakeAI{}

	for _, id := range []string{"user-1", "user-2"} {
		if err := st.CreateUser(context.Background(), &models.User{ID: id, Settings: models.DefaultSettings()}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	notifySvc := notify.NewService(st, log)
	h := New(
		st,
		hierarchy.NewEngine(st, ai, &fakeBlobs{}, log),
		quiz.NewEngine(st, ai, notifySvc, log),
		chat.NewService(st, ai, nopHistory{}, log),
		notifySvc,
		log,
	)

	r := gin.New()
	r.GET("/health", h.HealthCheck)
	api := r.Group("/api/v1", testAuth())
	h.Register(api)
	return r, st
}

func do(t *testing.T, r *gin.Engine, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthCheck(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, "", http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, "", http.MethodGet, "/api/v1/courses", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCourseFolderNoteFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, "user-1", http.MethodPost, "/api/v1/courses", gin.H{"name": "Biology"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create course: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	course := decode[models.Course](t, w)

	w = do(t, r, "user-1", http.MethodPost, "/api/v1/courses/"+course.ID+"/folders", gin.H{"name": "Midterm"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create folder: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	folder := decode[models.Folder](t, w)

	w = do(t, r, "user-1", http.MethodPost, "/api/v1/notes", gin.H{
		"courseId": course.ID,
		"folderId": folder.ID,
		"title":    "Cell structure",
		"content":  "Mitochondria are organelles.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	note := decode[models.Note](t, w)
	if want := course.ID + "/" + folder.ID; note.FileLocation != want {
		t.Fatalf("expected fileLocation %q, got %q", want, note.FileLocation)
	}

	w = do(t, r, "user-1", http.MethodGet, "/api/v1/courses/"+course.ID+"/folders", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list folders: expected 200, got %d", w.Code)
	}
	folders := decode[[]models.Folder](t, w)
	if len(folders) != 1 || folders[0].ID != folder.ID {
		t.Fatalf("expected [%s], got %+v", folder.ID, folders)
	}

	w = do(t, r, "user-1", http.MethodDelete, "/api/v1/folders/"+folder.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete folder: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, r, "user-1", http.MethodGet, "/api/v1/notes/"+note.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected cascaded note gone (404), got %d", w.Code)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, "user-1", http.MethodPost, "/api/v1/courses", gin.H{"name": "Biology"})
	course := decode[models.Course](t, w)

	w = do(t, r, "user-2", http.MethodGet, "/api/v1/courses/"+course.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's course, got %d", w.Code)
	}
	w = do(t, r, "user-2", http.MethodDelete, "/api/v1/courses/"+course.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting another user's course, got %d", w.Code)
	}
}

func TestQuizSessionOwnershipOverHTTP(t *testing.T) {
	r, st := newTestRouter(t)

	w := do(t, r, "user-1", http.MethodPost, "/api/v1/courses", gin.H{"name": "Biology"})
	course := decode[models.Course](t, w)
	w = do(t, r, "user-1", http.MethodPost, "/api/v1/notes", gin.H{
		"courseId": course.ID,
		"title":    "Cell structure",
		"content":  "Mitochondria are organelles.",
	})
	note := decode[models.Note](t, w)
	w = do(t, r, "user-1", http.MethodPost, "/api/v1/notes/"+note.ID+"/quiz", nil)
	session := decode[quiz.View](t, w)

	w = do(t, r, "user-2", http.MethodGet, "/api/v1/quiz/"+session.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 reading another user's session, got %d", w.Code)
	}
	w = do(t, r, "user-2", http.MethodPost, "/api/v1/quiz/"+session.ID+"/answers", gin.H{"selectedAnswer": 2})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 answering another user's session, got %d", w.Code)
	}
	w = do(t, r, "user-2", http.MethodDelete, "/api/v1/quiz/"+session.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 ending another user's session, got %d", w.Code)
	}

	incorrect, _ := st.ListIncorrectQuestions(context.Background(), "user-1", note.ID)
	if len(incorrect) != 0 {
		t.Fatalf("expected the owner's incorrect-set untouched, got %d entries", len(incorrect))
	}
	w = do(t, r, "user-1", http.MethodGet, "/api/v1/quiz/"+session.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected the owner's session to survive, got %d", w.Code)
	}
}

func TestDismissNotificationOwnershipOverHTTP(t *testing.T) {
	r, st := newTestRouter(t)
	ctx := context.Background()

	n := &models.Notification{
		ID:      "notif-1",
		Type:    notify.TypeQuizRetry,
		Message: "Time to retake your quiz",
		UserID:  "user-1",
	}
	if err := st.CreateNotification(ctx, n); err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	if err := st.AddNotificationToUser(ctx, "user-1", n.ID); err != nil {
		t.Fatalf("link notification: %v", err)
	}

	w := do(t, r, "user-2", http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 dismissing another user's notification, got %d", w.Code)
	}
	if _, err := st.GetNotification(ctx, n.ID); err != nil {
		t.Fatalf("expected the notification to survive, got %v", err)
	}

	w = do(t, r, "user-1", http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for the owner, got %d", w.Code)
	}
}

func TestQuizFlowOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, "user-1", http.MethodPost, "/api/v1/courses", gin.H{"name": "Biology"})
	course := decode[models.Course](t, w)
	w = do(t, r, "user-1", http.MethodPost, "/api/v1/notes", gin.H{
		"courseId": course.ID,
		"title":    "Cell structure",
		"content":  "Mitochondria are organelles.",
	})
	note := decode[models.Note](t, w)

	w = do(t, r, "user-1", http.MethodPost, "/api/v1/notes/"+note.ID+"/quiz", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start quiz: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	session := decode[quiz.View](t, w)
	if session.TotalQuestions != 5 {
		t.Fatalf("expected 5 questions, got %d", session.TotalQuestions)
	}

	var last quiz.AnswerResult
	for i := 0; i < 5; i++ {
		w = do(t, r, "user-1", http.MethodPost, "/api/v1/quiz/"+session.ID+"/answers", gin.H{"selectedAnswer": 0})
		if w.Code != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
		last = decode[quiz.AnswerResult](t, w)
	}
	if !last.Completed || last.Score != 100 {
		t.Fatalf("expected completed with score 100, got %+v", last)
	}

	w = do(t, r, "user-1", http.MethodGet, "/api/v1/quiz/"+session.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get quiz: expected 200, got %d", w.Code)
	}
	final := decode[quiz.View](t, w)
	if final.State != "complete" {
		t.Fatalf("expected complete state, got %s", final.State)
	}
}

func TestSubmitAnswer_MissingSelection(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, "user-1", http.MethodPost, "/api/v1/quiz/any/answers", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing selectedAnswer, got %d", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, "user-1", http.MethodPost, "/api/v1/courses", gin.H{"name": "Biology"})
	course := decode[models.Course](t, w)
	if w := do(t, r, "user-1", http.MethodPost, "/api/v1/notes", gin.H{
		"courseId": course.ID,
		"title":    "Cell structure",
		"content":  "content",
	}); w.Code != http.StatusCreated {
		t.Fatalf("create note: %d", w.Code)
	}

	w = do(t, r, "user-1", http.MethodGet, "/api/v1/search?q=cell", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", w.Code)
	}
	results := decode[[]hierarchy.SearchResult](t, w)
	if len(results) != 1 || results[0].Type != "note" {
		t.Fatalf("expected one note match, got %+v", results)
	}
}
