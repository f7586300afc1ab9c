package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"studypad/backend/internal/logger"
	"studypad/backend/internal/models"
	"studypad/backend/internal/services"
	"studypad/backend/internal/store"
	"studypad/backend/internal/store/memstore"
)

type fakeAI struct {
	generateCalls  int
	lastCount      int
	lastNotesOnly  bool
	failGeneration bool
}

func (f *fakeAI) Summarize(ctx context.Context, text string) (string, error) {
	return "summary", nil
}

func (f *fakeAI) GenerateQuestions(ctx context.Context, text string, count int, notesOnly bool) ([]services.GeneratedQuestion, error) {
	f.generateCalls++
	f.lastCount = count
	f.lastNotesOnly = notesOnly
	if f.failGeneration {
		return nil, fmt.Errorf("%w: model unavailable", services.ErrQuestionGeneration)
	}
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

func (f *fakeAI) ParseImage(ctx context.Context, image []byte) (string, error) {
	return "parsed", nil
}

func (f *fakeAI) Chat(ctx context.Context, system string, history []services.ChatMessage, question string) (string, error) {
	return "answer", nil
}

type fakeNotifier struct {
	retries []string // noteIDs
}

func (f *fakeNotifier) ScheduleQuizRetry(ctx context.Context, userID, noteID, quizID string) error {
	f.retries = append(f.retries, noteID)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *memstore.MemStore, *fakeAI, *fakeNotifier) {
	t.Helper()
	st := memstore.New()
	ai := &fakeAI{}
	notifier := &fakeNotifier{}
	e := NewEngine(st, ai, notifier, logger.NewNop())

	ctx := context.Background()
	user := &models.User{
		ID:       "user-1",
		Name:     "Test",
		Settings: models.DefaultSettings(),
	}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	note := &models.Note{
		ID:           "note-1",
		UserID:       "user-1",
		Title:        "Cell structure",
		Content:      "The cell membrane is selectively permeable.",
		CreatedAt:    time.Now(),
		CourseID:     "course-1",
		FileLocation: "course-1/",
	}
	if err := st.CreateNote(ctx, note); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return e, st, ai, notifier
}

func seedIncorrect(t *testing.T, st *memstore.MemStore, n int) []string {
	t.Helper()
	questions := make([]string, 0, n)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		q := &models.MCQuestion{
			ID:               uuid.NewString(),
			Question:         fmt.Sprintf("missed question %d", i),
			PotentialAnswers: []string{"a", "b", "c", "d"},
			CorrectAnswer:    1,
			UserID:           "user-1",
			NoteID:           "note-1",
			AttemptCount:     1,
			LastAttemptDate:  &at,
		}
		if err := st.UpsertIncorrectQuestion(context.Background(), q); err != nil {
			t.Fatalf("seed incorrect question: %v", err)
		}
		questions = append(questions, q.Question)
	}
	return questions
}

func TestStartSession_MixesIncorrectFirstThenGenerated(t *testing.T) {
	e, st, ai, _ := newTestEngine(t)
	seeded := seedIncorrect(t, st, 2)

	view, err := e.StartSession(context.Background(), "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if ai.generateCalls != 1 || ai.lastCount != 3 {
		t.Fatalf("expected one generation request for 3 questions, got calls=%d count=%d", ai.generateCalls, ai.lastCount)
	}
	if view.TotalQuestions != 5 {
		t.Fatalf("expected 5 questions, got %d", view.TotalQuestions)
	}

	s := e.sessions[view.ID]
	for i, want := range seeded {
		if s.Questions[i].Question != want {
			t.Fatalf("question %d: expected replayed %q, got %q", i, want, s.Questions[i].Question)
		}
	}
	if s.ReplayedCount != 2 {
		t.Fatalf("expected 2 replayed questions, got %d", s.ReplayedCount)
	}
}

func TestStartSession_AllFromIncorrectSet(t *testing.T) {
	e, st, ai, _ := newTestEngine(t)
	seedIncorrect(t, st, 6)

	view, err := e.StartSession(context.Background(), "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if ai.generateCalls != 0 {
		t.Fatalf("expected no generation request, got %d", ai.generateCalls)
	}
	if view.TotalQuestions != 5 {
		t.Fatalf("expected exactly 5 questions, got %d", view.TotalQuestions)
	}
}

func TestStartSession_UsesQuizScopeSetting(t *testing.T) {
	e, st, ai, _ := newTestEngine(t)
	settings := models.DefaultSettings()
	settings.NotesOnlyQuizScope = false
	if err := st.UpdateUserSettings(context.Background(), "user-1", settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	if _, err := e.StartSession(context.Background(), "user-1", "note-1"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if ai.lastNotesOnly {
		t.Fatalf("expected notesOnly=false passed to generator")
	}
}

func TestStartSession_GenerationFailure(t *testing.T) {
	e, _, ai, _ := newTestEngine(t)
	ai.failGeneration = true

	_, err := e.StartSession(context.Background(), "user-1", "note-1")
	if !errors.Is(err, services.ErrQuestionGeneration) {
		t.Fatalf("expected ErrQuestionGeneration, got %v", err)
	}
	if e.sessionCount() != 0 {
		t.Fatalf("expected no lingering session, got %d", e.sessionCount())
	}
}

func TestSubmitAnswer_ScoreAndCompletion(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	view, err := e.StartSession(context.Background(), "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Generated questions all have correctAnswer 0; miss exactly one.
	answers := []int{0, 0, 0, 2, 0}
	var last AnswerResult
	for i, a := range answers {
		last, err = e.SubmitAnswer(context.Background(), "user-1", view.ID, a)
		if err != nil {
			t.Fatalf("SubmitAnswer %d: %v", i, err)
		}
	}
	if !last.Completed {
		t.Fatalf("expected session complete after final answer")
	}
	if last.Score != 80 {
		t.Fatalf("expected score 80, got %d", last.Score)
	}
	if !last.Passed {
		t.Fatalf("expected 80 to pass")
	}

	if _, err := e.SubmitAnswer(context.Background(), "user-1", view.ID, 0); !errors.Is(err, ErrSessionComplete) {
		t.Fatalf("expected ErrSessionComplete, got %v", err)
	}
}

func TestSubmitAnswer_WrongAnswerEntersIncorrectSet(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	view, err := e.StartSession(context.Background(), "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := e.SubmitAnswer(context.Background(), "user-1", view.ID, 3); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	incorrect, err := st.ListIncorrectQuestions(context.Background(), "user-1", "note-1")
	if err != nil {
		t.Fatalf("ListIncorrectQuestions: %v", err)
	}
	if len(incorrect) != 1 {
		t.Fatalf("expected 1 incorrect question, got %d", len(incorrect))
	}
	if incorrect[0].AttemptCount != 1 {
		t.Fatalf("expected attemptCount 1, got %d", incorrect[0].AttemptCount)
	}
	if incorrect[0].LastAttemptDate == nil {
		t.Fatalf("expected lastAttemptDate to be set")
	}
}

func TestIncorrectSet_ExitsOnCorrectAnswer(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()
	seedIncorrect(t, st, 1)

	// Session 1: the seeded question is first; answer it correctly.
	view, err := e.StartSession(ctx, "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := e.SubmitAnswer(ctx, "user-1", view.ID, 1); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	incorrect, _ := st.ListIncorrectQuestions(ctx, "user-1", "note-1")
	if len(incorrect) != 0 {
		t.Fatalf("expected empty incorrect-set, got %d entries", len(incorrect))
	}

	// Session 2: answering correctly again must not fail on the absent entry.
	view2, err := e.StartSession(ctx, "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession 2: %v", err)
	}
	if _, err := e.SubmitAnswer(ctx, "user-1", view2.ID, 0); err != nil {
		t.Fatalf("SubmitAnswer after removal: %v", err)
	}
}

type failingUpsertStore struct {
	store.Store
}

func (f *failingUpsertStore) UpsertIncorrectQuestion(ctx context.Context, q *models.MCQuestion) error {
	return fmt.Errorf("write refused")
}

func TestSubmitAnswer_PersistenceFailureIsNonFatal(t *testing.T) {
	_, st, ai, notifier := newTestEngine(t)
	e := NewEngine(&failingUpsertStore{Store: st}, ai, notifier, logger.NewNop())

	view, err := e.StartSession(context.Background(), "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	result, err := e.SubmitAnswer(context.Background(), "user-1", view.ID, 3)
	if err != nil {
		t.Fatalf("grading must not fail on persistence errors, got %v", err)
	}
	if result.Warning == "" {
		t.Fatalf("expected a persistence warning")
	}
	if got, _ := e.GetSession("user-1", view.ID); got.CurrentIndex != 1 {
		t.Fatalf("expected progression to index 1, got %d", got.CurrentIndex)
	}
}

func TestFailedQuiz_RecordsReattemptAndSchedulesRetry(t *testing.T) {
	e, st, _, notifier := newTestEngine(t)
	ctx := context.Background()
	view, err := e.StartSession(ctx, "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := e.SubmitAnswer(ctx, "user-1", view.ID, 3); err != nil {
			t.Fatalf("SubmitAnswer %d: %v", i, err)
		}
	}

	user, err := st.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if len(user.Quizzes) != 1 {
		t.Fatalf("expected 1 quiz record, got %d", len(user.Quizzes))
	}
	rec := user.Quizzes[0]
	if rec.Passed || !rec.Reattempting {
		t.Fatalf("expected failed, reattempting record, got passed=%v reattempting=%v", rec.Passed, rec.Reattempting)
	}
	if len(notifier.retries) != 1 || notifier.retries[0] != "note-1" {
		t.Fatalf("expected one retry reminder for note-1, got %v", notifier.retries)
	}
	// A failed quiz leaves the streak untouched.
	if user.Streak.CurrentStreakLength != 0 {
		t.Fatalf("expected untouched streak, got %d", user.Streak.CurrentStreakLength)
	}
}

func TestSessionOwnership(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()
	view, err := e.StartSession(ctx, "user-1", "note-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := e.GetSession("user-2", view.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound reading another user's session, got %v", err)
	}
	if _, err := e.SubmitAnswer(ctx, "user-2", view.ID, 3); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound answering another user's session, got %v", err)
	}
	if err := e.EndSession("user-2", view.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound ending another user's session, got %v", err)
	}

	// The rejected submission must not touch the owner's incorrect-set.
	incorrect, _ := st.ListIncorrectQuestions(ctx, "user-1", "note-1")
	if len(incorrect) != 0 {
		t.Fatalf("expected untouched incorrect-set, got %d entries", len(incorrect))
	}
	if got, err := e.GetSession("user-1", view.ID); err != nil || got.CurrentIndex != 0 {
		t.Fatalf("expected owner's session unchanged, got %+v err=%v", got, err)
	}
}

func TestAnswerResultJSONKeepsZeroValues(t *testing.T) {
	b, err := json.Marshal(AnswerResult{Completed: true, Score: 0, Passed: false})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"score":0`, `"passed":false`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("expected %s in %s", key, b)
		}
	}
}

func TestSessionsProgressIndependently(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()
	if err := st.CreateNote(ctx, &models.Note{
		ID:           "note-2",
		UserID:       "user-1",
		Title:        "Photosynthesis",
		Content:      "Chloroplasts capture light.",
		CreatedAt:    time.Now(),
		CourseID:     "course-1",
		FileLocation: "course-1/",
	}); err != nil {
		t.Fatalf("seed second note: %v", err)
	}

	views := make([]View, 2)
	for i, noteID := range []string{"note-1", "note-2"} {
		v, err := e.StartSession(ctx, "user-1", noteID)
		if err != nil {
			t.Fatalf("StartSession %s: %v", noteID, err)
		}
		views[i] = v
	}

	var wg sync.WaitGroup
	for _, v := range views {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := e.SubmitAnswer(ctx, "user-1", sessionID, 0); err != nil {
					t.Errorf("SubmitAnswer %s: %v", sessionID, err)
					return
				}
			}
		}(v.ID)
	}
	wg.Wait()

	for _, v := range views {
		got, err := e.GetSession("user-1", v.ID)
		if err != nil {
			t.Fatalf("GetSession %s: %v", v.ID, err)
		}
		if got.State != "complete" || got.Score != 100 {
			t.Fatalf("expected session %s complete at 100, got %+v", v.ID, got)
		}
	}
}

func TestUpdateUserStreak(t *testing.T) {
	day := func(y int, m time.Month, d, hour int) time.Time {
		return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
	}

	cases := []struct {
		name       string
		last       *time.Time
		length     int
		now        time.Time
		score      int
		wantLength int
	}{
		{"first pass", nil, 0, day(2026, 3, 10, 9), 100, 1},
		{"consecutive day", ptr(day(2026, 3, 9, 22)), 3, day(2026, 3, 10, 7), 80, 4},
		{"same day repeat", ptr(day(2026, 3, 10, 8)), 4, day(2026, 3, 10, 21), 100, 4},
		{"lapsed", ptr(day(2026, 3, 5, 12)), 9, day(2026, 3, 10, 12), 90, 1},
		{"failing score untouched", ptr(day(2026, 3, 9, 12)), 3, day(2026, 3, 10, 12), 60, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, st, _, _ := newTestEngine(t)
			ctx := context.Background()
			if err := st.UpdateUserStreak(ctx, "user-1", models.Streak{
				CurrentStreakLength: tc.length,
				LastQuizCompletedAt: tc.last,
			}); err != nil {
				t.Fatalf("seed streak: %v", err)
			}
			e.now = func() time.Time { return tc.now }

			if err := e.updateUserStreak(ctx, "user-1", tc.score); err != nil {
				t.Fatalf("updateUserStreak: %v", err)
			}
			user, _ := st.GetUser(ctx, "user-1")
			if user.Streak.CurrentStreakLength != tc.wantLength {
				t.Fatalf("expected streak %d, got %d", tc.wantLength, user.Streak.CurrentStreakLength)
			}
			if tc.score >= PassThreshold && !user.Streak.LastQuizCompletedAt.Equal(tc.now) {
				t.Fatalf("expected lastQuizCompletedAt refreshed to %v, got %v", tc.now, user.Streak.LastQuizCompletedAt)
			}
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
