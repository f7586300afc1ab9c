// Package quiz produces fixed-size multiple-choice quizzes per note,
// replaying previously-missed questions before issuing new ones, and keeps
// the user's daily streak.
package quiz

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studypad/backend/internal/models"
	"studypad/backend/internal/services"
	"studypad/backend/internal/store"
)

const (
	// DefaultTotalQuestions is the quiz size per session.
	DefaultTotalQuestions = 5
	// PassThreshold is the minimum score that counts as a passed quiz.
	PassThreshold = 70
)

var (
	ErrSessionNotFound = errors.New("quiz session not found")
	ErrSessionComplete = errors.New("quiz session already complete")
)

// Notifier schedules a retry reminder after a failed quiz. Delivery is
// external; only metadata is written.
type Notifier interface {
	ScheduleQuizRetry(ctx context.Context, userID, noteID, quizID string) error
}

type Engine struct {
	store          store.Store
	ai             services.AIClient
	notifier       Notifier
	log            *zap.SugaredLogger
	totalQuestions int

	mu       sync.Mutex
	sessions map[string]*Session

	// now is swappable in tests.
	now func() time.Time
}

func NewEngine(st store.Store, ai services.AIClient, notifier Notifier, log *zap.SugaredLogger) *Engine {
	return &Engine{
		store:          st,
		ai:             ai,
		notifier:       notifier,
		log:            log.With("component", "quiz"),
		totalQuestions: DefaultTotalQuestions,
		sessions:       make(map[string]*Session),
		now:            time.Now,
	}
}

// StartSession sources the session's questions: the user's incorrect-set for
// the note comes first (truncated at the quiz size, in stored order), and the
// remainder is freshly generated. The incorrect-first order deliberately
// resurfaces failed material before new material.
func (e *Engine) StartSession(ctx context.Context, userID, noteID string) (View, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return View{}, err
	}
	note, err := e.store.GetNote(ctx, noteID)
	if err != nil {
		return View{}, err
	}

	s := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		NoteID: noteID,
		State:  StateLoading,
	}

	incorrect, err := e.store.ListIncorrectQuestions(ctx, userID, noteID)
	if err != nil {
		return View{}, err
	}

	if len(incorrect) >= e.totalQuestions {
		s.Questions = incorrect[:e.totalQuestions]
		s.ReplayedCount = e.totalQuestions
	} else {
		needed := e.totalQuestions - len(incorrect)
		generated, err := e.ai.GenerateQuestions(ctx, note.Content, needed, user.Settings.NotesOnlyQuizScope)
		if err != nil {
			// Loading state dies with the session; the caller sees the error,
			// never a stuck spinner.
			return View{}, err
		}
		s.Questions = append(s.Questions, incorrect...)
		for _, g := range generated {
			s.Questions = append(s.Questions, models.MCQuestion{
				ID:               uuid.NewString(),
				Question:         g.Question,
				PotentialAnswers: g.PotentialAnswers,
				CorrectAnswer:    g.CorrectAnswer,
				UserID:           userID,
				NoteID:           noteID,
			})
		}
		s.ReplayedCount = len(incorrect)
	}

	s.State = StateInProgress
	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()

	if err := e.store.TouchNoteAccess(ctx, noteID); err != nil {
		e.log.Debugw("note access touch failed", "noteId", noteID, "error", err)
	}
	return s.view(), nil
}

// session resolves a live session for its owner. Another user's session ID
// reads as not found.
func (e *Engine) session(userID, sessionID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, false
	}
	return s, true
}

// GetSession returns the API view of a live session.
func (e *Engine) GetSession(userID, sessionID string) (View, error) {
	s, ok := e.session(userID, sessionID)
	if !ok {
		return View{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// AnswerResult reports one graded submission.
type AnswerResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correctAnswer"`
	Completed     bool   `json:"completed"`
	Score         int    `json:"score"`
	Passed        bool   `json:"passed"`
	// Warning is set when the grade could not be persisted; grading and
	// progression are unaffected.
	Warning string `json:"warning,omitempty"`
}

// SubmitAnswer grades the current question, updates the persisted
// incorrect-set (correct removes, incorrect upserts), and advances the
// session. The final submission completes the session, computes the score,
// and updates the streak. Only the session's lock is held across the store
// calls, so slow persistence on one session never blocks another.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, sessionID string, selected int) (AnswerResult, error) {
	s, ok := e.session(userID, sessionID)
	if !ok {
		return AnswerResult{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateInProgress {
		return AnswerResult{}, ErrSessionComplete
	}

	q := s.Questions[s.CurrentIndex]
	correct := selected == q.CorrectAnswer
	s.QuestionResults = append(s.QuestionResults, correct)
	if correct {
		s.CorrectAnswers++
	}

	result := AnswerResult{Correct: correct, CorrectAnswer: q.CorrectAnswer}
	if err := e.persistOutcome(ctx, s, q, correct); err != nil {
		e.log.Warnw("could not persist answer outcome", "sessionId", s.ID, "error", err)
		result.Warning = "Your answer was graded but could not be saved."
	}

	if s.CurrentIndex == len(s.Questions)-1 {
		s.State = StateComplete
		s.Score = int(math.Round(float64(s.CorrectAnswers) / float64(len(s.Questions)) * 100))
		result.Completed = true
		result.Score = s.Score
		result.Passed = s.Score >= PassThreshold
		e.complete(ctx, s)
	} else {
		s.CurrentIndex++
	}
	return result, nil
}

// persistOutcome applies the self-healing mistake-tracker policy: a question
// exits the persisted incorrect-set only by being answered correctly.
func (e *Engine) persistOutcome(ctx context.Context, s *Session, q models.MCQuestion, correct bool) error {
	if correct {
		return e.store.RemoveIncorrectQuestion(ctx, s.UserID, s.NoteID, q.Question)
	}
	now := e.now()
	q.UserID = s.UserID
	q.NoteID = s.NoteID
	q.AttemptCount++
	q.LastAttemptDate = &now
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return e.store.UpsertIncorrectQuestion(ctx, &q)
}

func (e *Engine) complete(ctx context.Context, s *Session) {
	passed := s.Score >= PassThreshold

	if err := e.updateUserStreak(ctx, s.UserID, s.Score); err != nil {
		e.log.Warnw("streak update failed", "userId", s.UserID, "error", err)
	}

	now := e.now()
	questionIDs := make([]string, 0, len(s.Questions))
	for _, q := range s.Questions {
		questionIDs = append(questionIDs, q.ID)
	}
	rec := models.QuizRecord{
		QuizID:       s.ID,
		NoteID:       s.NoteID,
		Questions:    questionIDs,
		Passed:       passed,
		Reattempting: !passed,
		CompletedAt:  &now,
	}
	if err := e.store.AppendQuizRecord(ctx, s.UserID, rec); err != nil {
		e.log.Warnw("quiz record append failed", "userId", s.UserID, "error", err)
	}

	if !passed && e.notifier != nil {
		if err := e.notifier.ScheduleQuizRetry(ctx, s.UserID, s.NoteID, s.ID); err != nil {
			e.log.Warnw("retry notification scheduling failed", "userId", s.UserID, "error", err)
		}
	}
}

// updateUserStreak applies the streak rule: a passing score on a new UTC day
// extends the streak when the previous pass was yesterday, restarts it
// otherwise, and a second pass on the same day only refreshes the timestamp.
// Failing quizzes leave the streak untouched.
func (e *Engine) updateUserStreak(ctx context.Context, userID string, score int) error {
	if score < PassThreshold {
		return nil
	}
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	now := e.now()
	st := user.Streak
	switch {
	case st.LastQuizCompletedAt == nil:
		st.CurrentStreakLength = 1
	case sameUTCDay(*st.LastQuizCompletedAt, now):
		// length unchanged
	case sameUTCDay(st.LastQuizCompletedAt.AddDate(0, 0, 1), now):
		st.CurrentStreakLength++
	default:
		st.CurrentStreakLength = 1
	}
	st.LastQuizCompletedAt = &now
	return e.store.UpdateUserStreak(ctx, userID, st)
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// EndSession drops a session from memory without completing it.
func (e *Engine) EndSession(userID, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok || s.UserID != userID {
		return ErrSessionNotFound
	}
	delete(e.sessions, sessionID)
	return nil
}

// sessionCount is used by tests.
func (e *Engine) sessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}
