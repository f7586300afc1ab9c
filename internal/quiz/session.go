package quiz

import (
	"sync"

	"studypad/backend/internal/models"
)

// State is the per-session lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateLoading
	StateInProgress
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "notStarted"
	case StateLoading:
		return "loading"
	case StateInProgress:
		return "inProgress"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Session holds one quiz run over a single note. Each session carries its
// own lock so sessions stay independent of one another.
type Session struct {
	mu sync.Mutex

	ID              string
	UserID          string
	NoteID          string
	State           State
	Questions       []models.MCQuestion
	CurrentIndex    int
	QuestionResults []bool
	CorrectAnswers  int
	Score           int
	// ReplayedCount is how many leading questions came from the incorrect-set.
	ReplayedCount int
}

// View is the API-facing snapshot of a session. Correct answers are withheld
// while the session is in progress.
type View struct {
	ID              string   `json:"id"`
	NoteID          string   `json:"noteId"`
	State           string   `json:"state"`
	CurrentIndex    int      `json:"currentIndex"`
	TotalQuestions  int      `json:"totalQuestions"`
	Question        string   `json:"question,omitempty"`
	Answers         []string `json:"answers,omitempty"`
	QuestionResults []bool   `json:"questionResults"`
	Score           int      `json:"score"`
}

func (s *Session) view() View {
	v := View{
		ID:              s.ID,
		NoteID:          s.NoteID,
		State:           s.State.String(),
		CurrentIndex:    s.CurrentIndex,
		TotalQuestions:  len(s.Questions),
		QuestionResults: append([]bool(nil), s.QuestionResults...),
		Score:           s.Score,
	}
	if s.State == StateInProgress && s.CurrentIndex < len(s.Questions) {
		q := s.Questions[s.CurrentIndex]
		v.Question = q.Question
		v.Answers = append([]string(nil), q.PotentialAnswers...)
	}
	return v
}
