package services

import (
	"errors"
	"testing"
)

func TestParseGeneratedQuestions_PlainJSON(t *testing.T) {
	raw := `[{"question":"q1","potentialAnswers":["a","b","c","d"],"correctAnswer":2}]`
	questions, err := parseGeneratedQuestions(raw)
	if err != nil {
		t.Fatalf("parseGeneratedQuestions: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	q := questions[0]
	if q.Question != "q1" || q.CorrectAnswer != 2 || len(q.PotentialAnswers) != 4 {
		t.Fatalf("unexpected question: %+v", q)
	}
}

func TestParseGeneratedQuestions_StripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"question\":\"q1\",\"potentialAnswers\":[\"a\",\"b\",\"c\",\"d\"],\"correctAnswer\":0}]\n```"
	questions, err := parseGeneratedQuestions(raw)
	if err != nil {
		t.Fatalf("parseGeneratedQuestions: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
}

func TestParseGeneratedQuestions_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "sure, here are your questions!"},
		{"missing text", `[{"question":"","potentialAnswers":["a","b","c","d"],"correctAnswer":0}]`},
		{"three answers", `[{"question":"q","potentialAnswers":["a","b","c"],"correctAnswer":0}]`},
		{"index out of range", `[{"question":"q","potentialAnswers":["a","b","c","d"],"correctAnswer":4}]`},
		{"negative index", `[{"question":"q","potentialAnswers":["a","b","c","d"],"correctAnswer":-1}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseGeneratedQuestions(tc.raw); !errors.Is(err, ErrQuestionGeneration) {
				t.Fatalf("expected ErrQuestionGeneration, got %v", err)
			}
		})
	}
}
