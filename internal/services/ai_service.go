package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// ErrQuestionGeneration wraps AI failures and malformed model output during
// quiz question generation.
var ErrQuestionGeneration = errors.New("question generation failed")

// GeneratedQuestion is the shape the model is asked to produce.
type GeneratedQuestion struct {
	Question         string   `json:"question"`
	PotentialAnswers []string `json:"potentialAnswers"`
	CorrectAnswer    int      `json:"correctAnswer"`
}

type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AIClient is the black-box completion capability the engines depend on. It
// may fail and must not be assumed idempotent or deterministic.
type AIClient interface {
	Summarize(ctx context.Context, text string) (string, error)
	GenerateQuestions(ctx context.Context, text string, count int, notesOnly bool) ([]GeneratedQuestion, error)
	ParseImage(ctx context.Context, image []byte) (string, error)
	Chat(ctx context.Context, system string, history []ChatMessage, question string) (string, error)
}

type OpenAIService struct {
	client openai.Client
	model  openai.ChatModel
	log    *zap.SugaredLogger
}

func NewOpenAIService(log *zap.SugaredLogger) (*OpenAIService, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIService{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModel(model),
		log:    log.With("service", "OpenAIService"),
	}, nil
}

func (s *OpenAIService) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You summarize study notes. Reply with a concise summary of at most three sentences. Do not add commentary."),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (s *OpenAIService) GenerateQuestions(ctx context.Context, text string, count int, notesOnly bool) ([]GeneratedQuestion, error) {
	system := "You create multiple-choice study questions. Reply with a JSON array only, no prose. " +
		"Each element: {\"question\": string, \"potentialAnswers\": [4 strings], \"correctAnswer\": integer index 0-3}."
	if notesOnly {
		system += " Base every question strictly on the provided notes."
	} else {
		system += " Base questions on the provided notes, drawing on related general knowledge where it helps."
	}
	user := fmt.Sprintf("Create exactly %d questions from these notes:\n\n%s", count, text)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuestionGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrQuestionGeneration)
	}

	questions, err := parseGeneratedQuestions(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	if len(questions) < count {
		return nil, fmt.Errorf("%w: asked for %d questions, got %d", ErrQuestionGeneration, count, len(questions))
	}
	return questions, nil
}

func (s *OpenAIService) ParseImage(ctx context.Context, image []byte) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart("Transcribe all text in this image of study notes. Preserve the reading order. Reply with the transcribed text only."),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	})
	if err != nil {
		return "", fmt.Errorf("parse image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("parse image: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (s *OpenAIService) Chat(ctx context.Context, system string, history []ChatMessage, question string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(system))
	for _, m := range history {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(question))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// parseGeneratedQuestions decodes the model's JSON array, tolerating markdown
// code fences, and validates the four-answer / index-in-range contract.
func parseGeneratedQuestions(raw string) ([]GeneratedQuestion, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrQuestionGeneration, err)
	}
	for i, q := range questions {
		if q.Question == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrQuestionGeneration, i)
		}
		if len(q.PotentialAnswers) != 4 {
			return nil, fmt.Errorf("%w: question %d has %d answers, want 4", ErrQuestionGeneration, i, len(q.PotentialAnswers))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer > 3 {
			return nil, fmt.Errorf("%w: question %d has correctAnswer %d out of range", ErrQuestionGeneration, i, q.CorrectAnswer)
		}
	}
	return questions, nil
}

var _ AIClient = (*OpenAIService)(nil)
