package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-1.5-flash"

var (
	ErrNoAPIKey    = errors.New("study: no API key")
	ErrEmptyResult = errors.New("study: empty response")
)

// Assistant turns study notes into summaries and quizzes.
type Assistant interface {
	Summarize(ctx context.Context, text string) (string, error)
	Quiz(ctx context.Context, text string) (Quiz, error)
}

// GeminiClient generates text through the Gemini API.
type GeminiClient struct {
	Model  string
	APIKey string
	// BaseURL overrides the Gemini endpoint; empty uses the SDK default.
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

var _ Assistant = (*GeminiClient)(nil)

// NewGeminiClient returns a client for model with a 60s HTTP timeout.
func NewGeminiClient(apiKey, model string, logger *slog.Logger) *GeminiClient {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClient{
		Model:  model,
		APIKey: apiKey,
		HTTP:   &http.Client{Timeout: 60 * time.Second},
		Logger: logger,
	}
}

// Summarize asks the model for a summary of text.
func (g *GeminiClient) Summarize(ctx context.Context, text string) (string, error) {
	return g.Generate(ctx, SummaryPrompt(text))
}

// Quiz asks the model for five multiple-choice questions about text.
func (g *GeminiClient) Quiz(ctx context.Context, text string) (Quiz, error) {
	out, err := g.Generate(ctx, QuizPrompt(text))
	if err != nil {
		return nil, err
	}
	return ParseQuiz(out)
}

func (g *GeminiClient) client(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.HTTP,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.BaseURL},
	})
}

// Generate sends a single-turn prompt and returns the text of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if g.APIKey == "" {
		return "", ErrNoAPIKey
	}
	c, err := g.client(ctx)
	if err != nil {
		return "", fmt.Errorf("study: client: %w", err)
	}
	start := time.Now()
	resp, err := c.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("study: generate: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("study: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResult
	}
	if g.Logger != nil {
		g.Logger.Debug("generate done", "model", g.Model, "elapsed", time.Since(start), "chars", len(text))
	}
	return text, nil
}
