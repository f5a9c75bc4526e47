package study

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/genai"
)

const quizJSON = `[
  {"question": "2+2?", "options": ["3", "4", "5", "6"], "correct_answer": "4"},
  {"question": "Capital of France?", "options": ["Paris", "Rome", "Oslo", "Bern"], "correct_answer": "Paris"}
]`

func TestParseQuiz_StripsFences(t *testing.T) {
	for _, raw := range []string{
		quizJSON,
		"```json\n" + quizJSON + "\n```",
		"  ```\n" + quizJSON + "```  ",
	} {
		q, err := ParseQuiz(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw[:10], err)
		}
		if len(q) != 2 || q[1].CorrectAnswer != "Paris" {
			t.Fatalf("unexpected quiz %+v", q)
		}
	}
}

func TestParseQuiz_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      "here are your questions",
		"empty":         "[]",
		"answer absent": `[{"question": "q", "options": ["a", "b"], "correct_answer": "c"}]`,
		"one option":    `[{"question": "q", "options": ["a"], "correct_answer": "a"}]`,
		"no question":   `[{"question": " ", "options": ["a", "b"], "correct_answer": "a"}]`,
	}
	for name, raw := range cases {
		if _, err := ParseQuiz(raw); !errors.Is(err, ErrMalformedQuiz) {
			t.Fatalf("%s: expected ErrMalformedQuiz, got %v", name, err)
		}
	}
}

func TestQuiz_Score(t *testing.T) {
	q, err := ParseQuiz(quizJSON)
	if err != nil {
		t.Fatal(err)
	}
	s := q.Score([]string{"4"})
	if s.Correct != 1 || s.Total != 2 {
		t.Fatalf("score=%+v", s)
	}
	if got := s.String(); got != "Score: 1/2 (50.0%)" {
		t.Fatalf("String()=%q", got)
	}
	if got := (Quiz{}).Score(nil).String(); got != "Score: 0/0 (0.0%)" {
		t.Fatalf("empty quiz score %q", got)
	}
	three := append(q, Question{Question: "x", Options: []string{"a", "b"}, CorrectAnswer: "a"})
	if got := three.Score([]string{"4", "Paris", "a"}).String(); got != "Score: 3/3 (100.0%)" {
		t.Fatalf("full score %q", got)
	}
	if got := three.Score([]string{"4", "", ""}).String(); got != "Score: 1/3 (33.3%)" {
		t.Fatalf("partial score %q", got)
	}
}

func geminiServer(t *testing.T, status int, reply any, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-1.5-flash:generateContent") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header missing")
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(body, &req); err == nil && len(req.Contents) == 1 && gotPrompt != nil {
			if req.Contents[0].Role != "user" {
				t.Errorf("role=%q", req.Contents[0].Role)
			}
			*gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
}

func textReply(parts ...string) map[string]any {
	ps := make([]map[string]string, len(parts))
	for i, p := range parts {
		ps[i] = map[string]string{"text": p}
	}
	return map[string]any{"candidates": []any{map[string]any{"content": map[string]any{"role": "model", "parts": ps}}}}
}

func TestGeminiClient_Summarize(t *testing.T) {
	var prompt string
	srv := geminiServer(t, http.StatusOK, textReply("Cells ", "divide."), &prompt)
	defer srv.Close()
	c := NewGeminiClient("test-key", "", nil)
	c.BaseURL = srv.URL
	out, err := c.Summarize(context.Background(), "Mitosis notes")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if out != "Cells divide." {
		t.Fatalf("summary=%q", out)
	}
	if prompt != "Summarize this text:\n\nMitosis notes" {
		t.Fatalf("prompt=%q", prompt)
	}
}

func TestGeminiClient_Quiz(t *testing.T) {
	var prompt string
	srv := geminiServer(t, http.StatusOK, textReply("```json\n"+quizJSON+"\n```"), &prompt)
	defer srv.Close()
	c := NewGeminiClient("test-key", DefaultModel, nil)
	c.BaseURL = srv.URL
	q, err := c.Quiz(context.Background(), "arithmetic")
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if len(q) != 2 {
		t.Fatalf("questions=%d", len(q))
	}
	if !strings.HasPrefix(prompt, "Create 5 multiple-choice questions") || !strings.HasSuffix(prompt, "arithmetic") {
		t.Fatalf("prompt=%q", prompt)
	}
}

func TestGeminiClient_Errors(t *testing.T) {
	srv := geminiServer(t, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}, nil)
	defer srv.Close()
	c := NewGeminiClient("test-key", "", nil)
	c.BaseURL = srv.URL
	if _, err := c.Summarize(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected api error, got %v", err)
	}
	var apiErr genai.APIError
	if _, err := c.Summarize(context.Background(), "x"); !errors.As(err, &apiErr) || apiErr.Code != 400 {
		t.Fatalf("expected genai.APIError, got %v", err)
	}

	empty := geminiServer(t, http.StatusOK, map[string]any{"candidates": []any{}}, nil)
	defer empty.Close()
	c.BaseURL = empty.URL
	if _, err := c.Summarize(context.Background(), "x"); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}

	blocked := geminiServer(t, http.StatusOK, map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}}, nil)
	defer blocked.Close()
	c.BaseURL = blocked.URL
	if _, err := c.Summarize(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Fatalf("expected blocked prompt error, got %v", err)
	}

	if _, err := NewGeminiClient("", "", nil).Summarize(context.Background(), "x"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestLoadNotesAndSaveSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("\n  photosynthesis basics \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	text, err := LoadNotes(path)
	if err != nil || text != "photosynthesis basics" {
		t.Fatalf("LoadNotes=%q, %v", text, err)
	}
	blank := filepath.Join(dir, "blank.txt")
	_ = os.WriteFile(blank, []byte("   \n"), 0o644)
	if _, err := LoadNotes(blank); !errors.Is(err, ErrNoNotes) {
		t.Fatalf("expected ErrNoNotes, got %v", err)
	}
	out := filepath.Join(dir, "summary.txt")
	if err := SaveSummary(out, "Plants make sugar."); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "Summary\n\nPlants make sugar.\n" {
		t.Fatalf("summary file=%q", data)
	}
}
