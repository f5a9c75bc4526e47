package study

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedQuiz is returned when generated quiz text cannot be used.
var ErrMalformedQuiz = errors.New("study: malformed quiz")

// Question is one multiple-choice question.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// Quiz is an ordered list of questions.
type Quiz []Question

// Score is the result of grading a quiz.
type Score struct {
	Correct int
	Total   int
}

// Percent returns the share of correct answers in percent.
func (s Score) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total) * 100
}

func (s Score) String() string {
	return fmt.Sprintf("Score: %d/%d (%.1f%%)", s.Correct, s.Total, s.Percent())
}

// Score grades answers, one per question in order. Missing or empty answers
// count as wrong.
func (q Quiz) Score(answers []string) Score {
	s := Score{Total: len(q)}
	for i, question := range q {
		if i < len(answers) && answers[i] != "" && answers[i] == question.CorrectAnswer {
			s.Correct++
		}
	}
	return s
}

// ParseQuiz decodes model output into a Quiz. Markdown code fences around the
// JSON are removed first.
func ParseQuiz(raw string) (Quiz, error) {
	text := stripFence(raw)
	var q Quiz
	if err := json.Unmarshal([]byte(text), &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuiz, err)
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrMalformedQuiz)
	}
	for i, question := range q {
		if err := question.validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrMalformedQuiz, i+1, err)
		}
	}
	return q, nil
}

func (q Question) validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("empty question")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%d options", len(q.Options))
	}
	for _, o := range q.Options {
		if o == q.CorrectAnswer {
			return nil
		}
	}
	return fmt.Errorf("correct answer %q is not an option", q.CorrectAnswer)
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. "json"
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
