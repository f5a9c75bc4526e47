package study

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrNoNotes is returned when there is nothing to study.
var ErrNoNotes = errors.New("study: notes are empty")

const maxNotesBytes = 4 << 20

// SummaryPrompt wraps notes for summarization.
func SummaryPrompt(text string) string {
	return "Summarize this text:\n\n" + text
}

// QuizPrompt asks for five questions in a fixed JSON shape.
func QuizPrompt(text string) string {
	return `Create 5 multiple-choice questions based on this text in JSON format:
Format:
[
    {
        "question": "Question text",
        "options": ["Option A", "Option B", "Option C", "Option D"],
        "correct_answer": "Option A"
    }
]
Text:

` + text
}

// LoadNotes reads a plain-text notes file.
func LoadNotes(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.Size() > maxNotesBytes {
		return "", fmt.Errorf("study: %s is larger than %d bytes", path, maxNotesBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("study: %s is not UTF-8 text", path)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ErrNoNotes
	}
	return text, nil
}

// SaveSummary writes a summary as a titled text file.
func SaveSummary(path, summary string) error {
	return os.WriteFile(path, []byte("Summary\n\n"+strings.TrimSpace(summary)+"\n"), 0o644)
}
