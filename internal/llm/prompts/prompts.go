// Package prompts builds the grading prompts sent to the language model.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	candidateAnswerRegex    = regexp.MustCompile(`(?i)</?\s*candidate-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Variant selects how harshly answers are graded.
type Variant string

const (
	// Strict expects precise, complete answers.
	Strict Variant = "strict"
	// Standard is the default grading variant.
	Standard Variant = "standard"
	// Lenient rewards partial understanding.
	Lenient Variant = "lenient"
)

// NoAnswer replaces an empty answer in the prompt.
const NoAnswer = "[No answer provided]"

const maxAnswerRunes = 10000

// IsValidVariant reports whether v names a known variant.
func IsValidVariant(v string) bool {
	switch Variant(v) {
	case Strict, Standard, Lenient:
		return true
	}
	return false
}

// Data is the template input for a grading prompt.
type Data struct {
	Question   string
	Difficulty string
	Answer     string
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

func load() error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template)
		for _, v := range []Variant{Strict, Standard, Lenient} {
			name := "templates/" + string(v) + ".txt"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// Build renders the system prompt for grading answer to question.
func Build(variant Variant, question string, difficulty model.Difficulty, answer string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant %q", variant)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, Data{
		Question:   question,
		Difficulty: strings.ToUpper(string(difficulty)),
		Answer:     Sanitize(answer),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Sanitize strips delimiter tags a candidate could use to break out of the
// answer block, and truncates very long answers.
func Sanitize(answer string) string {
	answer = candidateAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return NoAnswer
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
