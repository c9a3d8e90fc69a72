// Package questions holds the fixed, ordered catalog of interview questions.
package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pavelanni/interviewer/internal/model"
)

// ErrOutOfRange is returned when an index falls outside the bank.
var ErrOutOfRange = errors.New("question index out of range")

// Bank is a read-only ordered sequence of questions.
type Bank struct {
	questions []model.Question
}

// Tier summarises the questions of one difficulty.
type Tier struct {
	Difficulty model.Difficulty
	Count      int
	TimeLimit  int // limit of the first question of the tier
}

var reference = []model.Question{
	{
		ID:         "q1",
		Text:       "What is React and what are its main advantages over traditional DOM manipulation?",
		Difficulty: model.DifficultyEasy,
		TimeLimit:  20,
	},
	{
		ID:         "q2",
		Text:       "Explain the difference between state and props in React components.",
		Difficulty: model.DifficultyEasy,
		TimeLimit:  20,
	},
	{
		ID:         "q3",
		Text:       "How would you implement a custom hook in React? Provide a practical example.",
		Difficulty: model.DifficultyMedium,
		TimeLimit:  60,
	},
	{
		ID:         "q4",
		Text:       "Describe the Node.js event loop and how it handles asynchronous operations.",
		Difficulty: model.DifficultyMedium,
		TimeLimit:  60,
	},
	{
		ID:         "q5",
		Text:       "Design a scalable microservices architecture for an e-commerce platform. What technologies would you use and why?",
		Difficulty: model.DifficultyHard,
		TimeLimit:  120,
	},
	{
		ID:         "q6",
		Text:       "Implement a real-time chat application using WebSockets. Walk through the architecture and key implementation details.",
		Difficulty: model.DifficultyHard,
		TimeLimit:  120,
	},
}

// Default returns the full-stack reference bank: 2 easy, 2 medium, 2 hard.
func Default() *Bank {
	b, err := New(reference)
	if err != nil {
		panic(err)
	}
	return b
}

// New validates qs and returns a bank holding a private copy.
func New(qs []model.Question) (*Bank, error) {
	if len(qs) == 0 {
		return nil, errors.New("question bank is empty")
	}
	seen := make(map[string]bool, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			return nil, fmt.Errorf("question %d: missing id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("question %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = true
		if q.Text == "" {
			return nil, fmt.Errorf("question %q: missing text", q.ID)
		}
		if !q.Difficulty.Valid() {
			return nil, fmt.Errorf("question %q: unknown difficulty %q", q.ID, q.Difficulty)
		}
		if q.TimeLimit <= 0 {
			return nil, fmt.Errorf("question %q: time limit must be positive, got %d", q.ID, q.TimeLimit)
		}
	}
	return &Bank{questions: append([]model.Question(nil), qs...)}, nil
}

// Load reads a bank from a JSON file of question imports.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var imports []model.QuestionImport
	if err := json.Unmarshal(data, &imports); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	qs := make([]model.Question, 0, len(imports))
	for _, qi := range imports {
		qs = append(qs, model.Question{
			ID:         qi.ID,
			Text:       qi.Text,
			Difficulty: qi.Difficulty,
			TimeLimit:  qi.TimeLimit,
		})
	}
	b, err := New(qs)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return b, nil
}

// Get returns the question at index i.
func (b *Bank) Get(i int) (model.Question, error) {
	if i < 0 || i >= len(b.questions) {
		return model.Question{}, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, i, len(b.questions))
	}
	return b.questions[i], nil
}

// ByID returns the question with the given id.
func (b *Bank) ByID(id string) (model.Question, bool) {
	for _, q := range b.questions {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}

// Size returns the number of questions.
func (b *Bank) Size() int {
	return len(b.questions)
}

// All returns the questions in presentation order.
func (b *Bank) All() []model.Question {
	return append([]model.Question(nil), b.questions...)
}

// Composition groups the bank by difficulty, in order of first appearance.
func (b *Bank) Composition() []Tier {
	var tiers []Tier
	idx := make(map[model.Difficulty]int)
	for _, q := range b.questions {
		i, ok := idx[q.Difficulty]
		if !ok {
			idx[q.Difficulty] = len(tiers)
			tiers = append(tiers, Tier{Difficulty: q.Difficulty, TimeLimit: q.TimeLimit})
			i = len(tiers) - 1
		}
		tiers[i].Count++
	}
	return tiers
}
