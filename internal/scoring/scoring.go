// Package scoring grades interview answers with a keyword heuristic.
//
// Evaluate is pure: the same question, answer and difficulty always produce
// the same Result. Lengths are measured in runes.
package scoring

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/model"
)

// Result holds the assessment of a single answer.
type Result struct {
	Score               int     `json:"score"`
	IsValid             bool    `json:"isValid"`
	TechnicallyAccurate bool    `json:"technicallyAccurate"`
	Relevance           float64 `json:"relevance"`
	Feedback            string  `json:"feedback"`
}

// Scorer grades an answer. Implementations may be slow or fail.
type Scorer interface {
	Evaluate(ctx context.Context, question, answer string, difficulty model.Difficulty) (Result, error)
}

// Heuristic is the Scorer backed by Evaluate.
type Heuristic struct{}

// Evaluate implements Scorer.
func (Heuristic) Evaluate(ctx context.Context, question, answer string, difficulty model.Difficulty) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Evaluate(question, answer, difficulty), nil
}

const (
	maxLengthBonus  = 20.0
	keywordPoints   = 5
	maxKeywordBonus = 30

	invalidPenalty    = 30.0
	inaccuracyPenalty = 20.0
	accuracyBonus     = 15.0
	shortPenalty      = 25.0
	offTopicPenalty   = 40.0

	minTrimmedLength = 10
	shortAnswer      = 30
	briefAnswer      = 50
	longAnswer       = 500
	offTopicRatio    = 0.3
)

var vocabulary = []string{
	"react", "component", "state", "props", "hook", "jsx",
	"node", "express", "async", "promise", "callback",
	"database", "api", "rest", "graphql", "websocket",
	"microservice", "docker", "kubernetes", "aws", "azure",
}

// Evaluate scores answer against question for the given difficulty.
func Evaluate(question, answer string, difficulty model.Difficulty) Result {
	length := utf8.RuneCountInString(answer)
	accurate := technicallyAccurate(question, answer)
	valid := validate(question, answer, difficulty)
	relevance := relevanceRatio(question, answer)

	score := baseScore(difficulty) + math.Min(float64(length)/100, maxLengthBonus) + float64(keywordBonus(question, answer))

	if !valid {
		score = math.Max(0, score-invalidPenalty)
	}
	if !accurate {
		score = math.Max(0, score-inaccuracyPenalty)
	}
	if accurate && valid {
		score = math.Min(100, score+accuracyBonus)
	}
	if length < shortAnswer {
		score = math.Max(0, score-shortPenalty)
	}
	if relevance < offTopicRatio {
		score = math.Max(0, score-offTopicPenalty)
	}
	score = math.Min(100, math.Max(0, score))

	return Result{
		Score:               int(math.Round(score)),
		IsValid:             valid,
		TechnicallyAccurate: accurate,
		Relevance:           relevance,
		Feedback:            feedback(question, answer, difficulty, score, accurate, relevance),
	}
}

func baseScore(d model.Difficulty) float64 {
	switch d {
	case model.DifficultyEasy:
		return 60
	case model.DifficultyMedium:
		return 50
	case model.DifficultyHard:
		return 40
	default:
		return 50
	}
}

func minLength(d model.Difficulty) int {
	switch d {
	case model.DifficultyEasy:
		return 20
	case model.DifficultyMedium:
		return 50
	default:
		return 100
	}
}

// keywords returns the vocabulary terms mentioned in the question.
func keywords(question string) []string {
	lq := strings.ToLower(question)
	var out []string
	for _, kw := range vocabulary {
		if strings.Contains(lq, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func keywordBonus(question, answer string) int {
	la := strings.ToLower(answer)
	bonus := 0
	for _, kw := range keywords(question) {
		if strings.Contains(la, kw) {
			bonus += keywordPoints
		}
	}
	return min(bonus, maxKeywordBonus)
}

func validate(question, answer string, d model.Difficulty) bool {
	if utf8.RuneCountInString(strings.TrimSpace(answer)) < minTrimmedLength {
		return false
	}
	if utf8.RuneCountInString(answer) < minLength(d) {
		return false
	}
	la := strings.ToLower(answer)
	hasKeyword := false
	for _, kw := range keywords(question) {
		if strings.Contains(la, kw) {
			hasKeyword = true
			break
		}
	}
	return hasKeyword && technicallyAccurate(question, answer)
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

type topic int

const (
	topicGeneric topic = iota
	topicReact
	topicNode
	topicArchitecture
	topicWebSocket
)

// topicOf picks the first matching topic; React wins over Node and so on.
func topicOf(lq string) topic {
	switch {
	case strings.Contains(lq, "react"):
		return topicReact
	case strings.Contains(lq, "node"):
		return topicNode
	case containsAny(lq, "architecture", "microservice"):
		return topicArchitecture
	case containsAny(lq, "websocket", "real-time"):
		return topicWebSocket
	}
	return topicGeneric
}

func technicallyAccurate(question, answer string) bool {
	la := strings.ToLower(answer)
	switch topicOf(strings.ToLower(question)) {
	case topicReact:
		return containsAny(la, "component", "jsx", "state", "props", "virtual dom", "render") &&
			!containsAny(la, "jquery", "angular", "vue", "vanilla javascript")
	case topicNode:
		return containsAny(la, "javascript", "server", "runtime", "event loop", "npm", "package") ||
			containsAny(la, "backend", "api", "database", "async", "callback")
	case topicArchitecture:
		return containsAny(la, "scalable", "distributed", "service", "api", "database", "load balancer")
	case topicWebSocket:
		return containsAny(la, "socket", "connection", "real-time", "bidirectional", "event")
	}
	return containsAny(la, "function", "method", "class", "object", "variable", "array", "string")
}

func relevanceRatio(question, answer string) float64 {
	kws := keywords(question)
	if len(kws) == 0 {
		return 1
	}
	la := strings.ToLower(answer)
	matched := 0
	for _, kw := range kws {
		if strings.Contains(la, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(kws))
}
