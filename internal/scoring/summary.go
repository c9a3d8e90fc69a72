package scoring

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/model"
)

// FinalScore is the rounded mean of the answer scores, 0 when there are none.
func FinalScore(answers []model.Answer) int {
	return int(math.Round(mean(answers)))
}

func mean(answers []model.Answer) float64 {
	if len(answers) == 0 {
		return 0
	}
	total := 0
	for _, a := range answers {
		total += a.Score
	}
	return float64(total) / float64(len(answers))
}

// Summarize writes the completion synopsis for a candidate.
func Summarize(name string, answers []model.Answer) string {
	avg := mean(answers)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Candidate %s achieved an overall score of %.1f/100.", name, avg)
	if s := strengths(answers); len(s) > 0 {
		fmt.Fprintf(&sb, " Strengths include: %s.", strings.Join(s, ", "))
	}
	if a := growthAreas(answers); len(a) > 0 {
		fmt.Fprintf(&sb, " Areas for improvement: %s.", strings.Join(a, ", "))
	}

	verdict := "limited"
	switch {
	case avg >= 70:
		verdict = "strong"
	case avg >= 50:
		verdict = "moderate"
	}
	fmt.Fprintf(&sb, " The candidate demonstrated %s technical knowledge.", verdict)
	return sb.String()
}

func strengths(answers []model.Answer) []string {
	var out []string
	if anyAnswer(answers, func(a model.Answer) bool { return a.Score >= 70 && a.Difficulty == model.DifficultyHard }) {
		out = append(out, "complex problem solving")
	}
	if anyAnswer(answers, func(a model.Answer) bool { return a.Score >= 70 && a.Difficulty == model.DifficultyMedium }) {
		out = append(out, "intermediate concepts")
	}
	if len(answers) > 0 && !anyAnswer(answers, func(a model.Answer) bool { return utf8.RuneCountInString(a.Answer) <= 50 }) {
		out = append(out, "detailed explanations")
	}
	return out
}

func growthAreas(answers []model.Answer) []string {
	var out []string
	if anyAnswer(answers, func(a model.Answer) bool { return a.Score < 50 && a.Difficulty == model.DifficultyEasy }) {
		out = append(out, "fundamental concepts")
	}
	if anyAnswer(answers, func(a model.Answer) bool { return a.Score < 50 && a.Difficulty == model.DifficultyMedium }) {
		out = append(out, "intermediate topics")
	}
	if anyAnswer(answers, func(a model.Answer) bool { return utf8.RuneCountInString(a.Answer) < 20 }) {
		out = append(out, "detailed explanations")
	}
	return out
}

func anyAnswer(answers []model.Answer, pred func(model.Answer) bool) bool {
	for _, a := range answers {
		if pred(a) {
			return true
		}
	}
	return false
}
