package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/interviewer/internal/model"
)

func answer(d model.Difficulty, score int, text string) model.Answer {
	return model.Answer{Difficulty: d, Score: score, Answer: text}
}

func TestFinalScore(t *testing.T) {
	assert.Equal(t, 0, FinalScore(nil))
	assert.Equal(t, 50, FinalScore([]model.Answer{answer("easy", 40, ""), answer("easy", 60, "")}))
	// 81 + 0 + 96 + 77 + 77 + 63 = 394, mean 65.67
	assert.Equal(t, 66, FinalScore([]model.Answer{
		answer("easy", 81, ""), answer("easy", 0, ""), answer("medium", 96, ""),
		answer("medium", 77, ""), answer("hard", 77, ""), answer("hard", 63, ""),
	}))
	assert.Equal(t, 3, FinalScore([]model.Answer{answer("easy", 2, ""), answer("easy", 3, "")}))
}

func TestSummarizeStrong(t *testing.T) {
	long := strings.Repeat("detail ", 10)
	s := Summarize("Ada Lovelace", []model.Answer{
		answer(model.DifficultyEasy, 90, long),
		answer(model.DifficultyMedium, 80, long),
		answer(model.DifficultyHard, 75, long),
	})
	assert.Contains(t, s, "Candidate Ada Lovelace achieved an overall score of 81.7/100.")
	assert.Contains(t, s, "Strengths include: complex problem solving, intermediate concepts, detailed explanations.")
	assert.NotContains(t, s, "Areas for improvement")
	assert.Contains(t, s, "strong technical knowledge")
}

func TestSummarizeWeak(t *testing.T) {
	s := Summarize("Bob", []model.Answer{
		answer(model.DifficultyEasy, 10, model.NoAnswer),
		answer(model.DifficultyMedium, 45, "short but not that short at all"),
		answer(model.DifficultyHard, 0, model.NoAnswer),
	})
	assert.Contains(t, s, "overall score of 18.3/100.")
	assert.NotContains(t, s, "Strengths include")
	assert.Contains(t, s, "Areas for improvement: fundamental concepts, intermediate topics, detailed explanations.")
	assert.Contains(t, s, "limited technical knowledge")
}

func TestSummarizeModerate(t *testing.T) {
	s := Summarize("Cy", []model.Answer{answer(model.DifficultyEasy, 55, "a reasonably sized answer")})
	assert.Contains(t, s, "moderate technical knowledge")
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("Nobody", nil)
	assert.Contains(t, s, "overall score of 0.0/100.")
	assert.NotContains(t, s, "Strengths include")
}
