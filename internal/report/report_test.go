package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/interviewer/internal/model"
)

func TestWriteCompleted(t *testing.T) {
	score := 72
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(7 * time.Minute)
	c := model.Candidate{
		ID: "c1", Name: "Zoë Ångström", Email: "zoe@example.com", Phone: "555-010-0199",
		InterviewStatus: model.StatusCompleted, FinalScore: &score, Summary: "Candidate Zoë achieved an overall score of 72.0/100.",
		StartTime: &start, EndTime: &end,
		Answers: []model.Answer{
			{QuestionID: "q1", Question: "What is React?", Answer: "A UI library.", Difficulty: model.DifficultyEasy, Score: 72, TimeSpent: 12, Feedback: "Good answer!"},
			{QuestionID: "q2", Question: "State vs props?", Answer: model.NoAnswer, Difficulty: model.DifficultyEasy, Score: 0, TimeSpent: 20},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestWriteWithoutAnswers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, model.Candidate{ID: "c2", Name: "Nobody", InterviewStatus: model.StatusNotStarted}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
