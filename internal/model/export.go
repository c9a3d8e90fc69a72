package model

import "time"

// RosterExport is the top-level JSON structure for interview result export.
type RosterExport struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	NumQuestions int               `json:"num_questions"`
	Results      []CandidateResult `json:"results"`
}

// CandidateResult holds one candidate's interview data for export.
type CandidateResult struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Phone      string           `json:"phone"`
	Status     InterviewStatus  `json:"status"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	FinalScore *int             `json:"final_score,omitempty"`
	Summary    string           `json:"summary,omitempty"`
	Questions  []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Difficulty Difficulty `json:"difficulty"`
	Answer     string     `json:"answer"`
	Score      int        `json:"score"`
	Valid      bool       `json:"valid"`
	Feedback   string     `json:"feedback"`
	TimeSpent  int        `json:"time_spent"`
	AnsweredAt time.Time  `json:"answered_at"`
}

// NewCandidateResult flattens a candidate into its export form.
func NewCandidateResult(c Candidate) CandidateResult {
	res := CandidateResult{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Status:     c.InterviewStatus,
		StartedAt:  c.StartTime,
		FinishedAt: c.EndTime,
		FinalScore: c.FinalScore,
		Summary:    c.Summary,
		Questions:  make([]QuestionResult, 0, len(c.Answers)),
	}
	for _, a := range c.Answers {
		res.Questions = append(res.Questions, QuestionResult{
			ID:         a.QuestionID,
			Text:       a.Question,
			Difficulty: a.Difficulty,
			Answer:     a.Answer,
			Score:      a.Score,
			Valid:      a.IsValid,
			Feedback:   a.Feedback,
			TimeSpent:  a.TimeSpent,
			AnsweredAt: a.Timestamp,
		})
	}
	return res
}
