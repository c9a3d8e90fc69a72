package model

import "time"

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// InterviewStatus represents where a candidate is in the interview lifecycle.
type InterviewStatus string

const (
	StatusNotStarted InterviewStatus = "not_started"
	StatusInProgress InterviewStatus = "in_progress"
	StatusCompleted  InterviewStatus = "completed"
)

// MessageType represents the author of a chat message.
type MessageType string

const (
	MessageSystem MessageType = "system"
	MessageAI     MessageType = "ai"
	MessageUser   MessageType = "user"
)

// NoAnswer is recorded in place of a blank answer.
const NoAnswer = "No answer provided"

// Question is an immutable entry of the question bank.
type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Difficulty Difficulty `json:"difficulty"`
	TimeLimit  int        `json:"timeLimit"`
}

// Answer is a scored response to a single question.
type Answer struct {
	QuestionID string     `json:"questionId"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Difficulty Difficulty `json:"difficulty"`
	Score      int        `json:"score"`
	TimeSpent  int        `json:"timeSpent"`
	Timestamp  time.Time  `json:"timestamp"`
	IsValid    bool       `json:"isValid"`
	Feedback   string     `json:"feedback,omitempty"`
}

// Candidate is a person undergoing the interview and the record of their progress.
type Candidate struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone"`
	ResumeFile           string          `json:"resumeFile,omitempty"`
	InterviewStatus      InterviewStatus `json:"interviewStatus"`
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	Answers              []Answer        `json:"answers"`
	FinalScore           *int            `json:"finalScore,omitempty"`
	Summary              string          `json:"summary,omitempty"`
	StartTime            *time.Time      `json:"startTime,omitempty"`
	EndTime              *time.Time      `json:"endTime,omitempty"`
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	out := c
	out.Answers = append([]Answer(nil), c.Answers...)
	if c.FinalScore != nil {
		v := *c.FinalScore
		out.FinalScore = &v
	}
	if c.StartTime != nil {
		t := *c.StartTime
		out.StartTime = &t
	}
	if c.EndTime != nil {
		t := *c.EndTime
		out.EndTime = &t
	}
	return out
}

// ChatMessage is one entry of the interview transcript.
type ChatMessage struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	QuestionID string      `json:"questionId,omitempty"`
}

// SessionState is the whole persisted state of the application.
type SessionState struct {
	Candidates        []Candidate   `json:"candidates"`
	CurrentCandidate  *Candidate    `json:"currentCandidate,omitempty"`
	CurrentQuestion   *Question     `json:"currentQuestion,omitempty"`
	ChatMessages      []ChatMessage `json:"chatMessages"`
	TimeRemaining     int           `json:"timeRemaining"`
	IsInterviewActive bool          `json:"isInterviewActive"`
	IsPaused          bool          `json:"isPaused"`
}

// Clone returns a deep copy of the state, safe to hand to readers.
func (s SessionState) Clone() SessionState {
	out := s
	out.Candidates = make([]Candidate, len(s.Candidates))
	for i, c := range s.Candidates {
		out.Candidates[i] = c.Clone()
	}
	if s.CurrentCandidate != nil {
		c := s.CurrentCandidate.Clone()
		out.CurrentCandidate = &c
	}
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		out.CurrentQuestion = &q
	}
	out.ChatMessages = append([]ChatMessage(nil), s.ChatMessages...)
	return out
}

// FindCandidate returns the index of the roster entry with the given ID, or -1.
func (s *SessionState) FindCandidate(id string) int {
	for i := range s.Candidates {
		if s.Candidates[i].ID == id {
			return i
		}
	}
	return -1
}

// UpsertCandidate patches the roster entry with c's ID, appending it if absent.
func (s *SessionState) UpsertCandidate(c Candidate) {
	if i := s.FindCandidate(c.ID); i >= 0 {
		s.Candidates[i] = c.Clone()
		return
	}
	s.Candidates = append(s.Candidates, c.Clone())
}

// Config holds runtime interview parameters set via CLI flags.
type Config struct {
	ResumePolicy  string        // restart or preserve
	TickInterval  time.Duration // 0 disables the background timer
	ScoreTimeout  time.Duration // upper bound for a single scoring call
	NotifyTimeout time.Duration // upper bound for a completion notification
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Difficulty Difficulty `json:"difficulty"`
	TimeLimit  int        `json:"time_limit"`
}
