// Package interview drives one candidate through the question bank.
//
// A Machine never touches the wall clock or storage on its own: every
// operation mutates the SessionState it is given, using the injected clock
// and id generator. Callers own locking and persistence.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/questions"
	"github.com/pavelanni/interviewer/internal/scoring"
)

var (
	// ErrNoCandidate is returned when no candidate occupies the active slot.
	ErrNoCandidate = errors.New("no active candidate")
	// ErrDuplicateStart is returned when an interview is already under way.
	ErrDuplicateStart = errors.New("interview already started")
	// ErrNotActive is returned when answering outside an active interview.
	ErrNotActive = errors.New("interview is not active")
	// ErrNotResumable is returned when the active candidate has nothing to resume.
	ErrNotResumable = errors.New("no interview to resume")
	// ErrStaleSubmission is returned when the question changed while scoring.
	ErrStaleSubmission = errors.New("submission no longer matches the current question")
	// ErrScoringUnavailable is returned when the scorer fails; nothing is recorded.
	ErrScoringUnavailable = errors.New("scoring unavailable")
)

// ResumePolicy decides what happens to the question timer on resume.
type ResumePolicy string

const (
	// ResumeRestart gives the current question its full time limit again.
	ResumeRestart ResumePolicy = "restart"
	// ResumePreserve keeps the time that was left before the interruption.
	ResumePreserve ResumePolicy = "preserve"
)

// ParseResumePolicy maps a flag value to a policy.
func ParseResumePolicy(s string) (ResumePolicy, error) {
	switch p := ResumePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ResumeRestart:
		return ResumeRestart, nil
	case ResumePreserve:
		return p, nil
	default:
		return "", fmt.Errorf("unknown resume policy %q (want restart or preserve)", s)
	}
}

// Machine implements the interview transitions over a question bank.
type Machine struct {
	bank  *questions.Bank
	now   func() time.Time
	newID func() string
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDs overrides the message id generator.
func WithIDs(newID func() string) Option {
	return func(m *Machine) { m.newID = newID }
}

// New creates a Machine for the given bank.
func New(bank *questions.Bank, opts ...Option) *Machine {
	m := &Machine{
		bank:  bank,
		now:   time.Now,
		newID: func() string { return "msg_" + uuid.NewString() },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Bank returns the question bank the machine walks through.
func (m *Machine) Bank() *questions.Bank {
	return m.bank
}

// Submission is the snapshot taken when an answer is handed in.
type Submission struct {
	CandidateID string
	Index       int
	Question    model.Question
	Text        string
	TimeSpent   int
	TimedOut    bool
}

// Outcome describes the effect of an applied answer.
type Outcome struct {
	Answer    model.Answer    `json:"answer"`
	Result    scoring.Result  `json:"result"`
	Next      *model.Question `json:"next,omitempty"`
	Completed bool            `json:"completed"`
	Candidate model.Candidate `json:"candidate"`
}

// Start begins the interview for the active candidate.
func (m *Machine) Start(st *model.SessionState) error {
	c := st.CurrentCandidate
	if c == nil {
		return ErrNoCandidate
	}
	if st.IsInterviewActive || c.InterviewStatus != model.StatusNotStarted {
		return fmt.Errorf("%w: candidate %s is %s", ErrDuplicateStart, c.ID, c.InterviewStatus)
	}
	first, err := m.bank.Get(0)
	if err != nil {
		return err
	}

	now := m.now()
	c.InterviewStatus = model.StatusInProgress
	c.StartTime = &now
	c.CurrentQuestionIndex = 0
	c.Answers = nil
	st.UpsertCandidate(*c)

	st.ChatMessages = nil
	m.say(st, model.MessageSystem, m.welcome(c.Name), "")
	m.present(st, 0, first)
	st.IsInterviewActive = true
	st.IsPaused = false
	return nil
}

// Tick advances the question clock by one second. It reports true when the
// clock has run out and a timeout answer must be submitted.
func (m *Machine) Tick(st *model.SessionState) bool {
	if !st.IsInterviewActive || st.CurrentQuestion == nil {
		return false
	}
	if st.TimeRemaining > 0 {
		st.TimeRemaining--
	}
	return st.TimeRemaining == 0
}

// Prepare validates that an answer can be submitted and snapshots the question.
// It does not modify st.
func (m *Machine) Prepare(st *model.SessionState, text string, timedOut bool) (Submission, error) {
	c := st.CurrentCandidate
	if !st.IsInterviewActive || st.CurrentQuestion == nil || c == nil || c.InterviewStatus != model.StatusInProgress {
		return Submission{}, ErrNotActive
	}
	q := *st.CurrentQuestion
	return Submission{
		CandidateID: c.ID,
		Index:       c.CurrentQuestionIndex,
		Question:    q,
		Text:        text,
		TimeSpent:   max(0, q.TimeLimit-st.TimeRemaining),
		TimedOut:    timedOut,
	}, nil
}

// Apply records a scored submission and moves to the next question or
// completes the interview.
func (m *Machine) Apply(st *model.SessionState, sub Submission, res scoring.Result) (Outcome, error) {
	c := st.CurrentCandidate
	if !st.IsInterviewActive || c == nil || st.CurrentQuestion == nil ||
		c.ID != sub.CandidateID || c.CurrentQuestionIndex != sub.Index || st.CurrentQuestion.ID != sub.Question.ID {
		return Outcome{}, ErrStaleSubmission
	}

	if sub.TimedOut {
		m.say(st, model.MessageSystem, "Time's up! Moving to the next question.", "")
	}
	text := sub.Text
	if strings.TrimSpace(text) != "" {
		m.say(st, model.MessageUser, text, "")
	} else {
		text = model.NoAnswer
	}

	ans := model.Answer{
		QuestionID: sub.Question.ID,
		Question:   sub.Question.Text,
		Answer:     text,
		Difficulty: sub.Question.Difficulty,
		Score:      res.Score,
		TimeSpent:  sub.TimeSpent,
		Timestamp:  m.now(),
		IsValid:    res.IsValid,
		Feedback:   res.Feedback,
	}
	c.Answers = append(c.Answers, ans)
	c.CurrentQuestionIndex++
	m.say(st, model.MessageAI, feedbackMessage(res), "")

	out := Outcome{Answer: ans, Result: res}
	if c.CurrentQuestionIndex < m.bank.Size() {
		next, err := m.bank.Get(c.CurrentQuestionIndex)
		if err != nil {
			return Outcome{}, err
		}
		st.UpsertCandidate(*c)
		m.present(st, c.CurrentQuestionIndex, next)
		out.Next = &next
		out.Candidate = c.Clone()
		return out, nil
	}

	out.Completed = true
	out.Candidate = m.complete(st)
	return out, nil
}

// Submit prepares, scores and applies an answer in one call. A scoring
// failure leaves st untouched.
func (m *Machine) Submit(ctx context.Context, st *model.SessionState, scorer scoring.Scorer, text string, timedOut bool) (Outcome, error) {
	sub, err := m.Prepare(st, text, timedOut)
	if err != nil {
		return Outcome{}, err
	}
	res, err := scorer.Evaluate(ctx, sub.Question.Text, sub.Text, sub.Question.Difficulty)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}
	return m.Apply(st, sub, res)
}

// complete finalises the active candidate and frees the active slot.
func (m *Machine) complete(st *model.SessionState) model.Candidate {
	c := st.CurrentCandidate
	final := scoring.FinalScore(c.Answers)
	now := m.now()

	c.FinalScore = &final
	c.Summary = scoring.Summarize(c.Name, c.Answers)
	c.InterviewStatus = model.StatusCompleted
	c.EndTime = &now
	st.UpsertCandidate(*c)

	m.say(st, model.MessageSystem, fmt.Sprintf("Interview completed! Your final score: %d/100", final), "")

	done := c.Clone()
	st.CurrentCandidate = nil
	st.CurrentQuestion = nil
	st.TimeRemaining = 0
	st.IsInterviewActive = false
	return done
}

// Resume re-enters an interrupted interview at the same question.
func (m *Machine) Resume(st *model.SessionState, policy ResumePolicy) error {
	c := st.CurrentCandidate
	if c == nil || c.InterviewStatus != model.StatusInProgress || st.IsInterviewActive {
		return ErrNotResumable
	}
	q, err := m.bank.Get(c.CurrentQuestionIndex)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotResumable, err)
	}

	banked := st.TimeRemaining
	sameQuestion := st.CurrentQuestion != nil && st.CurrentQuestion.ID == q.ID

	m.say(st, model.MessageSystem, fmt.Sprintf("Welcome back, %s! Let's continue where you left off.", c.Name), "")
	m.present(st, c.CurrentQuestionIndex, q)
	if policy == ResumePreserve && sameQuestion && banked > 0 && banked <= q.TimeLimit {
		st.TimeRemaining = banked
	}
	st.IsInterviewActive = true
	return nil
}

// Discard abandons the active candidate. The roster entry is kept.
func (m *Machine) Discard(st *model.SessionState) {
	if c := st.CurrentCandidate; c != nil {
		st.UpsertCandidate(*c)
	}
	st.CurrentCandidate = nil
	st.CurrentQuestion = nil
	st.ChatMessages = nil
	st.TimeRemaining = 0
	st.IsInterviewActive = false
	st.IsPaused = false
}

// present loads question i and resets the clock to its limit.
func (m *Machine) present(st *model.SessionState, i int, q model.Question) {
	st.CurrentQuestion = &q
	st.TimeRemaining = q.TimeLimit
	content := fmt.Sprintf("Question %d of %d (%s): %s", i+1, m.bank.Size(), strings.ToUpper(string(q.Difficulty)), q.Text)
	m.say(st, model.MessageAI, content, q.ID)
}

func (m *Machine) say(st *model.SessionState, typ model.MessageType, content, questionID string) {
	st.ChatMessages = append(st.ChatMessages, model.ChatMessage{
		ID:         m.newID(),
		Type:       typ,
		Content:    content,
		Timestamp:  m.now(),
		QuestionID: questionID,
	})
}

func (m *Machine) welcome(name string) string {
	var parts []string
	for _, t := range m.bank.Composition() {
		label := strings.ToUpper(string(t.Difficulty[:1])) + string(t.Difficulty[1:])
		parts = append(parts, fmt.Sprintf("%d %s (%ds each)", t.Count, label, t.TimeLimit))
	}
	list := strings.Join(parts, ", ")
	switch n := len(parts); {
	case n == 2:
		list = parts[0] + " and " + parts[1]
	case n > 2:
		list = strings.Join(parts[:n-1], ", ") + ", and " + parts[n-1]
	}
	return fmt.Sprintf("Welcome to your interview, %s! You'll answer %d questions: %s. Let's begin!", name, m.bank.Size(), list)
}

func feedbackMessage(res scoring.Result) string {
	return fmt.Sprintf("Thank you for your answer. Score: %d/100", res.Score)
}
