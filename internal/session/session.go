// Package session owns the single live interview session: it serialises
// every mutation, persists the state after each one and runs the question
// timer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/metrics"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/notify"
	"github.com/pavelanni/interviewer/internal/scoring"
	"github.com/pavelanni/interviewer/internal/store"
)

var (
	// ErrIntakeValidation is returned when intake fields are missing or malformed.
	ErrIntakeValidation = errors.New("invalid candidate details")
	// ErrSessionPending is returned by Intake while an interrupted interview
	// waits to be resumed or discarded.
	ErrSessionPending = errors.New("an unfinished interview must be resumed or discarded first")
	// ErrSubmissionInFlight is returned when an answer is already being scored.
	ErrSubmissionInFlight = errors.New("an answer is already being scored")
	// ErrNotFound is returned for unknown candidate ids.
	ErrNotFound = errors.New("candidate not found")
)

// KV is the durable key-value boundary for the session layout.
type KV interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	Apply(ctx context.Context, set map[string]string, del ...string) error
}

// Options tunes a Service. Zero values fall back to sensible defaults.
type Options struct {
	ResumePolicy  interview.ResumePolicy
	TickInterval  time.Duration // 0 disables the background timer
	ScoreTimeout  time.Duration
	NotifyTimeout time.Duration
	Logger        *slog.Logger
}

// Intake is the candidate detail form.
type Intake struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,min=7,max=32"`
	ResumeFile string `json:"resumeFile,omitempty"`
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	State          model.SessionState `json:"state"`
	PendingResume  bool               `json:"pendingResume"`
	QuestionNumber int                `json:"questionNumber,omitempty"`
	TotalQuestions int                `json:"totalQuestions"`
	InFlight       bool               `json:"inFlight"`
}

// persisted is the value stored under store.KeySession.
type persisted struct {
	CurrentQuestion   *model.Question     `json:"currentQuestion,omitempty"`
	ChatMessages      []model.ChatMessage `json:"chatMessages"`
	TimeRemaining     int                 `json:"timeRemaining"`
	IsInterviewActive bool                `json:"isInterviewActive"`
	IsPaused          bool                `json:"isPaused"`
}

// Service is the single writer of the session state.
type Service struct {
	mu            sync.Mutex
	state         model.SessionState
	pendingResume bool
	inFlight      bool
	timerGen      uint64
	stopTimer     context.CancelFunc
	closed        bool

	machine  *interview.Machine
	scorer   scoring.Scorer
	kv       KV
	notifier notify.Notifier
	validate *validator.Validate
	opts     Options
	log      *slog.Logger

	bg sync.WaitGroup
}

// Open loads persisted state from kv and returns a ready Service. An
// in-progress candidate found on load is reported as pending resume and the
// interview stays inactive until Resume or Discard.
func Open(ctx context.Context, kv KV, machine *interview.Machine, scorer scoring.Scorer, notifier notify.Notifier, opts Options) (*Service, error) {
	if opts.ResumePolicy == "" {
		opts.ResumePolicy = interview.ResumeRestart
	}
	if opts.ScoreTimeout == 0 {
		opts.ScoreTimeout = 10 * time.Second
	}
	if opts.NotifyTimeout == 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Log{Logger: logger}
	}

	s := &Service{
		machine:  machine,
		scorer:   scorer,
		kv:       kv,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		log:      logger,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) load(ctx context.Context) error {
	vals, err := s.kv.GetMany(ctx, store.KeyCandidates, store.KeyCurrentCandidate, store.KeySession)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	var st model.SessionState
	if raw, ok := vals[store.KeyCandidates]; ok {
		if err := json.Unmarshal([]byte(raw), &st.Candidates); err != nil {
			return fmt.Errorf("decode %s: %w", store.KeyCandidates, err)
		}
	}
	if raw, ok := vals[store.KeyCurrentCandidate]; ok {
		var c model.Candidate
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return fmt.Errorf("decode %s: %w", store.KeyCurrentCandidate, err)
		}
		st.CurrentCandidate = &c
	}
	if raw, ok := vals[store.KeySession]; ok {
		var p persisted
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			// The transcript is convenience data; a corrupt blob must not
			// block the roster from loading.
			s.log.Warn("discarding unreadable session blob", "error", err)
		} else {
			st.CurrentQuestion = p.CurrentQuestion
			st.ChatMessages = p.ChatMessages
			st.TimeRemaining = p.TimeRemaining
			st.IsPaused = p.IsPaused
		}
	}

	// Nothing runs until the candidate comes back.
	st.IsInterviewActive = false
	if c := st.CurrentCandidate; c != nil && c.InterviewStatus == model.StatusInProgress {
		s.pendingResume = true
	}
	s.state = st
	metrics.SetActive(false)
	s.log.Info("session loaded", "candidates", len(st.Candidates), "pending_resume", s.pendingResume)
	return nil
}

// persist writes the state. Failures are logged and counted but never undo
// the in-memory mutation. Caller holds s.mu.
func (s *Service) persist(ctx context.Context) {
	set, del, err := encode(s.state)
	if err == nil {
		err = s.kv.Apply(context.WithoutCancel(ctx), set, del...)
	}
	if err != nil {
		metrics.Failure(metrics.StagePersist)
		s.log.Error("persist session", "error", err)
	}
}

func encode(st model.SessionState) (map[string]string, []string, error) {
	set := make(map[string]string, 3)
	var del []string

	roster := st.Candidates
	if roster == nil {
		roster = []model.Candidate{}
	}
	b, err := json.Marshal(roster)
	if err != nil {
		return nil, nil, err
	}
	set[store.KeyCandidates] = string(b)

	if st.CurrentCandidate != nil {
		b, err := json.Marshal(st.CurrentCandidate)
		if err != nil {
			return nil, nil, err
		}
		set[store.KeyCurrentCandidate] = string(b)
	} else {
		del = append(del, store.KeyCurrentCandidate)
	}

	b, err = json.Marshal(persisted{
		CurrentQuestion:   st.CurrentQuestion,
		ChatMessages:      st.ChatMessages,
		TimeRemaining:     st.TimeRemaining,
		IsInterviewActive: st.IsInterviewActive,
		IsPaused:          st.IsPaused,
	})
	if err != nil {
		return nil, nil, err
	}
	set[store.KeySession] = string(b)
	return set, del, nil
}

// Snapshot returns a deep copy of the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Service) snapshot() Snapshot {
	snap := Snapshot{
		State:          s.state.Clone(),
		PendingResume:  s.pendingResume,
		TotalQuestions: s.machine.Bank().Size(),
		InFlight:       s.inFlight,
	}
	if c := s.state.CurrentCandidate; c != nil && s.state.CurrentQuestion != nil {
		snap.QuestionNumber = c.CurrentQuestionIndex + 1
	}
	return snap
}

// Intake registers a candidate and makes them the active one.
func (s *Service) Intake(ctx context.Context, in Intake) (model.Candidate, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return model.Candidate{}, fmt.Errorf("%w: %s", ErrIntakeValidation, describe(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingResume || s.state.IsInterviewActive ||
		(s.state.CurrentCandidate != nil && s.state.CurrentCandidate.InterviewStatus == model.StatusInProgress) {
		return model.Candidate{}, ErrSessionPending
	}

	c := model.Candidate{
		ID:              "candidate_" + uuid.NewString(),
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		ResumeFile:      in.ResumeFile,
		InterviewStatus: model.StatusNotStarted,
		Answers:         []model.Answer{},
	}
	s.state.UpsertCandidate(c)
	s.state.CurrentCandidate = &c
	s.state.CurrentQuestion = nil
	s.state.ChatMessages = nil
	s.state.TimeRemaining = 0
	s.persist(ctx)

	metrics.Interview(metrics.EventIntake)
	s.log.Info("candidate registered", "candidate", c.ID)
	return c.Clone(), nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email address")
		default:
			parts = append(parts, fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}

// Start begins the interview for the active candidate and arms the timer.
func (s *Service) Start(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingResume {
		return Snapshot{}, fmt.Errorf("%w: %w", interview.ErrDuplicateStart, ErrSessionPending)
	}
	if err := s.machine.Start(&s.state); err != nil {
		return Snapshot{}, err
	}
	s.persist(ctx)
	s.armTimer()
	metrics.Interview(metrics.EventStarted)
	metrics.SetActive(true)
	s.log.Info("interview started", "candidate", s.state.CurrentCandidate.ID)
	return s.snapshot(), nil
}

// Submit scores an answer to the current question. The lock is released while
// the scorer runs; concurrent submissions are rejected.
func (s *Service) Submit(ctx context.Context, text string) (interview.Outcome, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return interview.Outcome{}, ErrSubmissionInFlight
	}
	sub, err := s.machine.Prepare(&s.state, text, false)
	if err != nil {
		s.mu.Unlock()
		return interview.Outcome{}, err
	}
	s.inFlight = true
	s.mu.Unlock()
	return s.finish(ctx, sub)
}

// finish scores sub without the lock and applies the result. Caller has set
// s.inFlight.
func (s *Service) finish(ctx context.Context, sub interview.Submission) (interview.Outcome, error) {
	sctx, cancel := context.WithTimeout(ctx, s.opts.ScoreTimeout)
	started := time.Now()
	res, scoreErr := s.scorer.Evaluate(sctx, sub.Question.Text, sub.Text, sub.Question.Difficulty)
	cancel()
	metrics.Scoring(time.Since(started))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if scoreErr != nil {
		metrics.Failure(metrics.StageScoring)
		s.log.Warn("scoring failed", "question", sub.Question.ID, "timed_out", sub.TimedOut, "error", scoreErr)
		return interview.Outcome{}, fmt.Errorf("%w: %w", interview.ErrScoringUnavailable, scoreErr)
	}

	out, err := s.machine.Apply(&s.state, sub, res)
	if err != nil {
		return interview.Outcome{}, err
	}
	s.persist(ctx)
	metrics.Answer(string(sub.Question.Difficulty), res.Score, sub.TimedOut)

	if out.Completed {
		s.disarmTimer()
		metrics.SetActive(false)
		metrics.Interview(metrics.EventCompleted)
		s.log.Info("interview completed", "candidate", out.Candidate.ID, "score", *out.Candidate.FinalScore)
		s.notifyAsync(out.Candidate)
	} else {
		s.armTimer()
	}
	return out, nil
}

// Resume re-enters an interrupted interview using the configured policy.
func (s *Service) Resume(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.machine.Resume(&s.state, s.opts.ResumePolicy); err != nil {
		return Snapshot{}, err
	}
	s.pendingResume = false
	s.persist(ctx)
	s.armTimer()
	metrics.Interview(metrics.EventResumed)
	metrics.SetActive(true)
	s.log.Info("interview resumed", "candidate", s.state.CurrentCandidate.ID, "policy", s.opts.ResumePolicy)
	return s.snapshot(), nil
}

// Discard abandons the active candidate, keeping their roster entry.
func (s *Service) Discard(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return Snapshot{}, ErrSubmissionInFlight
	}
	var id string
	if c := s.state.CurrentCandidate; c != nil {
		id = c.ID
	}
	s.disarmTimer()
	s.machine.Discard(&s.state)
	s.pendingResume = false
	s.persist(ctx)
	metrics.SetActive(false)
	metrics.Interview(metrics.EventDiscarded)
	s.log.Info("session discarded", "candidate", id)
	return s.snapshot(), nil
}

// Tick advances the question clock by one second and submits a blank answer
// when it runs out. It is driven by the background timer and by tests.
func (s *Service) Tick(ctx context.Context) {
	s.tick(ctx, nil)
}

// tick is Tick for the timer goroutine: a tick from a timer generation that
// has since been replaced is dropped under the same lock that runs the clock.
func (s *Service) tick(ctx context.Context, gen *uint64) {
	s.mu.Lock()
	if gen != nil && *gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	if s.inFlight || !s.machine.Tick(&s.state) {
		s.mu.Unlock()
		return
	}
	sub, err := s.machine.Prepare(&s.state, "", true)
	if err != nil {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	if _, err := s.finish(ctx, sub); err != nil {
		// The clock stays at zero, so the next tick retries.
		s.log.Warn("timeout submission failed", "question", sub.Question.ID, "error", err)
	}
}

// armTimer starts a ticker for the current question, replacing any previous
// one. Caller holds s.mu.
func (s *Service) armTimer() {
	s.disarmTimer()
	if s.opts.TickInterval <= 0 || s.closed {
		return
	}
	s.timerGen++
	gen := s.timerGen
	ctx, cancel := context.WithCancel(context.Background())
	s.stopTimer = cancel

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		t := time.NewTicker(s.opts.TickInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.tick(ctx, &gen)
			}
		}
	}()
}

// disarmTimer stops the running ticker. Caller holds s.mu.
func (s *Service) disarmTimer() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.timerGen++
}

// notifyAsync sends the completion notice in the background. Caller holds s.mu.
func (s *Service) notifyAsync(c model.Candidate) {
	if c.FinalScore == nil {
		return
	}
	done := notify.Completion{
		CandidateID: c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Score:       *c.FinalScore,
		Summary:     c.Summary,
	}
	// Close may already be waiting on bg; adding to it now would race.
	if s.closed {
		metrics.Failure(metrics.StageNotify)
		s.log.Warn("completion notice skipped, service closing", "candidate", done.CandidateID)
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyCompletion(ctx, done); err != nil {
			metrics.Failure(metrics.StageNotify)
			s.log.Warn("completion notice failed", "candidate", done.CandidateID, "channel", s.notifier.Channel(), "error", err)
		}
	}()
}

// Close stops the timer and waits for background work to finish.
func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	s.disarmTimer()
	s.mu.Unlock()
	s.bg.Wait()
	return nil
}
