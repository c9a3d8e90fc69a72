package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/notify"
	"github.com/pavelanni/interviewer/internal/questions"
	"github.com/pavelanni/interviewer/internal/scoring"
	"github.com/pavelanni/interviewer/internal/store"
)

type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	failSet bool
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memKV) Apply(_ context.Context, set map[string]string, del ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("disk full")
	}
	for k, v := range set {
		m.data[k] = v
	}
	for _, k := range del {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) get(k string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[k]
	return v, ok
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Completion
	err  error
}

func (r *recordingNotifier) Channel() string { return "test" }

func (r *recordingNotifier) NotifyCompletion(_ context.Context, c notify.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, c)
	return r.err
}

func (r *recordingNotifier) all() []notify.Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Completion(nil), r.sent...)
}

// gatedScorer blocks every call until release is closed.
type gatedScorer struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedScorer) Evaluate(ctx context.Context, q, a string, d model.Difficulty) (scoring.Result, error) {
	g.entered <- struct{}{}
	<-g.release
	return scoring.Evaluate(q, a, d), nil
}

// flakyScorer fails the first n calls.
type flakyScorer struct {
	mu    sync.Mutex
	fails int
}

func (f *flakyScorer) Evaluate(ctx context.Context, q, a string, d model.Difficulty) (scoring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return scoring.Result{}, errors.New("scorer offline")
	}
	return scoring.Evaluate(q, a, d), nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func open(t *testing.T, kv KV, scorer scoring.Scorer, n notify.Notifier, opts Options) *Service {
	t.Helper()
	return openBank(t, questions.Default(), kv, scorer, n, opts)
}

func openBank(t *testing.T, bank *questions.Bank, kv KV, scorer scoring.Scorer, n notify.Notifier, opts Options) *Service {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	s, err := Open(context.Background(), kv, interview.New(bank), scorer, n, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var ada = Intake{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555-010-0199"}

func TestIntakeValidation(t *testing.T) {
	s := open(t, newMemKV(), scoring.Heuristic{}, &recordingNotifier{}, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   Intake
		want string
	}{
		{"missing name", Intake{Email: "a@example.com", Phone: "5550100199"}, "name is required"},
		{"bad email", Intake{Name: "A B", Email: "not-an-email", Phone: "5550100199"}, "email must be a valid email address"},
		{"blank phone", Intake{Name: "A B", Email: "a@example.com", Phone: "   "}, "phone is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Intake(ctx, tt.in)
			require.ErrorIs(t, err, ErrIntakeValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Empty(t, s.Snapshot().State.Candidates)
}

func TestIntakePersists(t *testing.T) {
	kv := newMemKV()
	s := open(t, kv, scoring.Heuristic{}, &recordingNotifier{}, Options{})

	c, err := s.Intake(context.Background(), Intake{Name: "  Ada Lovelace ", Email: "ada@example.com", Phone: "555-010-0199"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", c.Name)
	assert.Equal(t, model.StatusNotStarted, c.InterviewStatus)
	assert.Regexp(t, `^candidate_`, c.ID)

	raw, ok := kv.get(store.KeyCurrentCandidate)
	require.True(t, ok)
	var persisted model.Candidate
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, c.ID, persisted.ID)

	// A not-yet-started candidate can be replaced; both stay on the roster.
	c2, err := s.Intake(context.Background(), Intake{Name: "Grace Hopper", Email: "grace@example.com", Phone: "555-010-0200"})
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, c2.ID, snap.State.CurrentCandidate.ID)
	assert.Len(t, snap.State.Candidates, 2)
}

func TestFullInterviewThroughService(t *testing.T) {
	kv := newMemKV()
	n := &recordingNotifier{}
	s := open(t, kv, scoring.Heuristic{}, n, Options{})
	ctx := context.Background()

	c, err := s.Intake(ctx, ada)
	require.NoError(t, err)
	snap, err := s.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.QuestionNumber)
	assert.Equal(t, 6, snap.TotalQuestions)

	_, err = s.Start(ctx)
	assert.ErrorIs(t, err, interview.ErrDuplicateStart)

	var out interview.Outcome
	for i := 0; i < 6; i++ {
		out, err = s.Submit(ctx, "React components render JSX; state and props drive the virtual DOM on the server.")
		require.NoError(t, err, "answer %d", i)
	}
	require.True(t, out.Completed)
	require.NoError(t, s.Close())

	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, c.ID, sent[0].CandidateID)
	assert.Equal(t, *out.Candidate.FinalScore, sent[0].Score)

	_, ok := kv.get(store.KeyCurrentCandidate)
	assert.False(t, ok, "active slot must be cleared in storage")
	roster, err := store.LoadRoster(ctx, kv)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, model.StatusCompleted, roster[0].InterviewStatus)
	assert.Len(t, roster[0].Answers, 6)

	got, err := s.Candidate(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.InterviewStatus)
	_, err = s.Candidate("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func interruptedKV(t *testing.T) *memKV {
	t.Helper()
	kv := newMemKV()
	s, err := Open(context.Background(), kv, interview.New(questions.Default()), scoring.Heuristic{}, &recordingNotifier{}, Options{Logger: quiet})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)
	_, err = s.Submit(ctx, "React renders components into a virtual DOM.")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return kv
}

func TestReopenReportsPendingResume(t *testing.T) {
	kv := interruptedKV(t)
	s := open(t, kv, scoring.Heuristic{}, &recordingNotifier{}, Options{})
	ctx := context.Background()

	snap := s.Snapshot()
	assert.True(t, snap.PendingResume)
	assert.False(t, snap.State.IsInterviewActive)
	require.NotNil(t, snap.State.CurrentCandidate)
	assert.Equal(t, 1, snap.State.CurrentCandidate.CurrentQuestionIndex)
	assert.NotEmpty(t, snap.State.ChatMessages)

	_, err := s.Intake(ctx, Intake{Name: "Grace Hopper", Email: "grace@example.com", Phone: "555-010-0200"})
	assert.ErrorIs(t, err, ErrSessionPending)
	_, err = s.Start(ctx)
	assert.ErrorIs(t, err, ErrSessionPending)
	_, err = s.Submit(ctx, "too early")
	assert.ErrorIs(t, err, interview.ErrNotActive)

	snap, err = s.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, snap.PendingResume)
	assert.True(t, snap.State.IsInterviewActive)
	assert.Equal(t, "q2", snap.State.CurrentQuestion.ID)
	assert.Equal(t, 20, snap.State.TimeRemaining)
	assert.Equal(t, 2, snap.QuestionNumber)

	_, err = s.Submit(ctx, "State is owned by a component, props come from the parent.")
	require.NoError(t, err)
}

func TestReopenPreservePolicy(t *testing.T) {
	kv := interruptedKV(t)

	// Bank a partially used clock for question 2.
	raw, ok := kv.get(store.KeySession)
	require.True(t, ok)
	var p persisted
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	p.TimeRemaining = 9
	b, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, kv.Apply(context.Background(), map[string]string{store.KeySession: string(b)}))

	s := open(t, kv, scoring.Heuristic{}, &recordingNotifier{}, Options{ResumePolicy: interview.ResumePreserve})
	snap, err := s.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, snap.State.TimeRemaining)
}

func TestDiscardClearsPending(t *testing.T) {
	kv := interruptedKV(t)
	s := open(t, kv, scoring.Heuristic{}, &recordingNotifier{}, Options{})
	ctx := context.Background()

	snap, err := s.Discard(ctx)
	require.NoError(t, err)
	assert.False(t, snap.PendingResume)
	assert.Nil(t, snap.State.CurrentCandidate)
	require.Len(t, snap.State.Candidates, 1)
	assert.Equal(t, model.StatusInProgress, snap.State.Candidates[0].InterviewStatus)

	_, ok := kv.get(store.KeyCurrentCandidate)
	assert.False(t, ok)

	_, err = s.Intake(ctx, Intake{Name: "Grace Hopper", Email: "grace@example.com", Phone: "555-010-0200"})
	require.NoError(t, err)
}

func TestSubmissionInFlight(t *testing.T) {
	g := &gatedScorer{entered: make(chan struct{}), release: make(chan struct{})}
	s := open(t, newMemKV(), g, &recordingNotifier{}, Options{})
	ctx := context.Background()
	_, err := s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "React renders components into a virtual DOM.")
		done <- err
	}()
	<-g.entered

	assert.True(t, s.Snapshot().InFlight)
	_, err = s.Submit(ctx, "second try")
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = s.Discard(ctx)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	before := s.Snapshot().State.TimeRemaining
	s.Tick(ctx)
	assert.Equal(t, before, s.Snapshot().State.TimeRemaining, "ticks are skipped while scoring")

	close(g.release)
	require.NoError(t, <-done)
	snap := s.Snapshot()
	assert.False(t, snap.InFlight)
	assert.Len(t, snap.State.CurrentCandidate.Answers, 1)
	assert.Equal(t, 1, snap.State.CurrentCandidate.CurrentQuestionIndex)
}

func TestManualTicksTimeOut(t *testing.T) {
	s := open(t, newMemKV(), scoring.Heuristic{}, &recordingNotifier{}, Options{})
	ctx := context.Background()
	_, err := s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)

	for _i := 0; _i < 19; _i++ {
		s.Tick(ctx)
	}
	assert.Equal(t, 1, s.Snapshot().State.TimeRemaining)
	s.Tick(ctx)

	snap := s.Snapshot()
	c := snap.State.CurrentCandidate
	require.Len(t, c.Answers, 1)
	assert.Equal(t, model.NoAnswer, c.Answers[0].Answer)
	assert.Equal(t, 20, c.Answers[0].TimeSpent)
	assert.Equal(t, "q2", snap.State.CurrentQuestion.ID)
	assert.Equal(t, 20, snap.State.TimeRemaining)
}

func TestStaleTimerTickIgnored(t *testing.T) {
	s := open(t, newMemKV(), scoring.Heuristic{}, &recordingNotifier{}, Options{})
	ctx := context.Background()
	_, err := s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)

	s.mu.Lock()
	old := s.timerGen
	s.mu.Unlock()

	_, err = s.Submit(ctx, "React renders components into a virtual DOM.")
	require.NoError(t, err)
	before := s.Snapshot().State.TimeRemaining

	// A tick from the first question's timer lands after the submit.
	s.tick(ctx, &old)
	assert.Equal(t, before, s.Snapshot().State.TimeRemaining)

	s.mu.Lock()
	cur := s.timerGen
	s.mu.Unlock()
	s.tick(ctx, &cur)
	assert.Equal(t, before-1, s.Snapshot().State.TimeRemaining)
}

func TestNoNotifyAfterClose(t *testing.T) {
	n := &recordingNotifier{}
	s := open(t, newMemKV(), scoring.Heuristic{}, n, Options{})
	require.NoError(t, s.Close())

	score := 80
	s.mu.Lock()
	s.notifyAsync(model.Candidate{ID: "c1", Name: "Ada Lovelace", FinalScore: &score})
	s.mu.Unlock()
	s.bg.Wait()
	assert.Empty(t, n.all())
}

func TestTimeoutRetriedAfterScoringFailure(t *testing.T) {
	f := &flakyScorer{fails: 1}
	s := open(t, newMemKV(), f, &recordingNotifier{}, Options{})
	ctx := context.Background()
	_, err := s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)

	for _i := 0; _i < 20; _i++ {
		s.Tick(ctx)
	}
	snap := s.Snapshot()
	assert.Empty(t, snap.State.CurrentCandidate.Answers, "failed scoring records nothing")
	assert.Equal(t, 0, snap.State.TimeRemaining)
	assert.Equal(t, "q1", snap.State.CurrentQuestion.ID)

	s.Tick(ctx)
	snap = s.Snapshot()
	require.Len(t, snap.State.CurrentCandidate.Answers, 1)
	assert.Equal(t, "q1", snap.State.CurrentCandidate.Answers[0].QuestionID)
	assert.Equal(t, "q2", snap.State.CurrentQuestion.ID)
}

func TestScoringFailureSurfaced(t *testing.T) {
	s := open(t, newMemKV(), &flakyScorer{fails: 1}, &recordingNotifier{}, Options{})
	ctx := context.Background()
	_, err := s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)

	_, err = s.Submit(ctx, "an answer")
	assert.ErrorIs(t, err, interview.ErrScoringUnavailable)
	snap := s.Snapshot()
	assert.Empty(t, snap.State.CurrentCandidate.Answers)
	assert.Equal(t, 0, snap.State.CurrentCandidate.CurrentQuestionIndex)

	_, err = s.Submit(ctx, "an answer")
	require.NoError(t, err)
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	kv := newMemKV()
	kv.failSet = true
	s := open(t, kv, scoring.Heuristic{}, &recordingNotifier{}, Options{})

	c, err := s.Intake(context.Background(), ada)
	require.NoError(t, err)
	assert.Equal(t, c.ID, s.Snapshot().State.CurrentCandidate.ID)
	_, ok := kv.get(store.KeyCandidates)
	assert.False(t, ok)
}

func TestBackgroundTimerCompletesInterview(t *testing.T) {
	bank, err := questions.New([]model.Question{
		{ID: "a", Text: "Explain closures.", Difficulty: model.DifficultyEasy, TimeLimit: 1},
		{ID: "b", Text: "Explain channels.", Difficulty: model.DifficultyEasy, TimeLimit: 1},
	})
	require.NoError(t, err)
	n := &recordingNotifier{err: errors.New("smtp down")}
	s := openBank(t, bank, newMemKV(), scoring.Heuristic{}, n, Options{TickInterval: 5 * time.Millisecond})
	ctx := context.Background()
	c, err := s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := s.Candidate(c.ID)
		return err == nil && got.InterviewStatus == model.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close())

	got, err := s.Candidate(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 2)
	for _, a := range got.Answers {
		assert.Equal(t, model.NoAnswer, a.Answer)
		assert.Equal(t, 1, a.TimeSpent)
	}
	assert.Equal(t, 0, *got.FinalScore)
	// A failing notifier never affects the interview.
	assert.Len(t, n.all(), 1)
	assert.Nil(t, s.Snapshot().State.CurrentCandidate)
}

func TestSQLiteBackedService(t *testing.T) {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	s := open(t, db, scoring.Heuristic{}, &recordingNotifier{}, Options{})
	_, err = s.Intake(ctx, ada)
	require.NoError(t, err)
	_, err = s.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again := open(t, db, scoring.Heuristic{}, &recordingNotifier{}, Options{})
	assert.True(t, again.Snapshot().PendingResume)
}
