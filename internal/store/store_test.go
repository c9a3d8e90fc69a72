package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty store returns an empty map, not an error.
	vals, err := s.GetMany(ctx, KeyCandidates, KeyCurrentCandidate)
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(vals) != 0 {
		t.Fatalf("expected no values, got %v", vals)
	}

	err = s.Apply(ctx, map[string]string{KeyCandidates: "[]", KeyCurrentCandidate: `{"id":"c1"}`})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	vals, err = s.GetMany(ctx, KeyCandidates, KeyCurrentCandidate, KeySession)
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if vals[KeyCandidates] != "[]" || vals[KeyCurrentCandidate] != `{"id":"c1"}` {
		t.Fatalf("unexpected values %v", vals)
	}
	if _, ok := vals[KeySession]; ok {
		t.Fatalf("missing key should be absent")
	}

	// Overwrite one key and delete another in the same call.
	err = s.Apply(ctx, map[string]string{KeyCandidates: `[{"id":"c1"}]`}, KeyCurrentCandidate)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	vals, err = s.GetMany(ctx, KeyCandidates, KeyCurrentCandidate)
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if vals[KeyCandidates] != `[{"id":"c1"}]` {
		t.Fatalf("expected overwritten candidates, got %q", vals[KeyCandidates])
	}
	if _, ok := vals[KeyCurrentCandidate]; ok {
		t.Fatalf("expected currentCandidate to be deleted")
	}

	// Deleting an absent key is not an error.
	if err := s.Apply(ctx, nil, "nope"); err != nil {
		t.Fatalf("Apply delete absent: %v", err)
	}
}

func TestApplyCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Apply(ctx, map[string]string{KeySession: "{}"}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
	vals, err := s.GetMany(context.Background(), KeySession)
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(vals) != 0 {
		t.Fatalf("canceled apply must not write, got %v", vals)
	}
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, n := range []Notification{
		{CandidateID: "c1", Email: "a@example.com", Channel: "log", Status: NotificationSent, CreatedAt: at},
		{CandidateID: "c2", Email: "b@example.com", Channel: "smtp", Status: NotificationFailed, Error: "dial tcp: refused", CreatedAt: at},
		{CandidateID: "c1", Email: "a@example.com", Channel: "smtp", Status: NotificationSent},
	} {
		if _, err := s.RecordNotification(ctx, n); err != nil {
			t.Fatalf("RecordNotification: %v", err)
		}
	}

	all, err := s.ListNotifications(ctx, "")
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(all))
	}

	c1, err := s.ListNotifications(ctx, "c1")
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(c1) != 2 {
		t.Fatalf("expected 2 notifications for c1, got %d", len(c1))
	}
	if c1[0].Channel != "log" || !c1[0].CreatedAt.Equal(at) {
		t.Fatalf("unexpected first notification %+v", c1[0])
	}
	if c1[1].CreatedAt.IsZero() {
		t.Fatalf("expected default timestamp")
	}

	c2, err := s.ListNotifications(ctx, "c2")
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(c2) != 1 || c2[0].Status != NotificationFailed || c2[0].Error == "" {
		t.Fatalf("unexpected c2 notifications %+v", c2)
	}
}

func TestExportRoster(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	low, high := 40, 90
	roster := []model.Candidate{
		{ID: "a", Name: "Low", InterviewStatus: model.StatusCompleted, FinalScore: &low,
			Answers: []model.Answer{{QuestionID: "q1", Question: "Q?", Answer: "A", Score: 40}}},
		{ID: "b", Name: "Pending", InterviewStatus: model.StatusInProgress},
		{ID: "c", Name: "High", InterviewStatus: model.StatusCompleted, FinalScore: &high},
	}
	raw, err := json.Marshal(roster)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := s.Apply(ctx, map[string]string{KeyCandidates: string(raw)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	exp, err := ExportRoster(ctx, s, 6, false)
	if err != nil {
		t.Fatalf("ExportRoster: %v", err)
	}
	if exp.NumQuestions != 6 || len(exp.Results) != 3 {
		t.Fatalf("unexpected export %+v", exp)
	}
	if exp.Results[0].ID != "c" || exp.Results[1].ID != "a" || exp.Results[2].ID != "b" {
		t.Fatalf("unexpected order: %s %s %s", exp.Results[0].ID, exp.Results[1].ID, exp.Results[2].ID)
	}
	if len(exp.Results[1].Questions) != 1 || exp.Results[1].Questions[0].Score != 40 {
		t.Fatalf("unexpected questions %+v", exp.Results[1].Questions)
	}

	done, err := ExportRoster(ctx, s, 6, true)
	if err != nil {
		t.Fatalf("ExportRoster: %v", err)
	}
	if len(done.Results) != 2 {
		t.Fatalf("expected 2 completed, got %d", len(done.Results))
	}
}

func TestLoadRosterEmptyAndCorrupt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	roster, err := LoadRoster(ctx, s)
	if err != nil || roster != nil {
		t.Fatalf("expected empty roster, got %v, %v", roster, err)
	}

	if err := s.Apply(ctx, map[string]string{KeyCandidates: "{not json"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := LoadRoster(ctx, s); err == nil {
		t.Fatalf("expected decode error")
	}
}
