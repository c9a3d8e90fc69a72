package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
)

// Reader is the read side of a session key-value store.
type Reader interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
}

// LoadRoster decodes the persisted candidate roster.
func LoadRoster(ctx context.Context, kv Reader) ([]model.Candidate, error) {
	vals, err := kv.GetMany(ctx, KeyCandidates)
	if err != nil {
		return nil, err
	}
	raw, ok := vals[KeyCandidates]
	if !ok || raw == "" {
		return nil, nil
	}
	var roster []model.Candidate
	if err := json.Unmarshal([]byte(raw), &roster); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyCandidates, err)
	}
	return roster, nil
}

// ExportRoster builds export-ready results for every candidate in the roster,
// completed candidates first by descending score.
func ExportRoster(ctx context.Context, kv Reader, numQuestions int, onlyCompleted bool) (model.RosterExport, error) {
	roster, err := LoadRoster(ctx, kv)
	if err != nil {
		return model.RosterExport{}, fmt.Errorf("load roster: %w", err)
	}

	sort.SliceStable(roster, func(i, j int) bool {
		return exportScore(roster[i]) > exportScore(roster[j])
	})

	results := make([]model.CandidateResult, 0, len(roster))
	for _, c := range roster {
		if onlyCompleted && c.InterviewStatus != model.StatusCompleted {
			continue
		}
		results = append(results, model.NewCandidateResult(c))
	}

	return model.RosterExport{
		GeneratedAt:  time.Now().UTC(),
		NumQuestions: numQuestions,
		Results:      results,
	}, nil
}

func exportScore(c model.Candidate) int {
	if c.FinalScore == nil {
		return -1
	}
	return *c.FinalScore
}
