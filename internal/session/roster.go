package session

import (
	"sort"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

// Roster sort orders.
const (
	SortScore = "score"
	SortName  = "name"
	SortDate  = "date"
)

// RosterQuery filters and orders the candidate list for the dashboard.
type RosterQuery struct {
	Search string
	Sort   string // score (default), name or date
	Status model.InterviewStatus
}

// Candidates returns copies of the roster entries matching q.
func (s *Service) Candidates(q RosterQuery) []model.Candidate {
	s.mu.Lock()
	roster := make([]model.Candidate, 0, len(s.state.Candidates))
	for _, c := range s.state.Candidates {
		roster = append(roster, c.Clone())
	}
	s.mu.Unlock()

	return FilterRoster(roster, q)
}

// Candidate returns one roster entry by id.
func (s *Service) Candidate(id string) (model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.state.FindCandidate(id)
	if i < 0 {
		return model.Candidate{}, ErrNotFound
	}
	return s.state.Candidates[i].Clone(), nil
}

// FilterRoster applies q to roster in place and returns the result.
func FilterRoster(roster []model.Candidate, q RosterQuery) []model.Candidate {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := roster[:0]
	for _, c := range roster {
		if q.Status != "" && c.InterviewStatus != q.Status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Email), needle) {
			continue
		}
		out = append(out, c)
	}

	switch q.Sort {
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	case SortDate:
		sort.SliceStable(out, func(i, j int) bool {
			return startedAt(out[i]) > startedAt(out[j])
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return scoreOf(out[i]) > scoreOf(out[j])
		})
	}
	return out
}

// scoreOf ranks unscored candidates below every scored one.
func scoreOf(c model.Candidate) int {
	if c.FinalScore == nil {
		return -1
	}
	return *c.FinalScore
}

func startedAt(c model.Candidate) int64 {
	if c.StartTime == nil {
		return 0
	}
	return c.StartTime.UnixNano()
}
