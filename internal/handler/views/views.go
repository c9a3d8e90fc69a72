// Package views renders the interviewer dashboard.
//
// The pages are templ components in views.templ. Run `templ generate` after
// editing it.
package views

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/scoring"
)

// ListData is what the candidate list page shows.
type ListData struct {
	Candidates []model.Candidate
	Search     string
	Sort       string
	Status     string
}

// sorted reports whether the list is ordered by key. Score is the default.
func (d ListData) sorted(key string) bool {
	return d.Sort == key || (d.Sort == "" && key == "score")
}

const style = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;width:100%}th,td{padding:.4rem .6rem;border-bottom:1px solid #ddd;text-align:left}
.score-excellent{color:#1a7f37}.score-good{color:#0969da}.score-fair{color:#9a6700}.score-poor{color:#cf222e}
.answer{margin:1rem 0;padding:.6rem;border-left:3px solid #ddd}.muted{color:#666;font-size:.9em}
form{margin:1rem 0}`

const timeLayout = "2006-01-02 15:04"

var (
	sortOptions = []struct{ value, label string }{
		{"score", "SortScore"},
		{"name", "SortName"},
		{"date", "SortDate"},
	}
	statusFilters = []model.InterviewStatus{model.StatusCompleted, model.StatusInProgress, model.StatusNotStarted}
	listColumns   = []string{"Name", "Email", "Status", "Score", "Details"}
)

// StatusLabel returns the localized name of an interview status.
func StatusLabel(ctx context.Context, s model.InterviewStatus) string {
	switch s {
	case model.StatusCompleted:
		return i18n.T(ctx, "StatusCompleted")
	case model.StatusInProgress:
		return i18n.T(ctx, "StatusInProgress")
	default:
		return i18n.T(ctx, "StatusNotStarted")
	}
}

func scoreClass(score int) string {
	return "score-" + strings.ToLower(scoring.Label(score))
}

func scoreText(ctx context.Context, score int) string {
	return fmt.Sprintf("%d/100 %s", score, i18n.T(ctx, "Score"+scoring.Label(score)))
}

func answerHeading(i int, a model.Answer) string {
	return fmt.Sprintf("%d. [%s] %s", i+1, strings.ToUpper(string(a.Difficulty)), a.Question)
}

func detailURL(id string) templ.SafeURL {
	return templ.URL("/dashboard/" + url.PathEscape(id))
}

func reportURL(id string) templ.SafeURL {
	return templ.URL("/api/candidates/" + url.PathEscape(id) + "/report.pdf")
}
