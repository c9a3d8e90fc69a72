package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/interviewer/internal/handler/views"
	"github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/report"
	"github.com/pavelanni/interviewer/internal/resume"
	"github.com/pavelanni/interviewer/internal/session"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc *session.Service
	log *slog.Logger
}

// New creates a new Handler.
func New(svc *session.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, log: logger}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.handleSession)
		r.Post("/resume/parse", h.handleParseResume)
		r.Post("/intake", h.handleIntake)

		r.Route("/interview", func(r chi.Router) {
			r.Post("/start", h.handleStart)
			r.Post("/answer", h.handleAnswer)
			r.Post("/resume", h.handleResume)
			r.Post("/discard", h.handleDiscard)
		})

		r.Get("/candidates", h.handleCandidates)
		r.Get("/candidates/{id}", h.handleCandidate)
		r.Get("/candidates/{id}/report.pdf", h.handleReport)
	})

	r.Get("/dashboard", h.handleDashboard)
	r.Get("/dashboard/{id}", h.handleDashboardDetail)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"candidates":     len(snap.State.Candidates),
		"interviewing":   snap.State.IsInterviewActive,
		"pending_resume": snap.PendingResume,
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

func (h *Handler) handleParseResume(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, "resume")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if data == nil {
		h.fail(w, r, errBadRequest)
		return
	}
	ex, err := resume.Parse(name, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// handleIntake accepts a JSON body or a multipart form. With a form, an
// attached resume fills in any field the candidate left blank; a resume that
// cannot be read is reported in extractError and the typed fields are used.
func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	var in session.Intake
	var extracted *resume.Extracted
	var extractErr string

	if isJSON(r) {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			h.fail(w, r, errBadRequest)
			return
		}
	} else {
		name, data, err := readUpload(w, r, "resume")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		in = session.Intake{
			Name:  r.FormValue("name"),
			Email: r.FormValue("email"),
			Phone: r.FormValue("phone"),
		}
		if data != nil {
			in.ResumeFile = name
			ex, err := resume.Parse(name, data)
			if err != nil {
				// Manual fields still decide whether the intake succeeds.
				h.log.Info("resume extraction failed", "file", name, "error", err)
				_, extractErr = classify(r, err)
			} else {
				extracted = &ex
				in.Name = firstNonBlank(in.Name, ex.Name)
				in.Email = firstNonBlank(in.Email, ex.Email)
				in.Phone = firstNonBlank(in.Phone, ex.Phone)
			}
		}
	}

	c, err := h.svc.Intake(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := map[string]any{"candidate": c}
	if extracted != nil {
		resp["extracted"] = extracted
	}
	if extractErr != "" {
		resp["extractError"] = extractErr
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Start(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if isJSON(r) {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			h.fail(w, r, errBadRequest)
			return
		}
	} else {
		req.Answer = r.FormValue("answer")
	}

	out, err := h.svc.Submit(r.Context(), req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": out,
		"session": h.svc.Snapshot(),
	})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Resume(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Discard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func rosterQuery(r *http.Request) session.RosterQuery {
	q := r.URL.Query()
	return session.RosterQuery{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Status: model.InterviewStatus(q.Get("status")),
	}
}

func (h *Handler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	list := h.svc.Candidates(rosterQuery(r))
	writeJSON(w, http.StatusOK, map[string]any{"candidates": list, "count": len(list)})
}

func (h *Handler) handleCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Candidate(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Candidate(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, c); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": c.ID + ".pdf"}))
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Error("write report", "candidate", c.ID, "error", err)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := rosterQuery(r)
	page := views.CandidateList(views.ListData{
		Candidates: h.svc.Candidates(q),
		Search:     q.Search,
		Sort:       q.Sort,
		Status:     string(q.Status),
	})
	h.render(w, r, http.StatusOK, i18n.T(r.Context(), "Dashboard"), page)
}

func (h *Handler) handleDashboardDetail(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Candidate(chi.URLParam(r, "id"))
	if err != nil {
		status, msg := classify(r, err)
		http.Error(w, msg, status)
		return
	}
	h.render(w, r, http.StatusOK, c.Name, views.CandidateDetail(c))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.Layout(title, body).Render(r.Context(), w); err != nil {
		h.log.Error("render error", "error", err)
	}
}

var errBadRequest = errors.New("bad request")

// classify maps an error to an HTTP status and a localized message.
func classify(r *http.Request, err error) (int, string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, session.ErrIntakeValidation):
		detail := strings.TrimPrefix(err.Error(), session.ErrIntakeValidation.Error()+": ")
		return http.StatusBadRequest, i18n.Td(ctx, "ErrValidation", map[string]any{"Detail": detail})
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, i18n.T(ctx, "ErrBadRequest")
	case errors.Is(err, resume.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, i18n.T(ctx, "ErrUnsupportedType")
	case errors.Is(err, resume.ErrDocumentParse):
		return http.StatusUnprocessableEntity, i18n.T(ctx, "ErrDocumentParse")
	case errors.Is(err, session.ErrSessionPending):
		return http.StatusConflict, i18n.T(ctx, "ErrSessionPending")
	case errors.Is(err, interview.ErrDuplicateStart):
		return http.StatusConflict, i18n.T(ctx, "ErrDuplicateStart")
	case errors.Is(err, session.ErrSubmissionInFlight):
		return http.StatusConflict, i18n.T(ctx, "ErrInFlight")
	case errors.Is(err, interview.ErrNotActive), errors.Is(err, interview.ErrStaleSubmission):
		return http.StatusConflict, i18n.T(ctx, "ErrNotActive")
	case errors.Is(err, interview.ErrNotResumable):
		return http.StatusConflict, i18n.T(ctx, "ErrNotResumable")
	case errors.Is(err, interview.ErrNoCandidate):
		return http.StatusConflict, i18n.T(ctx, "ErrNoCandidate")
	case errors.Is(err, interview.ErrScoringUnavailable):
		return http.StatusServiceUnavailable, i18n.T(ctx, "ErrScoringUnavailable")
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, i18n.T(ctx, "ErrNotFound")
	default:
		return http.StatusInternalServerError, i18n.T(ctx, "ErrInternal")
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(r, err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg, "detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// readUpload parses a multipart form and returns the named file, or a nil
// slice when the field is absent.
func readUpload(w http.ResponseWriter, r *http.Request, field string) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, resume.MaxSize+1<<20)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(resume.MaxSize); err != nil {
			return "", nil, errBadRequest
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", nil, errBadRequest
		}
		return "", nil, nil
	default:
		return "", nil, errBadRequest
	}

	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, errBadRequest
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, resume.MaxSize+1))
	if err != nil {
		return "", nil, errBadRequest
	}
	return hdr.Filename, data, nil
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
