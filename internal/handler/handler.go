package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/tutor/internal/exam"
	"github.com/pavelanni/tutor/internal/handler/views"
	appI18n "github.com/pavelanni/tutor/internal/i18n"
	"github.com/pavelanni/tutor/internal/model"
	"github.com/pavelanni/tutor/internal/progress"
	"github.com/pavelanni/tutor/internal/store"
	"github.com/pavelanni/tutor/internal/upload"
)

const studentCookieName = "student"

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions *exam.Manager
	attempts *store.Attempts
	store    *store.Store
	config   model.Config
	now      func() time.Time
}

// New creates a new Handler.
func New(sessions *exam.Manager, attempts *store.Attempts, cfg model.Config) *Handler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Handler{
		sessions: sessions,
		attempts: attempts,
		store:    attempts.Local(),
		config:   cfg,
		now:      time.Now,
	}
}

// Router returns the full HTTP handler with logging, recovery and localization.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/progress", h.handleProgressPage)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.Delete("/", h.handleDeleteSession)
			r.Post("/greet", h.handleGreet)
			r.Post("/messages", h.handleSendMessage)
			r.Get("/paper.pdf", h.handlePaperPDF)
			r.Get("/timer", h.handleTimerFeed)
		})

		r.Get("/attempts", h.handleListAttempts)
		r.Get("/progress", h.handleProgress)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/attempts/export", h.handleExportAttempts)
			r.Post("/attempts/import", h.handleImportAttempts)
		})
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.IndexPage(studentFromCookie(r), appI18n.RequestLanguage(r)).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleProgressPage(w http.ResponseWriter, r *http.Request) {
	student := studentFromQuery(r)
	if !student.Known() {
		student = studentFromCookie(r)
	}
	report := progress.Aggregate(h.attempts.List(r.Context(), student))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ProgressPage(student, report, appI18n.RequestLanguage(r)).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts := h.attempts.List(r.Context(), studentFromQuery(r))
	if attempts == nil {
		attempts = []model.ExamAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	report := progress.Aggregate(h.attempts.List(r.Context(), studentFromQuery(r)))
	if report.Subjects == nil {
		report.Subjects = []model.SubjectStat{}
	}
	writeJSON(w, http.StatusOK, report)
}

func studentFromQuery(r *http.Request) model.Student {
	q := r.URL.Query()
	return model.Student{
		Name:  strings.TrimSpace(q.Get("name")),
		Class: strings.TrimSpace(q.Get("class")),
	}
}

func studentFromCookie(r *http.Request) model.Student {
	c, err := r.Cookie(studentCookieName)
	if err != nil {
		return model.Student{}
	}
	name, class, _ := strings.Cut(c.Value, "|")
	return model.Student{Name: unescapeCookie(name), Class: unescapeCookie(class)}
}

// apiError is the JSON error body of every API route.
type apiError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var body apiError
	body.Error.Code = code
	body.Error.Message = message
	body.Error.RequestID = middleware.GetReqID(r.Context())
	writeJSON(w, status, body)
}

// writeSessionError maps session sentinels to status codes.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, exam.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", appI18n.T(ctx, "SessionNotFound"))
	case errors.Is(err, exam.ErrBusy):
		writeError(w, r, http.StatusConflict, "busy", appI18n.T(ctx, "Busy"))
	case errors.Is(err, exam.ErrClosed):
		writeError(w, r, http.StatusGone, "closed", appI18n.T(ctx, "SessionClosed"))
	case errors.Is(err, upload.ErrUnsupported), errors.Is(err, upload.ErrNoText), errors.Is(err, upload.ErrTooLarge):
		writeError(w, r, http.StatusBadRequest, "unsupported_upload", appI18n.T(ctx, "UnsupportedUpload"))
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}
