package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/tutor/internal/exam"
	appI18n "github.com/pavelanni/tutor/internal/i18n"
	"github.com/pavelanni/tutor/internal/model"
	"github.com/pavelanni/tutor/internal/pdfexport"
	"github.com/pavelanni/tutor/internal/upload"
)

type createSessionRequest struct {
	Mode     model.Mode    `json:"mode"`
	Student  model.Student `json:"student"`
	Language string        `json:"language"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// exchangeResponse is returned by greet and send.
type exchangeResponse struct {
	Appended       []model.Message    `json:"appended"`
	Attempt        *model.ExamAttempt `json:"attempt,omitempty"`
	State          model.SessionState `json:"state"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
}

func (h *Handler) session(r *http.Request) (*exam.Session, error) {
	return h.sessions.Get(chi.URLParam(r, "sessionID"))
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	if !model.IsValidMode(string(req.Mode)) {
		writeError(w, r, http.StatusBadRequest, "invalid_mode", fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}
	req.Student.Name = strings.TrimSpace(req.Student.Name)
	req.Student.Class = strings.TrimSpace(req.Student.Class)

	lang := req.Language
	if !appI18n.IsSupported(lang) {
		lang = appI18n.RequestLanguage(r)
	}

	s, err := h.sessions.Create(req.Mode, req.Student, lang)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	if req.Student.Known() {
		http.SetCookie(w, &http.Cookie{
			Name:     studentCookieName,
			Value:    url.QueryEscape(req.Student.Name) + "|" + url.QueryEscape(req.Student.Class),
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			Secure:   h.config.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGreet(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	ex, err := s.Greet(r.Context())
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exchangeResponseFor(s, ex))
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	in, err := readSendInput(r)
	if err != nil {
		var bad badRequestError
		if errors.As(err, &bad) {
			writeError(w, r, http.StatusBadRequest, bad.code, appI18n.T(r.Context(), bad.msgID))
			return
		}
		writeSessionError(w, r, err)
		return
	}

	ex, err := s.Send(r.Context(), in)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exchangeResponseFor(s, ex))
}

type badRequestError struct {
	code  string
	msgID string
}

func (e badRequestError) Error() string { return e.code }

// readSendInput accepts a JSON body or a multipart form with an optional file.
func readSendInput(r *http.Request) (exam.SendInput, error) {
	var in exam.SendInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(upload.MaxSize + 1<<20); err != nil {
			if errors.Is(err, multipart.ErrMessageTooLarge) {
				return in, upload.ErrTooLarge
			}
			slog.Warn("malformed multipart body", "error", err)
			return in, badRequestError{code: "invalid_upload", msgID: "InvalidUpload"}
		}
		in.Message = strings.TrimSpace(r.FormValue("message"))

		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return in, badRequestError{code: "invalid_upload", msgID: "InvalidUpload"}
		default:
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, upload.MaxSize+1))
			if err != nil {
				return in, fmt.Errorf("read upload: %w", err)
			}
			res, err := upload.Extract(header.Filename, data)
			if err != nil {
				slog.Warn("upload rejected", "file", header.Filename, "mime", res.MIME, "error", err)
				return in, err
			}
			in.UploadName = header.Filename
			in.UploadedText = res.Text
			in.UploadType = res.Type
		}
	} else {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return in, badRequestError{code: "invalid_json", msgID: "EmptyMessage"}
		}
		in.Message = strings.TrimSpace(req.Message)
	}

	if in.Message == "" && in.UploadType == model.UploadNone {
		return in, badRequestError{code: "empty_message", msgID: "EmptyMessage"}
	}
	return in, nil
}

func exchangeResponseFor(s *exam.Session, ex exam.Exchange) exchangeResponse {
	appended := ex.Appended
	if appended == nil {
		appended = []model.Message{}
	}
	return exchangeResponse{
		Appended:       appended,
		Attempt:        ex.Attempt,
		State:          s.State(),
		ElapsedSeconds: s.Elapsed(),
	}
}

func (h *Handler) handlePaperPDF(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	paper, subject := s.Paper()
	if paper == "" {
		writeError(w, r, http.StatusNotFound, "no_paper", appI18n.T(r.Context(), "NoPaper"))
		return
	}
	title := subject
	if title == "" {
		title = "Question Paper"
	}

	doc, err := pdfexport.Render(title, paper)
	if err != nil {
		slog.Error("failed to render paper", "session_id", s.ID(), "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to render paper")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="paper.pdf"`)
	_, _ = w.Write(doc)
}

func unescapeCookie(s string) string {
	v, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(v)
}
