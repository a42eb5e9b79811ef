package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	appI18n "github.com/pavelanni/tutor/internal/i18n"
	"github.com/pavelanni/tutor/internal/store"
)

const maxImportSize = 32 << 20

func (h *Handler) handleExportAttempts(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	var buf bytes.Buffer
	n, err := h.store.ExportAttempts(r.Context(), &buf, now)
	if err != nil {
		slog.Error("failed to export attempts", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to export attempts")
		return
	}

	filename := fmt.Sprintf("attempts-%s.json", now.UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write export", "error", err)
		return
	}
	slog.Info("exported attempts", "count", n)
}

func (h *Handler) handleImportAttempts(w http.ResponseWriter, r *http.Request) {
	body, err := importBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	defer body.Close()

	previous, err := h.store.AttemptCount(r.Context())
	if err != nil {
		slog.Error("failed to count attempts", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to import attempts")
		return
	}
	n, err := h.store.ImportAttempts(r.Context(), body)
	if err != nil {
		if errors.Is(err, store.ErrInvalidDocument) {
			slog.Warn("import rejected", "error", err)
			writeError(w, r, http.StatusBadRequest, "invalid_document", appI18n.T(r.Context(), "ImportRejected"))
			return
		}
		slog.Error("failed to import attempts", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to import attempts")
		return
	}

	slog.Info("imported attempts", "count", n, "replaced", previous)
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": n,
		"message":  appI18n.T(r.Context(), "ImportOK"),
	})
}

// importBody returns the document from a multipart "file" field or the raw body.
func importBody(r *http.Request) (io.ReadCloser, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return io.NopCloser(io.LimitReader(r.Body, maxImportSize)), nil
	}
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("no file uploaded: %w", err)
	}
	return file, nil
}
