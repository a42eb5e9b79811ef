package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/tutor/internal/i18n"
)

const adminRealm = `Basic realm="tutor admin", charset="UTF-8"`

// requireAdmin is middleware that checks HTTP basic credentials against the
// admins table.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username == "" {
			h.unauthorized(w, r)
			return
		}

		hash, err := h.store.AdminPasswordHash(username)
		if err != nil {
			slog.Error("failed to get admin", "error", err)
			writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		if hash == nil {
			h.unauthorized(w, r)
			return
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
			slog.Warn("admin authentication failed", "username", username)
			h.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", adminRealm)
	writeError(w, r, http.StatusUnauthorized, "unauthorized", appI18n.T(r.Context(), "Unauthorized"))
}
