package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pavelanni/tutor/internal/model"
)

const timerWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// timerFrame is one update of the exam timer feed.
type timerFrame struct {
	State          model.SessionState `json:"state"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
}

// handleTimerFeed streams the elapsed time of a session until the exam ends,
// the session is closed, or the client goes away.
func (h *Handler) handleTimerFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := h.sessions.Get(id); err != nil {
		writeSessionError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.config.TickInterval)
	defer ticker.Stop()

	for {
		s, err := h.sessions.Get(id)
		if err != nil {
			closeFeed(conn, websocket.CloseGoingAway, "session closed")
			return
		}
		frame := timerFrame{State: s.State(), ElapsedSeconds: s.Elapsed()}
		_ = conn.SetWriteDeadline(time.Now().Add(timerWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			slog.Debug("timer feed write failed", "session_id", id, "error", err)
			return
		}
		if frame.State == model.StateEnded {
			closeFeed(conn, websocket.CloseNormalClosure, "exam ended")
			return
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func closeFeed(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timerWriteWait))
}
