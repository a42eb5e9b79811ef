package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavelanni/tutor/internal/model"
)

const persistTimeout = 10 * time.Second

// Attempts combines the local collection with an optional remote store. It
// implements exam.AttemptSink.
type Attempts struct {
	local  *Store
	remote Remote
}

// NewAttempts returns the attempt store. remote may be nil.
func NewAttempts(local *Store, remote Remote) *Attempts {
	return &Attempts{local: local, remote: remote}
}

// Append writes the attempt to the local collection and, when the student is
// known, to the remote store. Failures are logged and never returned.
func (a *Attempts) Append(ctx context.Context, attempt model.ExamAttempt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := a.local.AppendAttempt(ctx, attempt); err != nil {
		slog.Error("failed to store attempt locally", "attempt_id", attempt.ID, "session_id", attempt.SessionID, "error", err)
	}
	if a.remote == nil || !attempt.Student.Known() {
		return
	}
	if err := a.remote.AppendAttempt(ctx, attempt); err != nil {
		slog.Error("failed to store attempt remotely", "attempt_id", attempt.ID, "session_id", attempt.SessionID, "error", err)
	}
}

// List returns attempts oldest first. A known student is looked up remotely;
// when that is unavailable or fails the local rows of that student are
// returned instead. An unknown student gets the whole local collection.
// It never fails: an unreadable local store yields an empty history.
func (a *Attempts) List(ctx context.Context, student model.Student) []model.ExamAttempt {
	var filter *model.Student
	if student.Known() {
		if a.remote != nil {
			attempts, err := a.remote.ListAttempts(ctx, student)
			if err == nil {
				return attempts
			}
			slog.Warn("remote attempt lookup failed, using local history", "error", err)
		}
		filter = &student
	}
	attempts, err := a.local.ListAttempts(ctx, filter)
	if err != nil {
		slog.Error("failed to list local attempts", "error", err)
		return nil
	}
	return attempts
}

// Local exposes the device collection for export and import.
func (a *Attempts) Local() *Store { return a.local }
