package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pavelanni/tutor/internal/model"
)

// ErrInvalidDocument is returned when an import document fails validation.
var ErrInvalidDocument = errors.New("invalid attempts document")

// EncodeAttempts writes attempts as an export document.
func EncodeAttempts(w io.Writer, attempts []model.ExamAttempt, exportedAt time.Time) error {
	if attempts == nil {
		attempts = []model.ExamAttempt{}
	}
	doc := model.AttemptsExport{
		Format:     model.ExportFormat,
		Version:    model.ExportVersion,
		ExportedAt: exportedAt.UTC(),
		Attempts:   attempts,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// DecodeAttempts reads and validates an export document. Every failure wraps
// ErrInvalidDocument.
func DecodeAttempts(r io.Reader) ([]model.ExamAttempt, error) {
	var doc struct {
		Format   string          `json:"format"`
		Version  int             `json:"version"`
		Attempts json.RawMessage `json:"attempts"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Format != model.ExportFormat {
		return nil, fmt.Errorf("%w: format %q", ErrInvalidDocument, doc.Format)
	}
	if doc.Version != model.ExportVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidDocument, doc.Version)
	}
	raw := bytes.TrimSpace(doc.Attempts)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing attempts", ErrInvalidDocument)
	}
	var attempts []model.ExamAttempt
	if err := json.Unmarshal(raw, &attempts); err != nil {
		return nil, fmt.Errorf("%w: attempts: %v", ErrInvalidDocument, err)
	}
	if err := ValidateAttempts(attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

// ValidateAttempts checks that every record is attempt shaped and ids are unique.
func ValidateAttempts(attempts []model.ExamAttempt) error {
	seen := make(map[string]bool, len(attempts))
	for i, a := range attempts {
		switch {
		case a.ID == "":
			return fmt.Errorf("%w: attempt %d has no id", ErrInvalidDocument, i)
		case seen[a.ID]:
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidDocument, a.ID)
		case a.Subject == "":
			return fmt.Errorf("%w: attempt %s has no subject", ErrInvalidDocument, a.ID)
		case a.Date.IsZero():
			return fmt.Errorf("%w: attempt %s has no date", ErrInvalidDocument, a.ID)
		case a.MarksObtained < 0 || a.TotalMarks < 0:
			return fmt.Errorf("%w: attempt %s has negative marks", ErrInvalidDocument, a.ID)
		case a.TimeTakenSeconds < 0:
			return fmt.Errorf("%w: attempt %s has negative time", ErrInvalidDocument, a.ID)
		case a.ScorePercent != nil && *a.ScorePercent < 0:
			return fmt.Errorf("%w: attempt %s has negative score", ErrInvalidDocument, a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// ExportAttempts writes the whole local collection as an export document.
func (s *Store) ExportAttempts(ctx context.Context, w io.Writer, now time.Time) (int, error) {
	attempts, err := s.ListAttempts(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("list attempts: %w", err)
	}
	return len(attempts), EncodeAttempts(w, attempts, now)
}

// ImportAttempts validates the document and replaces the local collection.
// An invalid document leaves the store untouched.
func (s *Store) ImportAttempts(ctx context.Context, r io.Reader) (int, error) {
	attempts, err := DecodeAttempts(r)
	if err != nil {
		return 0, err
	}
	if err := s.ReplaceAttempts(ctx, attempts); err != nil {
		return 0, fmt.Errorf("replace attempts: %w", err)
	}
	return len(attempts), nil
}
