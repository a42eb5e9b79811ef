package model

import "time"

const (
	// ExportFormat identifies an attempts export document.
	ExportFormat = "cbse-tutor/attempts"
	// ExportVersion is the current document version.
	ExportVersion = 1
)

// AttemptsExport is the top-level JSON structure for attempt export and import.
type AttemptsExport struct {
	Format     string        `json:"format"`
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Attempts   []ExamAttempt `json:"attempts"`
}

// SubjectStat is derived per subject by the progress aggregator. It is never stored.
type SubjectStat struct {
	Subject string `json:"subject"`
	Scores  []int  `json:"scores"`
	Latest  int    `json:"latest"`
	Band    Band   `json:"band"`
	Trend   Trend  `json:"trend"`
}

// ProgressReport is the dashboard view of a student's attempts.
type ProgressReport struct {
	Subjects       []SubjectStat `json:"subjects"`
	OverallAverage *int          `json:"overall_average"`
	AttemptCount   int           `json:"attempt_count"`
}

// Band classifies a percentage score.
type Band string

const (
	BandExcellent Band = "Excellent"
	BandGood      Band = "Good"
	BandAverage   Band = "Average"
	BandWeak      Band = "Weak"
	BandNeedsWork Band = "Needs Work"
)

// Trend compares the last two scores of a subject.
type Trend string

const (
	TrendNone      Trend = ""
	TrendImproving Trend = "Improving"
	TrendDeclining Trend = "Declining"
	TrendStable    Trend = "Stable"
)
