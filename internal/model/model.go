package model

import (
	"strings"
	"time"
)

// Mode selects the tutoring behaviour of a chat session.
type Mode string

const (
	ModeTeacher  Mode = "teacher"
	ModeExaminer Mode = "examiner"
	ModeOral     Mode = "oral"
	ModePractice Mode = "practice"
	ModeRevision Mode = "revision"
	ModeProgress Mode = "progress"
)

// Modes lists every supported mode in display order.
var Modes = []Mode{ModeTeacher, ModeExaminer, ModeOral, ModePractice, ModeRevision, ModeProgress}

// IsValidMode reports whether m names a supported mode.
func IsValidMode(m string) bool {
	for _, mode := range Modes {
		if string(mode) == m {
			return true
		}
	}
	return false
}

// Student identifies the learner a session belongs to.
type Student struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// Known reports whether both halves of the identity are present.
func (s Student) Known() bool {
	return strings.TrimSpace(s.Name) != "" && strings.TrimSpace(s.Class) != ""
}

// SessionContext is built once per session and passed to every transport call.
type SessionContext struct {
	SessionID string  `json:"session_id"`
	Mode      Mode    `json:"mode"`
	Student   Student `json:"student"`
	Language  string  `json:"language"`
}

// Role represents a chat message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind separates downloadable papers from ordinary dialogue.
type MessageKind string

const (
	KindDialogue MessageKind = "dialogue"
	KindPaper    MessageKind = "paper"
	KindNotice   MessageKind = "notice"
)

// Message is a single chat turn. Messages are appended, never edited.
type Message struct {
	Role      Role        `json:"role"`
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// UploadType tells the transport how to attach an uploaded file.
type UploadType string

const (
	UploadNone  UploadType = ""
	UploadText  UploadType = "text"
	UploadImage UploadType = "image"
)

// ChatRequest is what the session hands to the chat transport.
type ChatRequest struct {
	Context      SessionContext
	Message      string
	History      []Message
	UploadedText string
	UploadType   UploadType
}

// SessionState is the exam lifecycle state.
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateActive     SessionState = "active"
	StateEnded      SessionState = "ended"
)

// ExamAttempt is one completed exam, created once at the end-of-exam signal.
type ExamAttempt struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	Student          Student   `json:"student"`
	Date             time.Time `json:"date"`
	Subject          string    `json:"subject"`
	Chapters         []string  `json:"chapters"`
	MarksObtained    float64   `json:"marks_obtained"`
	TotalMarks       float64   `json:"total_marks"`
	ScorePercent     *int      `json:"score_percent"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	TimeTaken        string    `json:"time_taken"`
	RawAnswerText    string    `json:"raw_answer_text"`
}

// SessionSnapshot is a read-only copy of a session for display.
type SessionSnapshot struct {
	ID             string       `json:"id"`
	Mode           Mode         `json:"mode"`
	Student        Student      `json:"student"`
	State          SessionState `json:"state"`
	StartTime      *time.Time   `json:"start_time,omitempty"`
	ElapsedSeconds int          `json:"elapsed_seconds"`
	Subject        string       `json:"subject,omitempty"`
	PaperText      string       `json:"paper_text,omitempty"`
	Messages       []Message    `json:"messages"`
	Attempt        *ExamAttempt `json:"attempt,omitempty"`
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	Language      string        // default UI and prompt language (en, hi)
	TickInterval  time.Duration // exam timer and timer feed resolution
	SecureCookies bool
}
