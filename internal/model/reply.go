package model

import "time"

// Reply is the decoded answer of the chat transport. It is one of
// Dialogue, ExamStarted or ExamEnded.
type Reply interface {
	Text() string
	isReply()
}

// Dialogue is an ordinary conversational reply.
type Dialogue struct {
	Body string
}

// ExamStarted announces a question paper. StartTime is issued by the server.
type ExamStarted struct {
	Body      string
	StartTime time.Time
	Subject   string
}

// ExamEnded carries the evaluation of a submitted paper.
type ExamEnded struct {
	Body    string
	Scoring Scoring
}

// Scoring is the end-of-exam payload. Nil fields were not supplied by the model.
type Scoring struct {
	MarksObtained *float64 `json:"marks_obtained,omitempty"`
	TotalMarks    *float64 `json:"total_marks,omitempty"`
	Percentage    *float64 `json:"percentage,omitempty"`
	TimeTaken     string   `json:"time_taken,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Chapters      []string `json:"chapters,omitempty"`
}

func (d Dialogue) Text() string    { return d.Body }
func (e ExamStarted) Text() string { return e.Body }
func (e ExamEnded) Text() string   { return e.Body }

func (Dialogue) isReply()    {}
func (ExamStarted) isReply() {}
func (ExamEnded) isReply()   {}
