package exam

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	appI18n "github.com/pavelanni/tutor/internal/i18n"
	"github.com/pavelanni/tutor/internal/model"
)

// UploadMarker separates a student's prose from attached file content.
const UploadMarker = "[[UPLOAD]]"

var (
	// ErrBusy is returned when an exchange is already in flight for the session.
	ErrBusy = errors.New("exam: exchange already in flight")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("exam: session closed")
	// ErrNotFound is returned by Manager for unknown session ids.
	ErrNotFound = errors.New("exam: session not found")
)

// Transport sends one exchange to the language model.
type Transport interface {
	Chat(ctx context.Context, req model.ChatRequest) (model.Reply, error)
}

// AttemptSink persists completed attempts. Implementations log their own failures.
type AttemptSink interface {
	Append(ctx context.Context, a model.ExamAttempt)
}

// GreetingGuard records that a session id has been greeted. It returns false
// when the id was already marked.
type GreetingGuard interface {
	MarkGreeted(sessionID string) (bool, error)
}

// Options configures sessions created by New or a Manager.
type Options struct {
	Transport    Transport
	Attempts     AttemptSink
	Greetings    GreetingGuard
	TickInterval time.Duration
	Now          func() time.Time
	Localize     func(ctx context.Context, msgID string) string
}

// SendInput is one student turn.
type SendInput struct {
	Message      string
	UploadName   string
	UploadedText string
	UploadType   model.UploadType
}

// Exchange reports what a Send or Greet appended.
type Exchange struct {
	Appended []model.Message
	Attempt  *model.ExamAttempt
}

// Session is the chat and exam state for one session id.
type Session struct {
	sc       model.SessionContext
	opts     Options
	inFlight atomic.Bool

	mu        sync.Mutex
	state     model.SessionState
	startTime time.Time
	elapsed   int
	subject   string
	paperText string
	messages  []model.Message
	attempt   *model.ExamAttempt
	greeted   bool
	closed    bool
	timer     *timer
}

// New creates a session in the NotStarted state.
func New(sc model.SessionContext, opts Options) *Session {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Localize == nil {
		opts.Localize = appI18n.T
	}
	return &Session{sc: sc, opts: opts, state: model.StateNotStarted}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.sc.SessionID }

// Context returns the session context passed to the transport.
func (s *Session) Context() model.SessionContext { return s.sc }

// State returns the current lifecycle state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns the elapsed exam time in seconds.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Paper returns the current question paper body and subject.
func (s *Session) Paper() (paper, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paperText, s.subject
}

// Snapshot returns a copy of the session for rendering.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.SessionSnapshot{
		ID:             s.sc.SessionID,
		Mode:           s.sc.Mode,
		Student:        s.sc.Student,
		State:          s.state,
		ElapsedSeconds: s.elapsed,
		Subject:        s.subject,
		PaperText:      s.paperText,
		Messages:       append([]model.Message(nil), s.messages...),
	}
	if !s.startTime.IsZero() {
		st := s.startTime
		snap.StartTime = &st
	}
	if s.attempt != nil {
		a := *s.attempt
		snap.Attempt = &a
	}
	return snap
}

// AppendMessage appends m as is. Order is preserved and nothing is deduplicated.
func (s *Session) AppendMessage(m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(m)
}

func (s *Session) appendLocked(m model.Message) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.opts.Now()
	}
	if m.Kind == "" {
		m.Kind = model.KindDialogue
	}
	s.messages = append(s.messages, m)
}

// StartExam moves NotStarted to Active and starts the timer. It reports
// whether a transition happened; later calls change nothing.
func (s *Session) StartExam(startTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(startTime)
}

func (s *Session) startLocked(startTime time.Time) bool {
	if s.state != model.StateNotStarted || s.closed {
		return false
	}
	s.state = model.StateActive
	s.startTime = startTime
	s.elapsed = 0
	s.timer = startTimer(s.opts.TickInterval, s.Tick)
	slog.Info("exam started", "session_id", s.sc.SessionID, "start_time", startTime)
	return true
}

// Tick recomputes the elapsed time while the exam is active.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.StateActive {
		return
	}
	s.elapsed = s.elapsedSince()
}

func (s *Session) elapsedSince() int {
	secs := int(s.opts.Now().Sub(s.startTime) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// EndExam moves Active to Ended, freezes the timer and builds the attempt.
// It returns nil when the session is not active, so an attempt is created at most once.
func (s *Session) EndExam(scoring model.Scoring) *model.ExamAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endLocked(scoring)
}

func (s *Session) endLocked(sc model.Scoring) *model.ExamAttempt {
	if s.state != model.StateActive {
		return nil
	}
	s.elapsed = s.elapsedSince()
	s.state = model.StateEnded
	s.stopTimerLocked()

	marks := nonNegative(sc.MarksObtained)
	total := nonNegative(sc.TotalMarks)
	if sc.Subject != "" {
		s.subject = sc.Subject
	}
	timeTaken := sc.TimeTaken
	if timeTaken == "" {
		timeTaken = FormatDuration(s.elapsed)
	}

	a := model.ExamAttempt{
		ID:               uuid.NewString(),
		SessionID:        s.sc.SessionID,
		Student:          s.sc.Student,
		Date:             s.opts.Now(),
		Subject:          s.subject,
		Chapters:         append([]string(nil), sc.Chapters...),
		MarksObtained:    marks,
		TotalMarks:       total,
		ScorePercent:     ScorePercent(marks, total, sc.Percentage),
		TimeTakenSeconds: s.elapsed,
		TimeTaken:        timeTaken,
		RawAnswerText:    s.answerTextLocked(),
	}
	s.attempt = &a
	slog.Info("exam ended",
		"session_id", s.sc.SessionID,
		"subject", a.Subject,
		"marks", a.MarksObtained,
		"total", a.TotalMarks,
		"elapsed_seconds", a.TimeTakenSeconds,
	)
	out := a
	return &out
}

func (s *Session) answerTextLocked() string {
	var parts []string
	for _, m := range s.messages {
		if m.Role == model.RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.cancel()
	}
}

// Close tears the session down. The timer is released and any reply still
// in flight is discarded when it arrives.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
}

// Greet sends the mode's opening prompt, once per session id.
func (s *Session) Greet(ctx context.Context) (Exchange, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Exchange{}, ErrBusy
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Exchange{}, ErrClosed
	}
	if s.greeted {
		s.mu.Unlock()
		return Exchange{}, nil
	}
	s.greeted = true
	s.mu.Unlock()

	if s.opts.Greetings != nil {
		first, err := s.opts.Greetings.MarkGreeted(s.sc.SessionID)
		if err != nil {
			slog.Warn("failed to record greeting", "session_id", s.sc.SessionID, "error", err)
		} else if !first {
			return Exchange{}, nil
		}
	}

	req := model.ChatRequest{
		Context: s.sc,
		Message: s.localize(ctx, greetingID(s.sc.Mode)),
	}
	return s.exchange(ctx, req, nil)
}

// Send appends the student's turn, calls the transport and applies the reply.
// Only one exchange may be outstanding; a concurrent call gets ErrBusy and
// leaves the session untouched.
func (s *Session) Send(ctx context.Context, in SendInput) (Exchange, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Exchange{}, ErrBusy
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Exchange{}, ErrClosed
	}
	history := append([]model.Message(nil), s.messages...)
	user := model.Message{
		Role:      model.RoleUser,
		Kind:      model.KindDialogue,
		Content:   userContent(in),
		CreatedAt: s.opts.Now(),
	}
	s.appendLocked(user)
	s.mu.Unlock()

	req := model.ChatRequest{
		Context:      s.sc,
		Message:      in.Message,
		History:      history,
		UploadedText: in.UploadedText,
		UploadType:   in.UploadType,
	}
	return s.exchange(ctx, req, []model.Message{user})
}

func (s *Session) exchange(ctx context.Context, req model.ChatRequest, appended []model.Message) (Exchange, error) {
	reply, err := s.opts.Transport.Chat(ctx, req)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Debug("dropping reply for closed session", "session_id", s.sc.SessionID)
		return Exchange{Appended: appended}, ErrClosed
	}
	if err != nil {
		slog.Error("chat transport failed", "session_id", s.sc.SessionID, "mode", s.sc.Mode, "error", err)
		notice := model.Message{
			Role:      model.RoleAssistant,
			Kind:      model.KindNotice,
			Content:   s.localize(ctx, "TransportFailure"),
			CreatedAt: s.opts.Now(),
		}
		s.appendLocked(notice)
		s.mu.Unlock()
		return Exchange{Appended: append(appended, notice)}, nil
	}
	msgs, attempt := s.applyLocked(reply)
	s.mu.Unlock()

	if attempt != nil && s.opts.Attempts != nil {
		// The attempt outlives the request that delivered the evaluation.
		s.opts.Attempts.Append(context.WithoutCancel(ctx), *attempt)
	}
	return Exchange{Appended: append(appended, msgs...), Attempt: attempt}, nil
}

// applyLocked turns a decoded reply into appended messages and transitions.
func (s *Session) applyLocked(reply model.Reply) ([]model.Message, *model.ExamAttempt) {
	examiner := s.sc.Mode == model.ModeExaminer
	var out []model.Message
	add := func(kind model.MessageKind, content string) {
		m := model.Message{Role: model.RoleAssistant, Kind: kind, Content: content, CreatedAt: s.opts.Now()}
		s.appendLocked(m)
		out = append(out, m)
	}

	switch r := reply.(type) {
	case model.ExamStarted:
		if examiner && s.startLocked(r.StartTime) {
			body, _ := SplitPaper(StripPaperMarker(r.Body))
			s.subject = r.Subject
			s.paperText = body
			add(model.KindPaper, body)
			add(model.KindDialogue, r.Body)
			return out, nil
		}
	case model.ExamEnded:
		if examiner {
			attempt := s.endLocked(r.Scoring)
			add(model.KindDialogue, r.Body)
			if attempt == nil {
				slog.Warn("ignoring end-of-exam signal", "session_id", s.sc.SessionID, "state", s.state)
			}
			return out, attempt
		}
	}
	add(classify(reply.Text()), reply.Text())
	return out, nil
}

// localize renders msgID in the session language, whatever the request asked for.
func (s *Session) localize(ctx context.Context, msgID string) string {
	if s.sc.Language != "" {
		ctx = appI18n.WithLanguage(ctx, s.sc.Language)
	}
	return s.opts.Localize(ctx, msgID)
}

func classify(text string) model.MessageKind {
	if IsPaper(text) {
		return model.KindPaper
	}
	return model.KindDialogue
}

func userContent(in SendInput) string {
	switch in.UploadType {
	case model.UploadText:
		return strings.TrimSpace(in.Message + "\n\n" + UploadMarker + " " + in.UploadName + "\n" + in.UploadedText)
	case model.UploadImage:
		return strings.TrimSpace(in.Message + "\n\n" + UploadMarker + " " + in.UploadName)
	default:
		return in.Message
	}
}

func greetingID(m model.Mode) string {
	return "Greeting_" + string(m)
}

// ScorePercent is round(marks/total*100) when total is positive. Otherwise the
// server-supplied percentage is used, and nil is returned when that is absent too.
func ScorePercent(marks, total float64, serverPct *float64) *int {
	var pct float64
	switch {
	case total > 0:
		pct = math.Round(marks * 100 / total)
	case serverPct != nil && !math.IsNaN(*serverPct):
		pct = math.Round(*serverPct)
	default:
		return nil
	}
	v := int(pct)
	return &v
}

func nonNegative(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return 0
	}
	return *v
}
