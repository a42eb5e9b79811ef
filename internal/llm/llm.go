package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/tutor/internal/exam"
	"github.com/pavelanni/tutor/internal/llm/prompts"
	"github.com/pavelanni/tutor/internal/model"
)

// ErrNoChoices is returned when the completion carries no message.
var ErrNoChoices = errors.New("LLM returned no choices")

// Client wraps an OpenAI-compatible API client and implements exam.Transport.
type Client struct {
	api   *openai.Client
	model string
	now   func() time.Time
}

// New creates a new LLM client and loads the built-in prompt templates.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		now:   time.Now,
	}, nil
}

// Ping checks that the endpoint answers by listing its models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Chat sends one exchange and decodes the reply. Only examiner replies are
// decoded for exam control signals.
func (c *Client) Chat(ctx context.Context, req model.ChatRequest) (model.Reply, error) {
	msgs, err := buildMessages(req)
	if err != nil {
		return nil, err
	}

	examiner := req.Context.Mode == model.ModeExaminer
	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.7,
	}
	if examiner {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		creq.Temperature = 0.3
	}

	resp, err := c.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "session_id", req.Context.SessionID, "mode", req.Context.Mode, "raw", raw)

	if !examiner {
		return model.Dialogue{Body: raw}, nil
	}
	return decodeExaminerReply(raw, c.now()), nil
}

func buildMessages(req model.ChatRequest) ([]openai.ChatCompletionMessage, error) {
	system, err := prompts.BuildSystemPrompt(req.Context.Mode, prompts.SystemData{
		StudentName:    req.Context.Student.Name,
		StudentClass:   req.Context.Student.Class,
		Language:       req.Context.Language,
		PaperMarker:    exam.PaperMarker,
		PaperDelimiter: exam.PaperDelimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, m := range req.History {
		// Notices are local and papers duplicate the reply they came from.
		if m.Kind == model.KindNotice || m.Kind == model.KindPaper {
			continue
		}
		role := openai.ChatMessageRoleUser
		if m.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, userTurn(req)), nil
}

func userTurn(req model.ChatRequest) openai.ChatCompletionMessage {
	switch req.UploadType {
	case model.UploadText:
		var sb strings.Builder
		sb.WriteString(req.Message)
		sb.WriteString("\n\n<student-upload>\n")
		sb.WriteString(prompts.SanitizeUpload(req.UploadedText))
		sb.WriteString("\n</student-upload>")
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: sb.String()}
	case model.UploadImage:
		text := req.Message
		if strings.TrimSpace(text) == "" {
			text = "Please look at the attached image."
		}
		return openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: text},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    req.UploadedText,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		}
	default:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message}
	}
}

// examinerEnvelope is the JSON object the examiner prompt asks for.
type examinerEnvelope struct {
	Reply         string   `json:"reply"`
	PaperStarted  bool     `json:"paper_started"`
	Subject       string   `json:"subject"`
	ExamEnded     bool     `json:"exam_ended"`
	MarksObtained *number  `json:"marks_obtained"`
	TotalMarks    *number  `json:"total_marks"`
	Percentage    *number  `json:"percentage"`
	TimeTaken     string   `json:"time_taken"`
	Chapters      []string `json:"chapters"`
}

// number accepts 62, 62.5 or "62".
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(string(b), "%"), 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", b, err)
	}
	*n = number(f)
	return nil
}

func (n *number) float() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

// decodeExaminerReply turns model output into a Reply. Anything that is not
// a usable envelope is shown to the student as plain dialogue.
func decodeExaminerReply(raw string, now time.Time) model.Reply {
	var env examinerEnvelope
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &env); err != nil {
		slog.Warn("examiner reply is not valid JSON, treating as dialogue", "error", err)
		return model.Dialogue{Body: raw}
	}
	if strings.TrimSpace(env.Reply) == "" {
		slog.Warn("examiner reply has no text, treating as dialogue")
		return model.Dialogue{Body: raw}
	}

	switch {
	case env.PaperStarted:
		return model.ExamStarted{Body: env.Reply, StartTime: now, Subject: strings.TrimSpace(env.Subject)}
	case env.ExamEnded:
		return model.ExamEnded{Body: env.Reply, Scoring: model.Scoring{
			MarksObtained: env.MarksObtained.float(),
			TotalMarks:    env.TotalMarks.float(),
			Percentage:    env.Percentage.float(),
			TimeTaken:     strings.TrimSpace(env.TimeTaken),
			Subject:       strings.TrimSpace(env.Subject),
			Chapters:      env.Chapters,
		}}
	default:
		return model.Dialogue{Body: env.Reply}
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
