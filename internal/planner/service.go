package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
)

// maxDocumentRunes bounds how much of an uploaded document is inlined.
const maxDocumentRunes = 8000

var ErrNoFile = errors.New("no file uploaded")

var slotSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"start": {"type": "string", "description": "Event start date-time in ISO 8601 format with offset"},
		"end": {"type": "string", "description": "Event end date-time in ISO 8601 format with offset"}
	},
	"required": ["start", "end"],
	"additionalProperties": false
}`)

// Service asks an OpenAI-compatible chat model for a time slot.
type Service struct {
	client *openai.Client
	model  string
	now    func() time.Time
	logger *slog.Logger
}

func NewService(apiKey, baseURL, model string, logger *slog.Logger) *Service {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
		logger: logger,
	}
}

// Suggest returns the model's raw reply, which ParseMessage understands.
func (s *Service) Suggest(ctx context.Context, req Request) (string, error) {
	if req.File == nil {
		return "", ErrNoFile
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You schedule study and work sessions. Reply only with the JSON object requested."},
			{Role: openai.ChatMessageRoleUser, Content: s.prompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "event_slot",
				Schema: slotSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Plan calls Suggest and parses the reply.
func (s *Service) Plan(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.Title) == "" {
		return Failure{Reason: ReasonNoTitle}
	}
	msg, err := s.Suggest(ctx, req)
	if errors.Is(err, ErrNoFile) {
		return Failure{Reason: ReasonNoFile}
	}
	if err != nil {
		s.logger.Warn("planner request failed", "error", err)
		return Failure{Reason: ReasonUnavailable}
	}
	return ParseMessage(msg)
}

func (s *Service) prompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the provided assignment file, schedule %q at a suitable date and time. ", req.Title)
	b.WriteString("Return only a JSON object with exact 'start' and 'end' ISO date-time strings. ")
	fmt.Fprintf(&b, "Start date should be after %s.", s.now().UTC().Format(time.RFC3339))
	if req.Description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", req.Description)
	}
	if req.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", req.Location)
	}
	fmt.Fprintf(&b, "\n\nFile %q", req.File.Name)
	if text, ok := documentText(req.File.Data); ok {
		b.WriteString(":\n")
		b.WriteString(text)
	} else {
		fmt.Fprintf(&b, " (%s, %d bytes, binary content omitted)", req.File.ContentType, len(req.File.Data))
	}
	return b.String()
}

// documentText returns the leading text of data when it is valid UTF-8.
func documentText(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	text := string(data)
	if utf8.RuneCountInString(text) <= maxDocumentRunes {
		return text, true
	}
	runes := []rune(text)
	return string(runes[:maxDocumentRunes]) + "\n[truncated]", true
}
