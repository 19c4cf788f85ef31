// Package enrich calls the Anthropic API to turn meeting metadata and
// transcripts into a notes section for the canonical meeting note.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"meetsync/internal/attendees"
	"meetsync/internal/models"
)

// defaultModel is the model used when neither config nor environment
// specifies one.
const defaultModel = "claude-sonnet-4-5-20250929"

const maxResponseTokens = 2048

// DefaultModel returns the enrichment model, checking MEETSYNC_MODEL first.
func DefaultModel() string {
	if model := os.Getenv("MEETSYNC_MODEL"); model != "" {
		return model
	}
	return defaultModel
}

// Config holds enrichment client configuration.
type Config struct {
	APIKey             string // if empty, read from ANTHROPIC_API_KEY
	Model              string // if empty, DefaultModel()
	MaxConcurrentCalls int    // cap on in-flight API calls; 0 means no cap
}

// Client wraps the Anthropic client with the model choice and a
// concurrent-call limiter. The dispatcher bounds batch width already; the
// semaphore additionally protects against overlapping scan and webhook
// work hitting the API at once.
type Client struct {
	api    *anthropic.Client
	model  string
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewClient creates an enrichment client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel()
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}

	api := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{api: &api, model: model, sem: sem, logger: logger}, nil
}

// Call sends one prompt pair to the API and returns the response text. An
// empty return with a nil error means the model produced no usable result,
// which is distinct from a failed call.
func (c *Client) Call(ctx context.Context, system, user string) (string, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return "", err
		}
		defer c.sem.Release(1)
	}

	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxResponseTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

const notesSystemPrompt = `You are an assistant that writes concise meeting notes.
Given meeting metadata and, when available, a transcript, produce a short
Markdown section with the likely agenda, key topics, and follow-ups.
Do not invent facts that are not supported by the input. Respond with
Markdown only, no preamble.`

// GenerateNotes produces the Markdown notes section for one meeting. An
// empty result with nil error means the model had nothing useful to say;
// the caller leaves the note as-is.
func (c *Client) GenerateNotes(ctx context.Context, task *models.EnrichmentTask) (string, error) {
	notes, err := c.Call(ctx, notesSystemPrompt, BuildNotesPrompt(task))
	if err != nil {
		return "", err
	}
	if notes == "" {
		c.logger.Info("Enrichment returned no usable result.", "title", task.Event.Title)
	}
	return notes, nil
}

// BuildNotesPrompt renders the user prompt for a meeting.
func BuildNotesPrompt(task *models.EnrichmentTask) string {
	ev := task.Event

	var sb strings.Builder
	fmt.Fprintf(&sb, "Meeting: %s\n", ev.Title)
	fmt.Fprintf(&sb, "Start: %s\n", ev.StartTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "End: %s\n", ev.EndTime.Format("2006-01-02 15:04"))
	if ev.Organizer != "" {
		fmt.Fprintf(&sb, "Organizer: %s\n", ev.Organizer)
	}
	if len(ev.Attendees) > 0 {
		names := make([]string, 0, len(ev.Attendees))
		for _, a := range ev.Attendees {
			names = append(names, attendees.DeriveName(a))
		}
		fmt.Fprintf(&sb, "Attendees: %s\n", strings.Join(names, ", "))
	}
	if task.Transcript != "" {
		fmt.Fprintf(&sb, "\nTranscript:\n%s\n", task.Transcript)
	}
	return sb.String()
}
