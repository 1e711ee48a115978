// Package anthropic implements generation.Generator using the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/leadflow/generation"
)

// Options configure the Anthropic generator adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Instruction string
	// MaxHistoryTurns bounds how much conversation history is sent.
	MaxHistoryTurns int
}

// Generator wraps the Anthropic Messages API behind generation.Generator.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

// New creates a generator using the official client.
func New(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Generator{client: &client, opts: opts}
}

// NewFromClient creates a generator from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   512,
		Instruction: "You are a friendly assistant for an education agency. " +
			"You help students register for teacher matching, help organizations advertise workshops, " +
			"and record feedback. Be concise. Never invent field values; ask for the missing details you are given.",
		MaxHistoryTurns: 20,
	}
}

// Reply implements generation.Generator.
func (g *Generator) Reply(ctx context.Context, req generation.Request) (string, error) {
	history := req.History
	if g.opts.MaxHistoryTurns > 0 && len(history) > g.opts.MaxHistoryTurns {
		history = history[len(history)-g.opts.MaxHistoryTurns:]
	}

	var messages []anthropic.MessageParam
	for _, turn := range history {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Message)))
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)))

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.opts.Model,
		Messages:    messages,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: g.opts.Instruction + "\n\n" + turnContext(req)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	reply := strings.TrimSpace(b.String())
	if reply == "" {
		return "", fmt.Errorf("empty completion")
	}
	return reply, nil
}

func turnContext(req generation.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current flow: %s.\n", req.Flow)
	if len(req.Known) > 0 {
		b.WriteString("Collected so far:")
		for name, value := range req.Known {
			fmt.Fprintf(&b, " %s=%s;", name, value)
		}
		b.WriteString("\n")
	}
	if len(req.Missing) > 0 {
		fmt.Fprintf(&b, "Still needed: %s.\n", strings.Join(req.Missing, ", "))
	}
	switch {
	case req.Saved:
		b.WriteString("The record was just saved; confirm that to the user.\n")
	case req.Deferred:
		b.WriteString("Saving is temporarily failing; reassure the user it will be retried and nothing is lost.\n")
	}
	return b.String()
}
