// Package openai implements generation.Generator using the OpenAI Chat
// Completions API. It translates the engine's structured turn context into a
// system prompt plus conversation history so the model only phrases replies,
// never makes routing or extraction decisions.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/leadflow/generation"
)

// Options configure the OpenAI generator adapter.
type Options struct {
	// APIKey overrides the OPENAI_API_KEY environment lookup.
	APIKey              string
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// Instruction is the system prompt framing the assistant's role.
	Instruction string
	// MaxHistoryTurns bounds how much conversation history is sent.
	MaxHistoryTurns int
}

// DefaultInstruction frames the assistant for the education agency domain.
const DefaultInstruction = "You are a friendly assistant for an education agency. " +
	"You help students register for teacher matching, help organizations advertise workshops, " +
	"and record feedback. Be concise. Never invent field values; ask for the missing details you are given."

// Generator wraps the OpenAI Chat Completions API behind generation.Generator.
type Generator struct {
	client *openai.Client
	opts   Options
}

// New creates a generator using the official client. Without an explicit
// APIKey the client falls back to the OPENAI_API_KEY environment variable.
func New(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Generator{client: &client, opts: opts}
}

// NewFromClient creates a generator from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 512,
		Instruction:         DefaultInstruction,
		MaxHistoryTurns:     20,
	}
}

// Reply implements generation.Generator.
func (g *Generator) Reply(ctx context.Context, req generation.Request) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(g.opts.Instruction + "\n\n" + turnContext(req)),
	}

	history := req.History
	if g.opts.MaxHistoryTurns > 0 && len(history) > g.opts.MaxHistoryTurns {
		history = history[len(history)-g.opts.MaxHistoryTurns:]
	}
	for _, turn := range history {
		messages = append(messages, openai.UserMessage(turn.Message))
	}
	messages = append(messages, openai.UserMessage(req.Message))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// turnContext renders the engine's structured decisions for the model.
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
