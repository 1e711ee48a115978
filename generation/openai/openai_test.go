package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/leadflow/generation"
	"github.com/hupe1980/leadflow/schema"
)

func TestNew_AppliesOptions(t *testing.T) {
	g := New(func(o *Options) {
		o.APIKey = "sk-test"
		o.Model = "gpt-4o"
		o.MaxHistoryTurns = 3
	})

	require.NotNil(t, g.client)
	assert.Equal(t, "sk-test", g.opts.APIKey)
	assert.Equal(t, "gpt-4o", g.opts.Model)
	assert.Equal(t, 3, g.opts.MaxHistoryTurns)
	assert.Equal(t, DefaultInstruction, g.opts.Instruction)
}

func TestTurnContext(t *testing.T) {
	ctx := turnContext(generation.Request{
		Flow:    schema.StudentLead,
		Known:   map[string]string{"name": "Ahmed"},
		Missing: []string{"email", "grade"},
	})

	assert.Contains(t, ctx, "Current flow: student_lead.")
	assert.Contains(t, ctx, "name=Ahmed")
	assert.Contains(t, ctx, "Still needed: email, grade.")
	assert.NotContains(t, ctx, "saved")
}

func TestTurnContext_DeferredSave(t *testing.T) {
	ctx := turnContext(generation.Request{Flow: schema.FeedbackEntry, Deferred: true})

	assert.Contains(t, ctx, "retried")
}
