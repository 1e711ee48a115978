package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/leadflow/schema"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, cfg.Provider)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadflow.yaml")
	data := `
provider: openai
http_addr: ":9090"
triggers:
  workshop_lead: ["masterclass"]
identity_keys:
  feedback_entry:
    fields: [message]
    hash: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "sk-test", cfg.Credential)

	triggers, err := cfg.TriggerSet()
	require.NoError(t, err)
	assert.Equal(t, []string{"masterclass"}, triggers[schema.WorkshopLead])

	specs, err := cfg.KeySpecs()
	require.NoError(t, err)
	assert.True(t, specs[schema.FeedbackEntry].Hash)
}

func TestRegistry_EnumOverride(t *testing.T) {
	cfg := Default()
	cfg.Enums = map[string][]string{"urgency": {"now", "later"}}

	reg := cfg.Registry()
	spec, ok := reg.Spec(schema.FeedbackEntry, "urgency")
	require.True(t, ok)
	assert.Equal(t, []string{"now", "later"}, spec.Enum)

	// Unrelated enum sets keep their defaults.
	spec, ok = reg.Spec(schema.StudentLead, "grade")
	require.True(t, ok)
	assert.Contains(t, spec.Enum, "university")
}

func TestLoad_MissingCredentialFailsStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: anthropic\n"), 0o600))
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Provider = "llamastack"
	assert.Error(t, cfg.Validate())
}
