// Package config loads the engine's startup configuration: the generation
// provider credential, trigger phrase sets, correction phrases, identity key
// derivations and the optional Redis store. All of these ship with working
// defaults; a YAML file overrides them. The credential is read once at
// startup and its absence fails the process rather than degrading silently.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/leadflow/classify"
	"github.com/hupe1980/leadflow/record"
	"github.com/hupe1980/leadflow/schema"
)

// ErrMissingCredential is returned when a live generation provider is
// configured but its API key is absent from the environment.
var ErrMissingCredential = errors.New("missing generation credential")

// Generation provider names accepted in Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	// ProviderNone disables live generation; the engine answers with
	// deterministic canned replies.
	ProviderNone = "none"
)

// credentialEnv maps providers to the environment variable holding their key.
var credentialEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// IdentityKey configures how one flow's dedup key is derived.
type IdentityKey struct {
	Fields []string `yaml:"fields"`
	Hash   bool     `yaml:"hash"`
}

// Redis configures the optional durable record store. An empty Addr keeps
// the in-memory store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the full startup configuration.
type Config struct {
	Provider          string                 `yaml:"provider"`
	Triggers          map[string][]string    `yaml:"triggers"`
	CorrectionPhrases []string               `yaml:"correction_phrases"`
	IdentityKeys      map[string]IdentityKey `yaml:"identity_keys"`
	// Enums overrides the allowed value set of enum fields, keyed by field
	// name (grade, language, program_type, category, urgency).
	Enums    map[string][]string `yaml:"enums"`
	Redis    Redis               `yaml:"redis"`
	HTTPAddr string              `yaml:"http_addr"`
	LogLevel string              `yaml:"log_level"`

	// Credential is resolved from the environment, never from the file.
	Credential string `yaml:"-"`
}

// Default returns the built-in configuration: canned replies, default
// triggers and key derivations, in-memory store.
func Default() *Config {
	return &Config{
		Provider: ProviderNone,
		HTTPAddr: ":8080",
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (a missing file yields defaults), then
// resolves the provider credential from the environment and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if env, ok := credentialEnv[cfg.Provider]; ok {
		cfg.Credential = os.Getenv(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider and credential consistency.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderNone, "":
		return nil
	case ProviderOpenAI, ProviderAnthropic:
		if c.Credential == "" {
			return fmt.Errorf("%w: set %s", ErrMissingCredential, credentialEnv[c.Provider])
		}
		return nil
	default:
		return fmt.Errorf("unknown generation provider %q", c.Provider)
	}
}

// TriggerSet converts the configured trigger map into classifier triggers.
// An empty map keeps the classifier defaults.
func (c *Config) TriggerSet() (classify.Triggers, error) {
	if len(c.Triggers) == 0 {
		return classify.DefaultTriggers(), nil
	}
	triggers := classify.Triggers{}
	for name, phrases := range c.Triggers {
		flow, err := schema.ParseFlow(name)
		if err != nil {
			return nil, fmt.Errorf("invalid trigger flow: %w", err)
		}
		triggers[flow] = phrases
	}
	return triggers, nil
}

// Registry builds the field schema registry, applying any configured enum
// value overrides to the built-in field sets.
func (c *Config) Registry() *schema.Registry {
	if len(c.Enums) == 0 {
		return schema.NewRegistry()
	}
	specs := map[schema.Flow][]schema.FieldSpec{}
	for _, flow := range schema.Flows() {
		fields, err := schema.NewRegistry().FieldsFor(flow)
		if err != nil {
			continue
		}
		for i, fs := range fields {
			if fs.Kind != schema.KindEnum {
				continue
			}
			if values, ok := c.Enums[fs.Name]; ok && len(values) > 0 {
				fields[i].Enum = values
			}
		}
		specs[flow] = fields
	}
	return schema.NewRegistryFromSpecs(specs)
}

// KeySpecs converts the configured identity keys into reconciler key specs.
// An empty map keeps the built-in derivations.
func (c *Config) KeySpecs() (map[schema.Flow]record.KeySpec, error) {
	if len(c.IdentityKeys) == 0 {
		return record.DefaultKeySpecs(), nil
	}
	specs := map[schema.Flow]record.KeySpec{}
	for name, ik := range c.IdentityKeys {
		flow, err := schema.ParseFlow(name)
		if err != nil {
			return nil, fmt.Errorf("invalid identity key flow: %w", err)
		}
		specs[flow] = record.KeySpec{Fields: ik.Fields, Hash: ik.Hash}
	}
	return specs, nil
}
