// Package config loads folio's agent and project configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// FOLIO_* environment variables, provider API keys from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where `folio init` writes the agent configuration.
const DefaultPath = "config/agents.yaml"

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Agent role names as they appear under `agents:`.
const (
	RoleChapter    = "chapter"
	RoleValidation = "validation"
	RoleContent    = "content"
	RoleFormatter  = "formatter"
)

// Roles lists every agent role in a stable order.
var Roles = []string{RoleChapter, RoleValidation, RoleContent, RoleFormatter}

var providerEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

var providerModels = map[string]string{
	ProviderAnthropic: "claude-sonnet-4-20250514",
	ProviderOpenAI:    "gpt-4o",
	ProviderGemini:    "gemini-2.5-flash",
}

var roleDefaults = map[string]AgentSettings{
	RoleChapter:    {MaxTokens: 6000, Temperature: 0.3},
	RoleValidation: {MaxTokens: 2000, Temperature: 0.1},
	RoleContent:    {MaxTokens: 3000, Temperature: 0.2},
	RoleFormatter:  {MaxTokens: 4000, Temperature: 0.2},
}

// Config holds all folio configuration.
type Config struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey   string `mapstructure:"api_key" yaml:"-"`

	Agents    map[string]AgentSettings `mapstructure:"agents" yaml:"agents"`
	Project   ProjectConfig            `mapstructure:"project" yaml:"project"`
	Embedding EmbeddingConfig          `mapstructure:"embedding" yaml:"embedding"`
	Milvus    MilvusConfig             `mapstructure:"milvus" yaml:"milvus"`
}

// AgentSettings configures a single agent role.
type AgentSettings struct {
	Model       string  `mapstructure:"model" yaml:"model,omitempty"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// ProjectConfig describes the book project being produced.
type ProjectConfig struct {
	Name              string `mapstructure:"name" yaml:"name"`
	OutputDirectory   string `mapstructure:"output_directory" yaml:"output_directory"`
	ValidationEnabled bool   `mapstructure:"validation_enabled" yaml:"validation_enabled"`
	MaxWorkers        int    `mapstructure:"max_workers" yaml:"max_workers"`
	StyleGuide        string `mapstructure:"style_guide" yaml:"style_guide"`
}

// EmbeddingConfig configures the chapter index embedder.
type EmbeddingConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	Dimension int    `mapstructure:"dimension" yaml:"dimension"`
	APIKey    string `mapstructure:"api_key" yaml:"-"`
}

// MilvusConfig locates the vector store backing `folio index` and chat context.
type MilvusConfig struct {
	Address    string `mapstructure:"address" yaml:"address"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	agents := make(map[string]AgentSettings, len(roleDefaults))
	for role, s := range roleDefaults {
		agents[role] = s
	}
	return &Config{
		Agents: agents,
		Project: ProjectConfig{
			Name:              "epub-project",
			OutputDirectory:   "OEBPS/text",
			ValidationEnabled: true,
			MaxWorkers:        4,
			StyleGuide:        "config/aciss_style_guide.yaml",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Milvus: MilvusConfig{
			Address:    "localhost:19530",
			Collection: "folio_chapters",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	for role, s := range d.Agents {
		v.SetDefault("agents."+role+".max_tokens", s.MaxTokens)
		v.SetDefault("agents."+role+".temperature", s.Temperature)
	}
	v.SetDefault("project.name", d.Project.Name)
	v.SetDefault("project.output_directory", d.Project.OutputDirectory)
	v.SetDefault("project.validation_enabled", d.Project.ValidationEnabled)
	v.SetDefault("project.max_workers", d.Project.MaxWorkers)
	v.SetDefault("project.style_guide", d.Project.StyleGuide)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimension", d.Embedding.Dimension)
	v.SetDefault("milvus.address", d.Milvus.Address)
	v.SetDefault("milvus.collection", d.Milvus.Collection)
}

// Load reads configuration from a YAML file. A missing file is not an error:
// defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"provider", "model", "base_url", "api_key"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides resolves the provider and its API key from the environment.
// An explicit provider keeps its choice and only picks up its own key; otherwise
// the first key found in the order anthropic, openai, gemini selects the provider.
func (c *Config) applyEnvOverrides() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider != "" {
		if c.APIKey == "" {
			c.APIKey = os.Getenv(providerEnv[c.Provider])
		}
	} else {
		for _, p := range []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini} {
			if key := os.Getenv(providerEnv[p]); key != "" {
				c.Provider = p
				if c.APIKey == "" {
					c.APIKey = key
				}
				break
			}
		}
	}

	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if addr := os.Getenv("MILVUS_ADDRESS"); addr != "" {
		c.Milvus.Address = addr
	}
}

func (c *Config) fillDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAnthropic
	}
	if c.Model == "" {
		c.Model = providerModels[c.Provider]
	}
	if c.Agents == nil {
		c.Agents = make(map[string]AgentSettings)
	}
	for role, def := range roleDefaults {
		s := c.Agents[role]
		if s.MaxTokens <= 0 {
			s.MaxTokens = def.MaxTokens
		}
		if s.Model == "" {
			s.Model = c.Model
		}
		c.Agents[role] = s
	}
	if c.Project.MaxWorkers <= 0 {
		c.Project.MaxWorkers = 1
	}
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	if _, ok := providerEnv[c.Provider]; !ok {
		return fmt.Errorf("%w: %q (supported: anthropic, openai, gemini)", ErrUnknownProvider, c.Provider)
	}
	for role, s := range c.Agents {
		if s.Temperature < 0 || s.Temperature > 2 {
			return fmt.Errorf("%w: agents.%s.temperature %.2f out of range [0,2]", ErrInvalidConfig, role, s.Temperature)
		}
	}
	if c.Project.OutputDirectory == "" {
		return fmt.Errorf("%w: project.output_directory is empty", ErrInvalidConfig)
	}
	return nil
}

// RequireAPIKey reports a missing key for the configured provider.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, APIKeyEnv(c.Provider))
	}
	return nil
}

// Agent returns the settings for a role.
func (c *Config) Agent(role string) (AgentSettings, bool) {
	s, ok := c.Agents[role]
	return s, ok
}

// APIKeyEnv names the environment variable holding a provider's key.
func APIKeyEnv(provider string) string {
	if env, ok := providerEnv[provider]; ok {
		return env
	}
	return "ANTHROPIC_API_KEY"
}

// DefaultModel is the model used for a provider when none is configured.
func DefaultModel(provider string) string {
	return providerModels[provider]
}

// Marshal encodes the configuration as YAML. API keys are never included.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
