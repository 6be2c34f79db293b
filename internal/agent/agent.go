package agent

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/logging"
)

//go:embed prompts/*.md
var promptFS embed.FS

// SystemPrompt returns the embedded system prompt for a role.
func SystemPrompt(role string) (string, error) {
	data, err := promptFS.ReadFile("prompts/" + role + ".md")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, role)
	}
	return strings.TrimSpace(string(data)), nil
}

// Agent is a role-specific system prompt bound to a model and its settings.
type Agent struct {
	role     string
	system   string
	settings config.AgentSettings
	llm      LLM
	log      *zap.Logger
}

// New creates the agent for a role.
func New(role string, llm LLM, settings config.AgentSettings, log *zap.Logger) (*Agent, error) {
	if llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrInvalidConfig)
	}
	system, err := SystemPrompt(role)
	if err != nil {
		return nil, err
	}
	return &Agent{
		role:     role,
		system:   system,
		settings: settings,
		llm:      llm,
		log:      logging.OrNop(log).With(zap.String("agent", role)),
	}, nil
}

// Role returns the agent's role name.
func (a *Agent) Role() string { return a.role }

// Settings returns the model settings the agent calls with.
func (a *Agent) Settings() config.AgentSettings { return a.settings }

// Generate runs a single prompt through the agent.
func (a *Agent) Generate(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGenerationFailed)
	}
	return a.Chat(ctx, UserPrompt(prompt))
}

// Chat sends a conversation history and returns the next assistant turn.
func (a *Agent) Chat(ctx context.Context, history []Message) (*Response, error) {
	start := time.Now()
	resp, err := a.llm.Generate(ctx, Request{
		System:      a.system,
		Messages:    history,
		Model:       a.settings.Model,
		MaxTokens:   a.settings.MaxTokens,
		Temperature: a.settings.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s agent: %w", ErrGenerationFailed, a.role, err)
	}

	a.log.Debug("model call complete",
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.String("finish_reason", resp.FinishReason),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.FinishReason == "length" || resp.FinishReason == "MAX_TOKENS" {
		a.log.Warn("response truncated at max tokens", zap.Int("max_tokens", a.settings.MaxTokens))
	}
	return resp, nil
}

// Registry holds one agent per configured role.
type Registry struct {
	agents map[string]*Agent
}

// NewRegistry builds the chapter, validation, content and formatter agents
// sharing one LLM.
func NewRegistry(llm LLM, cfg *config.Config, log *zap.Logger) (*Registry, error) {
	r := &Registry{agents: make(map[string]*Agent, len(config.Roles))}
	for _, role := range config.Roles {
		settings, _ := cfg.Agent(role)
		a, err := New(role, llm, settings, log)
		if err != nil {
			return nil, err
		}
		r.agents[role] = a
	}
	return r, nil
}

// Connect creates the provider LLM named by cfg and the agent registry on it.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Registry, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	llm, err := NewLLM(ctx, ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return NewRegistry(llm, cfg, log)
}

// Get returns the agent for a role.
func (r *Registry) Get(role string) (*Agent, error) {
	a, ok := r.agents[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownAgent, role, strings.Join(config.Roles, ", "))
	}
	return a, nil
}

// Roles lists the registered roles in a stable order.
func (r *Registry) Roles() []string {
	var roles []string
	for _, role := range config.Roles {
		if _, ok := r.agents[role]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}
