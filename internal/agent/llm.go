// Package agent provides the LLM-backed agents that generate, review and
// format EPUB content. It defines a provider-agnostic LLM interface with
// implementations for OpenAI-compatible endpoints, Gemini and a deterministic
// mock for testing.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Yates-Labs/folio/internal/config"
)

var (
	ErrLLMFailed        = errors.New("LLM request failed")
	ErrInvalidConfig    = errors.New("invalid LLM configuration")
	ErrMissingAPIKey    = config.ErrMissingAPIKey
	ErrUnknownProvider  = config.ErrUnknownProvider
	ErrGenerationFailed = errors.New("generation failed")
	ErrUnknownAgent     = errors.New("unknown agent")
)

// anthropicBaseURL is Anthropic's OpenAI-compatible endpoint.
const anthropicBaseURL = "https://api.anthropic.com/v1/"

// Message roles in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single model call.
type Request struct {
	// System is the system prompt; empty means none.
	System   string
	Messages []Message

	// Model overrides the provider's configured model when set.
	Model       string
	MaxTokens   int
	Temperature float64
}

// Response is the text a model returned plus usage accounting.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// LLM defines the interface for interacting with language models.
// Implementations must be safe for concurrent use.
type LLM interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ProviderConfig selects and authenticates an LLM provider.
type ProviderConfig struct {
	Provider string
	Model    string
	APIKey   string

	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// NewLLM builds the LLM for a provider.
func NewLLM(ctx context.Context, pc ProviderConfig) (LLM, error) {
	switch pc.Provider {
	case config.ProviderOpenAI, config.ProviderAnthropic:
		return NewOpenAILLM(pc)
	case config.ProviderGemini:
		return NewGeminiLLM(ctx, pc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, pc.Provider)
	}
}

// UserPrompt wraps a single prompt as a one-message conversation.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

func validateRequest(req Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: request has no messages", ErrInvalidConfig)
	}
	for i, m := range req.Messages {
		if m.Content == "" {
			return fmt.Errorf("%w: message %d is empty", ErrInvalidConfig, i)
		}
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidConfig, i, m.Role)
		}
	}
	return nil
}
