package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/Yates-Labs/folio/internal/config"
)

// OpenAILLM implements LLM over the OpenAI chat completions API. Anthropic is
// reached through its OpenAI-compatible endpoint with the same client.
type OpenAILLM struct {
	client openai.Client
	model  string
}

// NewOpenAILLM creates an OpenAI-backed LLM implementation.
func NewOpenAILLM(pc ProviderConfig) (*OpenAILLM, error) {
	if pc.APIKey == "" {
		return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, config.APIKeyEnv(pc.Provider))
	}
	if pc.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	opts := []option.RequestOption{option.WithAPIKey(pc.APIKey)}
	baseURL := pc.BaseURL
	if baseURL == "" && pc.Provider == config.ProviderAnthropic {
		baseURL = anthropicBaseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAILLM{
		client: openai.NewClient(opts...),
		model:  pc.Model,
	}, nil
}

// Generate sends the conversation and returns the first choice.
func (o *OpenAILLM) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	choice := completion.Choices[0]
	return &Response{
		Text:         choice.Message.Content,
		Model:        completion.Model,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
		FinishReason: string(choice.FinishReason),
	}, nil
}
