package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Yates-Labs/folio/internal/config"
)

// GeminiLLM implements LLM with the Google GenAI SDK.
type GeminiLLM struct {
	client *genai.Client
	model  string
}

// NewGeminiLLM creates a Gemini-backed LLM implementation.
func NewGeminiLLM(ctx context.Context, pc ProviderConfig) (*GeminiLLM, error) {
	if pc.APIKey == "" {
		return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, config.APIKeyEnv(config.ProviderGemini))
	}
	if pc.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  pc.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GenAI client: %w", ErrInvalidConfig, err)
	}

	return &GeminiLLM{client: client, model: pc.Model}, nil
}

// Generate sends the conversation to Gemini.
func (g *GeminiLLM) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	out := &Response{
		Text:         resp.Text(),
		Model:        model,
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
