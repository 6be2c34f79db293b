package agent

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/Yates-Labs/folio/internal/chapter"
	"github.com/Yates-Labs/folio/internal/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderAnthropic
	cfg.Model = "test-model"
	for _, role := range config.Roles {
		s := cfg.Agents[role]
		s.Model = "test-model"
		cfg.Agents[role] = s
	}
	return cfg
}

func TestSystemPrompts(t *testing.T) {
	for _, role := range config.Roles {
		p, err := SystemPrompt(role)
		if err != nil {
			t.Fatalf("SystemPrompt(%q) failed: %v", role, err)
		}
		if p == "" {
			t.Errorf("SystemPrompt(%q) is empty", role)
		}
	}
	if _, err := SystemPrompt("editor"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	mock := NewMockLLM("ok")
	reg, err := NewRegistry(mock, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if got := reg.Roles(); len(got) != 4 {
		t.Fatalf("expected 4 roles, got %v", got)
	}

	a, err := reg.Get("Chapter")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.Role() != config.RoleChapter {
		t.Errorf("role = %q", a.Role())
	}
	if a.Settings().MaxTokens != 6000 {
		t.Errorf("max tokens = %d, want 6000", a.Settings().MaxTokens)
	}

	if _, err := reg.Get("editor"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestAgent_GenerateSendsSettings(t *testing.T) {
	mock := NewMockLLM("<html/>")
	reg, err := NewRegistry(mock, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	a, _ := reg.Get(config.RoleValidation)

	resp, err := a.Generate(context.Background(), "check this")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "<html/>" {
		t.Errorf("text = %q", resp.Text)
	}

	req := mock.LastRequest()
	if req.MaxTokens != 2000 {
		t.Errorf("max tokens = %d, want 2000", req.MaxTokens)
	}
	if req.Model != "test-model" {
		t.Errorf("model = %q", req.Model)
	}
	if !strings.Contains(req.System, "EPUB") {
		t.Error("system prompt not sent")
	}
	if mock.LastPrompt() != "check this" {
		t.Errorf("prompt = %q", mock.LastPrompt())
	}
}

func TestAgent_GenerateErrors(t *testing.T) {
	boom := errors.New("boom")
	a, err := New(config.RoleContent, NewMockLLMWithError(boom), config.AgentSettings{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = a.Generate(context.Background(), "hello")
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, boom) {
		t.Errorf("expected wrapped generation error, got %v", err)
	}

	if _, err := a.Generate(context.Background(), "   "); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected error for empty prompt, got %v", err)
	}

	if _, err := New(config.RoleContent, nil, config.AgentSettings{}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for nil LLM, got %v", err)
	}
}

func TestAgent_Chat(t *testing.T) {
	mock := &MockLLM{}
	a, _ := New(config.RoleFormatter, mock, config.AgentSettings{MaxTokens: 10}, nil)

	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "format this"},
	}
	resp, err := a.Chat(context.Background(), history)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(resp.Text, "3 message(s)") {
		t.Errorf("unexpected mock text: %q", resp.Text)
	}
	if mock.Calls() != 1 {
		t.Errorf("calls = %d", mock.Calls())
	}
}

func TestNewLLM(t *testing.T) {
	ctx := context.Background()

	if _, err := NewLLM(ctx, ProviderConfig{Provider: "llama", Model: "m", APIKey: "k"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := NewLLM(ctx, ProviderConfig{Provider: config.ProviderOpenAI, Model: "m"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := NewLLM(ctx, ProviderConfig{Provider: config.ProviderGemini, Model: "m"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey for gemini, got %v", err)
	}

	llm, err := NewLLM(ctx, ProviderConfig{Provider: config.ProviderAnthropic, Model: "m", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewLLM failed: %v", err)
	}
	if _, ok := llm.(*OpenAILLM); !ok {
		t.Errorf("anthropic should use the OpenAI-compatible client, got %T", llm)
	}
}

func TestOpenAILLM_RejectsEmptyRequest(t *testing.T) {
	llm, err := NewOpenAILLM(ProviderConfig{Provider: config.ProviderOpenAI, Model: "m", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAILLM failed: %v", err)
	}
	if _, err := llm.Generate(context.Background(), Request{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOpenAILLM_Live(t *testing.T) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	llm, err := NewOpenAILLM(ProviderConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: key})
	if err != nil {
		t.Fatalf("NewOpenAILLM failed: %v", err)
	}
	resp, err := llm.Generate(context.Background(), Request{Messages: UserPrompt("Reply with the word ok."), MaxTokens: 5})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text == "" {
		t.Error("empty response")
	}
}

func TestChapterPrompt(t *testing.T) {
	if _, err := ChapterPrompt(nil); err != ErrMissingRecord {
		t.Fatalf("expected ErrMissingRecord, got %v", err)
	}

	rec := &chapter.Record{
		Roman:          "XIII",
		Title:          "Client Consultation",
		BibleQuote:     "Be swift to hear.",
		BibleReference: "James 1:19",
		Endnotes:       []string{"First source"},
		QuizQuestions: []chapter.Question{
			{Question: "What comes first?", Options: []string{"Listening", "Cutting", "", "Sweeping"}},
		},
		Worksheet:    chapter.Worksheet{Title: "Practice", Sections: []chapter.WorksheetSection{{Heading: "Reflect", Content: "Write.", Lines: 3}}},
		ClosingImage: chapter.ClosingImage{Src: "images/c13.jpg", Caption: "Listen."},
	}

	prompt, err := ChapterPrompt(rec)
	if err != nil {
		t.Fatalf("ChapterPrompt failed: %v", err)
	}
	for _, want := range []string{
		"Chapter XIII",
		"**Title:** Client Consultation",
		"James 1:19",
		"1. First source",
		"A) Listening",
		"C) (write a plausible option)",
		"(3 writing lines)",
		"images/c13.jpg",
		"6 pages",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestValidationPrompt_Truncates(t *testing.T) {
	long := strings.Repeat("a", ReviewContentLimit+500)
	p := ValidationPrompt("chapter.xhtml", long)

	if strings.Contains(p, strings.Repeat("a", ReviewContentLimit+1)) {
		t.Error("content was not truncated")
	}
	if !strings.Contains(p, strings.Repeat("a", ReviewContentLimit)+"...") {
		t.Error("truncated content should end with ...")
	}

	short := ValidationPrompt("x.css", "body {}")
	if strings.Contains(short, "body {}...") {
		t.Error("short content should not be marked as truncated")
	}
}

func TestFrontMatterPrompt(t *testing.T) {
	p, err := FrontMatterPrompt("copyright", map[string]any{"year": 2024})
	if err != nil {
		t.Fatalf("FrontMatterPrompt failed: %v", err)
	}
	if !strings.Contains(p, "copyright page") || !strings.Contains(p, "\"year\": 2024") {
		t.Errorf("unexpected prompt:\n%s", p)
	}
}

func TestContextPrompt_SortsByScore(t *testing.T) {
	p := ContextPrompt("What is a consultation?", []ContextChunk{
		{ChapterID: "chapter-i", Text: "low", Score: 0.2},
		{ChapterID: "chapter-xiii", Text: "high", Score: 0.9},
	})
	if strings.Index(p, "**chapter-xiii**") > strings.Index(p, "**chapter-i**") {
		t.Error("chunks not ordered by relevance")
	}
	if ContextPrompt("plain", nil) != "plain" {
		t.Error("no chunks should return the question unchanged")
	}
}

func TestExtractMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  <html></html>\n", "<html></html>"},
		{"fenced", "Here you go:\n```xml\n<?xml version=\"1.0\"?>\n<html/>\n```\nEnjoy", "<?xml version=\"1.0\"?>\n<html/>"},
		{"fence without lang", "```\n<html/>\n```", "<html/>"},
		{"chatter before doctype", "Sure!\n<!DOCTYPE html>\n<html/>", "<!DOCTYPE html>\n<html/>"},
		{"css", "```css\nbody { color: red; }\n```", "body { color: red; }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractMarkup(tt.in); got != tt.want {
				t.Errorf("ExtractMarkup() = %q, want %q", got, tt.want)
			}
		})
	}
}
