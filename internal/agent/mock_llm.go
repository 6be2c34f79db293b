package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
type MockLLM struct {
	// Response is the fixed text returned by Generate.
	// If empty, a default response is derived from the request.
	Response string

	// Error, if set, is returned by Generate instead of a response.
	Error error

	// Respond, if set, computes the response text per request and takes
	// precedence over Response.
	Respond func(Request) (string, error)

	mu          sync.Mutex
	lastRequest Request
	calls       int
}

// NewMockLLM creates a mock LLM with the given fixed response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// Generate returns the configured response or generates a deterministic one.
func (m *MockLLM) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.lastRequest = req
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Error != nil {
		return nil, m.Error
	}

	var text string
	switch {
	case m.Respond != nil:
		t, err := m.Respond(req)
		if err != nil {
			return nil, err
		}
		text = t
	case m.Response != "":
		text = m.Response
	default:
		text = mockResponse(req)
	}

	return &Response{
		Text:         text,
		Model:        "mock",
		InputTokens:  len(strings.Fields(req.System)) + len(strings.Fields(lastContent(req))),
		OutputTokens: len(strings.Fields(text)),
		FinishReason: "stop",
	}, nil
}

// LastRequest returns the most recent request passed to Generate.
func (m *MockLLM) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// LastPrompt returns the content of the final message of the last request.
func (m *MockLLM) LastPrompt() string {
	return lastContent(m.LastRequest())
}

// Calls reports how many times Generate was invoked.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func lastContent(req Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

func mockResponse(req Request) string {
	first := strings.TrimSpace(lastContent(req))
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	return fmt.Sprintf("Mock response to %d message(s): %s", len(req.Messages), first)
}
