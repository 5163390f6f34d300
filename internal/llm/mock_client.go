package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/dotcommander/storyteller/internal/config"
)

// MockClient provides scripted model responses for testing. Rules are
// matched against the request's system prompt in registration order.
type MockClient struct {
	mu       sync.Mutex
	rules    []*mockRule
	fallback string
	calls    []Request
}

type mockRule struct {
	keyword   string
	responses []*Response
	fn        func(*Request) (*Response, error)
	next      int
}

// NewMockClient creates a mock client that answers "Mock response" to
// anything no rule matches.
func NewMockClient() *MockClient {
	return &MockClient{fallback: "Mock response"}
}

// On replies with contents in order when the system prompt contains
// keyword. The last content repeats once the list is exhausted.
func (m *MockClient) On(keyword string, contents ...string) *MockClient {
	responses := make([]*Response, len(contents))
	for i, c := range contents {
		responses[i] = &Response{Content: c}
	}
	return m.OnResponse(keyword, responses...)
}

// OnResponse is On with full responses, for scripting tool calls.
func (m *MockClient) OnResponse(keyword string, responses ...*Response) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, &mockRule{keyword: strings.ToLower(keyword), responses: responses})
	return m
}

// OnFunc computes the reply from the request.
func (m *MockClient) OnFunc(keyword string, fn func(*Request) (*Response, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, &mockRule{keyword: strings.ToLower(keyword), fn: fn})
	return m
}

// Generate returns the scripted response
func (m *MockClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, cloneRequest(req))

	system := strings.ToLower(req.System)
	var rule *mockRule
	for _, r := range m.rules {
		if strings.Contains(system, r.keyword) {
			rule = r
			break
		}
	}

	if rule == nil {
		m.mu.Unlock()
		return &Response{Content: m.fallback, Model: "mock"}, nil
	}

	if rule.fn != nil {
		fn := rule.fn
		m.mu.Unlock()
		return fn(req)
	}

	idx := min(rule.next, len(rule.responses)-1)
	rule.next++
	m.mu.Unlock()

	if idx < 0 {
		return &Response{Content: m.fallback, Model: "mock"}, nil
	}
	resp := *rule.responses[idx]
	resp.Model = "mock"
	return &resp, nil
}

// Calls returns a copy of every request received so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallsMatching counts requests whose system prompt contains keyword.
func (m *MockClient) CallsMatching(keyword string) int {
	keyword = strings.ToLower(keyword)
	n := 0
	for _, c := range m.Calls() {
		if strings.Contains(strings.ToLower(c.System), keyword) {
			n++
		}
	}
	return n
}

// Client serves every model setting with the mock itself.
func (m *MockClient) Client(config.ModelConfig) (Client, error) {
	return m, nil
}

func cloneRequest(req *Request) Request {
	c := *req
	c.Messages = append([]Message(nil), req.Messages...)
	c.Tools = append([]Tool(nil), req.Tools...)
	return c
}

var (
	_ Client = (*MockClient)(nil)
	_ Source = (*MockClient)(nil)
)
