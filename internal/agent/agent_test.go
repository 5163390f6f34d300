package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/role"
	"github.com/dotcommander/storyteller/internal/state"
)

type prompts map[string]string

func (p prompts) Get(name string) (string, error) {
	if t, ok := p[name]; ok {
		return t, nil
	}
	return "", errors.New("not found")
}

var testPrompts = prompts{
	"narrator":   "Eres el narrador.",
	"supervisor": "Eres el supervisor.",
	"worker":     "Eres el trabajador.",
}

func collection(t *testing.T, name string, opts ...role.Option) *role.Collection {
	t.Helper()
	r, err := role.New(testPrompts, role.Kind(name), name, opts...)
	require.NoError(t, err)
	return role.NewCollection(role.ModeAll, r)
}

func TestAgentStages(t *testing.T) {
	mock := llm.NewMockClient().On("narrador", "Etiqueta: buena")

	a := New("narrator", collection(t, "narrator", role.WithPermissions(role.LastMessage{})),
		config.DefaultModel(), mock,
		WithPre(func(_ context.Context, s state.Information) ([]llm.Message, error) {
			return []llm.Message{llm.User("cuento: " + s.Query)}, nil
		}),
		WithPost(func(_ context.Context, _ state.Information, reply llm.Message) (state.Information, error) {
			return state.Information{Query: reply.Content}, nil
		}))

	in := state.Information{
		Messages: []llm.Message{llm.User("uno"), llm.User("dos")},
		Query:    "caperucita",
	}
	update, err := a.Step(context.Background(), in)
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Eres el narrador.", calls[0].System)
	assert.Equal(t, []llm.Message{llm.User("cuento: caperucita")}, calls[0].Messages)
	require.NotNil(t, calls[0].Temperature)
	assert.Equal(t, 1.0, *calls[0].Temperature)

	require.Len(t, update.Messages, 2)
	assert.Equal(t, llm.RoleUser, update.Messages[0].Role)
	assert.Equal(t, "narrator", update.Messages[1].Name)
	assert.Equal(t, "Etiqueta: buena", update.Query)

	// Invoke merges into the input without touching it
	out, err := a.Invoke(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out.Messages, 4)
	assert.Len(t, in.Messages, 2)
}

func TestAgentReasoningModelsSkipTemperature(t *testing.T) {
	mock := llm.NewMockClient()
	model := config.DefaultModel()
	model.Reasoning = true

	_, err := New("narrator", collection(t, "narrator"), model, mock).Step(context.Background(), state.Information{})
	require.NoError(t, err)
	assert.Nil(t, mock.Calls()[0].Temperature)
}

func TestAgentPostErrorPropagates(t *testing.T) {
	mock := llm.NewMockClient()
	a := New("narrator", collection(t, "narrator"), config.DefaultModel(), mock,
		WithPost(func(context.Context, state.Information, llm.Message) (state.Information, error) {
			return state.Information{}, core.NewParseError("evaluation", 0, "missing label")
		}))

	_, err := a.Step(context.Background(), state.Information{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrParse)
}

func TestAgentModelErrorPropagates(t *testing.T) {
	mock := llm.NewMockClient().OnFunc("narrador", func(*llm.Request) (*llm.Response, error) {
		return nil, core.ErrNoAPIKey
	})
	_, err := New("narrator", collection(t, "narrator"), config.DefaultModel(), mock).
		Step(context.Background(), state.Information{})
	assert.ErrorIs(t, err, core.ErrNoAPIKey)
}

func lookupTool(calls *[]string) FuncTool {
	return FuncTool{
		ToolName:        "lookup",
		ToolDescription: "Busca un dato.",
		Schema:          ObjectSchema(map[string]any{"q": map[string]any{"type": "string"}}, "q"),
		Fn: func(_ context.Context, args json.RawMessage, s state.Information) (string, error) {
			var in struct {
				Q string `json:"q"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			*calls = append(*calls, in.Q)
			if in.Q == "fail" {
				return "", errors.New("boom")
			}
			return "resultado " + in.Q + " " + s.Query, nil
		},
	}
}

func toolCall(id, name, args string) *llm.Response {
	return &llm.Response{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: args}}}
}

func TestAgentToolLoop(t *testing.T) {
	var seen []string
	mock := llm.NewMockClient().OnResponse("narrador",
		&llm.Response{ToolCalls: []llm.ToolCall{
			{ID: "1", Name: "lookup", Arguments: `{"q":"lobo"}`},
			{ID: "2", Name: "missing", Arguments: `{}`},
			{ID: "3", Name: "lookup", Arguments: `{not json`},
			{ID: "4", Name: "lookup", Arguments: `{"q":"fail"}`},
		}},
		&llm.Response{Content: "final"},
	)

	a := New("narrator", collection(t, "narrator", role.WithActivities(lookupTool(&seen))),
		config.DefaultModel(), mock)

	update, err := a.Step(context.Background(), state.Information{Query: "bosque"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lobo", "fail"}, seen)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, "lookup", calls[0].Tools[0].Name)
	assert.Equal(t, []string{"q"}, calls[0].Tools[0].Parameters["required"])

	// assistant tool request, four results, final answer
	msgs := update.Messages
	require.Len(t, msgs, 6)
	assert.Len(t, msgs[0].ToolCalls, 4)
	assert.Equal(t, "resultado lobo bosque", msgs[1].Content)
	assert.Equal(t, "1", msgs[1].ToolCallID)
	assert.Contains(t, msgs[2].Content, "unknown tool")
	assert.Contains(t, msgs[3].Content, "invalid arguments")
	assert.Contains(t, msgs[4].Content, "boom")
	assert.Equal(t, "final", msgs[5].Content)
	assert.Equal(t, "narrator", msgs[5].Name)

	// the second request carries the whole exchange
	assert.Len(t, calls[1].Messages, 5)
}

func TestAgentToolRoundsAreBounded(t *testing.T) {
	var seen []string
	mock := llm.NewMockClient().OnResponse("narrador", toolCall("x", "lookup", `{"q":"otra vez"}`))

	a := New("narrator", collection(t, "narrator", role.WithActivities(lookupTool(&seen))),
		config.DefaultModel(), mock, WithMaxToolRounds(2))

	_, err := a.Step(context.Background(), state.Information{})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 3)
	assert.NotEmpty(t, calls[1].Tools)
	assert.Empty(t, calls[2].Tools)
	assert.Len(t, seen, 2)
}

func TestSupervisorHandoff(t *testing.T) {
	mock := llm.NewMockClient().
		OnResponse("supervisor", toolCall("h1", HandoffPrefix+"worker", ""), &llm.Response{Content: "listo"}).
		On("trabajador", "hecho")

	worker := New("worker", collection(t, "worker"), config.DefaultModel(), mock,
		WithPost(func(_ context.Context, _ state.Information, reply llm.Message) (state.Information, error) {
			return state.Information{Query: reply.Content}, nil
		}))

	agents := Registry{}
	agents.Register(worker)

	preCalled := false
	sup := NewSupervisor("supervisor", collection(t, "supervisor", role.WithProtocols("worker", "ghost")),
		config.DefaultModel(), mock, agents,
		WithPre(func(context.Context, state.Information) ([]llm.Message, error) {
			preCalled = true
			return nil, nil
		}))
	assert.True(t, sup.IsSupervisor())

	update, err := sup.Step(context.Background(), state.Information{Messages: []llm.Message{llm.User("hola")}})
	require.NoError(t, err)
	assert.False(t, preCalled)

	calls := mock.Calls()
	require.Len(t, calls, 3)
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, "transfer_to_worker", calls[0].Tools[0].Name)

	// the worker's post update is merged into the supervisor's
	assert.Equal(t, "hecho", update.Query)

	var names []string
	for _, m := range update.Messages {
		if m.Role == llm.RoleAssistant {
			names = append(names, m.Name)
		}
	}
	assert.Equal(t, []string{"supervisor", "worker", "supervisor"}, names)

	require.Len(t, update.Messages, 4)
	result := update.Messages[1]
	assert.Equal(t, llm.RoleTool, result.Role)
	assert.Equal(t, "h1", result.ToolCallID)
	assert.Equal(t, "hecho", result.Content)
	assert.Equal(t, "listo", update.Messages[3].Content)
}

func TestProtocolWithoutResolverIsSkipped(t *testing.T) {
	mock := llm.NewMockClient()
	a := New("narrator", collection(t, "narrator", role.WithProtocols("worker")), config.DefaultModel(), mock)

	_, err := a.Step(context.Background(), state.Information{})
	require.NoError(t, err)
	assert.Empty(t, mock.Calls()[0].Tools)
}
