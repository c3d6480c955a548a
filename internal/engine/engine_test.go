package engine

import (
	"context"
	"errors"
	"testing"

	"charm.land/fantasy"
	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/recipe-finder/internal/mcp"
	"github.com/dotcommander/recipe-finder/internal/proto"
)

type scriptedModel struct {
	turns [][]fantasy.StreamPart
	calls []fantasy.Call
}

func (m *scriptedModel) Stream(_ context.Context, call fantasy.Call) (fantasy.StreamResponse, error) {
	m.calls = append(m.calls, call)
	if len(m.calls) > len(m.turns) {
		return nil, errors.New("unexpected turn")
	}
	parts := m.turns[len(m.calls)-1]
	return fantasy.StreamResponse(func(yield func(fantasy.StreamPart) bool) {
		for _, p := range parts {
			if !yield(p) {
				return
			}
		}
	}), nil
}

type fakeHost struct {
	tools  []mcp.Tool
	called []string
	fail   map[string]error
	closed bool
}

func (h *fakeHost) Tools(context.Context) ([]mcp.Tool, error) { return h.tools, nil }

func (h *fakeHost) CallTool(_ context.Context, name string, input []byte) (string, error) {
	h.called = append(h.called, name+" "+string(input))
	if err := h.fail[name]; err != nil {
		return "", err
	}
	return "ok:" + name, nil
}

func (h *fakeHost) Close() error {
	h.closed = true
	return nil
}

func browserTools(names ...string) []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(names))
	for _, n := range names {
		tools = append(tools, mcp.Tool{Server: "chrome-devtools", Tool: mmcp.Tool{Name: n}})
	}
	return tools
}

func text(s string) []fantasy.StreamPart {
	return []fantasy.StreamPart{
		{Type: fantasy.StreamPartTypeTextStart, ID: "t"},
		{Type: fantasy.StreamPartTypeTextDelta, ID: "t", Delta: s},
		{Type: fantasy.StreamPartTypeTextEnd, ID: "t"},
	}
}

func toolCall(id, name, input string) fantasy.StreamPart {
	return fantasy.StreamPart{Type: fantasy.StreamPartTypeToolCall, ID: id, ToolCallName: name, ToolCallInput: input}
}

func finish(in, out int64) fantasy.StreamPart {
	return fantasy.StreamPart{Type: fantasy.StreamPartTypeFinish, Usage: fantasy.Usage{InputTokens: in, OutputTokens: out}}
}

func newTestEngine(model Model, host *fakeHost) *Engine {
	return New(
		func(context.Context, string) (Model, error) { return model, nil },
		WithLauncher(func(context.Context, map[string]proto.MCPServer, []string) (ToolHost, error) {
			return host, nil
		}),
	)
}

func collect(t *testing.T, seq func(func(proto.Message, error) bool)) ([]proto.Message, error) {
	t.Helper()
	var msgs []proto.Message
	for msg, err := range seq {
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

var testOptions = proto.Options{
	SystemPrompt: "find recipes",
	Model:        "haiku",
	AllowedTools: []string{"mcp__chrome-devtools__navigate_page", "mcp__chrome-devtools__take_snapshot"},
	MaxTurns:     5,
}

func TestQueryToolLoop(t *testing.T) {
	model := &scriptedModel{turns: [][]fantasy.StreamPart{
		append(text("Opening AllRecipes"),
			toolCall("c1", "mcp__chrome-devtools__navigate_page", `{"url":"https://www.allrecipes.com"}`),
			finish(100, 20)),
		append(text("# Lasagna"), finish(300, 80)),
	}}
	host := &fakeHost{tools: browserTools("navigate_page", "take_snapshot", "evaluate_script")}

	msgs, err := collect(t, newTestEngine(model, host).Query(t.Context(), "lasagna", testOptions))
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	sys, ok := msgs[0].(proto.SystemMessage)
	require.True(t, ok)
	require.NotEmpty(t, sys.SessionID)
	require.Equal(t, "haiku", sys.Model)
	require.Equal(t, []string{
		"mcp__chrome-devtools__navigate_page",
		"mcp__chrome-devtools__take_snapshot",
	}, sys.Tools)

	first, ok := msgs[1].(proto.AssistantMessage)
	require.True(t, ok)
	require.Len(t, first.Content, 2)
	in, out := first.Usage.Counts()
	require.EqualValues(t, 100, in)
	require.EqualValues(t, 20, out)

	results, ok := msgs[2].(proto.UserMessage)
	require.True(t, ok)
	require.Equal(t, []proto.ContentBlock{
		proto.ToolResultBlock{ToolUseID: "c1", Content: "ok:mcp__chrome-devtools__navigate_page"},
	}, results.Content)

	_, ok = msgs[3].(proto.AssistantMessage)
	require.True(t, ok)
	require.Equal(t, proto.ResultMessage{Subtype: proto.ResultSuccess, Result: "# Lasagna", NumTurns: 2}, msgs[4])

	require.Equal(t, []string{`mcp__chrome-devtools__navigate_page {"url":"https://www.allrecipes.com"}`}, host.called)
	require.True(t, host.closed)

	require.Len(t, model.calls, 2)
	require.Len(t, model.calls[0].Tools, 2)
	require.Len(t, model.calls[0].Prompt, 2)
	require.Len(t, model.calls[1].Prompt, 4)
}

func TestQueryToolFailuresAreReported(t *testing.T) {
	model := &scriptedModel{turns: [][]fantasy.StreamPart{
		{
			toolCall("c1", "mcp__chrome-devtools__take_snapshot", ""),
			toolCall("c2", "mcp__chrome-devtools__evaluate_script", `{}`),
		},
		text("Sorry"),
	}}
	host := &fakeHost{
		tools: browserTools("navigate_page", "take_snapshot"),
		fail:  map[string]error{"mcp__chrome-devtools__take_snapshot": errors.New("page crashed")},
	}

	msgs, err := collect(t, newTestEngine(model, host).Query(t.Context(), "lasagna", testOptions))
	require.NoError(t, err)
	require.Equal(t, proto.UserMessage{Content: []proto.ContentBlock{
		proto.ToolResultBlock{ToolUseID: "c1", Content: "page crashed", IsError: true},
		proto.ToolResultBlock{ToolUseID: "c2", Content: `tool "mcp__chrome-devtools__evaluate_script" is not allowed`, IsError: true},
	}}, msgs[2])
	require.Equal(t, []string{"mcp__chrome-devtools__take_snapshot {}"}, host.called)
}

func TestQueryMaxTurns(t *testing.T) {
	call := []fantasy.StreamPart{toolCall("c", "mcp__chrome-devtools__take_snapshot", "{}")}
	model := &scriptedModel{turns: [][]fantasy.StreamPart{call, call}}
	host := &fakeHost{tools: browserTools("take_snapshot")}

	opts := testOptions
	opts.MaxTurns = 2
	msgs, err := collect(t, newTestEngine(model, host).Query(t.Context(), "lasagna", opts))
	require.NoError(t, err)
	require.Equal(t, proto.ResultMessage{Subtype: proto.ResultErrorMaxTurns, NumTurns: 2, IsError: true}, msgs[len(msgs)-1])
	require.Len(t, model.calls, 2)
}

func TestQueryProviderError(t *testing.T) {
	model := &scriptedModel{turns: [][]fantasy.StreamPart{{
		{Type: fantasy.StreamPartTypeTextDelta, Delta: "partial"},
		{Type: fantasy.StreamPartTypeError, Error: errors.New("overloaded")},
	}}}
	host := &fakeHost{}

	msgs, err := collect(t, newTestEngine(model, host).Query(t.Context(), "lasagna", testOptions))
	require.EqualError(t, err, "overloaded")
	require.Len(t, msgs, 1)
	require.True(t, host.closed)
}

func TestQueryResolveError(t *testing.T) {
	e := New(func(context.Context, string) (Model, error) { return nil, errors.New("no such model") })
	_, err := collect(t, e.Query(t.Context(), "lasagna", testOptions))
	require.EqualError(t, err, "no such model")
}

func TestQueryLaunchError(t *testing.T) {
	e := New(
		func(context.Context, string) (Model, error) { return &scriptedModel{}, nil },
		WithLauncher(func(context.Context, map[string]proto.MCPServer, []string) (ToolHost, error) {
			return nil, errors.New("npx not found")
		}),
	)
	_, err := collect(t, e.Query(t.Context(), "lasagna", testOptions))
	require.EqualError(t, err, "start tool servers: npx not found")
}

func TestQueryStopEarlyClosesHost(t *testing.T) {
	model := &scriptedModel{turns: [][]fantasy.StreamPart{text("hi")}}
	host := &fakeHost{}
	for range newTestEngine(model, host).Query(t.Context(), "lasagna", testOptions) {
		break
	}
	require.True(t, host.closed)
	require.Empty(t, model.calls)
}
