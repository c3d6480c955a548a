package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/recipe-finder/internal/proto"
)

func fakeBrowser() *server.MCPServer {
	srv := server.NewMCPServer("fake-browser", "0.0.1")
	srv.AddTool(
		mcp.NewTool("navigate_page",
			mcp.WithDescription("Navigate to a URL"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Destination")),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			url, _ := req.GetArguments()["url"].(string)
			return mcp.NewToolResultText("navigated to " + url), nil
		},
	)
	srv.AddTool(
		mcp.NewTool("take_snapshot", mcp.WithDescription("Snapshot the page")),
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: "heading "},
				mcp.ImageContent{Type: "image", Data: "AAAA", MIMEType: "image/png"},
			}}, nil
		},
	)
	srv.AddTool(
		mcp.NewTool("click"),
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("no such element"), nil
		},
	)
	return srv
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	cli, err := client.NewInProcessClient(fakeBrowser())
	require.NoError(t, err)
	s := newSession(nil)
	require.NoError(t, s.add(t.Context(), "chrome-devtools", cli))
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestNames(t *testing.T) {
	require.Equal(t, "mcp__chrome-devtools__click", FullName("chrome-devtools", "click"))

	server, tool, ok := SplitName("mcp__chrome-devtools__fill_form")
	require.True(t, ok)
	require.Equal(t, "chrome-devtools", server)
	require.Equal(t, "fill_form", tool)

	for _, bad := range []string{"click", "mcp__chrome-devtools", "mcp____click", "chrome-devtools__click"} {
		_, _, ok := SplitName(bad)
		require.False(t, ok, bad)
	}
}

func TestSessionTools(t *testing.T) {
	s := newTestSession(t)
	require.Equal(t, []string{"chrome-devtools"}, s.Servers())

	tools, err := s.Tools(t.Context())
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.FullName())
	}
	require.Equal(t, []string{
		"mcp__chrome-devtools__click",
		"mcp__chrome-devtools__navigate_page",
		"mcp__chrome-devtools__take_snapshot",
	}, names)
	require.Equal(t, "Navigate to a URL", tools[1].Description)
	require.Equal(t, []string{"url"}, tools[1].InputSchema.Required)
}

func TestSessionCallTool(t *testing.T) {
	s := newTestSession(t)

	t.Run("text", func(t *testing.T) {
		out, err := s.CallTool(t.Context(), "mcp__chrome-devtools__navigate_page", []byte(`{"url":"https://www.allrecipes.com"}`))
		require.NoError(t, err)
		require.Equal(t, "navigated to https://www.allrecipes.com", out)
	})

	t.Run("image", func(t *testing.T) {
		out, err := s.CallTool(t.Context(), "mcp__chrome-devtools__take_snapshot", nil)
		require.NoError(t, err)
		require.Equal(t, "heading [Image: image/png]", out)
	})

	t.Run("tool error", func(t *testing.T) {
		_, err := s.CallTool(t.Context(), "mcp__chrome-devtools__click", []byte(`{}`))
		require.EqualError(t, err, "no such element")
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := s.CallTool(t.Context(), "mcp__chrome-devtools__click", []byte(`{`))
		require.Error(t, err)
	})

	t.Run("unknown server", func(t *testing.T) {
		_, err := s.CallTool(t.Context(), "mcp__other__click", nil)
		require.EqualError(t, err, `mcp: server not connected: "other"`)
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := s.CallTool(t.Context(), "click", nil)
		require.EqualError(t, err, `mcp: invalid tool name: "click"`)
	})
}

func TestStartUnsupportedType(t *testing.T) {
	_, err := Start(context.Background(), map[string]proto.MCPServer{
		"x": {Type: "carrier-pigeon"},
	}, nil, nil)
	require.ErrorContains(t, err, `unsupported MCP server type: "carrier-pigeon"`)
}

func TestStartNone(t *testing.T) {
	s, err := Start(t.Context(), nil, nil, nil)
	require.NoError(t, err)
	require.Empty(t, s.Servers())
	tools, err := s.Tools(t.Context())
	require.NoError(t, err)
	require.Empty(t, tools)
	require.NoError(t, s.Close())
}
