// Package mcp connects to the tool servers the agent drives, such as the
// chrome-devtools browser server.
package mcp

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/proto"
)

const namePrefix = "mcp__"

// FullName returns the agent-facing name of a server tool:
// mcp__<server>__<tool>.
func FullName(server, tool string) string {
	return namePrefix + server + "__" + tool
}

// SplitName splits a full tool name into its server and tool parts.
func SplitName(full string) (server, tool string, ok bool) {
	rest, ok := strings.CutPrefix(full, namePrefix)
	if !ok {
		return "", "", false
	}
	server, tool, ok = strings.Cut(rest, "__")
	if !ok || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}

// Tool is a tool offered by a connected server.
type Tool struct {
	Server string
	mcp.Tool
}

// FullName returns the tool's agent-facing name.
func (t Tool) FullName() string { return FullName(t.Server, t.Name) }

// Session holds the clients of every started server until Close.
type Session struct {
	log     *slog.Logger
	mu      sync.Mutex
	clients map[string]*client.Client
}

func newSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{log: logger, clients: map[string]*client.Client{}}
}

// Start launches and initializes the given servers in parallel. env is the
// environment stdio servers run with; each server's own Env is appended.
// If any server fails the ones already started are closed.
func Start(ctx context.Context, servers map[string]proto.MCPServer, env []string, logger *slog.Logger) (*Session, error) {
	s := newSession(logger)
	var eg errgroup.Group
	for name, server := range servers {
		eg.Go(func() error {
			cli, err := newClient(server, env)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if err := s.add(ctx, name, cli); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		_ = s.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.Wrap(
				fmt.Errorf("timeout while starting tool servers: %w. Make sure npx and a Chrome or Chromium browser are installed", err),
				"Could not start tool servers",
			)
		}
		return nil, errs.Wrap(err, "Could not start tool servers")
	}
	return s, nil
}

func newClient(server proto.MCPServer, env []string) (*client.Client, error) {
	var cli *client.Client
	var err error

	switch server.Type {
	case "", proto.TransportStdio:
		cli, err = client.NewStdioMCPClient(
			server.Command,
			append(slices.Clone(env), server.Env...),
			server.Args...,
		)
	case proto.TransportSSE:
		cli, err = client.NewSSEMCPClient(server.URL)
	case proto.TransportHTTP:
		cli, err = client.NewStreamableHttpClient(server.URL)
	default:
		return nil, fmt.Errorf("unsupported MCP server type: %q, supported types are: stdio, sse, http", server.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return cli, nil
}

// add starts and initializes cli and registers it under name.
func (s *Session) add(ctx context.Context, name string, cli *client.Client) error {
	// The transport lives for the whole session, not just the start timeout.
	if err := cli.Start(context.WithoutCancel(ctx)); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return fmt.Errorf("failed to start MCP client: %w", err)
	}
	res, err := cli.Initialize(ctx, mcp.InitializeRequest{})
	if err != nil {
		cli.Close() //nolint:errcheck,gosec
		return fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	s.log.Debug("tool server ready", "server", name, "impl", res.ServerInfo.Name, "version", res.ServerInfo.Version)

	s.mu.Lock()
	s.clients[name] = cli
	s.mu.Unlock()
	return nil
}

// Servers returns the names of the connected servers, sorted.
func (s *Session) Servers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.clients))
}

// Tools lists the tools of every connected server, sorted by full name.
func (s *Session) Tools(ctx context.Context) ([]Tool, error) {
	var mu sync.Mutex
	var eg errgroup.Group
	var result []Tool
	for _, name := range s.Servers() {
		cli := s.client(name)
		eg.Go(func() error {
			res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
			if errors.Is(err, context.DeadlineExceeded) {
				return errs.Wrap(
					fmt.Errorf("timeout while listing tools for %q - make sure the server starts correctly", name),
					"Could not list tools",
				)
			}
			if err != nil {
				return errs.Wrap(fmt.Errorf("%s: %w", name, err), "Could not list tools")
			}
			mu.Lock()
			for _, tool := range res.Tools {
				result = append(result, Tool{Server: name, Tool: tool})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("mcp tools: %w", err)
	}
	slices.SortFunc(result, func(a, b Tool) int {
		return cmp.Compare(a.FullName(), b.FullName())
	})
	return result, nil
}

func (s *Session) client(name string) *client.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[name]
}

// CallTool executes the named tool with JSON encoded arguments and returns
// its text output. A result flagged as an error is returned as an error.
func (s *Session) CallTool(ctx context.Context, fullName string, input []byte) (string, error) {
	sname, tool, ok := SplitName(fullName)
	if !ok {
		return "", fmt.Errorf("mcp: invalid tool name: %q", fullName)
	}
	cli := s.client(sname)
	if cli == nil {
		return "", fmt.Errorf("mcp: server not connected: %q", sname)
	}

	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("mcp: %w: %s", err, string(input))
		}
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args
	s.log.Debug("calling tool", "server", sname, "tool", tool)
	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		case mcp.ImageContent:
			fmt.Fprintf(&sb, "[Image: %s]", content.MIMEType)
		default:
			sb.WriteString("[Non-text content]")
		}
	}

	if result.IsError {
		return "", errors.New(sb.String())
	}
	return sb.String(), nil
}

// Close shuts down every server. For stdio servers this stops the process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errList []error
	for name, cli := range s.clients {
		if err := cli.Close(); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", name, err))
		}
		delete(s.clients, name)
	}
	return errors.Join(errList...)
}
