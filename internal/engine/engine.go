// Package engine runs an agent query: a loop of model turns in which the
// model may call tools served by MCP servers.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"charm.land/fantasy"
	"github.com/google/uuid"

	"github.com/dotcommander/recipe-finder/internal/fantasybridge"
	"github.com/dotcommander/recipe-finder/internal/mcp"
	"github.com/dotcommander/recipe-finder/internal/proto"
)

// Model streams one model turn.
type Model interface {
	Stream(ctx context.Context, call fantasy.Call) (fantasy.StreamResponse, error)
}

// ModelResolver opens a model by name or alias.
type ModelResolver func(ctx context.Context, name string) (Model, error)

// ToolHost serves the tools of started MCP servers.
type ToolHost interface {
	Tools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, fullName string, input []byte) (string, error)
	Close() error
}

// Launcher starts the MCP servers of a query.
type Launcher func(ctx context.Context, servers map[string]proto.MCPServer, env []string) (ToolHost, error)

// Engine runs queries.
type Engine struct {
	resolve     ModelResolver
	launch      Launcher
	log         *slog.Logger
	mcpTimeout  time.Duration
	toolTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// WithTimeouts bounds server startup and tool listing (mcpTimeout) and each
// tool call (toolTimeout). Zero leaves a bound unset.
func WithTimeouts(mcpTimeout, toolTimeout time.Duration) Option {
	return func(e *Engine) {
		e.mcpTimeout = mcpTimeout
		e.toolTimeout = toolTimeout
	}
}

// WithLauncher replaces the MCP server launcher.
func WithLauncher(launch Launcher) Option {
	return func(e *Engine) { e.launch = launch }
}

// New returns an engine that opens models through resolve.
func New(resolve ModelResolver, opts ...Option) *Engine {
	e := &Engine{resolve: resolve}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	if e.launch == nil {
		e.launch = func(ctx context.Context, servers map[string]proto.MCPServer, env []string) (ToolHost, error) {
			return mcp.Start(ctx, servers, env, e.log)
		}
	}
	return e
}

// Query runs prompt to completion and yields every step: a SystemMessage,
// then an AssistantMessage per turn, a UserMessage with tool results after
// each turn that called tools, and finally a ResultMessage.
//
// Failures are yielded as errors and end the sequence. Servers started for
// the query are shut down when the sequence ends or the consumer stops.
func (e *Engine) Query(ctx context.Context, prompt string, opts proto.Options) iter.Seq2[proto.Message, error] {
	return func(yield func(proto.Message, error) bool) {
		if err := e.run(ctx, prompt, opts, yield); err != nil {
			yield(nil, err)
		}
	}
}

func (e *Engine) run(ctx context.Context, prompt string, opts proto.Options, yield func(proto.Message, error) bool) error {
	model, err := e.resolve(ctx, opts.Model)
	if err != nil {
		return err
	}

	host, err := e.start(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			e.log.Warn("could not stop tool servers", "err", err)
		}
	}()

	tools, err := e.tools(ctx, host, opts.AllowedTools)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.FullName())
	}

	sessionID := uuid.NewString()
	log := e.log.With("session", sessionID)
	log.Debug("query started", "model", opts.Model, "tools", len(tools))
	if !yield(proto.SystemMessage{SessionID: sessionID, Model: opts.Model, Tools: names}, nil) {
		return nil
	}

	ftools := fantasybridge.Tools(tools)
	var history []proto.Message
	for turn := 1; opts.MaxTurns <= 0 || turn <= opts.MaxTurns; turn++ {
		step, err := e.turn(ctx, model, fantasy.Call{
			Prompt:     fantasybridge.Prompt(opts.SystemPrompt, prompt, history),
			Tools:      ftools,
			ToolChoice: fantasybridge.ToolChoice(ftools),
		})
		if err != nil {
			return err
		}
		for _, w := range step.DrainWarnings() {
			log.Warn("provider warning", "turn", turn, "warning", w)
		}

		msg := step.Message()
		history = append(history, msg)
		if !yield(msg, nil) {
			return nil
		}

		calls := step.ToolCalls()
		if len(calls) == 0 {
			log.Debug("query finished", "turns", turn)
			yield(proto.ResultMessage{
				Subtype:  proto.ResultSuccess,
				Result:   step.Text(),
				NumTurns: turn,
			}, nil)
			return nil
		}

		results, err := e.callTools(ctx, log, host, opts.AllowedTools, calls)
		if err != nil {
			return err
		}
		history = append(history, results)
		if !yield(results, nil) {
			return nil
		}
	}

	log.Debug("turn limit reached", "max", opts.MaxTurns)
	yield(proto.ResultMessage{
		Subtype:  proto.ResultErrorMaxTurns,
		NumTurns: opts.MaxTurns,
		IsError:  true,
	}, nil)
	return nil
}

func (e *Engine) start(ctx context.Context, opts proto.Options) (ToolHost, error) {
	startCtx, cancel := e.withTimeout(ctx, e.mcpTimeout)
	defer cancel()
	host, err := e.launch(startCtx, opts.MCPServers, opts.Env)
	if err != nil {
		return nil, fmt.Errorf("start tool servers: %w", err)
	}
	return host, nil
}

// tools lists the host's tools, keeping only allowed ones.
func (e *Engine) tools(ctx context.Context, host ToolHost, allowed []string) ([]mcp.Tool, error) {
	listCtx, cancel := e.withTimeout(ctx, e.mcpTimeout)
	defer cancel()
	all, err := host.Tools(listCtx)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return slices.DeleteFunc(all, func(t mcp.Tool) bool {
		return !slices.Contains(allowed, t.FullName())
	}), nil
}

func (e *Engine) turn(ctx context.Context, model Model, call fantasy.Call) (*fantasybridge.Step, error) {
	seq, err := model.Stream(ctx, call)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	step := fantasybridge.NewStep()
	for part := range seq {
		step.Consume(part)
		if step.Err() != nil {
			return nil, step.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return step, nil
}

// callTools runs the calls of one turn in order. A failing tool is reported
// to the model as an error result; only cancellation stops the query.
func (e *Engine) callTools(ctx context.Context, log *slog.Logger, host ToolHost, allowed []string, calls []proto.ToolUseBlock) (proto.UserMessage, error) {
	msg := proto.UserMessage{Content: make([]proto.ContentBlock, 0, len(calls))}
	for _, call := range calls {
		if !slices.Contains(allowed, call.Name) {
			msg.Content = append(msg.Content, proto.ToolResultBlock{
				ToolUseID: call.ID,
				Content:   fmt.Sprintf("tool %q is not allowed", call.Name),
				IsError:   true,
			})
			continue
		}
		callCtx, cancel := e.withTimeout(ctx, e.toolTimeout)
		out, err := host.CallTool(callCtx, call.Name, normalizeInput(call.Input))
		cancel()
		if ctx.Err() != nil {
			return proto.UserMessage{}, ctx.Err() //nolint:wrapcheck
		}
		if err != nil {
			log.Debug("tool failed", "tool", call.Name, "err", err)
			msg.Content = append(msg.Content, proto.ToolResultBlock{
				ToolUseID: call.ID,
				Content:   err.Error(),
				IsError:   true,
			})
			continue
		}
		msg.Content = append(msg.Content, proto.ToolResultBlock{ToolUseID: call.ID, Content: out})
	}
	return msg, nil
}

func normalizeInput(in json.RawMessage) []byte {
	if len(in) == 0 || !json.Valid(in) {
		return []byte("{}")
	}
	return in
}

func (e *Engine) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
