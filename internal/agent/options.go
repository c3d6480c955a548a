package agent

import (
	_ "embed"
	"slices"

	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/proto"
)

// SystemPrompt instructs the model how to search AllRecipes and present
// recipes.
//
//go:embed system_prompt.md
var SystemPrompt string

const (
	// DefaultModel is the model alias used unless settings override it.
	DefaultModel = "haiku"
	// DefaultMaxTurns bounds the number of agent turns per search.
	DefaultMaxTurns = 50
	// BrowserServer names the chrome-devtools tool server.
	BrowserServer = "chrome-devtools"

	packageRunner = "npx"
)

var allowedTools = []string{
	"mcp__chrome-devtools__click",
	"mcp__chrome-devtools__fill",
	"mcp__chrome-devtools__fill_form",
	"mcp__chrome-devtools__hover",
	"mcp__chrome-devtools__press_key",
	"mcp__chrome-devtools__navigate_page",
	"mcp__chrome-devtools__new_page",
	"mcp__chrome-devtools__list_pages",
	"mcp__chrome-devtools__select_page",
	"mcp__chrome-devtools__close_page",
	"mcp__chrome-devtools__wait_for",
	"mcp__chrome-devtools__take_screenshot",
	"mcp__chrome-devtools__take_snapshot",
}

// Headless, isolated profile; emulation, performance and network tools off.
var baseChromeArgs = []string{
	"-y",
	"chrome-devtools-mcp@latest",
	"--headless",
	"--isolated",
	"--no-category-emulation",
	"--no-category-performance",
	"--no-category-network",
}

// Chromium in the container has no sandboxing layer and no GPU.
var containerChromeArgs = []string{
	"--executable-path=" + config.ContainerChromePath,
	"--chrome-arg=--no-sandbox",
	"--chrome-arg=--disable-setuid-sandbox",
	"--chrome-arg=--disable-gpu",
}

// AllowedTools returns the tools the agent may invoke, in a new slice.
func AllowedTools() []string {
	return slices.Clone(allowedTools)
}

// ChromeDevToolsArgs returns the npx arguments that launch the
// chrome-devtools tool server. Outside the container chrome-devtools-mcp
// finds the locally installed browser on its own.
func ChromeDevToolsArgs(env config.Env) []string {
	args := slices.Clone(baseChromeArgs)
	if env.Containerized() {
		args = append(args, containerChromeArgs...)
	}
	return args
}

// ChromeDevToolsServer declares the chrome-devtools tool server.
func ChromeDevToolsServer(env config.Env) proto.MCPServer {
	return proto.MCPServer{
		Type:    proto.TransportStdio,
		Command: packageRunner,
		Args:    ChromeDevToolsArgs(env),
	}
}

// Options builds the invocation options for one search.
//
// In standalone mode the options also declare the chrome-devtools server so
// the engine launches its own browser; otherwise a host is expected to
// provide it.
func Options(env config.Env, standalone bool) proto.Options {
	opts := proto.Options{
		Env:          env.List(),
		SystemPrompt: SystemPrompt,
		Model:        DefaultModel,
		AllowedTools: AllowedTools(),
		MaxTurns:     DefaultMaxTurns,
	}
	if standalone {
		opts.MCPServers = map[string]proto.MCPServer{
			BrowserServer: ChromeDevToolsServer(env),
		}
	}
	return opts
}
