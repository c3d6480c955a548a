package cmd

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/duration"
	"github.com/spf13/cobra"

	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/present"
	"github.com/dotcommander/recipe-finder/internal/storage"
)

var helpText = map[string]string{
	"api":          "OpenAI compatible REST API (openai, anthropic, google, etc.).",
	"model":        "Model to search with (haiku, sonnet, gpt-4o, etc.).",
	"max-turns":    "Maximum number of agent turns before giving up.",
	"raw":          "Print the answer without formatting or the TUI.",
	"json":         "Print every search event as a JSON line.",
	"quiet":        "Hide the spinner and tool progress.",
	"verbose":      "Show debug logs and a token usage summary.",
	"no-cache":     "Don't save the search to history.",
	"system":       "System prompt override: text, a file path or a URL.",
	"word-wrap":    "Wrap formatted output at a specific width.",
	"http-proxy":   "HTTP proxy to use for API requests.",
	"theme":        "Theme to use in the forms; valid choices are: charm, catppuccin, dracula, and base16.",
	"help":         "Show help and exit.",
	"version":      "Show version and exit.",
	"standalone":   "Include the browser server launch declaration.",
	"older-than":   "Delete searches older than this duration; e.g. 24h, 7d.",
	"last":         "Show the most recent search.",
	"mcp-timeout":  "Timeout for starting tool servers and listing their tools.",
	"tool-timeout": "Timeout for a single tool call.",
}

func initRootFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.StringVarP(&cfg.Model, "model", "m", cfg.Model, present.StdoutStyles().FlagDesc.Render(helpText["model"]))
	flags.StringVarP(&cfg.API, "api", "a", cfg.API, present.StdoutStyles().FlagDesc.Render(helpText["api"]))
	flags.IntVar(&cfg.MaxTurns, "max-turns", cfg.MaxTurns, present.StdoutStyles().FlagDesc.Render(helpText["max-turns"]))
	flags.BoolVarP(&cfg.Raw, "raw", "r", cfg.Raw, present.StdoutStyles().FlagDesc.Render(helpText["raw"]))
	flags.BoolVarP(&cfg.JSON, "json", "j", cfg.JSON, present.StdoutStyles().FlagDesc.Render(helpText["json"]))
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, present.StdoutStyles().FlagDesc.Render(helpText["quiet"]))
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, present.StdoutStyles().FlagDesc.Render(helpText["verbose"]))
	flags.BoolVar(&cfg.NoCache, "no-cache", cfg.NoCache, present.StdoutStyles().FlagDesc.Render(helpText["no-cache"]))
	flags.StringVar(&cfg.System, "system", cfg.System, present.StdoutStyles().FlagDesc.Render(helpText["system"]))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, present.StdoutStyles().FlagDesc.Render(helpText["word-wrap"]))
	flags.StringVarP(&cfg.HTTPProxy, "http-proxy", "x", cfg.HTTPProxy, present.StdoutStyles().FlagDesc.Render(helpText["http-proxy"]))
	flags.DurationVar(&cfg.MCPTimeout, "mcp-timeout", cfg.MCPTimeout, present.StdoutStyles().FlagDesc.Render(helpText["mcp-timeout"]))
	flags.DurationVar(&cfg.ToolTimeout, "tool-timeout", cfg.ToolTimeout, present.StdoutStyles().FlagDesc.Render(helpText["tool-timeout"]))
	flags.StringVar(&cfg.Theme, "theme", cfg.Theme, present.StdoutStyles().FlagDesc.Render(helpText["theme"]))
	flags.BoolVarP(&cfg.ShowHelp, "help", "h", false, present.StdoutStyles().FlagDesc.Render(helpText["help"]))
	flags.BoolVar(&cfg.Version, "version", false, present.StdoutStyles().FlagDesc.Render(helpText["version"]))
	flags.SortFlags = false

	_ = cmd.RegisterFlagCompletionFunc("model", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return modelNames(cfg, toComplete), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("api", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, len(cfg.APIs))
		for _, api := range cfg.APIs {
			names = append(names, api.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.MarkFlagsMutuallyExclusive("raw", "json")
}

func modelNames(cfg *config.Config, prefix string) []string {
	var names []string
	for _, api := range cfg.APIs {
		if cfg.API != "" && api.Name != cfg.API {
			continue
		}
		for name, model := range api.Models {
			for _, n := range append([]string{name}, model.Aliases...) {
				if strings.HasPrefix(n, prefix) {
					names = append(names, n)
				}
			}
		}
	}
	slices.Sort(names)
	return names
}

// searchCompletions completes search IDs and prompts from the history index.
func searchCompletions(cfg *config.Config) cobra.CompletionFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if cfg.CachePath == "" {
			return nil, cobra.ShellCompDirectiveDefault
		}
		db, err := storage.Open(filepath.Join(cfg.CachePath, searchesDir))
		if err != nil {
			return nil, cobra.ShellCompDirectiveDefault
		}
		defer db.Close() //nolint:errcheck
		return db.Completions(toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// durationFlag is a pflag.Value accepting days and weeks on top of
// time.ParseDuration units.
type durationFlag time.Duration

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}
