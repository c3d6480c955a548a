package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/proto"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tools the agent may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range agent.AllowedTools() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err //nolint:wrapcheck
				}
			}
			return nil
		},
	}
}

func newOptionsCmd(rt *runtime) *cobra.Command {
	var standalone bool
	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "Print the options a search is invoked with",
		Long: "Print the options a search is invoked with, as YAML.\n\n" +
			"Environment values are hidden; only variable names are shown.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			opts, err := agent.New(&rt.cfg, rt.env, nil).Options(cmd.Context(), standalone)
			if err != nil {
				return err //nolint:wrapcheck
			}
			return printOptions(cmd.OutOrStdout(), opts)
		},
	}
	optionsCmd.Flags().BoolVar(&standalone, "standalone", false, helpText["standalone"])
	return optionsCmd
}

// printOptions writes opts as YAML, keeping only the names of environment
// variables.
func printOptions(w io.Writer, opts proto.Options) error {
	opts = opts.Clone()
	opts.Env = envNames(opts.Env)
	for name, srv := range opts.MCPServers {
		srv.Env = envNames(srv.Env)
		opts.MCPServers[name] = srv
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(opts); err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	return enc.Close() //nolint:wrapcheck
}

func envNames(env []string) []string {
	if env == nil {
		return nil
	}
	names := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		names = append(names, name)
	}
	return names
}
