package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/mcp"
	"github.com/dotcommander/recipe-finder/internal/present"
)

func newMCPCmd(rt *runtime) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect the browser tool server",
	}

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the declared tool servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mcpList(cmd.OutOrStdout(), rt.env)
			return nil
		},
	})

	mcpCmd.AddCommand(&cobra.Command{
		Use:   "tools",
		Short: "Start the tool servers and list their tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.MCPTimeout)
			defer cancel()
			return mcpListTools(ctx, cmd.OutOrStdout(), rt.env, rt.logger)
		},
	})

	return mcpCmd
}

func mcpList(w io.Writer, env config.Env) {
	servers := agent.Options(env, true).MCPServers
	for _, name := range slices.Sorted(maps.Keys(servers)) {
		s := servers[name]
		fmt.Fprintln(w, name+present.StdoutStyles().Timeago.Render(" ("+s.Type+") "+s.Command+" "+strings.Join(s.Args, " ")))
	}
}

func mcpListTools(ctx context.Context, w io.Writer, env config.Env, logger *slog.Logger) error {
	opts := agent.Options(env, true)
	session, err := mcp.Start(ctx, opts.MCPServers, opts.Env, logger)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer session.Close() //nolint:errcheck

	tools, err := session.Tools(ctx)
	if err != nil {
		return errs.Wrap(err, "Could not list tools.")
	}
	for _, tool := range tools {
		name := tool.FullName()
		line := present.StdoutStyles().Timeago.Render(tool.Server+" > ") + tool.Name
		if opts.Allows(name) {
			line += present.StdoutStyles().Comment.Render(" (allowed)")
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
