package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/spf13/cobra"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/engine"
	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/fantasybridge"
	"github.com/dotcommander/recipe-finder/internal/present"
	"github.com/dotcommander/recipe-finder/internal/tui"
)

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error
	env    config.Env
	logger *slog.Logger
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{
		build:  normalizeBuildInfo(build),
		cfg:    cfg,
		cfgErr: cfgErr,
		env:    config.Snapshot(),
	}
	rt.logger = newLogger(os.Stderr, cfg.Verbose, !present.IsErrorTTY())

	rootCmd := &cobra.Command{
		Use:           "recipe-finder",
		Short:         "Find recipes on AllRecipes with a browsing agent.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       randomExample(),
		PersistentPreRun: func(*cobra.Command, []string) {
			rt.logger = newLogger(os.Stderr, rt.cfg.Verbose, !present.IsErrorTTY())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return rt.runSearch(cmd, args)
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initRootFlags(rootCmd, &rt.cfg)

	// Commands.
	rootCmd.AddCommand(newHistoryCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newMCPCmd(rt))
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newOptionsCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))

	// Enable completion now that we have subcommands.
	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

func (rt *runtime) runSearch(cmd *cobra.Command, args []string) error {
	if rt.cfg.ShowHelp {
		drainStdin()
		if err := cmd.Usage(); err != nil {
			return fmt.Errorf("usage: %w", err)
		}
		return nil
	}

	var stdin string
	if !present.IsInputTTY() {
		in, err := readStdin(os.Stdin)
		if err != nil {
			return errs.Wrap(err, "Unable to read stdin.")
		}
		stdin = in
	}
	rt.cfg.Prompt = joinPrompt(args, stdin)
	if rt.cfg.Prompt == "" {
		return errs.Error{
			Reason: "You haven't said what to search for.",
			Err: errs.UserErrorf(
				"You can give your search as arguments and/or pipe it from STDIN.\nExample: %s",
				present.StdoutStyles().InlineCode.Render(`recipe-finder "vegan lasagna"`),
			),
		}
	}
	if os.Getenv("VIMRUNTIME") != "" {
		rt.cfg.Quiet = true
	}

	svc := rt.newService()

	var run searchRun
	if rt.cfg.JSON || rt.cfg.Raw || !present.IsOutputTTY() {
		run = rt.printSearch(cmd.Context(), os.Stdout, svc)
	} else {
		var err error
		run, err = rt.interactiveSearch(cmd.Context(), svc)
		if err != nil {
			return err
		}
	}

	if err := rt.saveRun(run); err != nil && run.Err == nil {
		return err
	}
	return run.Err
}

func (rt *runtime) newService() *agent.Service {
	resolver := fantasybridge.NewResolver(&rt.cfg, rt.env)
	eng := engine.New(
		func(ctx context.Context, name string) (engine.Model, error) {
			lm, err := resolver.LanguageModel(ctx, name)
			if err != nil {
				return nil, err
			}
			return lm, nil
		},
		engine.WithLogger(rt.logger),
		engine.WithTimeouts(rt.cfg.MCPTimeout, rt.cfg.ToolTimeout),
	)
	return agent.New(&rt.cfg, rt.env, eng)
}

// printSearch streams the search to out for pipes, scripts and --raw.
func (rt *runtime) printSearch(ctx context.Context, out io.Writer, svc *agent.Service) searchRun {
	run := searchRun{Prompt: rt.cfg.Prompt}
	printer := present.NewPrinter(out, os.Stderr, present.PrinterOptions{
		JSON:    rt.cfg.JSON,
		Quiet:   rt.cfg.Quiet,
		Verbose: rt.cfg.Verbose,
		Styles:  present.StderrStyles(),
	})

	stream := svc.Stream(ctx, rt.cfg.Prompt)
	defer stream.Close() //nolint:errcheck

	for stream.Next() {
		ev := stream.Current()
		run.Records = append(run.Records, ev.Record())
		if err := printer.Print(ev); err != nil {
			run.Err = errs.Wrap(err, "Could not write output.")
			return run
		}
	}
	if err := stream.Err(); err != nil {
		run.Err = agent.DescribeError(err, rt.cfg.Model)
	}
	return run
}

// interactiveSearch runs the search in the TUI and prints the formatted
// answer once it is done.
func (rt *runtime) interactiveSearch(ctx context.Context, svc *agent.Service) (searchRun, error) {
	opts := []tea.ProgramOption{tea.WithOutput(os.Stderr)}
	if !present.IsInputTTY() {
		opts = append(opts, tea.WithInput(nil))
	}

	search := tui.NewSearch(ctx, present.StderrRenderer(), &rt.cfg, svc, rt.cfg.Prompt)
	m, err := tea.NewProgram(search, opts...).Run()
	if err != nil {
		return searchRun{}, errs.Wrap(err, "Couldn't start Bubble Tea program.")
	}
	search = m.(*tui.Search)

	run := searchRun{Prompt: rt.cfg.Prompt, Records: search.Records()}
	if search.Error != nil {
		run.Err = *search.Error
		return run, nil
	}

	switch {
	case search.GlamourOutput() != "":
		fmt.Print(search.GlamourOutput())
	case search.Output != "":
		fmt.Println(search.Output)
	}
	if rt.cfg.Verbose {
		in, out := search.Usage()
		fmt.Fprintln(os.Stderr, present.StderrStyles().Comment.Render(present.UsageSummary(in, out)))
	}
	return run, nil
}

func (rt *runtime) saveRun(run searchRun) error {
	if rt.cfg.NoCache || len(run.Records) == 0 {
		return nil
	}
	store, err := openSearchStore(rt.cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open search history.")
	}
	defer store.Close() //nolint:errcheck

	// JSON output stays machine readable.
	cfg := rt.cfg
	cfg.Quiet = cfg.Quiet || cfg.JSON
	_, err = saveSearch(&cfg, store, run)
	return err
}
