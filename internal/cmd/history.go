package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/present"
	"github.com/dotcommander/recipe-finder/internal/storage"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved searches",
	}

	historyCmd.AddCommand(newHistoryListCmd(rt))
	historyCmd.AddCommand(newHistoryShowCmd(rt))
	historyCmd.AddCommand(newHistoryDeleteCmd(rt))
	historyCmd.AddCommand(newHistoryPruneCmd(rt))

	return historyCmd
}

func newHistoryListCmd(rt *runtime) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved searches",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return listSearches(&rt.cfg, rt.cfg.Raw)
		},
	}
	listCmd.Flags().BoolVarP(&rt.cfg.Raw, "raw", "r", rt.cfg.Raw, helpText["raw"])
	return listCmd
}

func newHistoryShowCmd(rt *runtime) *cobra.Command {
	var last bool
	showCmd := &cobra.Command{
		Use:               "show [id-or-prompt]",
		Short:             "Show a saved search",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: searchCompletions(&rt.cfg),
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			drainStdin()
			in := ""
			if len(args) == 1 {
				in = args[0]
			}
			if in == "" && !last {
				return errs.Wrap(errs.UserErrorf("give a search ID or use --last"), "Could not show the search.")
			}
			return showSearch(&rt.cfg, in)
		},
	}
	showCmd.Flags().BoolVarP(&last, "last", "l", false, helpText["last"])
	showCmd.Flags().BoolVarP(&rt.cfg.Raw, "raw", "r", rt.cfg.Raw, helpText["raw"])
	showCmd.Flags().BoolVarP(&rt.cfg.JSON, "json", "j", rt.cfg.JSON, helpText["json"])
	return showCmd
}

func newHistoryDeleteCmd(rt *runtime) *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:               "delete <id-or-prompt> [more...]",
		Short:             "Delete saved searches",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: searchCompletions(&rt.cfg),
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return deleteSearches(&rt.cfg, args)
		},
	}
	deleteCmd.Flags().BoolVarP(&rt.cfg.Quiet, "quiet", "q", rt.cfg.Quiet, helpText["quiet"])
	return deleteCmd
}

func newHistoryPruneCmd(rt *runtime) *cobra.Command {
	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete searches older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return deleteSearchesOlderThan(&rt.cfg, olderThan)
		},
	}
	pruneCmd.Flags().Var(newDurationFlag(olderThan, &olderThan), "older-than", helpText["older-than"])
	pruneCmd.Flags().BoolVarP(&rt.cfg.Quiet, "quiet", "q", rt.cfg.Quiet, helpText["quiet"])
	return pruneCmd
}

func listSearches(cfg *config.Config, raw bool) error {
	store, err := openSearchStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open search history.")
	}
	defer store.Close() //nolint:errcheck

	searches := store.DB.List()
	if len(searches) == 0 {
		fmt.Fprintln(os.Stderr, "No searches found.")
		return nil
	}

	if present.IsInputTTY() && present.IsOutputTTY() && !raw {
		selectFromList(cfg, searches)
		return nil
	}
	printList(searches)
	return nil
}

func showSearch(cfg *config.Config, in string) error {
	store, err := openSearchStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open search history.")
	}
	defer store.Close() //nolint:errcheck

	var found *storage.Search
	if in == "" {
		found, err = store.DB.FindHEAD()
	} else {
		found, err = store.DB.Find(in)
	}
	if err != nil {
		return errs.Wrap(err, "There was an error loading the search.")
	}
	records, err := store.Cache.Read(found.ID)
	if err != nil {
		return errs.Wrap(err, "There was an error loading the search.")
	}

	if cfg.JSON {
		for _, rec := range records {
			ev, err := rec.Event()
			if err != nil {
				return errs.Wrap(err, "There was an error loading the search.")
			}
			bts, err := agent.MarshalEvent(ev)
			if err != nil {
				return errs.Wrap(err, "There was an error loading the search.")
			}
			fmt.Printf("%s\n", bts)
		}
		return nil
	}

	out := transcriptMarkdown(*found, records)
	if present.IsOutputTTY() && !cfg.Raw {
		if formatted, err := present.RenderMarkdown(out, cfg.WordWrap); err == nil {
			out = formatted
		}
	}
	fmt.Print(out)
	return nil
}

// transcriptMarkdown renders a saved search: the prompt as a heading, tool
// calls as a list, and the answer.
func transcriptMarkdown(s storage.Search, records []agent.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", s.Prompt)

	var tools []string
	var text, result string
	for _, rec := range records {
		switch rec.Type {
		case agent.EventTool:
			tools = append(tools, present.ToolLabel(rec.Name))
		case agent.EventText:
			if strings.TrimSpace(rec.Text) != "" {
				text = rec.Text
			}
		case agent.EventResult:
			result = rec.Text
		}
	}
	if len(tools) > 0 {
		sb.WriteString("## Steps\n\n")
		for _, t := range tools {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
		sb.WriteString("\n")
	}
	result = ordered.First(result, text)
	if result != "" {
		sb.WriteString(strings.TrimSpace(result) + "\n\n")
	}
	if s.InputTokens > 0 || s.OutputTokens > 0 {
		fmt.Fprintf(&sb, "_%s_\n", present.UsageSummary(s.InputTokens, s.OutputTokens))
	}
	return sb.String()
}

func deleteSearches(cfg *config.Config, targets []string) error {
	store, err := openSearchStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Couldn't delete search.")
	}
	defer store.Close() //nolint:errcheck

	for _, del := range targets {
		s, err := store.DB.Find(del)
		if err != nil {
			return errs.Wrap(err, "Couldn't find search to delete.")
		}
		if err := deleteSearchByID(cfg, store, s.ID); err != nil {
			return err
		}
	}
	return nil
}

func deleteSearchByID(cfg *config.Config, store *searchStore, id string) error {
	if err := store.DB.Delete(id); err != nil {
		return fmt.Errorf("delete search index: %w", err)
	}
	if err := store.Cache.Delete(id); err != nil {
		return fmt.Errorf("delete search transcript: %w", err)
	}
	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr, "Search deleted:", storage.Search{ID: id}.ShortID())
	}
	return nil
}

func deleteSearchesOlderThan(cfg *config.Config, olderThan time.Duration) error {
	if olderThan <= 0 {
		return errs.Wrap(errs.UserErrorf("missing --older-than"), "Could not delete old searches.")
	}

	store, err := openSearchStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open search history.")
	}
	defer store.Close() //nolint:errcheck

	searches := store.DB.ListOlderThan(olderThan)
	if len(searches) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "No searches found.")
		}
		return nil
	}

	if !cfg.Quiet {
		printList(searches)

		if !present.IsOutputTTY() || !present.IsInputTTY() {
			fmt.Fprintln(os.Stderr)
			//nolint:wrapcheck // user-facing guidance error
			return errs.UserErrorf(
				"To delete the searches above, run: %s",
				strings.Join(append(os.Args, "--quiet"), " "),
			)
		}
		var confirm bool
		if err := huh.Run(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete searches older than %s?", olderThan)).
				Description(fmt.Sprintf("This will delete all the %d searches listed above.", len(searches))).
				Value(&confirm),
		); err != nil {
			return errs.Wrap(err, "Couldn't delete old searches.")
		}
		if !confirm {
			//nolint:wrapcheck // user-facing abort
			return errs.UserErrorf("Aborted by user")
		}
	}

	for _, s := range searches {
		if err := deleteSearchByID(cfg, store, s.ID); err != nil {
			return err
		}
	}
	return nil
}

func makeOptions(searches []storage.Search) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(searches))
	for _, s := range searches {
		timea := present.StdoutStyles().Timeago.Render(timeago.Of(s.UpdatedAt))
		left := present.StdoutStyles().ShortID.Render(s.ShortID())
		right := present.StdoutStyles().SearchList.Render(s.Prompt, timea)
		if s.Model != "" {
			right += present.StdoutStyles().Comment.Render(s.Model)
		}
		opts = append(opts, huh.NewOption(left+" "+right, s.ID))
	}
	return opts
}

func selectFromList(cfg *config.Config, searches []storage.Search) {
	var selected string
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Searches").
				Value(&selected).
				Options(makeOptions(searches)...),
		),
	).
		WithTheme(themeFrom(cfg.Theme)).
		Run(); err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		return
	}

	_ = clipboard.WriteAll(selected)
	termenv.Copy(selected)
	present.PrintConfirmation(os.Stdout, "COPIED", selected)

	fmt.Println(present.StdoutStyles().Comment.Render("You can use this search ID with the following commands:"))
	suggestions := []string{
		"recipe-finder history show " + selected,
		"recipe-finder history delete " + selected,
	}
	for _, s := range suggestions {
		fmt.Printf("  %s\n", present.StdoutStyles().InlineCode.Render(s))
	}
}

func printList(searches []storage.Search) {
	for _, s := range searches {
		_, _ = fmt.Fprintf(
			os.Stdout,
			"%s\t%s\t%s\n",
			present.StdoutStyles().ShortID.Render(s.ShortID()),
			s.Prompt,
			present.StdoutStyles().Timeago.Render(timeago.Of(s.UpdatedAt)),
		)
	}
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
