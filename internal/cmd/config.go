package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/present"
)

const redacted = "<redacted>"

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Settings stay editable when they fail to parse.
			return editSettings(&rt.cfg)
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open settings in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return editSettings(&rt.cfg)
		},
	})

	var force bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset settings to defaults",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !force && present.IsInputTTY() {
				ok, err := confirm("Reset settings to defaults?", "Your current settings are kept in a .bak file.")
				if err != nil {
					return errs.Wrap(err, "Couldn't reset settings.")
				}
				if !ok {
					return nil
				}
			}
			return resetSettings(&rt.cfg)
		},
	}
	resetCmd.Flags().BoolVarP(&force, "force", "f", false, "Reset without asking.")
	configCmd.AddCommand(resetCmd)

	configCmd.AddCommand(&cobra.Command{
		Use:       "dirs [config|cache]",
		Short:     "Print config and cache directories",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "cache"},
		RunE: func(cmd *cobra.Command, args []string) error {
			printDirs(cmd.OutOrStdout(), &rt.cfg, args)
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return printSettings(cmd.OutOrStdout(), rt.cfg.Settings)
		},
	})

	return configCmd
}

func editSettings(cfg *config.Config) error {
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	appName := filepath.Base(os.Args[0])
	c, err := editor.Cmd(appName, cfg.SettingsPath)
	if err != nil {
		return errs.Wrap(err, "Could not edit your settings file.")
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Wrapf(err, "Missing %s.", present.StderrStyles().InlineCode.Render("$EDITOR"))
	}

	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr, "Wrote config file to:", cfg.SettingsPath)
	}
	return nil
}

func resetSettings(cfg *config.Config) error {
	backup := cfg.SettingsPath + ".bak"
	if err := copyFile(cfg.SettingsPath, backup); err != nil {
		return errs.Wrap(err, "Couldn't backup config file.")
	}
	if err := os.Remove(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't remove config file.")
	}
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't write new config file.")
	}

	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr, "\nSettings restored to defaults!")
		fmt.Fprintf(
			os.Stderr,
			"\n  %s %s\n\n",
			present.StderrStyles().Comment.Render("Your old settings have been saved to:"),
			present.StderrStyles().Link.Render(backup),
		)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

func printDirs(w io.Writer, cfg *config.Config, args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "config":
			fmt.Fprintln(w, filepath.Dir(cfg.SettingsPath))
			return
		case "cache":
			fmt.Fprintln(w, cfg.CachePath)
			return
		}
	}

	fmt.Fprintf(w, "Configuration: %s\n", filepath.Dir(cfg.SettingsPath))
	//nolint:mnd
	fmt.Fprintf(w, "%*sCache: %s\n", 8, " ", cfg.CachePath)
}

// printSettings writes s as YAML with API keys hidden.
func printSettings(w io.Writer, s config.Settings) error {
	apis := make(config.APIs, len(s.APIs))
	copy(apis, s.APIs)
	for i := range apis {
		if apis[i].APIKey != "" {
			apis[i].APIKey = redacted
		}
	}
	s.APIs = apis

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close() //nolint:wrapcheck
}

func confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.Run(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Value(&ok),
	)
	return ok, err //nolint:wrapcheck
}
