package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/recipe-finder/internal/config"
)

var flagParseErrorTests = []struct {
	in     string
	flag   string
	reason string
}{
	{
		"unknown flag: --nope",
		"--nope",
		"Flag %s is missing.",
	},
	{
		"unknown shorthand flag: 'z' in -z",
		"z",
		"Flag %s is missing.",
	},
	{
		"flag needs an argument: --model",
		"--model",
		"Flag %s needs an argument.",
	},
	{
		"flag needs an argument: 'm' in -m",
		"-m",
		"Flag %s needs an argument.",
	},
	{
		`invalid argument "20dd" for "--older-than" flag: time: unknown unit "dd" in duration "20dd"`,
		"--older-than",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "lots" for "--max-turns" flag: strconv.ParseInt: parsing "lots": invalid syntax`,
		"--max-turns",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "nope" for "-r, --raw" flag: strconv.ParseBool: parsing "nope": invalid syntax`,
		"-r, --raw",
		"Flag %s have an invalid argument.",
	},
}

func TestFlagParseError(t *testing.T) {
	for _, tf := range flagParseErrorTests {
		t.Run(tf.in, func(t *testing.T) {
			err := newFlagParseError(errors.New(tf.in))
			require.Equal(t, tf.flag, err.Flag())
			require.Equal(t, tf.reason, err.ReasonFormat())
			require.Equal(t, tf.in, err.Error())
		})
	}
}

func TestRootFlags(t *testing.T) {
	t.Run("search flags are registered", func(t *testing.T) {
		cmd := NewRootCmd(BuildInfo{}, config.Default(), nil)
		require.NoError(t, cmd.ParseFlags([]string{
			"-m", "sonnet",
			"--max-turns", "7",
			"--json",
			"--no-cache",
			"--system", "./prompt.md",
		}))
		for name, want := range map[string]string{
			"model":     "sonnet",
			"max-turns": "7",
			"json":      "true",
			"no-cache":  "true",
			"system":    "./prompt.md",
		} {
			flag := cmd.Flag(name)
			require.NotNil(t, flag, name)
			require.Equal(t, want, flag.Value.String(), name)
		}
	})

	t.Run("defaults come from the settings", func(t *testing.T) {
		cfg := config.Default()
		cfg.Model = "gpt-4o"
		cmd := NewRootCmd(BuildInfo{}, cfg, nil)
		require.Equal(t, "gpt-4o", cmd.Flag("model").Value.String())
		require.Equal(t, "50", cmd.Flag("max-turns").Value.String())
	})

	t.Run("raw and json are exclusive", func(t *testing.T) {
		cmd := NewRootCmd(BuildInfo{}, config.Default(), nil)
		cmd.SetArgs([]string{"--raw", "--json", "pancakes"})
		require.Error(t, cmd.Execute())
	})
}

func TestDurationFlag(t *testing.T) {
	var d time.Duration
	f := newDurationFlag(time.Hour, &d)
	require.Equal(t, time.Hour, d)
	require.Equal(t, "duration", f.Type())

	require.NoError(t, f.Set("7d"))
	require.Equal(t, 7*24*time.Hour, d)
	require.Equal(t, (7 * 24 * time.Hour).String(), f.String())

	require.Error(t, f.Set("soon"))
}

func TestModelNames(t *testing.T) {
	cfg := &config.Config{Settings: config.Settings{APIs: config.APIs{
		{Name: "anthropic", Models: map[string]config.Model{
			"claude-haiku-4-5":  {Aliases: []string{"haiku"}},
			"claude-sonnet-4-5": {Aliases: []string{"sonnet"}},
		}},
		{Name: "openai", Models: map[string]config.Model{
			"gpt-4o": {Aliases: []string{"4o"}},
		}},
	}}}

	require.Equal(t, []string{"claude-haiku-4-5", "claude-sonnet-4-5"}, modelNames(cfg, "claude"))
	require.Equal(t, []string{"haiku"}, modelNames(cfg, "ha"))

	cfg.API = "openai"
	require.Equal(t, []string{"4o", "gpt-4o"}, modelNames(cfg, ""))
}
