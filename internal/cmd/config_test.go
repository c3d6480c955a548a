package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/recipe-finder/internal/config"
)

func TestPrintDirs(t *testing.T) {
	cfg := &config.Config{}
	cfg.SettingsPath = filepath.Join("/home/cook", ".config", "recipe-finder", "recipe-finder.yml")
	cfg.CachePath = "/home/cook/.cache/recipe-finder"

	var out bytes.Buffer
	printDirs(&out, cfg, []string{"config"})
	require.Equal(t, "/home/cook/.config/recipe-finder\n", out.String())

	out.Reset()
	printDirs(&out, cfg, []string{"cache"})
	require.Equal(t, "/home/cook/.cache/recipe-finder\n", out.String())

	out.Reset()
	printDirs(&out, cfg, nil)
	require.Contains(t, out.String(), "Configuration: /home/cook/.config/recipe-finder\n")
	require.Contains(t, out.String(), "Cache: /home/cook/.cache/recipe-finder\n")
}

func TestPrintSettings(t *testing.T) {
	s := config.Default().Settings
	s.APIs = config.APIs{
		{Name: "anthropic", APIKey: "sk-secret", Models: map[string]config.Model{"claude-haiku-4-5": {Aliases: []string{"haiku"}}}},
		{Name: "ollama", BaseURL: "http://localhost:11434/v1"},
	}

	var out bytes.Buffer
	require.NoError(t, printSettings(&out, s))
	require.NotContains(t, out.String(), "sk-secret")
	require.Equal(t, "sk-secret", s.APIs[0].APIKey)

	var decoded config.Settings
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, "haiku", decoded.Model)
	require.Len(t, decoded.APIs, 2)
	require.Equal(t, redacted, decoded.APIs[0].APIKey)
	require.Equal(t, "ollama", decoded.APIs[1].Name)
	require.Empty(t, decoded.APIs[1].APIKey)
}

func TestResetSettings(t *testing.T) {
	cfg := &config.Config{}
	cfg.SettingsPath = filepath.Join(t.TempDir(), "recipe-finder.yml")
	cfg.Quiet = true
	require.NoError(t, os.WriteFile(cfg.SettingsPath, []byte("max-turns: 3\n"), 0o600))

	require.NoError(t, resetSettings(cfg))

	backup, err := os.ReadFile(cfg.SettingsPath + ".bak")
	require.NoError(t, err)
	require.Equal(t, "max-turns: 3\n", string(backup))

	fresh, err := os.ReadFile(cfg.SettingsPath)
	require.NoError(t, err)
	var decoded config.Config
	require.NoError(t, yaml.Unmarshal(fresh, &decoded))
	require.Equal(t, 50, decoded.MaxTurns)
}
