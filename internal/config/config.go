package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/recipe-finder/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

const (
	appName   = "recipe-finder"
	envPrefix = "RECIPE_FINDER_"

	defaultModel       = "haiku"
	defaultMaxTurns    = 50
	defaultWordWrap    = 80
	defaultMCPTimeout  = 60 * time.Second
	defaultToolTimeout = 90 * time.Second
)

// Model represents a model offered by an API.
type Model struct {
	Name           string
	API            string
	Aliases        []string `yaml:"aliases"`
	ThinkingBudget int      `yaml:"thinking-budget,omitempty"`
}

// API represents an API endpoint and its models.
type API struct {
	Name      string           `yaml:"-"`
	APIKey    string           `yaml:"api-key"`
	APIKeyEnv string           `yaml:"api-key-env"`
	APIKeyCmd string           `yaml:"api-key-cmd"`
	BaseURL   string           `yaml:"base-url"`
	Models    map[string]Model `yaml:"models"`
}

// APIs keeps the order APIs were declared in the settings file.
type APIs []API

// UnmarshalYAML implements sorted API YAML decoding.
func (apis *APIs) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		var api API
		if err := node.Content[i+1].Decode(&api); err != nil {
			return fmt.Errorf("error decoding YAML file: %w", err)
		}
		api.Name = node.Content[i].Value
		*apis = append(*apis, api)
	}
	return nil
}

// MarshalYAML encodes APIs as a mapping keyed by name, keeping their order.
func (apis APIs) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, api := range apis {
		var val yaml.Node
		if err := val.Encode(api); err != nil {
			return nil, fmt.Errorf("error encoding YAML file: %w", err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: api.Name},
			&val,
		)
	}
	return node, nil
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	API         string        `yaml:"default-api" env:"API"`
	Model       string        `yaml:"default-model" env:"MODEL"`
	MaxTurns    int           `yaml:"max-turns" env:"MAX_TURNS"`
	System      string        `yaml:"system" env:"SYSTEM"`
	Raw         bool          `yaml:"raw" env:"RAW"`
	JSON        bool          `yaml:"json" env:"JSON"`
	Quiet       bool          `yaml:"quiet" env:"QUIET"`
	Verbose     bool          `yaml:"verbose" env:"VERBOSE"`
	WordWrap    int           `yaml:"word-wrap" env:"WORD_WRAP"`
	CachePath   string        `yaml:"cache-path" env:"CACHE_PATH"`
	NoCache     bool          `yaml:"no-cache" env:"NO_CACHE"`
	HTTPProxy   string        `yaml:"http-proxy" env:"HTTP_PROXY"`
	Theme       string        `yaml:"theme" env:"THEME"`
	MCPTimeout  time.Duration `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	ToolTimeout time.Duration `yaml:"tool-timeout" env:"TOOL_TIMEOUT"`
	APIs        APIs          `yaml:"apis"`
}

// Runtime holds CLI-only options that are never loaded from the settings
// file.
type Runtime struct {
	SettingsPath string
	Prompt       string
	ShowHelp     bool
	Version      bool
}

// Config is the application configuration (settings + runtime-only options).
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// Ensure loads settings from disk and environment and applies defaults.
//
// It also creates the default settings file if it does not exist.
func Ensure() (Config, error) {
	var c Config
	home, err := os.UserHomeDir()
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not determine home directory."}
	}

	sp := filepath.Join(home, ".config", appName, appName+".yml")
	c.SettingsPath = sp

	if dirErr := os.MkdirAll(filepath.Dir(sp), 0o700); dirErr != nil {
		return c, errs.Error{Err: dirErr, Reason: "Could not create config directory."}
	}
	if err := WriteConfigFile(sp); err != nil {
		return c, err
	}
	content, err := os.ReadFile(sp)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file."}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: envPrefix}); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings file."}
	}

	if c.CachePath == "" {
		c.CachePath = filepath.Join(home, ".cache", appName)
	}
	if err := os.MkdirAll(c.CachePath, 0o700); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not create cache directory."}
	}

	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = d.MaxTurns
	}
	if c.WordWrap == 0 {
		c.WordWrap = d.WordWrap
	}
	if c.MCPTimeout == 0 {
		c.MCPTimeout = d.MCPTimeout
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = d.ToolTimeout
	}
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render template."}
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			Model:       defaultModel,
			MaxTurns:    defaultMaxTurns,
			WordWrap:    defaultWordWrap,
			Theme:       "charm",
			MCPTimeout:  defaultMCPTimeout,
			ToolTimeout: defaultToolTimeout,
		},
	}
}
