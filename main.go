// Package main provides the recipe-finder CLI.
package main

import (
	"github.com/dotcommander/recipe-finder/internal/cmd"
	"github.com/dotcommander/recipe-finder/internal/config"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	cfg, cfgErr := config.Ensure()
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA}, cfg, cfgErr)
}
