package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/config"
)

func TestMCPList(t *testing.T) {
	var out bytes.Buffer
	mcpList(&out, config.EnvFrom([]string{"CHROME_PATH=/usr/bin/chromium"}))
	require.Contains(t, out.String(), agent.BrowserServer)
	require.Contains(t, out.String(), "npx -y chrome-devtools-mcp@latest")
	require.Contains(t, out.String(), "--executable-path=/usr/bin/chromium")
}
