package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dotcommander/recipe-finder/internal/present"
)

// maxStdinBytes bounds how much piped input is added to a prompt.
const maxStdinBytes = 64 * 1024

func drainStdin() {
	if present.IsInputTTY() {
		return
	}
	_, _ = io.Copy(io.Discard, os.Stdin)
}

// readStdin reads piped input, keeping at most maxStdinBytes.
func readStdin(r io.Reader) (string, error) {
	bts, err := io.ReadAll(io.LimitReader(r, maxStdinBytes))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(bts)), nil
}

// joinPrompt combines the prompt arguments with piped input.
func joinPrompt(args []string, stdin string) string {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	switch {
	case stdin == "":
		return prompt
	case prompt == "":
		return stdin
	default:
		return prompt + "\n\n" + stdin
	}
}
