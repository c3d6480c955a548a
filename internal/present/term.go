package present

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	isInputTTY  = sync.OnceValue(func() bool { return isTerminal(os.Stdin) })
	isOutputTTY = sync.OnceValue(func() bool { return isTerminal(os.Stdout) })
	isErrorTTY  = sync.OnceValue(func() bool { return isTerminal(os.Stderr) })
)

// IsInputTTY reports whether stdin is a TTY.
func IsInputTTY() bool { return isInputTTY() }

// IsOutputTTY reports whether stdout is a TTY.
func IsOutputTTY() bool { return isOutputTTY() }

// IsErrorTTY reports whether stderr is a TTY.
func IsErrorTTY() bool { return isErrorTTY() }

var (
	stdoutRenderer = sync.OnceValue(lipgloss.DefaultRenderer)
	stderrRenderer = sync.OnceValue(func() *lipgloss.Renderer {
		return lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true))
	})
	stdoutStyles = sync.OnceValue(func() Styles { return MakeStyles(stdoutRenderer()) })
	stderrStyles = sync.OnceValue(func() Styles { return MakeStyles(stderrRenderer()) })
)

// StdoutRenderer returns a lipgloss renderer bound to stdout.
func StdoutRenderer() *lipgloss.Renderer { return stdoutRenderer() }

// StderrRenderer returns a lipgloss renderer bound to stderr.
func StderrRenderer() *lipgloss.Renderer { return stderrRenderer() }

// StdoutStyles returns shared styles bound to stdout.
func StdoutStyles() Styles { return stdoutStyles() }

// StderrStyles returns shared styles bound to stderr.
func StderrStyles() Styles { return stderrStyles() }
