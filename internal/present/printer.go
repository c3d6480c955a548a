package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/mcp"
)

// PrinterOptions configure a Printer.
type PrinterOptions struct {
	// JSON prints every event as one JSON object per line.
	JSON bool
	// Quiet hides tool progress.
	Quiet bool
	// Verbose adds a token usage summary at the end.
	Verbose bool
	Styles  Styles
}

// Printer writes search events for pipes and scripts. Text goes to out;
// progress goes to status.
type Printer struct {
	out    io.Writer
	status io.Writer
	opts   PrinterOptions

	lastText string
	input    int64
	output   int64
}

// NewPrinter returns a printer writing to out and status.
func NewPrinter(out, status io.Writer, opts PrinterOptions) *Printer {
	return &Printer{out: out, status: status, opts: opts}
}

// Print writes one event.
func (p *Printer) Print(ev agent.Event) error {
	if p.opts.JSON {
		bts, err := agent.MarshalEvent(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.out, "%s\n", bts)
		return err //nolint:wrapcheck
	}

	switch ev := ev.(type) {
	case agent.TextEvent:
		if strings.TrimSpace(ev.Text) == "" {
			return nil
		}
		p.lastText = ev.Text
		return p.println(p.out, ev.Text)
	case agent.ToolEvent:
		if p.opts.Quiet {
			return nil
		}
		return p.println(p.status, p.opts.Styles.Tool.Render("• "+ToolLabel(ev.Name)))
	case agent.UsageEvent:
		p.input += ev.Input
		p.output += ev.Output
	case agent.ResultEvent:
		// The result repeats the final turn's text.
		if strings.TrimSpace(ev.Text) == strings.TrimSpace(p.lastText) {
			return nil
		}
		return p.println(p.out, ev.Text)
	case agent.DoneEvent:
		if p.opts.Verbose {
			return p.println(p.status, p.opts.Styles.Comment.Render(UsageSummary(p.input, p.output)))
		}
	}
	return nil
}

func (p *Printer) println(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err //nolint:wrapcheck
}

// ToolLabel returns a short label for a tool: navigate_page becomes
// "navigate page".
func ToolLabel(name string) string {
	if _, tool, ok := mcp.SplitName(name); ok {
		name = tool
	}
	return strings.ReplaceAll(name, "_", " ")
}

// UsageSummary describes token usage.
func UsageSummary(input, output int64) string {
	return fmt.Sprintf("%d input tokens, %d output tokens", input, output)
}
