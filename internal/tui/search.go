package tui

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/recipe-finder/internal/agent"
	"github.com/dotcommander/recipe-finder/internal/config"
	"github.com/dotcommander/recipe-finder/internal/errs"
	"github.com/dotcommander/recipe-finder/internal/present"
)

type state int

const (
	startState state = iota
	requestState
	responseState
	doneState
	errorState
)

const (
	tabWidth       = 4
	renderInterval = 33 * time.Millisecond
	defaultStatus  = "Searching recipes"
)

// Streamer starts a search and returns its event stream.
type Streamer interface {
	Stream(ctx context.Context, prompt string) *agent.Stream
}

// Search is the Bubble Tea model that drives one recipe search: a spinner
// with the current tool while the agent browses, and the answer rendered as
// markdown as it arrives.
type Search struct {
	// Output is the final answer, populated when the search is done.
	Output string
	Styles present.Styles
	Error  *errs.Error

	state        state
	renderer     *lipgloss.Renderer
	glam         *glamour.TermRenderer
	glamViewport viewport.Model
	glamOutput   string
	glamHeight   int
	spinner      spinner.Model
	width        int
	height       int

	Config   *config.Config
	streamer Streamer
	prompt   string
	stream   *agent.Stream

	records []agent.Record
	text    strings.Builder
	result  string
	status  string
	input   int64
	output  int64

	renderScheduled bool
	dirtyOutput     bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSearch creates the model for searching prompt with streamer.
func NewSearch(
	ctx context.Context,
	r *lipgloss.Renderer,
	cfg *config.Config,
	streamer Streamer,
	prompt string,
) *Search {
	gr, _ := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(cfg.WordWrap),
	)
	vp := viewport.New(0, 0)
	vp.GotoBottom()
	ctx, cancel := context.WithCancel(ctx)
	styles := present.MakeStyles(r)
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.Spinner))
	return &Search{
		Styles:       styles,
		glam:         gr,
		state:        startState,
		renderer:     r,
		glamViewport: vp,
		spinner:      sp,
		Config:       cfg,
		streamer:     streamer,
		prompt:       prompt,
		status:       defaultStatus,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// eventMsg carries one event pulled from the stream.
type eventMsg struct {
	event agent.Event
}

// streamEndMsg reports that the stream ended without a done event.
type streamEndMsg struct{}

type renderOutputMsg struct{}

// Init implements tea.Model.
func (m *Search) Init() tea.Cmd {
	if m.streamer == nil {
		return func() tea.Msg { return errs.Error{Reason: "Search is not available."} }
	}
	m.stream = m.streamer.Stream(m.ctx, m.prompt)
	m.state = requestState
	cmds := []tea.Cmd{m.receiveEventCmd}
	if !m.Config.Quiet {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Search) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case eventMsg:
		m.records = append(m.records, msg.event.Record())
		if m.handleEvent(msg.event) {
			m.finish()
			return m, tea.Quit
		}
		if m.dirtyOutput && !m.renderScheduled {
			m.renderScheduled = true
			cmds = append(cmds, m.renderOutputCmd())
		}
		cmds = append(cmds, m.receiveEventCmd)

	case streamEndMsg:
		m.finish()
		return m, tea.Quit

	case renderOutputMsg:
		m.renderScheduled = false
		if m.dirtyOutput {
			m.renderFormattedOutput()
		}

	case errs.Error:
		e := msg
		m.Error = &e
		m.state = errorState
		m.closeStream()
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.glamViewport.Width = m.width
		m.glamViewport.Height = m.height
		if m.text.Len() > 0 {
			m.renderFormattedOutput()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// A receive may still be pending; cancelling unblocks it.
			m.cancel()
			e := errs.Error{Err: context.Canceled, Reason: "Search cancelled."}
			m.Error = &e
			m.state = errorState
			return m, tea.Quit
		}
	}
	if !m.Config.Quiet && m.working() {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.viewportNeeded() {
		// Only respond to keypresses when the viewport (i.e. the content) is
		// taller than the window.
		var cmd tea.Cmd
		m.glamViewport, cmd = m.glamViewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// handleEvent applies ev to the model and reports whether the search is done.
func (m *Search) handleEvent(ev agent.Event) bool {
	switch ev := ev.(type) {
	case agent.TextEvent:
		if strings.TrimSpace(ev.Text) == "" {
			return false
		}
		if m.text.Len() > 0 {
			m.text.WriteString("\n\n")
		}
		m.text.WriteString(ev.Text)
		m.dirtyOutput = true
		m.state = responseState
		m.status = defaultStatus
	case agent.ToolEvent:
		m.status = present.ToolLabel(ev.Name)
	case agent.UsageEvent:
		m.input += ev.Input
		m.output += ev.Output
	case agent.ResultEvent:
		m.result = ev.Text
	case agent.DoneEvent:
		return true
	}
	return false
}

func (m *Search) finish() {
	m.closeStream()
	m.Output = m.result
	if strings.TrimSpace(m.Output) == "" {
		m.Output = m.text.String()
	}
	if m.Output != m.text.String() {
		m.text.Reset()
		m.text.WriteString(m.Output)
		m.dirtyOutput = true
	}
	if m.dirtyOutput {
		m.renderFormattedOutput()
	}
	m.state = doneState
}

func (m *Search) working() bool {
	return m.state == requestState || m.state == responseState
}

func (m *Search) viewportNeeded() bool {
	return m.glamHeight > m.height
}

// View implements tea.Model.
func (m *Search) View() string {
	//nolint:exhaustive
	switch m.state {
	case requestState:
		return m.statusView()
	case responseState:
		out := m.glamOutput
		if m.viewportNeeded() {
			out = m.glamViewport.View()
		}
		if status := m.statusView(); status != "" {
			out += "\n" + status
		}
		return out
	}
	return ""
}

func (m *Search) statusView() string {
	if m.Config.Quiet {
		return ""
	}
	return m.spinner.View() + " " + m.Styles.Tool.Render(m.status) + m.Styles.Comment.Render("...")
}

func (m *Search) receiveEventCmd() tea.Msg {
	if m.stream.Next() {
		return eventMsg{event: m.stream.Current()}
	}
	if err := m.stream.Err(); err != nil {
		return agent.DescribeError(err, m.Config.Model)
	}
	return streamEndMsg{}
}

func (m *Search) closeStream() {
	if m.stream != nil {
		_ = m.stream.Close()
	}
	m.cancel()
}

func (m *Search) renderOutputCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(time.Time) tea.Msg {
		return renderOutputMsg{}
	})
}

func (m *Search) renderFormattedOutput() {
	wasAtBottom := m.glamViewport.ScrollPercent() == 1.0
	oldHeight := m.glamHeight
	out := m.text.String()
	if m.glam != nil {
		if rendered, err := m.glam.Render(out); err == nil {
			out = rendered
		}
	}
	m.glamOutput = strings.TrimRightFunc(out, unicode.IsSpace)
	m.glamOutput = strings.ReplaceAll(m.glamOutput, "\t", strings.Repeat(" ", tabWidth))
	m.glamHeight = lipgloss.Height(m.glamOutput)
	m.glamOutput += "\n"
	truncated := m.renderer.NewStyle().
		MaxWidth(m.width).
		Render(m.glamOutput)
	m.glamViewport.SetContent(truncated)
	if oldHeight < m.glamHeight && wasAtBottom {
		// Follow the output while the viewport is at the bottom.
		m.glamViewport.GotoBottom()
	}
	m.dirtyOutput = false
}
