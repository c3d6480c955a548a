package tui

import "github.com/dotcommander/recipe-finder/internal/agent"

// GlamourOutput returns the last rendered formatted output.
func (m *Search) GlamourOutput() string {
	return m.glamOutput
}

// Records returns the events received so far, in order.
func (m *Search) Records() []agent.Record {
	return m.records
}

// Usage returns the token counts reported by the search.
func (m *Search) Usage() (input, output int64) {
	return m.input, m.output
}
