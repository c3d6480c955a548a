package agent

import (
	"encoding/json"
	"fmt"
)

// EventType names an event variant on the wire.
type EventType string

// Event types.
const (
	EventText   EventType = "text"
	EventTool   EventType = "tool"
	EventUsage  EventType = "usage"
	EventResult EventType = "result"
	EventDone   EventType = "done"
)

// Event is a normalized agent event. The set of variants is closed.
type Event interface {
	Type() EventType
	Record() Record
	isEvent()
}

// TextEvent carries assistant text.
type TextEvent struct {
	Text string
}

// ToolEvent reports that the assistant invoked a tool.
type ToolEvent struct {
	Name string
}

// UsageEvent reports token usage for one assistant turn.
type UsageEvent struct {
	Input  int64
	Output int64
}

// ResultEvent carries the final result text of the run.
type ResultEvent struct {
	Text string
}

// DoneEvent terminates every successful event sequence.
type DoneEvent struct{}

func (TextEvent) Type() EventType   { return EventText }
func (ToolEvent) Type() EventType   { return EventTool }
func (UsageEvent) Type() EventType  { return EventUsage }
func (ResultEvent) Type() EventType { return EventResult }
func (DoneEvent) Type() EventType   { return EventDone }

func (TextEvent) isEvent()   {}
func (ToolEvent) isEvent()   {}
func (UsageEvent) isEvent()  {}
func (ResultEvent) isEvent() {}
func (DoneEvent) isEvent()   {}

// Record is the flat form of an event, used for JSON output and transcripts.
type Record struct {
	Type   EventType `json:"type"`
	Text   string    `json:"text,omitempty"`
	Name   string    `json:"name,omitempty"`
	Input  *int64    `json:"input,omitempty"`
	Output *int64    `json:"output,omitempty"`
}

func (e TextEvent) Record() Record   { return Record{Type: EventText, Text: e.Text} }
func (e ToolEvent) Record() Record   { return Record{Type: EventTool, Name: e.Name} }
func (e ResultEvent) Record() Record { return Record{Type: EventResult, Text: e.Text} }
func (DoneEvent) Record() Record     { return Record{Type: EventDone} }

func (e UsageEvent) Record() Record {
	in, out := e.Input, e.Output
	return Record{Type: EventUsage, Input: &in, Output: &out}
}

// Event converts a record back into its event.
func (r Record) Event() (Event, error) {
	switch r.Type {
	case EventText:
		return TextEvent{Text: r.Text}, nil
	case EventTool:
		return ToolEvent{Name: r.Name}, nil
	case EventUsage:
		var ev UsageEvent
		if r.Input != nil {
			ev.Input = *r.Input
		}
		if r.Output != nil {
			ev.Output = *r.Output
		}
		return ev, nil
	case EventResult:
		return ResultEvent{Text: r.Text}, nil
	case EventDone:
		return DoneEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", r.Type)
	}
}

// MarshalEvent encodes an event as a single JSON object.
func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev.Record()) //nolint:wrapcheck
}

// UnmarshalEvent decodes an event encoded by MarshalEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("could not decode event: %w", err)
	}
	return r.Event()
}
