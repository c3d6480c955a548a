package agent

import (
	"iter"

	"github.com/dotcommander/recipe-finder/internal/proto"
)

// Normalize projects one raw message onto events.
//
// Within an assistant message all text events come before all tool events,
// each kind keeping its block order. Consumers rely on that order, so it is
// kept even though it loses the original interleaving.
func Normalize(msg proto.Message) []Event {
	var events []Event
	switch msg := msg.(type) {
	case proto.AssistantMessage:
		for _, block := range msg.Content {
			if text, ok := block.(proto.TextBlock); ok {
				events = append(events, TextEvent{Text: text.Text})
			}
		}
		for _, block := range msg.Content {
			if use, ok := block.(proto.ToolUseBlock); ok {
				events = append(events, ToolEvent{Name: use.Name})
			}
		}
		if msg.Usage != nil {
			in, out := msg.Usage.Counts()
			events = append(events, UsageEvent{Input: in, Output: out})
		}
	case proto.ResultMessage:
		if msg.Result != "" {
			events = append(events, ResultEvent{Text: msg.Result})
		}
	}
	return events
}

// Events lazily normalizes a raw message sequence.
//
// A DoneEvent follows once the input is exhausted. An upstream error is
// yielded unchanged and ends the sequence without a DoneEvent.
func Events(messages iter.Seq2[proto.Message, error]) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for msg, err := range messages {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, ev := range Normalize(msg) {
				if !yield(ev, nil) {
					return
				}
			}
		}
		yield(DoneEvent{}, nil)
	}
}

// Stream is a pull-based view over an event sequence.
type Stream struct {
	next    func() (Event, error, bool)
	stop    func()
	current Event
	err     error
	done    bool
}

// NewStream wraps an event sequence. Callers must Close the stream.
func NewStream(events iter.Seq2[Event, error]) *Stream {
	next, stop := iter.Pull2(events)
	return &Stream{next: next, stop: stop}
}

// Next advances to the next event. It returns false when the sequence ended
// or failed; check Err to tell them apart.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	ev, err, ok := s.next()
	if !ok {
		s.done = true
		return false
	}
	if err != nil {
		s.err = err
		s.done = true
		s.stop()
		return false
	}
	s.current = ev
	return true
}

// Current returns the event Next advanced to.
func (s *Stream) Current() Event { return s.current }

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error { return s.err }

// Close stops the underlying producer. It is safe to call more than once.
func (s *Stream) Close() error {
	s.done = true
	s.stop()
	return nil
}
