package fantasybridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/recipe-finder/internal/proto"
)

// Step accumulates the stream parts of one model turn into an assistant
// message.
type Step struct {
	blocks      []proto.ContentBlock
	text        strings.Builder
	inText      bool
	toolSeen    map[string]struct{}
	usage       *proto.Usage
	err         error
	warningSeen map[string]struct{}
	warnings    []string
}

// NewStep returns an empty step.
func NewStep() *Step {
	return &Step{
		toolSeen:    map[string]struct{}{},
		warningSeen: map[string]struct{}{},
	}
}

// Consume folds one stream part into the step.
func (s *Step) Consume(part fantasy.StreamPart) {
	switch part.Type {
	case fantasy.StreamPartTypeTextStart:
		s.flushText()
		s.inText = true
	case fantasy.StreamPartTypeTextDelta:
		s.inText = true
		s.text.WriteString(part.Delta)
	case fantasy.StreamPartTypeTextEnd:
		s.flushText()
	case fantasy.StreamPartTypeToolCall:
		if part.ProviderExecuted {
			return
		}
		if _, exists := s.toolSeen[part.ID]; exists {
			return
		}
		s.toolSeen[part.ID] = struct{}{}
		s.flushText()
		input := json.RawMessage(part.ToolCallInput)
		if len(strings.TrimSpace(part.ToolCallInput)) == 0 {
			input = json.RawMessage("{}")
		}
		s.blocks = append(s.blocks, proto.ToolUseBlock{
			ID:    part.ID,
			Name:  part.ToolCallName,
			Input: input,
		})
	case fantasy.StreamPartTypeFinish:
		s.flushText()
		s.usage = proto.NewUsage(part.Usage.InputTokens, part.Usage.OutputTokens)
	case fantasy.StreamPartTypeError:
		s.err = part.Error
	case fantasy.StreamPartTypeWarnings:
		for _, warning := range part.Warnings {
			text := strings.TrimSpace(warning.Message)
			if text == "" {
				text = strings.TrimSpace(warning.Details)
			}
			if text == "" && warning.Setting != "" {
				text = fmt.Sprintf("unsupported setting: %s", warning.Setting)
			}
			if text == "" {
				text = "provider warning"
			}
			key := string(warning.Type) + ":" + text
			if _, exists := s.warningSeen[key]; exists {
				continue
			}
			s.warningSeen[key] = struct{}{}
			s.warnings = append(s.warnings, text)
		}
	case fantasy.StreamPartTypeReasoningStart,
		fantasy.StreamPartTypeReasoningDelta,
		fantasy.StreamPartTypeReasoningEnd,
		fantasy.StreamPartTypeToolInputStart,
		fantasy.StreamPartTypeToolInputDelta,
		fantasy.StreamPartTypeToolInputEnd,
		fantasy.StreamPartTypeToolResult,
		fantasy.StreamPartTypeSource:
		return
	default:
		return
	}
}

func (s *Step) flushText() {
	if !s.inText {
		return
	}
	s.blocks = append(s.blocks, proto.TextBlock{Text: s.text.String()})
	s.text.Reset()
	s.inText = false
}

// Err returns the error part the provider reported, if any.
func (s *Step) Err() error { return s.err }

// Message returns the assistant message for the turn so far.
func (s *Step) Message() proto.AssistantMessage {
	s.flushText()
	return proto.AssistantMessage{
		Content: append([]proto.ContentBlock(nil), s.blocks...),
		Usage:   s.usage,
	}
}

// ToolCalls returns the tool invocations of the turn, in order.
func (s *Step) ToolCalls() []proto.ToolUseBlock {
	var calls []proto.ToolUseBlock
	for _, b := range s.blocks {
		if use, ok := b.(proto.ToolUseBlock); ok {
			calls = append(calls, use)
		}
	}
	return calls
}

// Text returns the concatenated text of the turn.
func (s *Step) Text() string {
	s.flushText()
	var sb strings.Builder
	for _, b := range s.blocks {
		if text, ok := b.(proto.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// DrainWarnings returns warnings not yet drained, deduplicated.
func (s *Step) DrainWarnings() []string {
	warnings := s.warnings
	s.warnings = nil
	return warnings
}
