package proto

import "encoding/json"

// Result subtypes reported by the engine.
const (
	ResultSuccess       = "success"
	ResultErrorMaxTurns = "error_max_turns"
)

// Message is one step of agent execution as reported by the query engine.
//
// The set of implementations is closed: SystemMessage, AssistantMessage,
// UserMessage and ResultMessage.
type Message interface {
	isMessage()
}

// SystemMessage is emitted once, before the first turn.
type SystemMessage struct {
	SessionID string
	Model     string
	Tools     []string
}

// AssistantMessage is the model output for one turn.
type AssistantMessage struct {
	Content []ContentBlock
	Usage   *Usage
}

// UserMessage carries tool results back to the model.
type UserMessage struct {
	Content []ContentBlock
}

// ResultMessage is the terminal record of a query.
type ResultMessage struct {
	Subtype  string
	Result   string
	NumTurns int
	IsError  bool
}

func (SystemMessage) isMessage()    {}
func (AssistantMessage) isMessage() {}
func (UserMessage) isMessage()      {}
func (ResultMessage) isMessage()    {}

// ContentBlock is one part of an assistant or user message.
//
// Implementations: TextBlock, ToolUseBlock, ToolResultBlock.
type ContentBlock interface {
	isContentBlock()
}

// TextBlock is plain model text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is a tool invocation requested by the model.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock is the outcome of a ToolUseBlock.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (TextBlock) isContentBlock()       {}
func (ToolUseBlock) isContentBlock()    {}
func (ToolResultBlock) isContentBlock() {}

// Usage is a token usage report. Either count may be absent.
type Usage struct {
	InputTokens  *int64
	OutputTokens *int64
}

// NewUsage returns a Usage with both counts present.
func NewUsage(input, output int64) *Usage {
	return &Usage{InputTokens: &input, OutputTokens: &output}
}

// Counts returns the reported counts, treating absent ones as zero.
func (u Usage) Counts() (input, output int64) {
	if u.InputTokens != nil {
		input = *u.InputTokens
	}
	if u.OutputTokens != nil {
		output = *u.OutputTokens
	}
	return input, output
}
