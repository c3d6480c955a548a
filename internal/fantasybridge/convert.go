package fantasybridge

import (
	"errors"

	"charm.land/fantasy"

	"github.com/dotcommander/recipe-finder/internal/mcp"
	"github.com/dotcommander/recipe-finder/internal/proto"
)

// Prompt builds the fantasy prompt for the next turn: the system prompt, the
// user's request and the conversation so far.
func Prompt(system, prompt string, history []proto.Message) fantasy.Prompt {
	messages := make([]fantasy.Message, 0, 2+len(history))
	if system != "" {
		messages = append(messages, fantasy.Message{
			Role:    fantasy.MessageRoleSystem,
			Content: []fantasy.MessagePart{fantasy.TextPart{Text: system}},
		})
	}
	messages = append(messages, fantasy.Message{
		Role:    fantasy.MessageRoleUser,
		Content: []fantasy.MessagePart{fantasy.TextPart{Text: prompt}},
	})

	for _, msg := range history {
		switch msg := msg.(type) {
		case proto.AssistantMessage:
			parts := make([]fantasy.MessagePart, 0, len(msg.Content))
			for _, block := range msg.Content {
				switch block := block.(type) {
				case proto.TextBlock:
					if block.Text != "" {
						parts = append(parts, fantasy.TextPart{Text: block.Text})
					}
				case proto.ToolUseBlock:
					parts = append(parts, fantasy.ToolCallPart{
						ToolCallID:       block.ID,
						ToolName:         block.Name,
						Input:            string(block.Input),
						ProviderExecuted: false,
					})
				}
			}
			if len(parts) > 0 {
				messages = append(messages, fantasy.Message{
					Role:    fantasy.MessageRoleAssistant,
					Content: parts,
				})
			}
		case proto.UserMessage:
			parts := make([]fantasy.MessagePart, 0, len(msg.Content))
			for _, block := range msg.Content {
				result, ok := block.(proto.ToolResultBlock)
				if !ok {
					continue
				}
				var output fantasy.ToolResultOutputContent
				if result.IsError {
					output = fantasy.ToolResultOutputContentError{Error: errors.New(result.Content)}
				} else {
					output = fantasy.ToolResultOutputContentText{Text: result.Content}
				}
				parts = append(parts, fantasy.ToolResultPart{
					ToolCallID: result.ToolUseID,
					Output:     output,
				})
			}
			if len(parts) > 0 {
				messages = append(messages, fantasy.Message{
					Role:    fantasy.MessageRoleTool,
					Content: parts,
				})
			}
		}
	}

	return messages
}

// Tools converts server tools into function tools under their full names.
func Tools(tools []mcp.Tool) []fantasy.Tool {
	out := make([]fantasy.Tool, 0, len(tools))
	for _, tool := range tools {
		inputSchema := map[string]any{
			"type":       "object",
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema["required"] = tool.InputSchema.Required
		}
		out = append(out, fantasy.FunctionTool{
			Name:        tool.FullName(),
			Description: tool.Description,
			InputSchema: inputSchema,
		})
	}
	return out
}

// ToolChoice lets the model decide when tools are available.
func ToolChoice(tools []fantasy.Tool) *fantasy.ToolChoice {
	if len(tools) == 0 {
		return nil
	}
	choice := fantasy.ToolChoiceAuto
	return &choice
}
