// Package message provides the typed protocol messages exchanged with the
// agent process and the codec that maps them to and from wire frames.
package message

import (
	"encoding/json"
	"fmt"
)

// Block type constants.
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ContentBlock represents a block of content within a message.
type ContentBlock interface {
	BlockType() string
}

// Compile-time verification that all content block types implement ContentBlock.
var (
	_ ContentBlock = (*TextBlock)(nil)
	_ ContentBlock = (*ThinkingBlock)(nil)
	_ ContentBlock = (*ToolUseBlock)(nil)
	_ ContentBlock = (*ToolResultBlock)(nil)
	_ ContentBlock = (*UnknownBlock)(nil)
)

// TextBlock contains plain text content.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BlockType implements the ContentBlock interface.
func (b *TextBlock) BlockType() string { return BlockTypeText }

// ThinkingBlock contains the agent's reasoning trace.
type ThinkingBlock struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

// BlockType implements the ContentBlock interface.
func (b *ThinkingBlock) BlockType() string { return BlockTypeThinking }

// ToolUseBlock represents the agent invoking a tool. ID correlates the
// invocation with its eventual ToolResultBlock.
type ToolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// BlockType implements the ContentBlock interface.
func (b *ToolUseBlock) BlockType() string { return BlockTypeToolUse }

// ToolResultBlock contains the result of a tool execution.
//
//nolint:tagliatelle // wire format uses snake_case
type ToolResultBlock struct {
	Type      string         `json:"type"`
	ToolUseID string         `json:"tool_use_id"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// BlockType implements the ContentBlock interface.
func (b *ToolResultBlock) BlockType() string { return BlockTypeToolResult }

// UnmarshalJSON accepts both string and array content.
func (b *ToolResultBlock) UnmarshalJSON(data []byte) error {
	type Alias ToolResultBlock

	aux := &struct {
		Content json.RawMessage `json:"content,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(b),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	content, err := decodeFlexibleContent(aux.Content)
	if err != nil {
		return fmt.Errorf("tool_result content: %w", err)
	}

	b.Content = content

	return nil
}

// UnknownBlock preserves a content block of a type this package does not model.
type UnknownBlock struct {
	Type string
	Raw  json.RawMessage
}

// BlockType implements the ContentBlock interface.
func (b *UnknownBlock) BlockType() string { return b.Type }

// MarshalJSON re-emits the original block unchanged.
func (b *UnknownBlock) MarshalJSON() ([]byte, error) {
	return b.Raw, nil
}

// UnmarshalContentBlock unmarshals a single content block from JSON.
func UnmarshalContentBlock(data []byte) (ContentBlock, error) {
	var typeHolder struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &typeHolder); err != nil {
		return nil, err
	}

	var block ContentBlock

	switch typeHolder.Type {
	case BlockTypeText:
		block = &TextBlock{}
	case BlockTypeThinking:
		block = &ThinkingBlock{}
	case BlockTypeToolUse:
		block = &ToolUseBlock{}
	case BlockTypeToolResult:
		block = &ToolResultBlock{}
	case "":
		return nil, fmt.Errorf("content block missing 'type' field")
	default:
		return &UnknownBlock{Type: typeHolder.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	if err := json.Unmarshal(data, block); err != nil {
		return nil, fmt.Errorf("%s block: %w", typeHolder.Type, err)
	}

	return block, nil
}

func decodeBlocks(raw []json.RawMessage) ([]ContentBlock, error) {
	if raw == nil {
		return nil, nil
	}

	blocks := make([]ContentBlock, 0, len(raw))

	for i, item := range raw {
		block, err := UnmarshalContentBlock(item)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}

		blocks = append(blocks, block)
	}

	return blocks, nil
}

// decodeFlexibleContent decodes content that may be a bare string or an
// array of blocks. A string becomes a single TextBlock.
func decodeFlexibleContent(data json.RawMessage) ([]ContentBlock, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return []ContentBlock{&TextBlock{Type: BlockTypeText, Text: text}}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return decodeBlocks(raw)
}
