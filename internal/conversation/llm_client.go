package conversation

import (
	"context"
	"encoding/json"

	"github.com/careline-ai/careline/internal/tools"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleTool      = "tool"
)

// ToolUse is the model asking for one tool invocation.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult carries a tool's outcome back to the model. IsError marks
// recoverable failures the model is expected to react to.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ChatMessage is one entry in a session transcript. Exactly one of Content,
// ToolUse or ToolResult is meaningful depending on the role.
type ChatMessage struct {
	Role       string      `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Tools       []tools.Definition
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// LLMResponse is one model step: either a final text answer or a tool
// request, never both.
type LLMResponse struct {
	Text       string
	ToolUse    *ToolUse
	Usage      TokenUsage
	StopReason string
}

// LLMClient is a single reasoning step against one model provider.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
