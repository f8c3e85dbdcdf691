package conversation

import "testing"

func TestTruncateKeepsRecentMessages(t *testing.T) {
	sess := NewSession("", ChannelText)
	for i := 0; i < 10; i++ {
		sess.Append(ChatMessage{Role: ChatRoleUser, Content: "u"})
		sess.Append(ChatMessage{Role: ChatRoleAssistant, Content: "a"})
	}

	sess.Truncate(6)
	if len(sess.Messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(sess.Messages))
	}
	if sess.Messages[len(sess.Messages)-1].Role != ChatRoleAssistant {
		t.Fatalf("latest message lost")
	}
}

func TestTruncateNeverStartsWithToolResult(t *testing.T) {
	sess := NewSession("", ChannelText)
	sess.Append(
		ChatMessage{Role: ChatRoleUser, Content: "u1"},
		ChatMessage{Role: ChatRoleAssistant, ToolUse: &ToolUse{ID: "t1", Name: "x"}},
		ChatMessage{Role: ChatRoleTool, ToolResult: &ToolResult{ToolUseID: "t1"}},
		ChatMessage{Role: ChatRoleAssistant, Content: "a1"},
		ChatMessage{Role: ChatRoleUser, Content: "u2"},
		ChatMessage{Role: ChatRoleAssistant, Content: "a2"},
	)

	// A cut of 4 would land on the tool result; it must skip past it.
	sess.Truncate(4)
	if sess.Messages[0].Role == ChatRoleTool {
		t.Fatalf("transcript starts with orphaned tool result")
	}
	if len(sess.Messages) != 3 {
		t.Fatalf("expected 3 messages after adjusted cut, got %d", len(sess.Messages))
	}
}

func TestTruncateNoopWhenSmall(t *testing.T) {
	sess := NewSession("", ChannelText)
	sess.Append(ChatMessage{Role: ChatRoleUser, Content: "u"})

	sess.Truncate(40)
	if len(sess.Messages) != 1 {
		t.Fatalf("unexpected truncation: %d", len(sess.Messages))
	}
}
