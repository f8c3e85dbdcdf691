package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, ttl, nil), mr
}

func TestSessionRoundTrip(t *testing.T) {
	store, _ := testRedisStore(t, time.Hour)
	ctx := context.Background()

	sess := NewSession("+15550100", ChannelText)
	sess.Append(
		ChatMessage{Role: ChatRoleUser, Content: "hi"},
		ChatMessage{Role: ChatRoleAssistant, ToolUse: &ToolUse{ID: "t1", Name: "lookup_slots", Input: []byte(`{"date":"2025-11-17"}`)}},
		ChatMessage{Role: ChatRoleTool, ToolResult: &ToolResult{ToolUseID: "t1", Name: "lookup_slots", Content: `{"slots":[]}`}},
	)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PatientPhone != "+15550100" || len(got.Messages) != 3 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Messages[1].ToolUse == nil || got.Messages[1].ToolUse.Name != "lookup_slots" {
		t.Fatalf("tool use lost in round trip: %+v", got.Messages[1])
	}
	if got.Messages[2].ToolResult == nil || got.Messages[2].ToolResult.ToolUseID != "t1" {
		t.Fatalf("tool result lost in round trip: %+v", got.Messages[2])
	}
}

func TestSessionExpires(t *testing.T) {
	store, mr := testRedisStore(t, time.Minute)
	ctx := context.Background()

	sess := NewSession("", ChannelText)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession after TTL, got %v", err)
	}
}

func TestLoadUnknownSession(t *testing.T) {
	store, _ := testRedisStore(t, time.Hour)

	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	store, _ := testRedisStore(t, time.Hour)
	ctx := context.Background()

	sess := NewSession("", ChannelText)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession after delete, got %v", err)
	}
}
