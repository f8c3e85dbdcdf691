package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// TurnRecord is one logged conversation turn.
type TurnRecord struct {
	SessionID string
	Channel   string
	UserText  string
	Reply     string
	ToolCalls int
}

type turnLogDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TurnLog is the append-only audit trail of conversation turns.
type TurnLog struct {
	db turnLogDB
}

// NewTurnLog creates the audit log writer.
func NewTurnLog(db turnLogDB) *TurnLog {
	if db == nil {
		panic("conversation: pgx pool required")
	}
	return &TurnLog{db: db}
}

// Record appends one turn.
func (l *TurnLog) Record(ctx context.Context, rec TurnRecord) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO conversation_logs (session_id, channel, user_message, bot_response, tool_calls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.SessionID, rec.Channel, rec.UserText, rec.Reply, rec.ToolCalls, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: record turn: %w", err)
	}
	return nil
}
