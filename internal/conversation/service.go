package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careline-ai/careline/pkg/logging"
)

// StartRequest opens a new conversation.
type StartRequest struct {
	PatientPhone string `json:"patient_phone,omitempty"`
	Channel      string `json:"channel,omitempty"`
}

// MessageRequest is one patient turn in an existing conversation.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// Response is the assistant's side of a turn.
type Response struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Steps          int    `json:"steps"`
	ToolCalls      int    `json:"tool_calls"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// Service is the conversation engine surface handlers talk to.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	EndConversation(ctx context.Context, conversationID string) error
}

const greeting = "Hi! I'm the CareLine appointment assistant. I can help you find a doctor, check availability, and book, move or cancel appointments. What can I do for you?"

// ProcessorConfig tunes the conversation processor.
type ProcessorConfig struct {
	// MaxHistoryMessages bounds the transcript kept between turns.
	MaxHistoryMessages int
}

// Processor runs turns directly against the workflow. Turns on the same
// session are strictly serialized: a second concurrent message is rejected
// with ErrSessionBusy instead of queueing behind the first.
type Processor struct {
	sessions SessionStore
	workflow *Workflow
	turnLog  *TurnLog
	logger   *logging.Logger
	cfg      ProcessorConfig

	locks sync.Map // session id -> *sync.Mutex
}

// NewProcessor wires the conversation processor. turnLog may be nil.
func NewProcessor(sessions SessionStore, workflow *Workflow, turnLog *TurnLog, logger *logging.Logger, cfg ProcessorConfig) *Processor {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if workflow == nil {
		panic("conversation: workflow cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxHistoryMessages <= 0 {
		cfg.MaxHistoryMessages = 40
	}
	return &Processor{
		sessions: sessions,
		workflow: workflow,
		turnLog:  turnLog,
		logger:   logger,
		cfg:      cfg,
	}
}

// StartConversation creates a session and returns the canned greeting. The
// model is not consulted until the patient says something.
func (p *Processor) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	sess := NewSession(req.PatientPhone, req.Channel)
	sess.Append(ChatMessage{Role: ChatRoleAssistant, Content: greeting})

	if err := p.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	p.logger.Info("conversation started", "session_id", sess.ID, "channel", sess.Channel)
	return &Response{ConversationID: sess.ID, Reply: greeting}, nil
}

// ProcessMessage runs one turn.
func (p *Processor) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	if req.ConversationID == "" || req.Text == "" {
		return nil, fmt.Errorf("conversation: conversation_id and text are required")
	}

	mu := p.sessionLock(req.ConversationID)
	if !mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer mu.Unlock()

	sess, err := p.sessions.Load(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	result, err := p.workflow.RunTurn(ctx, sess, req.Text)
	if err != nil {
		return nil, err
	}

	sess.Truncate(p.cfg.MaxHistoryMessages)
	if err := p.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	p.recordTurn(sess, req.Text, result)

	return &Response{
		ConversationID: sess.ID,
		Reply:          result.Reply,
		Steps:          result.Steps,
		ToolCalls:      result.ToolCalls,
		Degraded:       result.Degraded,
	}, nil
}

// EndConversation discards the session.
func (p *Processor) EndConversation(ctx context.Context, conversationID string) error {
	if err := p.sessions.Delete(ctx, conversationID); err != nil {
		return err
	}
	p.locks.Delete(conversationID)
	p.logger.Info("conversation ended", "session_id", conversationID)
	return nil
}

func (p *Processor) sessionLock(id string) *sync.Mutex {
	v, _ := p.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// recordTurn appends to the audit log. Failures are logged, never surfaced:
// the patient already has their reply.
func (p *Processor) recordTurn(sess *Session, userText string, result *TurnResult) {
	if p.turnLog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.turnLog.Record(ctx, TurnRecord{
		SessionID: sess.ID,
		Channel:   sess.Channel,
		UserText:  userText,
		Reply:     result.Reply,
		ToolCalls: result.ToolCalls,
	}); err != nil {
		p.logger.Error("failed to record conversation turn", "error", err, "session_id", sess.ID)
	}
}

var _ Service = (*Processor)(nil)
