package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/careline-ai/careline/internal/observability/metrics"
	"github.com/careline-ai/careline/internal/tools"
	"github.com/careline-ai/careline/pkg/logging"
)

// Degraded replies sent when the model cannot finish a turn normally. The
// session stays usable either way.
const (
	replyReasoningTimeout = "I'm sorry, I'm having trouble thinking that through right now. Could you try asking again in a moment?"
	replyStepBudget       = "I'm sorry, I wasn't able to finish that request. Could you rephrase it, or break it into smaller steps?"
)

// WorkflowConfig tunes the reasoning loop.
type WorkflowConfig struct {
	// Model is the provider-specific model id.
	Model string
	// MaxSteps bounds model calls per turn; each tool round trip costs one.
	MaxSteps int
	// ReasoningTimeout bounds one model call.
	ReasoningTimeout time.Duration
	// ReasoningRetries is how many extra attempts a timed-out model call
	// gets before the turn degrades.
	ReasoningRetries int
	MaxTokens        int32
	Temperature      float32
}

func (c *WorkflowConfig) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 8
	}
	if c.ReasoningTimeout <= 0 {
		c.ReasoningTimeout = 30 * time.Second
	}
	if c.ReasoningRetries < 0 {
		c.ReasoningRetries = 0
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Reply     string
	Steps     int
	ToolCalls int
	// Degraded marks replies produced without the model finishing its
	// plan: a reasoning timeout or an exhausted step budget.
	Degraded bool
}

// Workflow runs the bounded reason-act loop for one turn: the model either
// answers or requests a tool, tool results feed the next step, and the step
// budget caps the loop.
type Workflow struct {
	llm      LLMClient
	registry *tools.Registry
	logger   *logging.Logger
	metrics  *metrics.ConversationMetrics
	cfg      WorkflowConfig
}

// NewWorkflow wires the reasoning loop.
func NewWorkflow(llm LLMClient, registry *tools.Registry, logger *logging.Logger, m *metrics.ConversationMetrics, cfg WorkflowConfig) *Workflow {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if registry == nil {
		panic("conversation: tool registry cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Workflow{llm: llm, registry: registry, logger: logger, metrics: m, cfg: cfg}
}

// RunTurn appends the user message to the session and drives the loop until
// the model produces a final reply or the turn degrades. The session
// transcript is mutated in place; the caller persists it.
func (w *Workflow) RunTurn(ctx context.Context, sess *Session, userText string) (*TurnResult, error) {
	sess.Append(ChatMessage{Role: ChatRoleUser, Content: userText})

	result := &TurnResult{}
	for result.Steps < w.cfg.MaxSteps {
		result.Steps++

		resp, err := w.reason(ctx, sess)
		if err != nil {
			if errors.Is(err, ErrReasoningTimeout) {
				w.logger.Warn("turn degraded by reasoning timeout",
					"session_id", sess.ID, "step", result.Steps)
				w.metrics.ObserveTurn("reasoning_timeout", result.Steps)
				result.Reply = replyReasoningTimeout
				result.Degraded = true
				sess.Append(ChatMessage{Role: ChatRoleAssistant, Content: result.Reply})
				return result, nil
			}
			w.metrics.ObserveTurn("error", result.Steps)
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}

		if resp.ToolUse == nil {
			sess.Append(ChatMessage{Role: ChatRoleAssistant, Content: resp.Text})
			w.metrics.ObserveTurn("ok", result.Steps)
			result.Reply = resp.Text
			return result, nil
		}

		result.ToolCalls++
		sess.Append(ChatMessage{Role: ChatRoleAssistant, Content: resp.Text, ToolUse: resp.ToolUse})
		sess.Append(w.executeTool(ctx, sess.ID, resp.ToolUse))
	}

	w.logger.Warn("turn degraded by step budget",
		"session_id", sess.ID, "steps", result.Steps, "tool_calls", result.ToolCalls)
	w.metrics.ObserveTurn("step_budget", result.Steps)
	result.Reply = replyStepBudget
	result.Degraded = true
	sess.Append(ChatMessage{Role: ChatRoleAssistant, Content: result.Reply})
	return result, nil
}

// reason performs one model call under the reasoning deadline, retrying
// timeouts a configured number of times.
func (w *Workflow) reason(ctx context.Context, sess *Session) (LLMResponse, error) {
	req := LLMRequest{
		Model:       w.cfg.Model,
		System:      []string{SystemPrompt(time.Now().UTC())},
		Messages:    sess.Messages,
		Tools:       w.registry.Definitions(),
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: w.cfg.Temperature,
	}

	var lastErr error
	for attempt := 0; attempt <= w.cfg.ReasoningRetries; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, w.cfg.ReasoningTimeout)
		started := time.Now()
		resp, err := w.llm.Complete(stepCtx, req)
		cancel()
		w.metrics.ObserveReasoningLatency(time.Since(started).Seconds())

		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return LLMResponse{}, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return LLMResponse{}, err
		}
		lastErr = err
		w.logger.Warn("reasoning step timed out", "session_id", sess.ID, "attempt", attempt+1)
	}
	return LLMResponse{}, fmt.Errorf("%w: %v", ErrReasoningTimeout, lastErr)
}

// executeTool runs one tool call and renders the outcome as a transcript
// message. Tool failures, including unknown names and invalid arguments, are
// fed back to the model as error results rather than aborting the turn.
func (w *Workflow) executeTool(ctx context.Context, sessionID string, use *ToolUse) ChatMessage {
	result := &ToolResult{ToolUseID: use.ID, Name: use.Name}

	out, err := w.registry.Execute(ctx, use.Name, use.Input)
	switch {
	case err == nil:
		data, merr := json.Marshal(out)
		if merr != nil {
			result.Content = fmt.Sprintf("tool %s succeeded but its result could not be encoded", use.Name)
			result.IsError = true
		} else {
			result.Content = string(data)
		}
	case errors.Is(err, tools.ErrUnknownTool):
		w.logger.Warn("model requested unknown tool", "session_id", sessionID, "tool", use.Name)
		result.Content = fmt.Sprintf("there is no tool named %q; use one of the provided tools", use.Name)
		result.IsError = true
	default:
		result.Content = err.Error()
		result.IsError = true
	}

	outcome := "ok"
	if result.IsError {
		outcome = "error"
	}
	w.metrics.ObserveToolCall(use.Name, outcome)
	w.logger.Info("tool executed", "session_id", sessionID, "tool", use.Name, "outcome", outcome)

	return ChatMessage{Role: ChatRoleTool, ToolResult: result}
}
