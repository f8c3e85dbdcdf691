package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careline-ai/careline/pkg/logging"
)

// ErrOrchestratorClosed indicates the dispatcher no longer accepts work.
var ErrOrchestratorClosed = errors.New("conversation: orchestrator closed")

type jobKind string

const (
	jobKindStart   jobKind = "start"
	jobKindMessage jobKind = "message"
)

type jobPayload struct {
	ID      string         `json:"id"`
	Kind    jobKind        `json:"kind"`
	Start   StartRequest   `json:"start,omitempty"`
	Message MessageRequest `json:"message,omitempty"`
}

type jobResult struct {
	response *Response
	err      error
}

// OrchestratorConfig tunes the queue workers.
type OrchestratorConfig struct {
	Workers          int
	ReceiveWaitSecs  int
	ReceiveBatchSize int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.ReceiveWaitSecs <= 0 {
		c.ReceiveWaitSecs = 2
	}
	if c.ReceiveWaitSecs > 20 { // SQS long-poll limit
		c.ReceiveWaitSecs = 20
	}
	if c.ReceiveBatchSize <= 0 {
		c.ReceiveBatchSize = 5
	}
	if c.ReceiveBatchSize > 10 { // SQS batch limit
		c.ReceiveBatchSize = 10
	}
}

// Orchestrator routes turns through a queue before invoking the processor,
// so the HTTP tier and the reasoning workers can scale independently and
// development can swap SQS for the in-memory queue. Callers still get a
// synchronous answer: each enqueued job carries an id the worker reports
// back on.
type Orchestrator struct {
	processor Service
	queue     queueClient
	logger    *logging.Logger
	cfg       OrchestratorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // job id -> chan jobResult
}

// NewOrchestrator starts the worker goroutines immediately.
func NewOrchestrator(processor Service, queue queueClient, logger *logging.Logger, cfg OrchestratorConfig) *Orchestrator {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		processor: processor,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.runWorker(i + 1)
	}
	return o
}

func (o *Orchestrator) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	return o.dispatch(ctx, jobPayload{Kind: jobKindStart, Start: req})
}

func (o *Orchestrator) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	return o.dispatch(ctx, jobPayload{Kind: jobKindMessage, Message: req})
}

// EndConversation is cheap and bypasses the queue.
func (o *Orchestrator) EndConversation(ctx context.Context, conversationID string) error {
	return o.processor.EndConversation(ctx, conversationID)
}

// Shutdown stops the workers and fails any waiting callers.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	o.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan jobResult); ok {
			select {
			case ch <- jobResult{err: ErrOrchestratorClosed}:
			default:
			}
		}
		o.pending.Delete(key)
		return true
	})
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, payload jobPayload) (*Response, error) {
	payload.ID = uuid.NewString()
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to encode job: %w", err)
	}

	resultCh := make(chan jobResult, 1)
	o.pending.Store(payload.ID, resultCh)
	defer o.pending.Delete(payload.ID)

	if err := o.queue.Send(ctx, string(body)); err != nil {
		return nil, fmt.Errorf("%w: enqueue failed: %v", ErrServiceUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.response, res.err
	}
}

func (o *Orchestrator) runWorker(workerID int) {
	defer o.wg.Done()
	o.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-o.ctx.Done():
			o.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := o.queue.Receive(o.ctx, o.cfg.ReceiveBatchSize, o.cfg.ReceiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			o.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			o.handleJob(msg)
		}
	}
}

func (o *Orchestrator) handleJob(msg queueMessage) {
	defer o.deleteJob(msg.ReceiptHandle)

	var payload jobPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		o.logger.Error("failed to decode conversation job", "error", err)
		return
	}

	var (
		resp *Response
		err  error
	)
	switch payload.Kind {
	case jobKindStart:
		resp, err = o.processor.StartConversation(o.ctx, payload.Start)
	case jobKindMessage:
		resp, err = o.processor.ProcessMessage(o.ctx, payload.Message)
	default:
		err = fmt.Errorf("conversation: unknown job kind %q", payload.Kind)
	}

	o.deliver(payload.ID, resp, err)
}

func (o *Orchestrator) deleteJob(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.queue.Delete(ctx, receiptHandle); err != nil {
		o.logger.Error("failed to delete conversation job", "error", err)
	}
}

func (o *Orchestrator) deliver(jobID string, resp *Response, err error) {
	value, ok := o.pending.Load(jobID)
	if !ok {
		o.logger.Debug("no waiting caller for conversation job", "job_id", jobID)
		return
	}
	ch, ok := value.(chan jobResult)
	if !ok {
		o.pending.Delete(jobID)
		return
	}
	select {
	case ch <- jobResult{response: resp, err: err}:
	default:
	}
}

var _ Service = (*Orchestrator)(nil)
