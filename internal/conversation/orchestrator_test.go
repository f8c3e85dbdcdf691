package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/careline-ai/careline/pkg/logging"
)

type stubService struct {
	started  int
	messages int
}

func (s *stubService) StartConversation(_ context.Context, req StartRequest) (*Response, error) {
	s.started++
	return &Response{ConversationID: "conv-1", Reply: "hello"}, nil
}

func (s *stubService) ProcessMessage(_ context.Context, req MessageRequest) (*Response, error) {
	s.messages++
	return &Response{ConversationID: req.ConversationID, Reply: "echo: " + req.Text}, nil
}

func (s *stubService) EndConversation(_ context.Context, _ string) error {
	return nil
}

func TestOrchestratorRoundTrip(t *testing.T) {
	svc := &stubService{}
	o := NewOrchestrator(svc, NewMemoryQueue(8), logging.New("error"), OrchestratorConfig{Workers: 1})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start, err := o.StartConversation(ctx, StartRequest{})
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if start.ConversationID != "conv-1" {
		t.Fatalf("unexpected start response: %+v", start)
	}

	resp, err := o.ProcessMessage(ctx, MessageRequest{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Reply != "echo: hi" {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
	if svc.started != 1 || svc.messages != 1 {
		t.Fatalf("processor calls: started=%d messages=%d", svc.started, svc.messages)
	}
}

func TestOrchestratorShutdownStopsWorkers(t *testing.T) {
	o := NewOrchestrator(&stubService{}, NewMemoryQueue(8), logging.New("error"), OrchestratorConfig{Workers: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestDispatchFailsWhenQueueRejects(t *testing.T) {
	svc := &stubService{}
	o := NewOrchestrator(svc, failingQueue{}, logging.New("error"), OrchestratorConfig{Workers: 1})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	}()

	_, err := o.ProcessMessage(context.Background(), MessageRequest{ConversationID: "c", Text: "hi"})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

type failingQueue struct{}

func (failingQueue) Send(context.Context, string) error {
	return errors.New("broker down")
}

func (failingQueue) Receive(ctx context.Context, _ int, _ int) ([]queueMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (failingQueue) Delete(context.Context, string) error {
	return nil
}
