package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestExecutor(timeout time.Duration) (*Executor, *Registry, *Tracker) {
	registry := NewRegistry()
	tracker := NewTracker()
	return NewExecutor(registry, tracker, timeout), registry, tracker
}

func TestExecute_Success(t *testing.T) {
	e, registry, tracker := newTestExecutor(time.Second)
	registry.Register("echo", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		return map[string]string{"session": sessionID}, nil
	})

	resp, err := e.Execute(context.Background(), "s1", Call{CallID: "c1", ToolName: "echo"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp.Error)
	}
	if resp.CallID != "c1" {
		t.Errorf("wrong call id: %s", resp.CallID)
	}
	if tracker.IsPending("c1") {
		t.Error("call still tracked after completion")
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	e, _, tracker := newTestExecutor(time.Second)

	resp, err := e.Execute(context.Background(), "s1", Call{CallID: "c1", ToolName: "nope"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure response")
	}
	if resp.Error.Type != ErrorTypeNotFound {
		t.Errorf("expected %s, got %s", ErrorTypeNotFound, resp.Error.Type)
	}
	if resp.Error.Recoverable {
		t.Error("unknown tool must be non-recoverable")
	}
	if tracker.Count() != 0 {
		t.Error("unknown tool should never be tracked")
	}
}

func TestExecute_HandlerError(t *testing.T) {
	e, registry, _ := newTestExecutor(time.Second)
	registry.Register("boom", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		return nil, errors.New("db unavailable")
	})

	resp, err := e.Execute(context.Background(), "s1", Call{CallID: "c1", ToolName: "boom"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure response")
	}
	if resp.Error.Type != ErrorTypeExecution {
		t.Errorf("expected %s, got %s", ErrorTypeExecution, resp.Error.Type)
	}
	if !resp.Error.Recoverable {
		t.Error("execution errors are recoverable")
	}
}

func TestExecute_TimeoutIsBounded(t *testing.T) {
	e, registry, tracker := newTestExecutor(50 * time.Millisecond)
	registry.Register("slow", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	resp, err := e.Execute(context.Background(), "s1", Call{CallID: "c1", ToolName: "slow"})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.Success || resp.Error.Type != ErrorTypeTimeout {
		t.Fatalf("expected timeout response, got %+v", resp)
	}
	if !resp.Error.Recoverable {
		t.Error("timeouts are recoverable")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("timeout not bounded: took %v", elapsed)
	}
	if tracker.IsPending("c1") {
		t.Error("call still tracked after timeout")
	}
}

func TestExecute_CancelledMidFlight(t *testing.T) {
	e, registry, tracker := newTestExecutor(time.Second)
	started := make(chan struct{})
	registry.Register("hang", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := e.Execute(context.Background(), "s1", Call{CallID: "c1", ToolName: "hang"})
		done <- result{resp, err}
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler never started")
	}
	tracker.Cancel([]string{"c1"})

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("execute failed: %v", res.err)
		}
		if res.resp.Success || res.resp.Error.Type != ErrorTypeCancelled {
			t.Fatalf("expected cancelled response, got %+v", res.resp)
		}
		if res.resp.Error.Recoverable {
			t.Error("cancellation is non-recoverable")
		}
	case <-time.After(time.Second):
		t.Fatal("cancellation did not unblock execute")
	}

	if tracker.IsPending("c1") {
		t.Error("call still tracked after cancellation")
	}
}

func TestExecute_DuplicateCallID(t *testing.T) {
	e, registry, tracker := newTestExecutor(time.Second)
	registry.Register("echo", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		return nil, nil
	})

	tracker.Track("c1", "echo", "s1")
	_, err := e.Execute(context.Background(), "s1", Call{CallID: "c1", ToolName: "echo"})
	if !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("expected ErrAlreadyTracked, got %v", err)
	}
	// The pre-existing entry must survive the rejected execute
	if !tracker.IsPending("c1") {
		t.Error("original tracked call was settled by the duplicate")
	}
}

func TestRegisterSurveyTools_WiresHandlers(t *testing.T) {
	registry := NewRegistry()
	RegisterSurveyTools(registry, &fakeUpdater{})

	for _, name := range []string{"record_response", "skip_question", "end_survey"} {
		if _, ok := registry.Lookup(name); !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

type fakeUpdater struct{}

func (f *fakeUpdater) RecordResponse(sessionID, questionID, value string) (int, error) {
	return 1, nil
}
func (f *fakeUpdater) AdvanceQuestion(sessionID string) (int, error) { return 1, nil }
func (f *fakeUpdater) CompleteSurvey(sessionID string) error         { return nil }
