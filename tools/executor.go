package tools

import (
	"context"
	"time"
)

// Executor runs tool calls as the race of {handler completes, timeout
// elapses, cancellation signaled}. Exactly one outcome is produced and
// the tracked entry is settled exactly once regardless of which arm wins.
type Executor struct {
	registry *Registry
	tracker  *Tracker
	timeout  time.Duration
}

// NewExecutor creates an executor with a default per-call timeout
func NewExecutor(registry *Registry, tracker *Tracker, timeout time.Duration) *Executor {
	return &Executor{
		registry: registry,
		tracker:  tracker,
		timeout:  timeout,
	}
}

type handlerResult struct {
	data interface{}
	err  error
}

// Execute dispatches one tool call and returns its structured outcome.
// All failures are converted into response messages; the only Go error is
// a duplicate call id, which is a caller bug.
func (e *Executor) Execute(ctx context.Context, sessionID string, call Call) (Response, error) {
	handler, ok := e.registry.Lookup(call.ToolName)
	if !ok {
		return FailureResponse(call.CallID, NotFoundError(call.ToolName)), nil
	}

	p, err := e.tracker.Track(call.CallID, call.ToolName, sessionID)
	if err != nil {
		return Response{}, err
	}
	defer e.tracker.Settle(call.CallID)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// The handler goroutine outlives a lost race only until it next
	// observes its context; its result is dropped either way.
	resultCh := make(chan handlerResult, 1)
	go func() {
		data, err := handler(mergedContext(runCtx, p.Context()), sessionID, call.Arguments)
		resultCh <- handlerResult{data: data, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			logger.Warn().Err(res.err).Str("tool", call.ToolName).Str("callId", call.CallID).Msg("tool execution failed")
			return FailureResponse(call.CallID, ExecutionError(call.ToolName, res.err)), nil
		}
		return SuccessResponse(call.CallID, res.data), nil

	case <-p.Context().Done():
		logger.Info().Str("tool", call.ToolName).Str("callId", call.CallID).Msg("tool call cancelled")
		return FailureResponse(call.CallID, CancelledError(call.ToolName)), nil

	case <-runCtx.Done():
		logger.Warn().Str("tool", call.ToolName).Str("callId", call.CallID).Dur("timeout", e.timeout).Msg("tool call timed out")
		return FailureResponse(call.CallID, TimeoutError(call.ToolName)), nil
	}
}

// mergedContext cancels when either parent does, so handlers observe both
// the timeout and explicit cancellation
func mergedContext(a, b context.Context) context.Context {
	ctx, cancel := context.WithCancel(a)
	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
