package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler executes one tool call for a session. The context is cancelled
// on timeout or explicit cancellation; handlers should observe it at their
// own blocking points.
type Handler func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error)

// Registry maps tool names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler; re-registering a name replaces the handler
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
}

// Lookup returns the handler for a tool name
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// SessionUpdater is the slice of the session manager the survey tools need
type SessionUpdater interface {
	RecordResponse(sessionID, questionID, value string) (nextIndex int, err error)
	AdvanceQuestion(sessionID string) (nextIndex int, err error)
	CompleteSurvey(sessionID string) error
}

type recordArgs struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

// RegisterSurveyTools wires the built-in survey tools the AI stream may
// invoke during a conversational turn
func RegisterSurveyTools(r *Registry, u SessionUpdater) {
	r.Register("record_response", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		var a recordArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("parse record_response args: %w", err)
		}
		if a.QuestionID == "" {
			return nil, fmt.Errorf("record_response requires questionId")
		}
		next, err := u.RecordResponse(sessionID, a.QuestionID, a.Value)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"nextIndex": next}, nil
	})

	r.Register("skip_question", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		next, err := u.AdvanceQuestion(sessionID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"nextIndex": next}, nil
	})

	r.Register("end_survey", func(ctx context.Context, sessionID string, args json.RawMessage) (interface{}, error) {
		if err := u.CompleteSurvey(sessionID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"ended": true}, nil
	})
}
