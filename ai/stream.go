// Package ai reaches the realtime conversational provider. The session
// core treats the stream as an opaque capability: audio and tool traffic
// go in, events come out.
package ai

import (
	"context"

	"github.com/voxform/voxform/tools"
)

// EventType classifies stream events
type EventType string

const (
	// EventHandshakeAck fires once when the provider acknowledges the session
	EventHandshakeAck EventType = "handshake_ack"
	// EventTranscript carries a finished transcript segment
	EventTranscript EventType = "transcript"
	// EventAudio carries synthesized audio for the client
	EventAudio EventType = "audio"
	// EventToolCall asks the application to run a tool
	EventToolCall EventType = "tool_call"
	// EventError carries a provider-side failure
	EventError EventType = "error"
	// EventClosed fires when the stream ends; the channel closes after it
	EventClosed EventType = "closed"
)

// Event is one message from the provider stream
type Event struct {
	Type            EventType
	RemoteSessionID string     // handshake_ack
	Role            string     // transcript: "user" or "assistant"
	Text            string     // transcript
	Audio           []byte     // audio
	ToolCall        tools.Call // tool_call
	Err             error      // error
}

// Stream is one live bidirectional provider connection
type Stream interface {
	// Start asks the provider to open the first assistant turn
	Start(ctx context.Context) error
	// SendAudio forwards one client audio chunk upstream
	SendAudio(ctx context.Context, chunk []byte) error
	// SendToolResponse returns a tool outcome to the provider
	SendToolResponse(ctx context.Context, resp tools.Response) error
	// Interrupt tells the provider to stop the in-flight assistant turn
	Interrupt(ctx context.Context) error
	// Events yields provider events until the stream closes
	Events() <-chan Event
	// Close tears the connection down; safe to call more than once
	Close(ctx context.Context) error
}

// DialOptions parameterize a new provider stream
type DialOptions struct {
	SessionID       string
	QuestionnaireID string
	Language        string
	Instructions    string
}

// Dialer opens provider streams
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Stream, error)
}
