package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/voxform/voxform/log"
	"github.com/voxform/voxform/tools"
)

var logger = log.GetLogger("ai")

// RealtimeConfig holds provider connection settings
type RealtimeConfig struct {
	URL    string
	APIKey string
	Model  string
	Voice  string
}

// RealtimeDialer opens websocket streams against the realtime provider
type RealtimeDialer struct {
	cfg RealtimeConfig
}

// NewRealtimeDialer creates a dialer for the configured provider
func NewRealtimeDialer(cfg RealtimeConfig) *RealtimeDialer {
	return &RealtimeDialer{cfg: cfg}
}

// Dial opens a stream and starts its read loop
func (d *RealtimeDialer) Dial(ctx context.Context, opts DialOptions) (Stream, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	url := d.cfg.URL + "?model=" + d.cfg.Model
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial realtime provider: %w", err)
	}
	conn.SetReadLimit(1 << 22)

	s := &realtimeStream{
		conn:   conn,
		events: make(chan Event, 64),
	}

	if err := s.configure(ctx, d.cfg, opts); err != nil {
		conn.Close(websocket.StatusInternalError, "session setup failed")
		return nil, err
	}

	go s.readLoop(opts.SessionID)

	logger.Info().Str("sessionId", opts.SessionID).Msg("realtime stream opened")
	return s, nil
}

type realtimeStream struct {
	conn    *websocket.Conn
	events  chan Event
	closeMu sync.Mutex
	closed  bool
}

// providerMessage is the loose JSON envelope the provider speaks
type providerMessage struct {
	Type    string `json:"type"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	Transcript string          `json:"transcript"`
	Delta      string          `json:"delta"`
	CallID     string          `json:"call_id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

// configure sends the session setup message before any audio flows
func (s *realtimeStream) configure(ctx context.Context, cfg RealtimeConfig, opts DialOptions) error {
	setup := map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"voice":             cfg.Voice,
			"modalities":        []string{"audio", "text"},
			"instructions":      opts.Instructions,
			"input_audio_transcription": map[string]interface{}{
				"model": "whisper-1",
			},
		},
	}
	return wsjson.Write(ctx, s.conn, setup)
}

func (s *realtimeStream) Start(ctx context.Context) error {
	return wsjson.Write(ctx, s.conn, map[string]interface{}{"type": "response.create"})
}

func (s *realtimeStream) SendAudio(ctx context.Context, chunk []byte) error {
	msg := map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(chunk),
	}
	return wsjson.Write(ctx, s.conn, msg)
}

func (s *realtimeStream) SendToolResponse(ctx context.Context, resp tools.Response) error {
	output, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal tool response: %w", err)
	}
	msg := map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": resp.CallID,
			"output":  string(output),
		},
	}
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		return err
	}
	// Ask the provider to speak the follow-up turn
	return wsjson.Write(ctx, s.conn, map[string]interface{}{"type": "response.create"})
}

func (s *realtimeStream) Interrupt(ctx context.Context) error {
	return wsjson.Write(ctx, s.conn, map[string]interface{}{"type": "response.cancel"})
}

func (s *realtimeStream) Events() <-chan Event {
	return s.events
}

func (s *realtimeStream) Close(ctx context.Context) error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close(websocket.StatusNormalClosure, "session closed")
}

// readLoop translates provider messages into Events until the connection
// drops; it owns the events channel
func (s *realtimeStream) readLoop(sessionID string) {
	defer close(s.events)

	ctx := context.Background()
	for {
		var msg providerMessage
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			s.closeMu.Lock()
			wasClosed := s.closed
			s.closeMu.Unlock()
			if !wasClosed {
				logger.Warn().Err(err).Str("sessionId", sessionID).Msg("realtime stream read failed")
			}
			s.events <- Event{Type: EventClosed}
			return
		}

		switch msg.Type {
		case "session.created":
			s.events <- Event{Type: EventHandshakeAck, RemoteSessionID: msg.Session.ID}

		case "conversation.item.input_audio_transcription.completed":
			s.events <- Event{Type: EventTranscript, Role: "user", Text: msg.Transcript}

		case "response.audio_transcript.done":
			s.events <- Event{Type: EventTranscript, Role: "assistant", Text: msg.Transcript}

		case "response.audio.delta":
			audio, err := base64.StdEncoding.DecodeString(msg.Delta)
			if err != nil {
				logger.Warn().Err(err).Str("sessionId", sessionID).Msg("bad audio delta")
				continue
			}
			s.events <- Event{Type: EventAudio, Audio: audio}

		case "response.function_call_arguments.done":
			s.events <- Event{
				Type: EventToolCall,
				ToolCall: tools.Call{
					CallID:    msg.CallID,
					ToolName:  msg.Name,
					Arguments: msg.Arguments,
				},
			}

		case "error":
			s.events <- Event{Type: EventError, Err: fmt.Errorf("provider error: %s", msg.Error.Message)}
		}
	}
}
