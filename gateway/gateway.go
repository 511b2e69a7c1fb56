// Package gateway accepts inbound WebSocket connections, decides between
// new session and resumption, bridges client audio to the realtime AI
// stream, and runs the disconnect sequence.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/voxform/voxform/ai"
	"github.com/voxform/voxform/auth"
	"github.com/voxform/voxform/log"
	"github.com/voxform/voxform/reconnect"
	"github.com/voxform/voxform/session"
	"github.com/voxform/voxform/storage"
	"github.com/voxform/voxform/tools"
)

var logger = log.GetLogger("gateway")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin restriction happens in the auth collaborator
	},
}

// CleanupRunner tears a session down after the disconnect debounce fires
type CleanupRunner interface {
	CleanupSession(ctx context.Context, id string) error
}

// Summarizer produces the post-session transcript summary
type Summarizer interface {
	SummarizeTranscript(ctx context.Context, turns []session.Turn) (string, error)
}

// Config holds gateway tuning
type Config struct {
	// DisconnectDebounce absorbs transport-level flapping before hard
	// cleanup. It is deliberately much shorter than the reconnection
	// window, which is the user-facing "you may resume" contract.
	DisconnectDebounce time.Duration
}

// Gateway wires one WebSocket connection per survey session
type Gateway struct {
	manager  *session.Manager
	ledger   *reconnect.Ledger
	tracker  *tools.Tracker
	executor *tools.Executor
	streams  *ai.StreamRegistry
	dialer   ai.Dialer
	authn    auth.Authenticator
	recorder *storage.Recorder
	cleanup  CleanupRunner
	summary  Summarizer
	cfg      Config

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// New creates a gateway
func New(manager *session.Manager, ledger *reconnect.Ledger, tracker *tools.Tracker,
	executor *tools.Executor, streams *ai.StreamRegistry, dialer ai.Dialer,
	authn auth.Authenticator, recorder *storage.Recorder, cleanup CleanupRunner,
	summary Summarizer, cfg Config) *Gateway {
	return &Gateway{
		manager:  manager,
		ledger:   ledger,
		tracker:  tracker,
		executor: executor,
		streams:  streams,
		dialer:   dialer,
		authn:    authn,
		recorder: recorder,
		cleanup:  cleanup,
		summary:  summary,
		cfg:      cfg,
		timers:   make(map[string]*time.Timer),
	}
}

// wsConn serializes writes to one client connection
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *wsConn) writeBinary(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

// HandleWS runs one connection from upgrade to disconnect
func (g *Gateway) HandleWS(c *gin.Context) {
	// Authentication runs before any session identity is assigned
	identity, err := g.authn.Authenticate(c.Request.Context(), auth.ConnContext{
		RemoteAddr: c.ClientIP(),
		Origin:     c.GetHeader("Origin"),
		Token:      bearerToken(c),
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	log.MarkHijacked(c)
	rawConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := &wsConn{conn: rawConn}
	defer rawConn.Close()

	meta := session.Metadata{
		QuestionnaireID: c.Query("questionnaireId"),
		Language:        c.Query("language"),
	}

	id, reconnected, err := g.resolveSession(c.Query("sessionId"), meta)
	if err != nil {
		logger.Error().Err(err).Msg("session setup failed")
		conn.writeJSON(ServerEvent{Event: "error", Message: "session setup failed"})
		return
	}

	logger.Info().
		Str("sessionId", id).
		Str("subject", identity.Subject).
		Bool("reconnected", reconnected).
		Msg("connection established")

	if err := conn.writeJSON(AssignedMessage{Event: "session:assigned", SessionID: id, Reconnected: reconnected}); err != nil {
		logger.Warn().Err(err).Str("sessionId", id).Msg("failed to send session assignment")
		return
	}

	stream, err := g.openStream(c.Request.Context(), id, meta)
	if err != nil {
		logger.Error().Err(err).Str("sessionId", id).Msg("failed to open AI stream")
		g.manager.Transition(id, session.StatusError)
		conn.writeJSON(ServerEvent{Event: "error", Message: "voice backend unavailable", Recoverable: true})
		return
	}

	streamDone := make(chan struct{})
	go g.streamLoop(conn, id, stream, streamDone)

	g.readLoop(conn, id, stream)

	// Disconnect sequence: finalize, preserve, and debounce-arm run
	// concurrently; none waits for another
	_, streamActive := g.streams.Get(id)
	go g.finalize(id)
	g.preserve(id, streamActive)
	g.armCleanup(id)

	<-streamDone
}

// bearerToken pulls the caller token from the Authorization header or the
// token query parameter (browsers cannot set headers on WebSocket dials)
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	return c.Query("token")
}

// resolveSession decides "resume existing" vs "mint fresh". A restorable
// prior id is reused and its pending debounced cleanup cancelled; anything
// else gets a brand-new identifier.
func (g *Gateway) resolveSession(prior string, meta session.Metadata) (string, bool, error) {
	if prior != "" && g.ledger.CanRestore(prior) {
		if p := g.ledger.Restore(prior); p != nil {
			g.cancelCleanup(prior)
			if snapshot, ok := p.State.(*session.Session); ok {
				if err := g.manager.RestoreSession(snapshot); err != nil {
					logger.Warn().Err(err).Str("sessionId", prior).Msg("restore failed, minting fresh session")
				} else {
					return prior, true, nil
				}
			}
		}
	}

	id := uuid.New().String()
	if _, err := g.manager.CreateSession(id, meta, session.ModeVoice); err != nil {
		return "", false, err
	}
	return id, false, nil
}

// openStream dials the provider and registers the stream for teardown
func (g *Gateway) openStream(ctx context.Context, id string, meta session.Metadata) (ai.Stream, error) {
	attempts := 1
	g.manager.UpdateSession(id, session.Update{
		Voice: &session.VoiceUpdate{AddConnectionAttempts: attempts},
	})

	stream, err := g.dialer.Dial(ctx, ai.DialOptions{
		SessionID:       id,
		QuestionnaireID: meta.QuestionnaireID,
		Language:        meta.Language,
	})
	if err != nil {
		return nil, err
	}

	g.streams.Register(id, stream)
	return stream, nil
}

// readLoop pumps client messages until the connection drops: binary frames
// are audio for the AI stream, text frames are JSON control messages
func (g *Gateway) readLoop(conn *wsConn, id string, stream ai.Stream) {
	ctx := context.Background()
	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn().Err(err).Str("sessionId", id).Msg("client connection dropped")
			} else {
				logger.Debug().Str("sessionId", id).Msg("client connection closed")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := stream.SendAudio(ctx, data); err != nil {
				logger.Warn().Err(err).Str("sessionId", id).Msg("audio forward failed")
				continue
			}
			g.manager.UpdateSession(id, session.Update{
				Voice: &session.VoiceUpdate{AddAudioChunksIn: 1},
			})

		case websocket.TextMessage:
			g.handleControl(conn, id, stream, data)
		}
	}
}

// handleControl processes one JSON control message from the client
func (g *Gateway) handleControl(conn *wsConn, id string, stream ai.Stream, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn().Err(err).Str("sessionId", id).Msg("bad control message")
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case "start":
		// Client is ready; ask the provider to speak the opening turn
		if err := stream.Start(ctx); err != nil {
			logger.Warn().Err(err).Str("sessionId", id).Msg("start forward failed")
		}
		g.manager.Touch(id)

	case "interrupt":
		// Barge-in: the user spoke over the assistant. Stop the current
		// assistant turn and drop its in-flight tool calls.
		cancelled := g.tracker.CancelForSession(id)
		if err := stream.Interrupt(ctx); err != nil {
			logger.Debug().Err(err).Str("sessionId", id).Msg("interrupt forward failed")
		}
		conn.writeJSON(ServerEvent{Event: "tool:cancelled", CallIDs: cancelled})
		g.manager.Touch(id)

	case "cancel":
		cancelled := g.tracker.Cancel(msg.CallIDs)
		conn.writeJSON(ServerEvent{Event: "tool:cancelled", CallIDs: cancelled})

	case "end":
		if _, err := g.manager.Transition(id, session.StatusCompleted); err != nil {
			logger.Warn().Err(err).Str("sessionId", id).Msg("end request rejected")
		}

	default:
		logger.Debug().Str("sessionId", id).Str("type", msg.Type).Msg("unknown control message")
	}
}

// streamLoop pumps AI stream events to the client and the session record
func (g *Gateway) streamLoop(conn *wsConn, id string, stream ai.Stream, done chan<- struct{}) {
	defer close(done)

	for ev := range stream.Events() {
		switch ev.Type {
		case ai.EventHandshakeAck:
			connected := true
			g.manager.UpdateSession(id, session.Update{
				Voice: &session.VoiceUpdate{
					RemoteSessionID: &ev.RemoteSessionID,
					Connected:       &connected,
				},
			})
			if _, err := g.manager.Transition(id, session.StatusActive); err != nil {
				logger.Debug().Err(err).Str("sessionId", id).Msg("activation skipped")
			}

		case ai.EventTranscript:
			if err := g.manager.AppendTurn(id, ev.Role, ev.Text); err != nil {
				logger.Warn().Err(err).Str("sessionId", id).Msg("failed to record turn")
			}
			conn.writeJSON(ServerEvent{Event: "transcript", Role: ev.Role, Text: ev.Text})

		case ai.EventAudio:
			if err := conn.writeBinary(ev.Audio); err != nil {
				logger.Debug().Err(err).Str("sessionId", id).Msg("audio write failed")
				continue
			}
			g.manager.UpdateSession(id, session.Update{
				Voice: &session.VoiceUpdate{AddAudioChunksOut: 1},
			})

		case ai.EventToolCall:
			go g.dispatchTool(id, stream, ev.ToolCall)

		case ai.EventError:
			logger.Warn().Err(ev.Err).Str("sessionId", id).Msg("AI stream error")
			conn.writeJSON(ServerEvent{Event: "error", Message: "voice backend hiccup, retrying", Recoverable: true})

		case ai.EventClosed:
			connected := false
			g.manager.UpdateSession(id, session.Update{
				Voice: &session.VoiceUpdate{Connected: &connected},
			})
		}
	}
}

// dispatchTool runs one tool call and returns the outcome to the provider.
// Failures become structured responses; one failing call never aborts the
// surrounding conversational turn.
func (g *Gateway) dispatchTool(id string, stream ai.Stream, call tools.Call) {
	start := time.Now()
	resp, err := g.executor.Execute(context.Background(), id, call)
	if err != nil {
		// Duplicate dispatch is a provider bug; drop it loudly
		logger.Error().Err(err).Str("sessionId", id).Str("callId", call.CallID).Msg("duplicate tool dispatch")
		return
	}

	if err := stream.SendToolResponse(context.Background(), resp); err != nil {
		logger.Warn().Err(err).Str("sessionId", id).Str("callId", call.CallID).Msg("tool response delivery failed")
	}

	g.manager.UpdateSession(id, session.Update{
		Voice: &session.VoiceUpdate{
			AddToolCalls:   1,
			AddToolLatency: time.Since(start),
		},
	})
}

// finalize is the best-effort flush of durable artifacts after disconnect.
// It may run against a session the debounced cleanup is about to delete;
// every write continues on failure.
func (g *Gateway) finalize(id string) {
	s, err := g.manager.GetSession(id)
	if err != nil {
		return
	}

	g.recorder.SaveSession(s, true)
	g.recorder.SaveResponses(s, true)
	g.recorder.SaveTranscript(s, true)

	if s.Status == session.StatusCompleted && g.summary != nil && len(s.Turns) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if text, err := g.summary.SummarizeTranscript(ctx, s.Turns); err == nil && text != "" {
			g.recorder.SaveSummary(id, text, true)
		}
	}
}

// preserve captures the session snapshot for a possible fast reconnect
func (g *Gateway) preserve(id string, streamActive bool) {
	s, err := g.manager.GetSession(id)
	if err != nil {
		return
	}
	g.ledger.Preserve(id, s, streamActive)
}

// armCleanup starts the disconnect debounce; if it fires, the session is
// torn down for good. A resumption cancels the timer first.
func (g *Gateway) armCleanup(id string) {
	g.timersMu.Lock()
	defer g.timersMu.Unlock()

	if t, ok := g.timers[id]; ok {
		t.Stop()
	}
	g.timers[id] = time.AfterFunc(g.cfg.DisconnectDebounce, func() {
		g.timersMu.Lock()
		delete(g.timers, id)
		g.timersMu.Unlock()

		if err := g.cleanup.CleanupSession(context.Background(), id); err != nil {
			logger.Error().Err(err).Str("sessionId", id).Msg("debounced cleanup failed")
		}
	})
}

// cancelCleanup stops a pending debounced cleanup, if armed
func (g *Gateway) cancelCleanup(id string) {
	g.timersMu.Lock()
	defer g.timersMu.Unlock()

	if t, ok := g.timers[id]; ok {
		t.Stop()
		delete(g.timers, id)
		logger.Debug().Str("sessionId", id).Msg("cancelled pending cleanup")
	}
}
