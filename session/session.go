package session

import (
	"time"
)

// Mode defines how a session interacts with the survey
type Mode string

const (
	// ModePlain is a text-driven session with no realtime AI stream
	ModePlain Mode = "plain"
	// ModeVoice is a session bridged to a realtime conversational AI stream
	ModeVoice Mode = "voice"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
	StatusAbandoned  Status = "abandoned"
	StatusError      Status = "error"
)

// Terminal reports whether a status permits no further transitions
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusTerminated, StatusAbandoned, StatusError:
		return true
	}
	return false
}

// Response is one recorded answer, keyed by question id
type Response struct {
	QuestionID string    `json:"questionId"`
	Value      string    `json:"value"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Turn is one conversational exchange entry
type Turn struct {
	Role string    `json:"role"` // "user" or "assistant"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// VoiceState carries the extra counters and flags a voice-backed session
// accumulates while bridged to the realtime AI stream. It is present only
// on sessions created with ModeVoice.
type VoiceState struct {
	RemoteSessionID    string        `json:"remoteSessionId,omitempty"`
	Connected          bool          `json:"connected"`
	ConnectionAttempts int           `json:"connectionAttempts"`
	TurnCount          int           `json:"turnCount"`
	AudioChunksIn      int           `json:"audioChunksIn"`
	AudioChunksOut     int           `json:"audioChunksOut"`
	ToolCalls          int           `json:"toolCalls"`
	ToolLatency        time.Duration `json:"toolLatencyNs"`
}

// Metadata classifies a session at creation time
type Metadata struct {
	QuestionnaireID string `json:"questionnaireId"`
	Language        string `json:"language,omitempty"`
}

// Session is the canonical record of one ongoing survey interaction.
// The copy in the Store is the single source of truth; every value that
// crosses the Store boundary is produced by Clone so callers never alias
// stored state.
type Session struct {
	ID              string      `json:"id"`
	QuestionnaireID string      `json:"questionnaireId"`
	Language        string      `json:"language,omitempty"`
	CurrentIndex    int         `json:"currentIndex"`
	Responses       []Response  `json:"responses"`
	Turns           []Turn      `json:"turns"`
	StartTime       time.Time   `json:"startTime"`
	LastActivity    time.Time   `json:"lastActivity"`
	Status          Status      `json:"status"`
	Mode            Mode        `json:"mode"`
	Voice           *VoiceState `json:"voice,omitempty"`
}

// IsVoice reports whether the session is bridged to a realtime AI stream
func (s *Session) IsVoice() bool {
	return s.Mode == ModeVoice
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Responses != nil {
		c.Responses = make([]Response, len(s.Responses))
		copy(c.Responses, s.Responses)
	}
	if s.Turns != nil {
		c.Turns = make([]Turn, len(s.Turns))
		copy(c.Turns, s.Turns)
	}
	if s.Voice != nil {
		v := *s.Voice
		c.Voice = &v
	}
	return &c
}

// ResponseFor returns the recorded response for a question id, if any
func (s *Session) ResponseFor(questionID string) (Response, bool) {
	for _, r := range s.Responses {
		if r.QuestionID == questionID {
			return r, true
		}
	}
	return Response{}, false
}

// IdleFor returns how long the session has been without activity
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}
