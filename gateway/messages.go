package gateway

// AssignedMessage tells the caller its (possibly reused) session identity
type AssignedMessage struct {
	Event       string `json:"event"` // always "session:assigned"
	SessionID   string `json:"sessionId"`
	Reconnected bool   `json:"reconnected"`
}

// ClientMessage is a JSON control message from the client
type ClientMessage struct {
	Type    string   `json:"type"` // "start", "interrupt", "cancel", "end"
	CallIDs []string `json:"callIds,omitempty"`
}

// ServerEvent is a JSON event pushed to the client
type ServerEvent struct {
	Event       string   `json:"event"`
	Role        string   `json:"role,omitempty"`
	Text        string   `json:"text,omitempty"`
	CallIDs     []string `json:"callIds,omitempty"`
	Message     string   `json:"message,omitempty"`
	Recoverable bool     `json:"recoverable,omitempty"`
}
