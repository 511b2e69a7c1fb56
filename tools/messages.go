package tools

import "encoding/json"

// Call is a dispatched tool invocation
type Call struct {
	CallID    string          `json:"callId"`
	ToolName  string          `json:"toolName"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// WireError is the failure half of a tool response
type WireError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
}

// Response is the outcome of one tool call
type Response struct {
	CallID  string      `json:"callId"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *WireError  `json:"error,omitempty"`
}

// CancelCalls instructs cancellation of in-flight calls, e.g. on barge-in
type CancelCalls struct {
	CallIDs []string `json:"callIds"`
}

// SuccessResponse builds the success outcome for a call
func SuccessResponse(callID string, data interface{}) Response {
	return Response{CallID: callID, Success: true, Data: data}
}

// FailureResponse converts a ToolError into a wire response
func FailureResponse(callID string, terr *ToolError) Response {
	return Response{
		CallID:  callID,
		Success: false,
		Error: &WireError{
			Type:        terr.Type,
			Message:     terr.Message,
			Recoverable: terr.Recoverable,
		},
	}
}
