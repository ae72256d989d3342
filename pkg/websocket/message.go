package websocket

import "time"

// Envelope wraps every frame sent to feed subscribers; Type lets the client
// dispatch without inspecting Payload.
type Envelope struct {
	Type      string      `json:"type"`
	BranchID  int64       `json:"branch_id,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}
