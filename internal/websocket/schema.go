package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect Action = "select"
	ActionGoTo   Action = "goto"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// RequestPayload carries every client action. Option is read for select,
// Index for goto.
type RequestPayload struct {
	Action Action `json:"action"`
	Option *int   `json:"option,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick   Event = "tick"
	EventState  Event = "state"
	EventGraded Event = "graded"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// TickResponse is pushed every second while the attempt is in progress.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

// StateResponse carries the attempt view after a change.
type StateResponse struct {
	Event   Event `json:"event"`
	Attempt any   `json:"attempt"`
}

// GradedResponse is sent once when the attempt finishes. Code is set when
// the score stands but the durable write is still pending.
type GradedResponse struct {
	Event  Event  `json:"event"`
	Result any    `json:"result"`
	Code   string `json:"code,omitempty"`
}

type ErrorResponse struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
