package websocket

import "github.com/pictalk/pictalk-backend/internal/engine"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect        Action = "select"
	ActionNext          Action = "next"
	ActionPrevious      Action = "previous"
	ActionPreviousLevel Action = "previous_level"
	ActionExit          Action = "exit"
	ActionRetake        Action = "retake"
	ActionPing          Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SelectRequest is sent when the subject taps a picture on the current screen.
type SelectRequest struct {
	Action  Action `json:"action"`
	ImageID int    `json:"image_id"`
}

// NavRequest covers the argument-free navigation actions: next, previous,
// previous_level, exit, retake.
type NavRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventNarrate Event = "narrate"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// StateResponse carries the cursor snapshot after every accepted action and
// after every timer-driven advance.
type StateResponse struct {
	Event  Event              `json:"event"`
	Cursor engine.CursorState `json:"cursor"`
}

// NarrateResponse asks the client to speak the prompt aloud.
type NarrateResponse struct {
	Event Event  `json:"event"`
	Text  string `json:"text"`
	Lang  string `json:"lang"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
