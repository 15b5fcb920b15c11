package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is the only message shape monitors send.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventConnected Event = "connected"
	EventResult    Event = "result"
	EventPing      Event = "ping"
	EventPong      Event = "pong"
)

// ConnectedResponse is sent once after the subscription is live.
type ConnectedResponse struct {
	Event   Event  `json:"event"`
	Channel string `json:"channel"`
}

// ResultResponse carries one recorded result as published by the exam service.
type ResultResponse struct {
	Event  Event           `json:"event"`
	Result json.RawMessage `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PingResponse doubles as keep-alive and as the reply to ActionPing.
type PingResponse struct {
	Event Event `json:"event"`
}
