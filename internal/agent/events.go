package agent

import (
	"context"
	"encoding/json"
)

// EventType enumerates the normalized event vocabulary both execution
// strategies emit. The streaming transport stays strategy-agnostic by
// consuming only these events.
type EventType string

const (
	EventToken          EventType = "token"
	EventToolCallStart  EventType = "tool_call_start"
	EventToolCallResult EventType = "tool_call_result"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"
)

// Event is one item in the execution stream. Exactly one finish or error
// event terminates every execution that is not cancelled by the client.
type Event struct {
	Type       EventType       `json:"type"`
	Token      string          `json:"token,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`
	Answer     string          `json:"answer,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// emitter serializes event emission and enforces the single-terminal-event
// contract. After the context is cancelled or a terminal event is sent, all
// further emissions are dropped.
type emitter struct {
	ctx        context.Context
	ch         chan<- Event
	terminated bool
}

func (e *emitter) emit(ev Event) bool {
	if e.terminated {
		return false
	}
	// Checked before the send so a cancelled context always wins over a
	// buffered channel with free capacity.
	select {
	case <-e.ctx.Done():
		e.terminated = true
		return false
	default:
	}
	if ev.Type == EventFinish || ev.Type == EventError {
		e.terminated = true
	}
	select {
	case e.ch <- ev:
		return true
	case <-e.ctx.Done():
		e.terminated = true
		return false
	}
}

func (e *emitter) token(t string) bool {
	return e.emit(Event{Type: EventToken, Token: t})
}

func (e *emitter) finish(answer string) bool {
	return e.emit(Event{Type: EventFinish, Answer: answer})
}

func (e *emitter) fail(message string) bool {
	return e.emit(Event{Type: EventError, Error: message})
}
