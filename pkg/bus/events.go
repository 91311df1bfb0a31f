package bus

import (
	"context"
	"time"
)

type EventType string

const (
	EventConnectionState   EventType = "connection_state"
	EventCommandDispatched EventType = "command_dispatched"
	EventCommandCompleted  EventType = "command_completed"
	EventCommandFailed     EventType = "command_failed"
	EventCommandNotFound   EventType = "command_not_found"
	EventImplicitTrigger   EventType = "implicit_trigger"
	EventGroupParticipants EventType = "group_participants"
)

// Event is one observable runtime transition.
type Event struct {
	Type      EventType         `json:"type"`
	At        time.Time         `json:"at"`
	Channel   string            `json:"channel,omitempty"`
	ChatID    string            `json:"chat_id,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
	Command   string            `json:"command,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// PublishEvent delivers an event to every subscriber without blocking; a
// full subscriber misses it. A nil bus accepts and drops events.
func (mb *MessageBus) PublishEvent(ctx context.Context, event Event) bool {
	if mb == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed() {
		return false
	}

	for _, ch := range mb.subs {
		select {
		case ch <- event:
		default:
			mb.dropped.Add(1)
		}
	}

	return true
}
