package realtime

import (
	"time"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

// EventType names an event on the bus. It doubles as the SSE "event:" field.
type EventType string

const (
	EventHello          EventType = "hello"
	EventPing           EventType = "ping"
	EventChatUpdated    EventType = "chat_updated"
	EventMessageCreated EventType = "message_created"
	EventChatRead       EventType = "chat_read"
	EventChatPinned     EventType = "chat_pinned"
	EventChatFinished   EventType = "chat_finished"
)

// EventMessage is the minimal message payload that lets a client render a
// new message without refetching.
type EventMessage struct {
	ID        string           `json:"id"`
	ChatID    string           `json:"chatId"`
	Direction domain.Direction `json:"direction"`
	Text      string           `json:"text"`
	SentAt    string           `json:"sentAt"`
	IsRead    bool             `json:"isRead"`
}

// Event is a change notification. Seq and TS are assigned by the bus.
type Event struct {
	Seq         int64            `json:"seq"`
	Type        EventType        `json:"type"`
	TS          int64            `json:"ts"`
	ChatID      string           `json:"chatId,omitempty"`
	AvitoChatID string           `json:"avitoChatId,omitempty"`
	MessageID   string           `json:"messageId,omitempty"`
	Direction   domain.Direction `json:"direction,omitempty"`
	Message     *EventMessage    `json:"message,omitempty"`
}

// ChatEvent builds an event scoped to chat c.
func ChatEvent(t EventType, c *domain.Chat) Event {
	e := Event{Type: t}
	if c != nil {
		e.ChatID = c.ID
		e.AvitoChatID = c.ExternalID()
	}
	return e
}

// MessageCreated builds a message_created event carrying m.
func MessageCreated(c *domain.Chat, m *domain.Message) Event {
	e := ChatEvent(EventMessageCreated, c)
	if m == nil {
		return e
	}
	e.MessageID = m.ID
	e.Direction = m.Direction
	e.Message = &EventMessage{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Direction: m.Direction,
		Text:      m.Text,
		SentAt:    m.SentAt.UTC().Format(time.RFC3339Nano),
		IsRead:    m.IsRead,
	}
	return e
}
