// Package domain defines the persistence models for marketplace chats,
// their messages, the webhook audit log, and the integration singletons.
// These types are mapped with GORM and shared by the repository, service,
// and transport layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ChatStatus selects who answers a chat: the automated responder or a human.
type ChatStatus string

const (
	StatusBot     ChatStatus = "BOT"
	StatusManager ChatStatus = "MANAGER"
)

// Valid reports whether s is a known status.
func (s ChatStatus) Valid() bool { return s == StatusBot || s == StatusManager }

// Direction tags a message as received from the customer (IN) or sent by
// an operator or bot (OUT).
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Chat is one customer conversation tied to a marketplace chat id.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - AvitoChatID: external chat id, unique and immutable once set.
//   - Status: BOT or MANAGER; Pinned is only meaningful for MANAGER chats.
//   - CustomerName, ItemTitle, Price, AdURL, ChatURL: enrichment fields. They
//     start empty and are only ever filled in, never reset to NULL.
//   - LastMessageAt / LastMessageText: denormalized preview.
//   - UnreadCount: cache of unread inbound messages, recomputed from rows.
//   - Raw: JSON side store (webhook bookkeeping, enrichment provenance,
//     assistant thread handle, escalation reason).
type Chat struct {
	ID              string         `json:"id"              gorm:"type:char(36);primaryKey"`
	AvitoChatID     *string        `json:"avitoChatId"     gorm:"type:varchar(191);uniqueIndex:ux_chats_avito_chat_id"`
	AccountID       int64          `json:"accountId"       gorm:"not null;default:0"`
	Status          ChatStatus     `json:"status"          gorm:"type:varchar(16);not null;default:'BOT';index:idx_chats_status_last,priority:1"`
	Pinned          bool           `json:"pinned"          gorm:"not null;default:false"`
	CustomerName    *string        `json:"customerName"    gorm:"type:varchar(255)"`
	ItemTitle       *string        `json:"itemTitle"       gorm:"type:varchar(512)"`
	Price           *int64         `json:"price"`
	AdURL           *string        `json:"adUrl"           gorm:"column:ad_url;type:varchar(1024)"`
	ChatURL         *string        `json:"chatUrl"         gorm:"column:chat_url;type:varchar(1024)"`
	LastMessageAt   *time.Time     `json:"lastMessageAt"   gorm:"index:idx_chats_status_last,priority:2"`
	LastMessageText *string        `json:"lastMessageText" gorm:"type:text"`
	UnreadCount     int            `json:"unreadCount"     gorm:"not null;default:0"`
	Raw             datatypes.JSON `json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// ExternalID returns the marketplace chat id or "" when the chat is not linked.
func (c *Chat) ExternalID() string {
	if c == nil || c.AvitoChatID == nil {
		return ""
	}
	return *c.AvitoChatID
}

// NeedsEnrichment reports whether any chat-info derived field is still empty.
func (c *Chat) NeedsEnrichment() bool {
	return isBlank(c.CustomerName) || isBlank(c.ItemTitle) || isBlank(c.AdURL) || isBlank(c.ChatURL)
}

// Message is a single message within a chat. (ChatID, AvitoMessageID) is
// unique: redelivery of the same provider event never creates a second row.
// After insert only IsRead may change, and only from false to true.
type Message struct {
	ID             string         `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID         string         `json:"chatId"    gorm:"type:char(36);not null;uniqueIndex:ux_messages_chat_avito,priority:1;index:idx_messages_chat_sent,priority:1"`
	AvitoMessageID string         `json:"-"         gorm:"type:varchar(191);not null;uniqueIndex:ux_messages_chat_avito,priority:2"`
	Direction      Direction      `json:"direction" gorm:"type:varchar(8);not null"`
	Text           string         `json:"text"      gorm:"type:text;not null;default:''"`
	SentAt         time.Time      `json:"sentAt"    gorm:"not null;index:idx_messages_chat_sent,priority:2"`
	IsRead         bool           `json:"isRead"    gorm:"not null;default:false"`
	Raw            datatypes.JSON `json:"-"`
	CreatedAt      time.Time      `json:"-"`

	// Chat is the parent conversation; messages go with it.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// WebhookEvent is an append-only record of a provider callback. It is an
// audit log, not a processing gate: (Source, EventID) is unique, a NULL
// EventID never conflicts.
type WebhookEvent struct {
	ID         string         `gorm:"type:char(36);primaryKey"`
	Source     string         `gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_source_event,priority:1"`
	EventID    *string        `gorm:"type:varchar(191);uniqueIndex:ux_webhook_source_event,priority:2"`
	Type       *string        `gorm:"type:varchar(128)"`
	Payload    datatypes.JSON `gorm:"not null"`
	ReceivedAt time.Time      `gorm:"not null;index"`
}

// TableName returns the database table name for WebhookEvent.
func (WebhookEvent) TableName() string { return "webhook_events" }

// IntegrationState is the singleton (ID=1) holding the marketplace access
// token and its expiry.
type IntegrationState struct {
	ID          int        `gorm:"primaryKey;autoIncrement:false"`
	AccessToken *string    `gorm:"type:text"`
	ExpiresAt   *time.Time
	UpdatedAt   time.Time
}

// TableName returns the database table name for IntegrationState.
func (IntegrationState) TableName() string { return "integration_state" }

// AiAssistant is the singleton (ID=1) configuring the LLM responder.
type AiAssistant struct {
	ID               int       `json:"-"                gorm:"primaryKey;autoIncrement:false"`
	Enabled          bool      `json:"enabled"          gorm:"not null;default:false"`
	APIKey           *string   `json:"apiKey,omitempty" gorm:"column:api_key;type:text"`
	AssistantID      *string   `json:"assistantId"      gorm:"type:varchar(128)"`
	Model            *string   `json:"model"            gorm:"type:varchar(128)"`
	VectorStoreID    *string   `json:"vectorStoreId"    gorm:"type:varchar(128)"`
	Instructions     *string   `json:"instructions"     gorm:"type:text"`
	EscalationPrompt *string   `json:"escalationPrompt" gorm:"type:text"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TableName returns the database table name for AiAssistant.
func (AiAssistant) TableName() string { return "ai_assistant" }

func isBlank(p *string) bool { return p == nil || *p == "" }
