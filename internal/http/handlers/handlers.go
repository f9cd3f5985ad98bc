package handlers

import (
	"context"
	"time"

	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
	"github.com/andrrrrey/avito-crm/internal/services"
)

// ChatAPI is the operator view of chats.
type ChatAPI interface {
	List(ctx context.Context, f repo.ChatFilter) (*services.ChatList, error)
	Messages(ctx context.Context, chatID string, refresh bool) (*services.MessagesResult, error)
	Send(ctx context.Context, chatID string, in services.SendInput) (*services.SendResult, error)
	MarkRead(ctx context.Context, chatID string) (*services.ReadResult, error)
	Pin(ctx context.Context, chatID string, pinned *bool) (bool, error)
	Finish(ctx context.Context, chatID string) error
}

// Ingestor consumes webhook deliveries and local test messages.
type Ingestor interface {
	Ingest(ctx context.Context, body []byte) (*services.IngestResult, error)
	DevIncoming(ctx context.Context, in services.DevIncomingInput) (*services.IngestResult, error)
}

// SettingsAPI reads and writes the assistant settings.
type SettingsAPI interface {
	Get(ctx context.Context) (*services.AssistantView, error)
	Update(ctx context.Context, u services.AssistantUpdate) (*services.AssistantView, error)
}

// WebhookAPI manages the provider webhook registration.
type WebhookAPI interface {
	Subscribe(ctx context.Context, url string) (normalize.Subscription, string, error)
	Unsubscribe(ctx context.Context, id string) error
	Status(ctx context.Context) (*services.SubscriptionStatus, error)
}

// Deps wires Handlers. Bus is required for the event stream.
type Deps struct {
	Chats    ChatAPI
	Ingest   Ingestor
	Settings SettingsAPI
	Webhooks WebhookAPI
	Bus      *realtime.Bus

	// WebhookKey is checked on deliveries in production.
	WebhookKey   string
	Production   bool
	MockMode     bool
	PingInterval time.Duration
}

// Handlers groups every endpoint. Methods are registered by the router.
type Handlers struct {
	Deps
}

// New returns Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{Deps: d}
}
