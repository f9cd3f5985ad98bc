package services

import (
	"context"

	"github.com/andrrrrey/avito-crm/internal/normalize"
)

// Provider is the subset of the marketplace client the services depend on.
// *avito.Client satisfies it.
type Provider interface {
	AccountID() int64
	GetChatInfo(ctx context.Context, chatID string) (any, error)
	ListMessages(ctx context.Context, chatID string, limit, offset int) (any, error)
	SendTextMessage(ctx context.Context, chatID, text string) (any, error)
	MarkChatRead(ctx context.Context, chatID, lastMessageID string) error
	GetItemInfo(ctx context.Context, itemID int64) (normalize.ItemInfo, error)
	SubscribeWebhook(ctx context.Context, webhookURL string) (normalize.Subscription, error)
	UnsubscribeWebhook(ctx context.Context, subscriptionID string) error
	WebhookSubscriptions(ctx context.Context) ([]normalize.Subscription, error)
}
