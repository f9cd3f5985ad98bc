package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andrrrrey/avito-crm/internal/normalize"
)

// Subscriptions manages the provider webhook registration.
type Subscriptions struct {
	Avito Provider
	// DefaultURL is used when a caller passes no URL.
	DefaultURL string
}

func (s *Subscriptions) target(url string) (string, error) {
	if u := strings.TrimSpace(url); u != "" {
		return u, nil
	}
	if s.DefaultURL == "" {
		return "", ErrNoWebhookURL
	}
	return s.DefaultURL, nil
}

// Subscribe registers url, or the default webhook URL when url is empty.
func (s *Subscriptions) Subscribe(ctx context.Context, url string) (normalize.Subscription, string, error) {
	target, err := s.target(url)
	if err != nil {
		return normalize.Subscription{}, "", err
	}
	sub, err := s.Avito.SubscribeWebhook(ctx, target)
	if err != nil {
		return normalize.Subscription{}, target, err
	}
	log.Info().Str("url", RedactKey(target)).Str("subscription_id", sub.ID).Msg("webhook subscribed")
	return sub, target, nil
}

// Unsubscribe removes a registration. id may be empty for API versions
// that keep a single webhook per account.
func (s *Subscriptions) Unsubscribe(ctx context.Context, id string) error {
	return s.Avito.UnsubscribeWebhook(ctx, strings.TrimSpace(id))
}

// List returns the current registrations.
func (s *Subscriptions) List(ctx context.Context) ([]normalize.Subscription, error) {
	return s.Avito.WebhookSubscriptions(ctx)
}

// SubscriptionStatus is what the provider reports for this account.
type SubscriptionStatus struct {
	// Subscribed is true when the default URL is registered, or, without a
	// default URL, when any registration exists.
	Subscribed    bool                     `json:"subscribed"`
	WebhookURL    string                   `json:"webhookUrl,omitempty"`
	Subscriptions []normalize.Subscription `json:"subscriptions"`
}

// Status lists the registrations and checks them against the default URL.
func (s *Subscriptions) Status(ctx context.Context) (*SubscriptionStatus, error) {
	subs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	st := &SubscriptionStatus{WebhookURL: s.DefaultURL, Subscriptions: subs}
	for _, sub := range subs {
		if s.DefaultURL == "" || sameWebhookURL(sub.URL, s.DefaultURL) {
			st.Subscribed = true
			break
		}
	}
	return st, nil
}

// Ensure subscribes the default URL unless a registration for it already
// exists. It reports whether a new subscription was made.
func (s *Subscriptions) Ensure(ctx context.Context) (bool, error) {
	if s.DefaultURL == "" {
		return false, ErrNoWebhookURL
	}
	st, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	if st.Subscribed {
		return false, nil
	}
	if _, _, err := s.Subscribe(ctx, ""); err != nil {
		return false, err
	}
	return true, nil
}

func sameWebhookURL(a, b string) bool {
	return strings.TrimRight(strings.TrimSpace(a), "/") == strings.TrimRight(strings.TrimSpace(b), "/")
}

// RedactKey hides the webhook key query value.
func RedactKey(u string) string {
	i := strings.Index(u, "key=")
	if i < 0 {
		return u
	}
	end := strings.IndexByte(u[i:], '&')
	if end < 0 {
		return u[:i] + "key=***"
	}
	return u[:i] + "key=***" + u[i+end:]
}
