package avito

import (
	"context"
	"net/http"

	"github.com/andrrrrey/avito-crm/internal/normalize"
)

// SubscribeWebhook registers webhookURL for message notifications.
func (c *Client) SubscribeWebhook(ctx context.Context, webhookURL string) (normalize.Subscription, error) {
	acc, err := c.account()
	if err != nil {
		return normalize.Subscription{}, err
	}
	body := map[string]string{"url": webhookURL}
	var tries []attempt
	for _, p := range []string{
		"/messenger/v3/accounts/" + acc + "/webhook",
		"/messenger/v2/accounts/" + acc + "/subscriptions_v2",
		"/messenger/v2/accounts/" + acc + "/subscriptions",
		"/messenger/v1/subscriptions/" + acc,
	} {
		tries = append(tries, attempt{method: http.MethodPost, path: p, body: body})
	}
	out, err := c.firstOK(ctx, "SubscribeWebhook", tries)
	if err != nil {
		return normalize.Subscription{}, err
	}
	sub := normalize.Subscription{ID: normalize.SubscriptionID(out), URL: webhookURL}
	if m, ok := out.(map[string]any); ok {
		sub.Raw = m
		if u, ok := m["url"].(string); ok && u != "" {
			sub.URL = u
		}
	}
	return sub, nil
}

// UnsubscribeWebhook removes the subscription. The v2 path needs an id and is
// skipped without one.
func (c *Client) UnsubscribeWebhook(ctx context.Context, subscriptionID string) error {
	acc, err := c.account()
	if err != nil {
		return err
	}
	paths := []string{"/messenger/v3/accounts/" + acc + "/webhook"}
	if subscriptionID != "" {
		paths = append(paths, "/messenger/v2/accounts/"+acc+"/subscriptions/"+escape(subscriptionID))
	}
	paths = append(paths, "/messenger/v1/subscriptions/"+acc)

	tries := make([]attempt, len(paths))
	for i, p := range paths {
		tries[i] = attempt{method: http.MethodDelete, path: p}
	}
	_, err = c.firstOK(ctx, "UnsubscribeWebhook", tries)
	return err
}

// WebhookSubscriptions lists current subscriptions.
func (c *Client) WebhookSubscriptions(ctx context.Context) ([]normalize.Subscription, error) {
	acc, err := c.account()
	if err != nil {
		return nil, err
	}
	out, err := c.firstOK(ctx, "WebhookSubscriptions", gets(
		"/messenger/v3/accounts/"+acc+"/webhook",
		"/messenger/v2/accounts/"+acc+"/subscriptions",
		"/messenger/v1/subscriptions/"+acc,
	))
	if err != nil {
		return nil, err
	}
	return normalize.ExtractSubscriptions(out), nil
}
