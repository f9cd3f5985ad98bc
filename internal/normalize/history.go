package normalize

import "time"

var messageListPaths = [][]string{
	{"items"}, {"messages"}, {"data"},
	{"result", "items"}, {"result", "messages"}, {"result", "data"},
	{"payload", "items"}, {"payload", "messages"},
	{"value"}, {"value", "items"}, {"value", "messages"},
}

// ExtractMessages finds the message list in a history response. A single
// message object, or a response that is itself a message, yields one entry.
func ExtractMessages(resp any) []map[string]any {
	if arr, ok := resp.([]any); ok {
		return objects(arr)
	}
	root := obj(resp)
	if root == nil {
		return nil
	}
	for _, p := range messageListPaths {
		if arr, ok := dig(root, p...).([]any); ok {
			return objects(arr)
		}
	}
	if m := obj(root["message"]); m != nil {
		return []map[string]any{m}
	}
	if idString(root["id"]) != "" && (root["content"] != nil || root["text"] != nil) {
		return []map[string]any{root}
	}
	return nil
}

func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m := obj(v); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// HistoryMessage is one message from a history page.
type HistoryMessage struct {
	ID       string
	AuthorID string
	Text     string
	SentAt   *time.Time
	Raw      map[string]any
}

// ParseHistoryMessage normalizes one history entry. An entry without an id
// is unusable and yields an empty ID.
func ParseHistoryMessage(m map[string]any) HistoryMessage {
	return HistoryMessage{
		ID: firstID(m["id"], m["message_id"], dig(m, "value", "id"), dig(m, "message", "id")),
		AuthorID: firstID(
			m["author_id"], m["authorId"], dig(m, "from", "id"), dig(m, "author", "id"),
			dig(m, "value", "author_id"), dig(m, "value", "from", "id"),
		),
		Text: firstString(
			dig(m, "content", "text"), m["text"],
			dig(m, "content", "message", "text"), dig(m, "message", "text"),
		),
		SentAt: NormalizeTime(coalesce(m["created"], m["created_at"], m["timestamp"])),
		Raw:    m,
	}
}

// SendResponseID returns the provider message id from a send response.
func SendResponseID(resp any) string {
	root := obj(resp)
	return firstID(dig(root, "id"), dig(root, "message_id"), dig(root, "value", "id"), dig(root, "result", "id"))
}

// Subscription is a registered webhook endpoint.
type Subscription struct {
	ID  string         `json:"id,omitempty"`
	URL string         `json:"url,omitempty"`
	Raw map[string]any `json:"raw,omitempty"`
}

// SubscriptionID returns the subscription id from a subscribe response.
func SubscriptionID(resp any) string {
	root := obj(resp)
	return firstID(dig(root, "id"), dig(root, "subscription_id"), dig(root, "subscriptionId"))
}

// ExtractSubscriptions normalizes a subscription listing from the
// subscriptions or items keys, a bare array, or a single object with a url.
func ExtractSubscriptions(resp any) []Subscription {
	var list []map[string]any
	switch t := resp.(type) {
	case []any:
		list = objects(t)
	case map[string]any:
		if arr, ok := t["subscriptions"].([]any); ok {
			list = objects(arr)
		} else if arr, ok := t["items"].([]any); ok {
			list = objects(arr)
		} else if firstString(t["url"]) != "" {
			list = []map[string]any{t}
		}
	}
	out := make([]Subscription, 0, len(list))
	for _, s := range list {
		out = append(out, Subscription{ID: SubscriptionID(s), URL: firstString(s["url"]), Raw: s})
	}
	return out
}
