package avito

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/andrrrrey/avito-crm/internal/normalize"
)

func pageQuery(limit, offset int) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset >= 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListChats returns a raw chat listing page. A negative offset is omitted.
func (c *Client) ListChats(ctx context.Context, limit, offset int) (any, error) {
	acc, err := c.account()
	if err != nil {
		return nil, err
	}
	q := pageQuery(limit, offset)
	return c.firstOK(ctx, "ListChats", gets(
		"/messenger/v3/accounts/"+acc+"/chats"+q,
		"/messenger/v2/accounts/"+acc+"/chats"+q,
		"/messenger/v1/accounts/"+acc+"/chats"+q,
	))
}

// GetChatInfo returns the raw chat info document.
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (any, error) {
	acc, err := c.account()
	if err != nil {
		return nil, err
	}
	id := escape(chatID)
	return c.firstOK(ctx, "GetChatInfo", gets(
		"/messenger/v2/accounts/"+acc+"/chats/"+id,
		"/messenger/v1/accounts/"+acc+"/chats/"+id,
	))
}

// ListMessages returns a raw history page for chatID.
func (c *Client) ListMessages(ctx context.Context, chatID string, limit, offset int) (any, error) {
	acc, err := c.account()
	if err != nil {
		return nil, err
	}
	id := escape(chatID)
	q := pageQuery(limit, offset)
	return c.firstOK(ctx, "ListMessages", gets(
		"/messenger/v3/accounts/"+acc+"/chats/"+id+"/messages"+q,
		"/messenger/v2/accounts/"+acc+"/chats/"+id+"/messages"+q,
		"/messenger/v1/accounts/"+acc+"/chats/"+id+"/messages"+q,
	))
}

// SendTextMessage posts text to chatID. Only v1 accepts sends.
func (c *Client) SendTextMessage(ctx context.Context, chatID, text string) (any, error) {
	acc, err := c.account()
	if err != nil {
		return nil, err
	}
	body := map[string]any{"type": "text", "message": map[string]any{"text": text}}
	path := "/messenger/v1/accounts/" + acc + "/chats/" + escape(chatID) + "/messages"
	out, err := c.do(ctx, "SendTextMessage", http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("SendTextMessage failed: %w", err)
	}
	return out, nil
}

// readBodies lists the body variants the read endpoints have accepted over
// time, without duplicates. nil means "no body".
func readBodies(lastMessageID string) []any {
	bodies := []any{nil}
	if lastMessageID == "" {
		return bodies
	}
	for _, k := range []string{"message_id", "messageId", "last_message_id", "lastMessageId", "last_read_message_id"} {
		bodies = append(bodies, map[string]string{k: lastMessageID})
	}
	return bodies
}

// MarkChatRead marks chatID read, trying every version, method and body
// shape until one is accepted.
func (c *Client) MarkChatRead(ctx context.Context, chatID, lastMessageID string) error {
	acc, err := c.account()
	if err != nil {
		return err
	}
	id := escape(chatID)
	var tries []attempt
	for _, v := range []string{"v3", "v2", "v1"} {
		path := "/messenger/" + v + "/accounts/" + acc + "/chats/" + id + "/read"
		for _, m := range []string{http.MethodPost, http.MethodPut} {
			for _, b := range readBodies(lastMessageID) {
				tries = append(tries, attempt{method: m, path: path, body: b})
			}
		}
	}
	_, err = c.firstOK(ctx, "MarkChatRead", tries)
	return err
}

// GetItemInfo fetches listing details. The trailing-slash form is tried first.
func (c *Client) GetItemInfo(ctx context.Context, itemID int64) (normalize.ItemInfo, error) {
	acc, err := c.account()
	if err != nil {
		return normalize.ItemInfo{}, err
	}
	base := "/core/v1/accounts/" + acc + "/items/" + strconv.FormatInt(itemID, 10)
	out, err := c.firstOK(ctx, "GetItemInfo", gets(base+"/", base))
	if err != nil {
		return normalize.ItemInfo{}, err
	}
	return normalize.ExtractItemInfo(out, itemID), nil
}
