package normalize

import (
	"time"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

// Event is the canonical form of a webhook delivery. Hint fields from
// ChatDetails are promoted.
type Event struct {
	Shape     Shape
	EventID   string
	Type      string
	ChatID    string
	MessageID string
	AuthorID  string
	Text      string
	CreatedAt *time.Time

	ChatDetails
}

// Parse normalizes a decoded webhook document. Missing fields are left
// zero; the caller decides what an absent chat or message id means.
func Parse(doc any, accountID int64) Event {
	shape, value := Detect(doc)
	root := obj(doc)
	env := envelope(root, shape)

	e := Event{
		Shape:     shape,
		EventID:   firstID(dig(root, "id"), value["id"]),
		Type:      firstString(dig(env, "type"), dig(root, "type")),
		ChatID:    firstID(value["chat_id"], value["chatId"], value["chatID"]),
		MessageID: firstID(value["id"], value["message_id"], value["messageId"]),
		AuthorID:  firstID(value["author_id"], value["authorId"]),
		Text: firstString(
			dig(value, "content", "text"),
			dig(value, "content", "message", "text"),
			value["text"],
		),
		CreatedAt:   NormalizeTime(coalesce(value["created"], value["created_at"], value["timestamp"])),
		ChatDetails: ExtractChatDetails(doc, accountID),
	}
	return e
}

// Direction classifies the message. It is OUT only when the message id and
// author id are present and the author is the owned account.
func (e Event) Direction(accountID int64) domain.Direction {
	if e.MessageID != "" && e.AuthorID != "" && SameAccount(e.AuthorID, accountID) {
		return domain.DirectionOut
	}
	return domain.DirectionIn
}

// HasMessage reports whether the delivery carries a message id.
func (e Event) HasMessage() bool { return e.MessageID != "" }
