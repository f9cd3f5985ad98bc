// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Enrichment columns are monotonic: FillChatFields only writes a column that
// is still NULL or empty, so concurrent enrichers can never erase each other.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ChatPatch carries candidate values for the enrichment columns. Nil or
// empty fields are ignored.
type ChatPatch struct {
	CustomerName *string
	ItemTitle    *string
	Price        *int64
	AdURL        *string
	ChatURL      *string
}

// Empty reports whether the patch carries no usable value.
func (p ChatPatch) Empty() bool {
	return blank(p.CustomerName) && blank(p.ItemTitle) && p.Price == nil && blank(p.AdURL) && blank(p.ChatURL)
}

// ChatFilter narrows and orders ListChats.
type ChatFilter struct {
	Status     domain.ChatStatus // "" = any
	SortField  string            // lastMessageAt | price
	SortOrder  string            // asc | desc
	UnreadOnly bool
	Limit      int
}

// GetChat fetches a single chat by its primary key.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindChatByAvitoID fetches a chat by its marketplace chat id.
func FindChatByAvitoID(ctx context.Context, db *gorm.DB, avitoChatID string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("avito_chat_id = ?", avitoChatID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChatIfAbsent inserts c unless a chat with the same AvitoChatID already
// exists. Concurrent creators race on the unique index; the loser reselects
// the winner's row. The boolean reports whether this call created the row.
func CreateChatIfAbsent(ctx context.Context, db *gorm.DB, c *domain.Chat) (*domain.Chat, bool, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.StatusBot
	}
	if len(c.Raw) == 0 {
		c.Raw = domain.RawBag{}.Encode()
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "avito_chat_id"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil && !isDuplicate(res.Error) {
		return nil, false, res.Error
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return c, true, nil
	}
	existing, err := FindChatByAvitoID(ctx, db, c.ExternalID())
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FillChatFields writes each non-empty patch value into its column only when
// that column is still NULL (or the empty string). It returns the JSON names
// of the fields that were actually written.
func FillChatFields(ctx context.Context, db *gorm.DB, id string, p ChatPatch) ([]string, error) {
	type fill struct {
		key, column string
		value       any
		textual     bool
	}
	var fills []fill
	if !blank(p.CustomerName) {
		fills = append(fills, fill{"customerName", "customer_name", *p.CustomerName, true})
	}
	if !blank(p.ItemTitle) {
		fills = append(fills, fill{"itemTitle", "item_title", *p.ItemTitle, true})
	}
	if p.Price != nil {
		fills = append(fills, fill{"price", "price", *p.Price, false})
	}
	if !blank(p.AdURL) {
		fills = append(fills, fill{"adUrl", "ad_url", *p.AdURL, true})
	}
	if !blank(p.ChatURL) {
		fills = append(fills, fill{"chatUrl", "chat_url", *p.ChatURL, true})
	}

	filled := make([]string, 0, len(fills))
	for _, f := range fills {
		cond := f.column + " IS NULL"
		if f.textual {
			cond = "(" + f.column + " IS NULL OR " + f.column + " = '')"
		}
		res := db.WithContext(ctx).
			Model(&domain.Chat{}).
			Where("id = ? AND "+cond, id).
			Update(f.column, f.value)
		if res.Error != nil {
			return filled, res.Error
		}
		if res.RowsAffected > 0 {
			filled = append(filled, f.key)
		}
	}
	return filled, nil
}

// UpdateChatRaw performs a locked read-modify-write of the chat's raw bag.
// mutate receives the decoded bag and may change it in place; the result is
// written back and returned.
func UpdateChatRaw(ctx context.Context, db *gorm.DB, id string, mutate func(domain.RawBag)) (domain.RawBag, error) {
	var out domain.RawBag
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Chat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "raw").
			Where("id = ?", id).
			First(&c).Error; err != nil {
			return err
		}
		bag := domain.DecodeRaw(c.Raw)
		mutate(bag)
		out = bag
		return tx.Model(&domain.Chat{}).Where("id = ?", id).Update("raw", bag.Encode()).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetChatStatus changes who owns the chat. Returning a chat to BOT also
// clears its pin, which is only meaningful in the manager queue.
func SetChatStatus(ctx context.Context, db *gorm.DB, id string, status domain.ChatStatus) error {
	updates := map[string]any{"status": status}
	if status == domain.StatusBot {
		updates["pinned"] = false
	}
	res := db.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetChatPinned sets the pinned flag.
func SetChatPinned(ctx context.Context, db *gorm.DB, id string, pinned bool) error {
	res := db.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", id).Update("pinned", pinned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchPreview sets lastMessageAt/lastMessageText unless the chat already
// shows a strictly newer message. It reports whether the preview changed.
func TouchPreview(ctx context.Context, db *gorm.DB, id string, at time.Time, text string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at <= ?)", id, at).
		Updates(map[string]any{"last_message_at": at, "last_message_text": text})
	return res.RowsAffected > 0, res.Error
}

// ListChats returns chats matching f. Pinned chats always come first, then
// the requested sort with a stable secondary order. NULL sort keys go last.
func ListChats(ctx context.Context, db *gorm.DB, f ChatFilter) ([]domain.Chat, error) {
	q := db.WithContext(ctx).Model(&domain.Chat{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UnreadOnly {
		q = q.Where("unread_count > 0")
	}

	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	q = q.Order("pinned DESC")
	if f.SortField == "price" {
		q = q.Order("price IS NULL").Order("price " + dir).
			Order("last_message_at IS NULL").Order("last_message_at DESC")
	} else {
		q = q.Order("last_message_at IS NULL").Order("last_message_at " + dir).
			Order("price IS NULL").Order("price DESC")
	}
	q = q.Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []domain.Chat
	err := q.Find(&out).Error
	return out, err
}

func blank(p *string) bool { return p == nil || strings.TrimSpace(*p) == "" }
