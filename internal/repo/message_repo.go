// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

// InsertMessage stores m unless a row with the same (chat_id, avito_message_id)
// already exists. It returns the stored row (which is the pre-existing one on
// a duplicate) and whether this call created it.
func InsertMessage(ctx context.Context, db *gorm.DB, m *domain.Message) (*domain.Message, bool, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if len(m.Raw) == 0 {
		m.Raw = domain.RawBag{}.Encode()
	}
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "avito_message_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil && !isDuplicate(res.Error) {
		return nil, false, res.Error
	}
	created := res.Error == nil && res.RowsAffected > 0

	stored, err := GetMessageByAvitoID(ctx, db, m.ChatID, m.AvitoMessageID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// GetMessage fetches a message by primary key.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMessageByAvitoID fetches a message by its provider id within a chat.
func GetMessageByAvitoID(ctx context.Context, db *gorm.DB, chatID, avitoMessageID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ? AND avito_message_id = ?", chatID, avitoMessageID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkInboundRead flips unread IN messages of a chat to read. When upTo is
// non-nil only messages sent at or before it are affected.
func MarkInboundRead(ctx context.Context, db *gorm.DB, chatID string, upTo *time.Time) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("chat_id = ? AND direction = ? AND is_read = ?", chatID, domain.DirectionIn, false)
	if upTo != nil {
		q = q.Where("sent_at <= ?", *upTo)
	}
	res := q.Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread counts IN messages of a chat that are not yet read.
func CountUnread(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("chat_id = ? AND direction = ? AND is_read = ?", chatID, domain.DirectionIn, false).
		Count(&n).Error
	return n, err
}

const unreadSubquery = `(SELECT COUNT(*) FROM messages m WHERE m.chat_id = chats.id AND m.direction = ? AND m.is_read = ?)`

// RecomputeUnread rewrites chats.unread_count from the message rows in a
// single statement and returns the resulting value. updated_at only moves
// when the count actually changes.
func RecomputeUnread(ctx context.Context, db *gorm.DB, chatID string) (int, error) {
	now := time.Now().UTC()
	err := db.WithContext(ctx).Exec(
		`UPDATE chats SET unread_count = `+unreadSubquery+`, updated_at = ? WHERE id = ? AND unread_count <> `+unreadSubquery,
		domain.DirectionIn, false, now, chatID, domain.DirectionIn, false,
	).Error
	if err != nil {
		return 0, err
	}
	var row struct{ UnreadCount int }
	if err := db.WithContext(ctx).Model(&domain.Chat{}).Select("unread_count").Where("id = ?", chatID).Scan(&row).Error; err != nil {
		return 0, err
	}
	return row.UnreadCount, nil
}

// RecomputeAllUnread repairs unread_count for every chat whose cached value
// drifted from the message rows. It returns the number of repaired chats.
func RecomputeAllUnread(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE chats SET unread_count = `+unreadSubquery+`, updated_at = ? WHERE unread_count <> `+unreadSubquery,
		domain.DirectionIn, false, time.Now().UTC(), domain.DirectionIn, false,
	)
	return res.RowsAffected, res.Error
}

// ListMessagesTail returns the newest limit messages of a chat in
// chronological order (sent_at ASC, id ASC).
func ListMessagesTail(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("chat_id = ?", chatID).Order("sent_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
