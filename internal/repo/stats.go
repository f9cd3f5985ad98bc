// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) and for the unread recompute that
// runs before chat lists are returned.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

// ChatsStats returns the total number of chats and the greatest UpdatedAt
// among them. When there are no chats, count is 0 and maxUpdatedAt is nil.
func ChatsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chat{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Chat{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns the number of messages in a chat and the greatest
// CreatedAt among them.
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID).
		Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// UnreadByChat counts unread IN messages per chat with one GROUP BY. Chats
// without unread messages are absent from the map. An empty chatIDs slice
// counts across all chats.
func UnreadByChat(ctx context.Context, db *gorm.DB, chatIDs []string) (map[string]int, error) {
	q := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("chat_id, COUNT(*) AS n").
		Where("direction = ? AND is_read = ?", domain.DirectionIn, false)
	if len(chatIDs) > 0 {
		q = q.Where("chat_id IN ?", chatIDs)
	}
	var rows []struct {
		ChatID string
		N      int
	}
	if err := q.Group("chat_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ChatID] = r.N
	}
	return out, nil
}
