package domain

import "time"

// Idempotency records the outcome of an operator send keyed by (chat_id, key),
// so a retried request with the same Idempotency-Key replays the stored
// message instead of sending twice.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ChatID    string    `gorm:"type:char(36);not null;uniqueIndex:ux_idem_chat_key,priority:1"`
	Key       string    `gorm:"column:idem_key;type:varchar(128);not null;uniqueIndex:ux_idem_chat_key,priority:2"`
	MessageID string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Expired reports whether the record is no longer valid at now.
func (i *Idempotency) Expired(now time.Time) bool { return !now.Before(i.ExpiresAt) }
