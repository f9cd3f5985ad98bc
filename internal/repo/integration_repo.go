package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

const singletonID = 1

// GetIntegrationState returns the token singleton or ErrNotFound.
func GetIntegrationState(ctx context.Context, db *gorm.DB) (*domain.IntegrationState, error) {
	var st domain.IntegrationState
	if err := db.WithContext(ctx).Where("id = ?", singletonID).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveAccessToken upserts the token singleton.
func SaveAccessToken(ctx context.Context, db *gorm.DB, token string, expiresAt time.Time) error {
	st := domain.IntegrationState{
		ID:          singletonID,
		AccessToken: &token,
		ExpiresAt:   &expiresAt,
		UpdatedAt:   time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "expires_at", "updated_at"}),
	}).Create(&st).Error
}

// ClearAccessToken forgets the stored token so the next call fetches a new one.
func ClearAccessToken(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).
		Model(&domain.IntegrationState{}).
		Where("id = ?", singletonID).
		Updates(map[string]any{"access_token": nil, "expires_at": nil}).Error
}

// GetAiSettings returns the assistant settings singleton. A missing row
// yields disabled defaults rather than an error.
func GetAiSettings(ctx context.Context, db *gorm.DB) (*domain.AiAssistant, error) {
	var s domain.AiAssistant
	err := db.WithContext(ctx).Where("id = ?", singletonID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.AiAssistant{ID: singletonID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveAiSettings upserts the assistant settings singleton.
func SaveAiSettings(ctx context.Context, db *gorm.DB, s *domain.AiAssistant) error {
	s.ID = singletonID
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "api_key", "assistant_id", "model", "vector_store_id",
			"instructions", "escalation_prompt", "updated_at",
		}),
	}).Create(s).Error
}
