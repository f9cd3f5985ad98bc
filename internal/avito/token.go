package avito

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/repo"
)

// tokenMargin is how long before expiry a cached token stops being reused.
const tokenMargin = 60 * time.Second

// TokenStore persists the access token between processes.
type TokenStore interface {
	// Load returns "" when no token is stored.
	Load(ctx context.Context) (token string, expiresAt time.Time, err error)
	Save(ctx context.Context, token string, expiresAt time.Time) error
	Clear(ctx context.Context) error
}

// DBTokenStore keeps the token in the integration_state singleton row.
type DBTokenStore struct {
	DB *gorm.DB
}

func (s DBTokenStore) Load(ctx context.Context) (string, time.Time, error) {
	st, err := repo.GetIntegrationState(ctx, s.DB)
	if errors.Is(err, repo.ErrNotFound) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if st.AccessToken == nil || st.ExpiresAt == nil {
		return "", time.Time{}, nil
	}
	return *st.AccessToken, *st.ExpiresAt, nil
}

func (s DBTokenStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	return repo.SaveAccessToken(ctx, s.DB, token, expiresAt)
}

func (s DBTokenStore) Clear(ctx context.Context) error {
	return repo.ClearAccessToken(ctx, s.DB)
}

// memoryTokenStore is used when no store is configured.
type memoryTokenStore struct {
	token     string
	expiresAt time.Time
}

func (m *memoryTokenStore) Load(context.Context) (string, time.Time, error) {
	return m.token, m.expiresAt, nil
}

func (m *memoryTokenStore) Save(_ context.Context, token string, expiresAt time.Time) error {
	m.token, m.expiresAt = token, expiresAt
	return nil
}

func (m *memoryTokenStore) Clear(context.Context) error {
	m.token, m.expiresAt = "", time.Time{}
	return nil
}
