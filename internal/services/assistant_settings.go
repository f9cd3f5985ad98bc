package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

// AssistantSettings reads and updates the assistant configuration row.
type AssistantSettings struct {
	DB *gorm.DB
}

// AssistantView is the settings row as shown to operators. The API key is
// never returned in full.
type AssistantView struct {
	Enabled          bool    `json:"enabled"`
	APIKey           *string `json:"apiKey"`
	HasAPIKey        bool    `json:"hasApiKey"`
	AssistantID      string  `json:"assistantId"`
	Model            string  `json:"model"`
	VectorStoreID    string  `json:"vectorStoreId"`
	Instructions     string  `json:"instructions"`
	EscalationPrompt string  `json:"escalationPrompt"`
}

// AssistantUpdate carries optional changes. Nil fields are left alone and
// an empty string clears the column.
type AssistantUpdate struct {
	Enabled          *bool   `json:"enabled"`
	APIKey           *string `json:"apiKey"`
	AssistantID      *string `json:"assistantId"`
	Model            *string `json:"model"`
	VectorStoreID    *string `json:"vectorStoreId"`
	Instructions     *string `json:"instructions"`
	EscalationPrompt *string `json:"escalationPrompt"`
}

// Empty reports whether u changes nothing.
func (u AssistantUpdate) Empty() bool {
	return u.Enabled == nil && u.APIKey == nil && u.AssistantID == nil && u.Model == nil &&
		u.VectorStoreID == nil && u.Instructions == nil && u.EscalationPrompt == nil
}

// Get returns the current settings; a missing row reads as disabled.
func (s *AssistantSettings) Get(ctx context.Context) (*AssistantView, error) {
	row, err := repo.GetAiSettings(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return viewOf(row), nil
}

// Update applies u and returns the stored result.
func (s *AssistantSettings) Update(ctx context.Context, u AssistantUpdate) (*AssistantView, error) {
	if u.Empty() {
		return nil, ErrNothingToUpdate
	}
	row, err := repo.GetAiSettings(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if u.Enabled != nil {
		row.Enabled = *u.Enabled
	}
	apply(&row.APIKey, u.APIKey)
	apply(&row.AssistantID, u.AssistantID)
	apply(&row.Model, u.Model)
	apply(&row.VectorStoreID, u.VectorStoreID)
	apply(&row.Instructions, u.Instructions)
	apply(&row.EscalationPrompt, u.EscalationPrompt)

	if err := repo.SaveAiSettings(ctx, s.DB, row); err != nil {
		return nil, err
	}
	return viewOf(row), nil
}

func apply(dst **string, v *string) {
	if v == nil {
		return
	}
	if t := strings.TrimSpace(*v); t != "" {
		*dst = &t
		return
	}
	*dst = nil
}

func viewOf(row *domain.AiAssistant) *AssistantView {
	v := &AssistantView{
		Enabled:          row.Enabled,
		AssistantID:      deref(row.AssistantID),
		Model:            deref(row.Model),
		VectorStoreID:    deref(row.VectorStoreID),
		Instructions:     deref(row.Instructions),
		EscalationPrompt: deref(row.EscalationPrompt),
	}
	if key := deref(row.APIKey); key != "" {
		masked := MaskKey(key)
		v.APIKey = &masked
		v.HasAPIKey = true
	}
	return v
}

// MaskKey shows the first 3 and last 4 characters of a secret. Keys of 8
// characters or fewer are fully hidden.
func MaskKey(key string) string {
	r := []rune(key)
	if len(r) <= 8 {
		return "***"
	}
	return string(r[:3]) + "..." + string(r[len(r)-4:])
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
