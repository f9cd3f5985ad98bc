package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/cache"
	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

// Enricher backfills chat fields from the marketplace API. It only ever
// fills empty columns.
type Enricher struct {
	DB    *gorm.DB
	Avito Provider
	Bus   *realtime.Bus
	Items cache.ItemCache
	// Tasks, when set, runs the price fill chained from EnrichChat.
	Tasks *Tasks
}

// EnrichChat loads chat info for chatID and fills customer name, item title
// and URLs that are still empty. A newly discovered item id is stored in
// raw.itemId and triggers a price fill.
func (e *Enricher) EnrichChat(ctx context.Context, chatID string) error {
	ctx, span := otel.Tracer("services/Enricher").Start(ctx, "EnrichChat",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	chat, err := repo.GetChat(ctx, e.DB, chatID)
	if err != nil {
		return err
	}
	if !chat.NeedsEnrichment() || chat.ExternalID() == "" {
		return nil
	}

	info, err := e.Avito.GetChatInfo(ctx, chat.ExternalID())
	if err != nil {
		return fmt.Errorf("get chat info: %w", err)
	}
	d := normalize.ExtractChatDetails(info, e.Avito.AccountID())

	filled, err := repo.FillChatFields(ctx, e.DB, chat.ID, repo.ChatPatch{
		CustomerName: optString(d.CustomerName),
		ItemTitle:    optString(d.ItemTitle),
		AdURL:        optString(d.AdURL),
		ChatURL:      optString(d.ChatURL),
	})
	if err != nil {
		return err
	}

	itemID := d.ItemID
	if itemID == nil {
		itemID = normalize.ItemIDFromURL(d.AdURL)
	}
	raw := domain.DecodeRaw(chat.Raw)
	storeItem := itemID != nil && raw["itemId"] == nil

	if len(filled) > 0 || storeItem {
		now := time.Now().UTC()
		if _, err := repo.UpdateChatRaw(ctx, e.DB, chat.ID, func(b domain.RawBag) {
			if len(filled) > 0 {
				en := b.Object("enrich")
				en["source"] = "avitoGetChatInfo"
				en["at"] = now.Format(time.RFC3339Nano)
				en["filled"] = filled
			}
			if storeItem && b["itemId"] == nil {
				b["itemId"] = *itemID
			}
		}); err != nil {
			return err
		}
	}

	if len(filled) > 0 {
		log.Info().Str("chat_id", chat.ID).Strs("filled", filled).Msg("chat enriched")
		e.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	}

	if itemID != nil && chat.Price == nil {
		id := *itemID
		fill := func(ctx context.Context) error { return e.FillPrice(ctx, chat.ID, id) }
		if e.Tasks != nil {
			e.Tasks.Go("fill_price", fill)
		} else if err := fill(ctx); err != nil {
			log.Warn().Err(err).Str("chat_id", chat.ID).Int64("item_id", id).Msg("price fill failed")
		}
	}
	return nil
}

// FillPrice sets the chat price from the item card when it is still empty.
// Title and ad URL are filled from the same card when missing. Lookups go
// through the item cache; failed lookups are not cached and leave the chat
// untouched.
func (e *Enricher) FillPrice(ctx context.Context, chatID string, itemID int64) error {
	ctx, span := otel.Tracer("services/Enricher").Start(ctx, "FillPrice",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int64("item.id", itemID),
		),
	)
	defer span.End()

	chat, err := repo.GetChat(ctx, e.DB, chatID)
	if err != nil {
		return err
	}
	if chat.Price != nil {
		return nil
	}

	info, err := e.itemInfo(ctx, itemID)
	if err != nil {
		return fmt.Errorf("item %d: %w", itemID, err)
	}
	if info.Price == nil && info.Title == "" && info.URL == "" {
		return nil
	}

	filled, err := repo.FillChatFields(ctx, e.DB, chat.ID, repo.ChatPatch{
		Price:     info.Price,
		ItemTitle: optString(info.Title),
		AdURL:     optString(info.URL),
	})
	if err != nil {
		return err
	}
	if len(filled) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if _, err := repo.UpdateChatRaw(ctx, e.DB, chat.ID, func(b domain.RawBag) {
		b.Object("enrich")["price"] = map[string]any{
			"source": "avitoGetItemInfo",
			"at":     now.Format(time.RFC3339Nano),
			"itemId": itemID,
		}
	}); err != nil {
		return err
	}

	e.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	return nil
}

func (e *Enricher) itemInfo(ctx context.Context, itemID int64) (normalize.ItemInfo, error) {
	if e.Items != nil {
		info, ok, err := e.Items.Get(ctx, itemID)
		if err != nil {
			log.Warn().Err(err).Int64("item_id", itemID).Msg("item cache read failed")
		}
		if ok {
			return info, nil
		}
	}

	info, err := e.Avito.GetItemInfo(ctx, itemID)
	if err != nil {
		return normalize.ItemInfo{}, err
	}
	if e.Items != nil {
		if err := e.Items.Set(ctx, info); err != nil {
			log.Warn().Err(err).Int64("item_id", itemID).Msg("item cache write failed")
		}
	}
	return info, nil
}

// itemIDFor picks the item id for price lookups: the hint from the current
// delivery, then raw.itemId, then the ad URL.
func itemIDFor(hint *int64, chat *domain.Chat) *int64 {
	if hint != nil {
		return hint
	}
	if v, ok := domain.DecodeRaw(chat.Raw)["itemId"]; ok {
		switch n := v.(type) {
		case float64:
			id := int64(n)
			return &id
		case int64:
			return &n
		}
	}
	if chat.AdURL != nil {
		return normalize.ItemIDFromURL(*chat.AdURL)
	}
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
