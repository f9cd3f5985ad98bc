package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

const webhookSource = "AVITO"

// IngestResult reports what one webhook delivery changed.
type IngestResult struct {
	Event          normalize.Event
	Chat           *domain.Chat // nil when the delivery names no chat
	Message        *domain.Message
	ChatCreated    bool
	MessageCreated bool
	Direction      domain.Direction
	ItemID         *int64
}

// IngestService turns provider webhook deliveries into chat and message
// rows, publishes realtime events, and schedules follow-up work.
type IngestService struct {
	DB         *gorm.DB
	Bus        *realtime.Bus
	Tasks      *Tasks
	Enricher   *Enricher
	Dispatcher *Dispatcher

	AccountID     int64
	DefaultStatus domain.ChatStatus
	MockMode      bool
	Production    bool

	now func() time.Time
}

func (s *IngestService) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// Ingest processes one raw webhook body. Malformed JSON yields ErrBadJSON;
// storage failures are returned as-is so the provider retries. Redelivery
// of the same message is a no-op apart from the audit row.
func (s *IngestService) Ingest(ctx context.Context, body []byte) (*IngestResult, error) {
	ctx, span := otel.Tracer("services/IngestService").Start(ctx, "Ingest")
	defer span.End()

	doc, err := normalize.Decode(body)
	if err != nil {
		webhookDeliveries.WithLabelValues("bad_json").Inc()
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	ev := normalize.Parse(doc, s.AccountID)
	span.SetAttributes(
		attribute.String("webhook.shape", ev.Shape.String()),
		attribute.String("webhook.type", ev.Type),
		attribute.String("avito.chat_id", ev.ChatID),
	)

	if err := s.recordEvent(ctx, ev, body); err != nil {
		webhookDeliveries.WithLabelValues("error").Inc()
		return nil, err
	}

	res := &IngestResult{Event: ev, Direction: ev.Direction(s.AccountID)}
	if ev.ChatID == "" {
		webhookDeliveries.WithLabelValues("ignored").Inc()
		log.Debug().Str("type", ev.Type).Str("shape", ev.Shape.String()).Msg("webhook without chat id")
		return res, nil
	}

	res.ItemID = ev.ItemID
	if res.ItemID == nil {
		res.ItemID = normalize.ItemIDFromURL(ev.AdURL)
	}
	_, value := normalize.Detect(doc)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, created, err := s.upsertChat(ctx, tx, ev, doc, res.ItemID)
		if err != nil {
			return err
		}
		res.Chat, res.ChatCreated = chat, created

		if ev.HasMessage() {
			sentAt := s.clock()
			if ev.CreatedAt != nil {
				sentAt = ev.CreatedAt.UTC()
			}
			msg, mcreated, err := repo.InsertMessage(ctx, tx, &domain.Message{
				ChatID:         chat.ID,
				AvitoMessageID: ev.MessageID,
				Direction:      res.Direction,
				Text:           ev.Text,
				SentAt:         sentAt,
				IsRead:         res.Direction == domain.DirectionOut,
				Raw:            domain.MustJSON(value),
			})
			if err != nil {
				return err
			}
			res.Message, res.MessageCreated = msg, mcreated
			if mcreated {
				if _, err := repo.TouchPreview(ctx, tx, chat.ID, msg.SentAt, msg.Text); err != nil {
					return err
				}
			}
		} else {
			now := s.clock()
			if ev.Text != "" {
				if _, err := repo.TouchPreview(ctx, tx, chat.ID, now, ev.Text); err != nil {
					return err
				}
			}
			if _, err := repo.UpdateChatRaw(ctx, tx, chat.ID, func(b domain.RawBag) {
				b["lastWebhookType"] = ev.Type
				b["lastWebhookAt"] = now.Format(time.RFC3339Nano)
			}); err != nil {
				return err
			}
		}

		if _, err := repo.RecomputeUnread(ctx, tx, chat.ID); err != nil {
			return err
		}
		fresh, err := repo.GetChat(ctx, tx, chat.ID)
		if err != nil {
			return err
		}
		res.Chat = fresh
		return nil
	})
	if err != nil {
		webhookDeliveries.WithLabelValues("error").Inc()
		return nil, err
	}
	webhookDeliveries.WithLabelValues("ok").Inc()

	if res.MessageCreated {
		s.Bus.Publish(realtime.MessageCreated(res.Chat, res.Message))
	}
	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, res.Chat))

	s.schedule(res)
	return res, nil
}

func (s *IngestService) recordEvent(ctx context.Context, ev normalize.Event, body []byte) error {
	rec := &domain.WebhookEvent{
		Source:     webhookSource,
		Payload:    datatypes.JSON(body),
		ReceivedAt: s.clock(),
	}
	if ev.EventID != "" {
		id := ev.EventID
		rec.EventID = &id
	}
	if ev.Type != "" {
		t := ev.Type
		rec.Type = &t
	}
	if _, err := repo.InsertWebhookEvent(ctx, s.DB, rec); err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

// upsertChat finds or creates the chat for ev and fills empty enrichment
// fields from the delivery hints.
func (s *IngestService) upsertChat(ctx context.Context, tx *gorm.DB, ev normalize.Event, doc any, itemID *int64) (*domain.Chat, bool, error) {
	patch := repo.ChatPatch{
		CustomerName: optString(ev.CustomerName),
		ItemTitle:    optString(ev.ItemTitle),
		Price:        ev.Price,
		AdURL:        optString(ev.AdURL),
		ChatURL:      optString(ev.ChatURL),
	}

	chat, err := repo.FindChatByAvitoID(ctx, tx, ev.ChatID)
	if errors.Is(err, repo.ErrNotFound) {
		raw := domain.RawBag{
			"createdFrom": "webhook",
			"type":        ev.Type,
			"payload":     doc,
		}
		if itemID != nil {
			raw["itemId"] = *itemID
		}
		status := s.DefaultStatus
		if !status.Valid() {
			status = domain.StatusBot
		}
		chatID := ev.ChatID
		now := s.clock()
		created, ok, err := repo.CreateChatIfAbsent(ctx, tx, &domain.Chat{
			AvitoChatID:  &chatID,
			AccountID:    s.AccountID,
			Status:       status,
			CustomerName: patch.CustomerName,
			ItemTitle:    patch.ItemTitle,
			Price:        patch.Price,
			AdURL:        patch.AdURL,
			ChatURL:      patch.ChatURL,
			Raw:          raw.Encode(),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return nil, false, err
		}
		if ok {
			log.Info().Str("chat_id", created.ID).Str("avito_chat_id", chatID).Msg("chat created from webhook")
			return created, true, nil
		}
		chat = created
	} else if err != nil {
		return nil, false, err
	}

	if !patch.Empty() {
		if _, err := repo.FillChatFields(ctx, tx, chat.ID, patch); err != nil {
			return nil, false, err
		}
	}
	if itemID != nil && domain.DecodeRaw(chat.Raw)["itemId"] == nil {
		id := *itemID
		if _, err := repo.UpdateChatRaw(ctx, tx, chat.ID, func(b domain.RawBag) {
			if b["itemId"] == nil {
				b["itemId"] = id
			}
		}); err != nil {
			return nil, false, err
		}
	}
	return chat, false, nil
}

// schedule queues enrichment and reply work for res. Nothing here blocks
// the webhook response.
func (s *IngestService) schedule(res *IngestResult) {
	if s.Tasks == nil || res.Chat == nil {
		return
	}
	chat := res.Chat

	if !s.MockMode && s.Enricher != nil {
		if chat.NeedsEnrichment() {
			s.Tasks.Go("enrich_chat", func(ctx context.Context) error {
				return s.Enricher.EnrichChat(ctx, chat.ID)
			})
		}
		if id := itemIDFor(res.ItemID, chat); id != nil && chat.Price == nil {
			itemID := *id
			s.Tasks.Go("fill_price", func(ctx context.Context) error {
				return s.Enricher.FillPrice(ctx, chat.ID, itemID)
			})
		}
	}

	if res.MessageCreated && res.Direction == domain.DirectionIn && s.Dispatcher != nil {
		in := DevBotInput{
			ChatID:       chat.ID,
			Text:         res.Event.Text,
			MessageID:    res.Event.MessageID,
			CreatedAt:    res.Event.CreatedAt,
			CustomerHint: res.Event.CustomerName,
		}
		s.Tasks.Go("inbound_reply", func(ctx context.Context) error {
			if !s.Production {
				if err := s.Dispatcher.RunDevBot(ctx, in); err != nil {
					log.Warn().Err(err).Str("chat_id", in.ChatID).Msg("dev bot failed")
				}
			}
			return s.Dispatcher.HandleInbound(ctx, in.ChatID, in.Text)
		})
	}
}

// DevIncomingInput describes a simulated customer message.
type DevIncomingInput struct {
	AvitoChatID  string `json:"avitoChatId"`
	Text         string `json:"text"`
	CustomerName string `json:"customerName"`
	ItemTitle    string `json:"itemTitle"`
}

// DevIncoming builds a provider-shaped delivery from in and runs it through
// Ingest, so local setups can exercise the whole pipeline without the
// marketplace. It is refused in production.
func (s *IngestService) DevIncoming(ctx context.Context, in DevIncomingInput) (*IngestResult, error) {
	if s.Production {
		return nil, ErrDevOnly
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	now := s.clock()
	chatID := strings.TrimSpace(in.AvitoChatID)
	if chatID == "" {
		chatID = stampID("dev_chat", now)
	}

	value := map[string]any{
		"id":        "dev_in_" + uuid.NewString(),
		"chat_id":   chatID,
		"author_id": "dev_customer",
		"created":   now.Unix(),
		"type":      "text",
		"content":   map[string]any{"text": text},
	}
	if name := strings.TrimSpace(in.CustomerName); name != "" {
		value["users"] = []any{map[string]any{"name": name}}
	}
	if title := strings.TrimSpace(in.ItemTitle); title != "" {
		value["item"] = map[string]any{"title": title}
	}
	body, err := json.Marshal(map[string]any{
		"id":      "dev_evt_" + uuid.NewString(),
		"payload": map[string]any{"type": "message", "value": value},
	})
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, body)
}
