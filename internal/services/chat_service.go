// Package services – ChatService
//
// This file implements ChatService, the operator side of the CRM: listing
// chats, reading and refreshing history, sending replies, and moving chats
// between the bot and the manager queue. Every state change is followed by
// realtime events so open operator screens stay current.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

const (
	messagesWindow  = 500
	historyPageSize = 100
	historyMaxPages = 20
)

// ChatService provides the operator actions on chats.
type ChatService struct {
	DB       *gorm.DB
	Avito    Provider
	Bus      *realtime.Bus
	MockMode bool

	// IdempotencyTTL bounds how long a send Idempotency-Key replays.
	IdempotencyTTL time.Duration

	now func() time.Time
}

func (s *ChatService) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *ChatService) load(ctx context.Context, id string) (*domain.Chat, error) {
	chat, err := repo.GetChat(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	return chat, err
}

// ChatList is a chat listing plus a weak validator for conditional GETs.
type ChatList struct {
	Chats []domain.Chat
	ETag  string
}

// List returns chats matching f. Cached unread counters of the returned
// chats are checked against the message rows and repaired first.
func (s *ChatService) List(ctx context.Context, f repo.ChatFilter) (*ChatList, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("status", string(f.Status)),
			attribute.String("sort", f.SortField),
		),
	)
	defer span.End()

	chats, err := repo.ListChats(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chats))
	for i := range chats {
		ids[i] = chats[i].ID
	}
	counts, err := repo.UnreadByChat(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	out := chats[:0]
	for _, c := range chats {
		if n := counts[c.ID]; n != c.UnreadCount {
			if err := s.DB.WithContext(ctx).Model(&domain.Chat{}).
				Where("id = ?", c.ID).Update("unread_count", n).Error; err != nil {
				return nil, err
			}
			c.UnreadCount = n
		}
		if f.UnreadOnly && c.UnreadCount == 0 {
			continue
		}
		out = append(out, c)
	}

	count, maxUpdated, err := repo.ChatsStats(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return &ChatList{Chats: out, ETag: chatsETag(count, maxUpdated, f)}, nil
}

func chatsETag(count int64, maxUpdated *time.Time, f repo.ChatFilter) string {
	var ts int64
	if maxUpdated != nil {
		ts = maxUpdated.UnixNano()
	}
	return fmt.Sprintf(`W/"chats-%d-%d-%s-%s-%s-%t-%d"`,
		count, ts, f.Status, f.SortField, strings.ToLower(f.SortOrder), f.UnreadOnly, f.Limit)
}

// MessagesResult is the message window of a chat.
type MessagesResult struct {
	Messages     []domain.Message
	Refreshed    bool
	NeedsRefresh bool
}

// Messages returns the newest messages of a chat in chronological order.
// With refresh the provider history is pulled first and missing rows are
// inserted.
func (s *ChatService) Messages(ctx context.Context, chatID string, refresh bool) (*MessagesResult, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Messages",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Bool("refresh", refresh),
		),
	)
	defer span.End()

	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}

	res := &MessagesResult{}
	if refresh && !s.MockMode {
		if err := s.refreshHistory(ctx, chat); err != nil {
			return nil, err
		}
		res.Refreshed = true
	} else if !s.MockMode && chat.ExternalID() != "" {
		res.NeedsRefresh = domain.DecodeRaw(chat.Raw).String("historySyncedAt") == ""
	}

	res.Messages, err = repo.ListMessagesTail(ctx, s.DB, chat.ID, messagesWindow)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ChatService) refreshHistory(ctx context.Context, chat *domain.Chat) error {
	if chat.ExternalID() == "" {
		return ErrNotLinked
	}

	var entries []map[string]any
	for page := 0; page < historyMaxPages; page++ {
		resp, err := s.Avito.ListMessages(ctx, chat.ExternalID(), historyPageSize, page*historyPageSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		batch := normalize.ExtractMessages(resp)
		entries = append(entries, batch...)
		if len(batch) < historyPageSize {
			break
		}
	}

	now := s.clock()
	accountID := s.Avito.AccountID()
	inserted := 0
	var newest *domain.Message
	for _, e := range entries {
		h := normalize.ParseHistoryMessage(e)
		if h.ID == "" {
			continue
		}
		dir := domain.DirectionIn
		if h.AuthorID != "" && normalize.SameAccount(h.AuthorID, accountID) {
			dir = domain.DirectionOut
		}
		sentAt := now
		if h.SentAt != nil {
			sentAt = *h.SentAt
		}
		m, created, err := repo.InsertMessage(ctx, s.DB, &domain.Message{
			ChatID:         chat.ID,
			AvitoMessageID: h.ID,
			Direction:      dir,
			Text:           h.Text,
			SentAt:         sentAt,
			IsRead:         dir == domain.DirectionOut || chat.UnreadCount == 0,
			Raw:            domain.MustJSON(h.Raw),
		})
		if err != nil {
			return err
		}
		if created {
			inserted++
			if newest == nil || m.SentAt.After(newest.SentAt) {
				newest = m
			}
		}
	}

	if newest != nil {
		if _, err := repo.TouchPreview(ctx, s.DB, chat.ID, newest.SentAt, newest.Text); err != nil {
			return err
		}
	}
	if _, err := repo.UpdateChatRaw(ctx, s.DB, chat.ID, func(b domain.RawBag) {
		b["historySyncedAt"] = now.Format(time.RFC3339Nano)
		b["historySync"] = map[string]any{
			"at":       now.Format(time.RFC3339Nano),
			"fetched":  len(entries),
			"inserted": inserted,
			"limit":    historyPageSize,
		}
	}); err != nil {
		return err
	}
	if _, err := repo.RecomputeUnread(ctx, s.DB, chat.ID); err != nil {
		return err
	}

	log.Info().Str("chat_id", chat.ID).Int("fetched", len(entries)).Int("inserted", inserted).Msg("history refreshed")
	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	return nil
}

// SendInput is an operator reply.
type SendInput struct {
	Text           string
	MarkRead       bool
	IdempotencyKey string
}

// SendResult is the stored OUT message. Replayed is set when an earlier
// request with the same idempotency key produced it.
type SendResult struct {
	Message  *domain.Message
	Replayed bool
}

// Send delivers an operator reply. The chat moves to the manager queue and,
// with MarkRead, all inbound messages become read.
func (s *ChatService) Send(ctx context.Context, chatID string, in SendInput) (*SendResult, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Bool("mark_read", in.MarkRead),
		),
	)
	defer span.End()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		rec, err := repo.GetIdempotency(ctx, s.DB, chat.ID, in.IdempotencyKey, s.clock())
		if err == nil {
			if m, err := repo.GetMessage(ctx, s.DB, rec.MessageID); err == nil {
				return &SendResult{Message: m, Replayed: true}, nil
			}
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	read := readNone
	if in.MarkRead {
		read = readAll
	}
	res, err := s.outbound().Deliver(ctx, outboundRequest{
		Chat:           chat,
		Text:           text,
		Source:         "crm_send",
		MockPrefix:     "mock_out",
		FallbackPrefix: "avito",
		Read:           read,
		Status:         domain.StatusManager,
	})
	if err != nil {
		return nil, err
	}
	msg := res.Message

	if in.IdempotencyKey != "" {
		ttl := s.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		if _, err := repo.CreateIdempotency(ctx, s.DB, chat.ID, in.IdempotencyKey, msg.ID, 200, ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			log.Warn().Err(err).Str("chat_id", chat.ID).Msg("store idempotency record")
		}
	}
	return &SendResult{Message: msg}, nil
}

func (s *ChatService) outbound() *Outbound {
	return &Outbound{DB: s.DB, Avito: s.Avito, Bus: s.Bus, MockMode: s.MockMode, now: s.now}
}

// ReadResult reports the provider side of a mark-read. AvitoOK is nil when
// the provider was not called. AvitoErr holds the provider failure for
// logging and is never sent to operators.
type ReadResult struct {
	AvitoOK  *bool
	AvitoErr error
}

// MarkRead marks every inbound message of the chat read. The provider is
// told as well; its failure does not stop the local update.
func (s *ChatService) MarkRead(ctx context.Context, chatID string) (*ReadResult, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "MarkRead",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	chat, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}

	res := &ReadResult{}
	if !s.MockMode && chat.ExternalID() != "" {
		var lastID string
		if tail, err := repo.ListMessagesTail(ctx, s.DB, chat.ID, 1); err == nil && len(tail) == 1 {
			lastID = tail[0].AvitoMessageID
		}
		ok := true
		if err := s.Avito.MarkChatRead(ctx, chat.ExternalID(), lastID); err != nil {
			ok = false
			res.AvitoErr = err
			log.Warn().Err(err).Str("chat_id", chat.ID).Msg("provider mark read failed")
		}
		res.AvitoOK = &ok
	}

	if _, err := repo.MarkInboundRead(ctx, s.DB, chat.ID, nil); err != nil {
		return nil, err
	}
	if _, err := repo.RecomputeUnread(ctx, s.DB, chat.ID); err != nil {
		return nil, err
	}

	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatRead, chat))
	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	return res, nil
}

// Pin sets the pinned flag of a manager chat, or toggles it when pinned is
// nil. It returns the resulting value.
func (s *ChatService) Pin(ctx context.Context, chatID string, pinned *bool) (bool, error) {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return false, err
	}
	if chat.Status != domain.StatusManager {
		return false, ErrNotManager
	}
	next := !chat.Pinned
	if pinned != nil {
		next = *pinned
	}
	if err := repo.SetChatPinned(ctx, s.DB, chat.ID, next); err != nil {
		return false, err
	}
	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatPinned, chat))
	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	return next, nil
}

// Finish hands a manager chat back to the bot and unpins it.
func (s *ChatService) Finish(ctx context.Context, chatID string) error {
	chat, err := s.load(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Status != domain.StatusManager {
		return ErrNotManager
	}
	if err := repo.SetChatStatus(ctx, s.DB, chat.ID, domain.StatusBot); err != nil {
		return err
	}
	log.Info().Str("chat_id", chat.ID).Msg("chat finished")
	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatFinished, chat))
	s.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	return nil
}
