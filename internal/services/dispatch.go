package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
	"github.com/andrrrrey/avito-crm/internal/responder"
)

// Dispatcher decides what happens after a new inbound message: an automatic
// reply, an escalation to a human, or nothing.
type Dispatcher struct {
	DB        *gorm.DB
	Bus       *realtime.Bus
	Avito     Provider
	Responder responder.Responder
	Out       *Outbound

	MockMode   bool
	Production bool
}

// HandleInbound asks the responder for a reply to text. Chats that are not
// in BOT status and empty texts are skipped. A reply carrying the
// escalation marker moves the chat to MANAGER and nothing is sent.
func (d *Dispatcher) HandleInbound(ctx context.Context, chatID, text string) error {
	ctx, span := otel.Tracer("services/Dispatcher").Start(ctx, "HandleInbound",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	chat, err := repo.GetChat(ctx, d.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		log.Debug().Str("chat_id", chatID).Msg("auto reply skipped: chat not found")
		return nil
	}
	if err != nil {
		return err
	}
	if chat.Status != domain.StatusBot {
		log.Debug().Str("chat_id", chatID).Str("status", string(chat.Status)).Msg("auto reply skipped: not a BOT chat")
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" || d.Responder == nil {
		return nil
	}

	reply, err := d.Responder.Reply(ctx, chat.ID, text)
	if err != nil {
		autoReplies.WithLabelValues("error").Inc()
		return err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		autoReplies.WithLabelValues("empty").Inc()
		return nil
	}

	if responder.WantsEscalation(reply) {
		autoReplies.WithLabelValues("escalated").Inc()
		return d.escalate(ctx, chat, reply)
	}

	if _, err := d.Out.Deliver(ctx, outboundRequest{
		Chat:           chat,
		Text:           reply,
		From:           "ai_assistant",
		MockPrefix:     "ai_out",
		FallbackPrefix: "ai",
	}); err != nil {
		autoReplies.WithLabelValues("error").Inc()
		return err
	}
	autoReplies.WithLabelValues("sent").Inc()
	return nil
}

func (d *Dispatcher) escalate(ctx context.Context, chat *domain.Chat, reply string) error {
	if err := repo.SetChatStatus(ctx, d.DB, chat.ID, domain.StatusManager); err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, err := repo.UpdateChatRaw(ctx, d.DB, chat.ID, func(b domain.RawBag) {
		b["escalation"] = map[string]any{
			"reason": "assistant",
			"at":     now.Format(time.RFC3339Nano),
			"text":   strings.TrimSpace(strings.ReplaceAll(reply, responder.EscalateMarker, "")),
		}
	}); err != nil {
		return err
	}
	log.Info().Str("chat_id", chat.ID).Msg("chat escalated to manager")
	d.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	return nil
}
