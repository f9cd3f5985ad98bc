package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

// Outbound sends text into a marketplace chat and records the OUT message.
// In mock mode no provider call is made and a synthetic id is used.
type Outbound struct {
	DB       *gorm.DB
	Avito    Provider
	Bus      *realtime.Bus
	MockMode bool

	now func() time.Time
}

func (o *Outbound) clock() time.Time {
	if o.now != nil {
		return o.now().UTC()
	}
	return time.Now().UTC()
}

// readScope picks which inbound messages an outbound message marks read.
type readScope int

const (
	// readThroughReply marks inbound messages up to the reply and announces
	// chat_read before message_created.
	readThroughReply readScope = iota
	readNone
	// readAll marks every inbound message and announces chat_read after
	// message_created.
	readAll
)

// outboundRequest describes one outgoing message.
type outboundRequest struct {
	Chat *domain.Chat
	Text string
	// From tags automatic replies (ai_assistant, dev_test_bot).
	From string
	// Source tags operator replies.
	Source string
	// MockPrefix names synthetic ids in mock mode.
	MockPrefix string
	// FallbackPrefix names the id used when the provider response carries
	// none. Empty means such a reply is not recorded.
	FallbackPrefix string
	Read           readScope
	// Status, when set, moves the chat to that queue.
	Status domain.ChatStatus
}

type outboundResult struct {
	Message *domain.Message
	Created bool
}

func stampID(prefix string, at time.Time) string {
	return prefix + "_" + strconv.FormatInt(at.UnixMilli(), 10)
}

// Deliver sends req and, when an id is known, stores the OUT row, moves the
// preview, applies req.Read and req.Status, and publishes chat_read,
// message_created (new rows only) and chat_updated.
func (o *Outbound) Deliver(ctx context.Context, req outboundRequest) (*outboundResult, error) {
	chat := req.Chat
	raw := map[string]any{}
	if req.From != "" {
		raw["from"] = req.From
	}
	if req.Source != "" {
		raw["source"] = req.Source
	}

	var outID string
	if o.MockMode {
		outID = stampID(req.MockPrefix, o.clock())
		raw["mock"] = true
	} else {
		if chat.ExternalID() == "" {
			return nil, ErrNotLinked
		}
		resp, err := o.Avito.SendTextMessage(ctx, chat.ExternalID(), req.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		raw["avitoSendResp"] = resp
		outID = normalize.SendResponseID(resp)
		if outID == "" {
			if req.FallbackPrefix == "" {
				return &outboundResult{}, nil
			}
			outID = stampID(req.FallbackPrefix, o.clock())
		}
	}

	sentAt := o.clock()
	msg, created, err := repo.InsertMessage(ctx, o.DB, &domain.Message{
		ChatID:         chat.ID,
		AvitoMessageID: outID,
		Direction:      domain.DirectionOut,
		Text:           req.Text,
		SentAt:         sentAt,
		IsRead:         true,
		Raw:            domain.MustJSON(raw),
	})
	if err != nil {
		return nil, fmt.Errorf("store outbound message: %w", err)
	}
	if _, err := repo.TouchPreview(ctx, o.DB, chat.ID, sentAt, req.Text); err != nil {
		return nil, err
	}
	if req.Status != "" && chat.Status != req.Status {
		if err := repo.SetChatStatus(ctx, o.DB, chat.ID, req.Status); err != nil {
			return nil, err
		}
	}
	switch req.Read {
	case readThroughReply:
		_, err = repo.MarkInboundRead(ctx, o.DB, chat.ID, &sentAt)
	case readAll:
		_, err = repo.MarkInboundRead(ctx, o.DB, chat.ID, nil)
	}
	if err != nil {
		return nil, err
	}
	if _, err := repo.RecomputeUnread(ctx, o.DB, chat.ID); err != nil {
		return nil, err
	}

	if req.Read == readThroughReply {
		o.Bus.Publish(realtime.ChatEvent(realtime.EventChatRead, chat))
	}
	if created {
		o.Bus.Publish(realtime.MessageCreated(chat, msg))
	}
	if req.Read == readAll {
		o.Bus.Publish(realtime.ChatEvent(realtime.EventChatRead, chat))
	}
	o.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
	return &outboundResult{Message: msg, Created: created}, nil
}
