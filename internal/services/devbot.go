package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

const (
	devBotCustomer = "Вадим Ли"
	devBotGreeting = "Здравствуйте!"
)

var devEscalateRE = regexp.MustCompile(
	`(?i)(?:перевед(?:и|ите)|передай(?:те)?|переключ(?:и|ите))\s+(?:на|к)\s+(?:оператор(?:а|у)?|менеджер(?:а|у)?)(?:\s|$|[.!?,:;])`,
)

var spacesRE = regexp.MustCompile(`\s+`)

// normHuman folds a display name for comparison.
func normHuman(s string) string {
	return spacesRE.ReplaceAllString(cases.Lower(language.Russian).String(strings.TrimSpace(s)), " ")
}

// DevBotInput describes the inbound message the test bot reacts to.
type DevBotInput struct {
	ChatID       string
	Text         string
	MessageID    string
	CreatedAt    *time.Time
	CustomerHint string
}

// RunDevBot is a scripted responder for end-to-end checks outside
// production. It only reacts to the test customer: it greets once per
// inbound message and hands the chat to a manager when asked to.
func (d *Dispatcher) RunDevBot(ctx context.Context, in DevBotInput) error {
	if d.Production {
		return nil
	}
	chat, err := repo.GetChat(ctx, d.DB, in.ChatID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if chat.ExternalID() == "" {
		return nil
	}

	tb, _ := domain.DecodeRaw(chat.Raw)["testBot"].(map[string]any)
	if in.MessageID != "" && tb != nil {
		if last, _ := tb["lastInMessageId"].(string); last == in.MessageID {
			return nil
		}
	}

	name := d.customerName(ctx, chat, in.CustomerHint)
	if normHuman(name) != normHuman(devBotCustomer) {
		return nil
	}
	if chat.Status == domain.StatusManager {
		return nil
	}

	text := strings.TrimSpace(in.Text)
	lastInAt := time.Now().UTC()
	if in.CreatedAt != nil {
		lastInAt = in.CreatedAt.UTC()
	}
	stamp := func(extra map[string]any) func(domain.RawBag) {
		return func(b domain.RawBag) {
			t := b.Object("testBot")
			if in.MessageID != "" {
				t["lastInMessageId"] = in.MessageID
			}
			t["lastInText"] = text
			t["lastInAt"] = lastInAt.Format(time.RFC3339Nano)
			for k, v := range extra {
				t[k] = v
			}
		}
	}

	if devEscalateRE.MatchString(text) {
		if err := repo.SetChatStatus(ctx, d.DB, chat.ID, domain.StatusManager); err != nil {
			return err
		}
		if _, err := repo.UpdateChatRaw(ctx, d.DB, chat.ID, stamp(map[string]any{
			"escalatedAt": time.Now().UTC().Format(time.RFC3339Nano),
			"reason":      "operator_requested",
		})); err != nil {
			return err
		}
		log.Info().Str("chat_id", chat.ID).Msg("dev bot: operator requested")
		d.Bus.Publish(realtime.ChatEvent(realtime.EventChatUpdated, chat))
		return nil
	}

	res, err := d.Out.Deliver(ctx, outboundRequest{
		Chat:       chat,
		Text:       devBotGreeting,
		From:       "dev_test_bot",
		MockPrefix: "mock_out",
	})
	if err != nil {
		return err
	}
	if res.Message == nil {
		return nil
	}
	_, err = repo.UpdateChatRaw(ctx, d.DB, chat.ID, stamp(map[string]any{
		"greetedAt": time.Now().UTC().Format(time.RFC3339Nano),
	}))
	return err
}

// customerName resolves the counterpart name from the chat, the delivery
// hint, or the provider, backfilling the chat when the provider knows it.
func (d *Dispatcher) customerName(ctx context.Context, chat *domain.Chat, hint string) string {
	if chat.CustomerName != nil && *chat.CustomerName != "" {
		return *chat.CustomerName
	}
	if hint != "" {
		return hint
	}
	if d.MockMode || d.Avito == nil {
		return ""
	}
	info, err := d.Avito.GetChatInfo(ctx, chat.ExternalID())
	if err != nil {
		log.Debug().Err(err).Str("chat_id", chat.ID).Msg("dev bot: chat info lookup failed")
		return ""
	}
	name := normalize.ExtractChatDetails(info, d.Avito.AccountID()).CustomerName
	if name != "" {
		if _, err := repo.FillChatFields(ctx, d.DB, chat.ID, repo.ChatPatch{CustomerName: &name}); err != nil {
			log.Warn().Err(err).Str("chat_id", chat.ID).Msg("dev bot: backfill customer name")
		}
	}
	return name
}
