package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

func newChatService(t *testing.T) (*ChatService, *realtime.Bus) {
	t.Helper()
	bus := realtime.New()
	return &ChatService{DB: newTestDB(t), Bus: bus, MockMode: true}, bus
}

func at(min int) time.Time {
	return time.Date(2024, 5, 1, 12, min, 0, 0, time.UTC)
}

func TestChatService_List(t *testing.T) {
	s, _ := newChatService(t)
	ctx := context.Background()

	a := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("a"), LastMessageAt: ptrTime(at(1)), Price: i64p(300)})
	b := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("b"), LastMessageAt: ptrTime(at(5)), Price: i64p(100)})
	c := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c"), Status: domain.StatusManager, Pinned: true, LastMessageAt: ptrTime(at(0))})
	// stale counter: one unread row but the cache says 0
	seedMessage(t, s.DB, domain.Message{ChatID: a.ID, Direction: domain.DirectionIn, Text: "x", SentAt: at(1)})

	t.Run("default order and unread repair", func(t *testing.T) {
		res, err := s.List(ctx, repo.ChatFilter{})
		if err != nil {
			t.Fatal(err)
		}
		got := ids(res.Chats)
		want := []string{c.ID, b.ID, a.ID}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("order = %v; want %v", got, want)
		}
		if res.Chats[2].UnreadCount != 1 || mustChat(t, s.DB, a.ID).UnreadCount != 1 {
			t.Fatal("unread counter not repaired")
		}
		if !strings.HasPrefix(res.ETag, `W/"chats-3-`) {
			t.Fatalf("etag = %s", res.ETag)
		}
	})

	t.Run("status filter and price sort", func(t *testing.T) {
		res, err := s.List(ctx, repo.ChatFilter{Status: domain.StatusBot, SortField: "price", SortOrder: "asc"})
		if err != nil {
			t.Fatal(err)
		}
		if got := ids(res.Chats); len(got) != 2 || got[0] != b.ID || got[1] != a.ID {
			t.Fatalf("order = %v", got)
		}
	})

	t.Run("unread only", func(t *testing.T) {
		res, err := s.List(ctx, repo.ChatFilter{UnreadOnly: true})
		if err != nil {
			t.Fatal(err)
		}
		if got := ids(res.Chats); len(got) != 1 || got[0] != a.ID {
			t.Fatalf("unread only = %v", got)
		}
	})

	t.Run("etag changes with data and filter", func(t *testing.T) {
		r1, _ := s.List(ctx, repo.ChatFilter{})
		r2, _ := s.List(ctx, repo.ChatFilter{})
		if r1.ETag != r2.ETag {
			t.Fatal("etag must be stable without changes")
		}
		r3, _ := s.List(ctx, repo.ChatFilter{Limit: 1})
		if r3.ETag == r1.ETag {
			t.Fatal("etag must depend on the filter")
		}
		seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("d")})
		r4, _ := s.List(ctx, repo.ChatFilter{})
		if r4.ETag == r1.ETag {
			t.Fatal("etag must change when chats change")
		}
	})
}

func TestChatService_Messages(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		s, _ := newChatService(t)
		if _, err := s.Messages(context.Background(), "nope", false); !errors.Is(err, ErrChatNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("chronological tail", func(t *testing.T) {
		s, _ := newChatService(t)
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, Direction: domain.DirectionIn, Text: "second", SentAt: at(2)})
		seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, Direction: domain.DirectionIn, Text: "first", SentAt: at(1)})
		res, err := s.Messages(context.Background(), chat.ID, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Refreshed || len(res.Messages) != 2 || res.Messages[0].Text != "first" {
			t.Fatalf("result = %+v", res)
		}
	})

	t.Run("refresh inserts missing history", func(t *testing.T) {
		s, bus := newChatService(t)
		s.MockMode = false
		s.Avito = &stubProvider{listMessages: func(_ string, _, offset int) (any, error) {
			if offset > 0 {
				return map[string]any{"messages": []any{}}, nil
			}
			return map[string]any{"messages": []any{
				map[string]any{"id": "h1", "author_id": 555, "created": at(1).Unix(), "content": map[string]any{"text": "hi"}},
				map[string]any{"id": "h2", "author_id": testAccountID, "created": at(2).Unix(), "content": map[string]any{"text": "hello"}},
				map[string]any{"content": map[string]any{"text": "no id"}},
			}}, nil
		}}
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, AvitoMessageID: "h1", Direction: domain.DirectionIn, Text: "hi", SentAt: at(1), IsRead: true})
		sub := bus.Subscribe(chat.ID, 8)
		defer sub.Close()

		before, err := s.Messages(context.Background(), chat.ID, false)
		if err != nil {
			t.Fatal(err)
		}
		if !before.NeedsRefresh {
			t.Fatal("unsynced linked chat needs refresh")
		}

		res, err := s.Messages(context.Background(), chat.ID, true)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Refreshed || len(res.Messages) != 2 {
			t.Fatalf("result = %+v", res)
		}
		if res.Messages[1].Direction != domain.DirectionOut || res.Messages[1].Text != "hello" {
			t.Fatalf("inserted = %+v", res.Messages[1])
		}
		got := mustChat(t, s.DB, chat.ID)
		if *got.LastMessageText != "hello" {
			t.Fatalf("preview = %q", *got.LastMessageText)
		}
		hs, _ := domain.DecodeRaw(got.Raw)["historySync"].(map[string]any)
		if hs["inserted"] != float64(1) || hs["fetched"] != float64(3) {
			t.Fatalf("raw.historySync = %v", hs)
		}
		if types := eventTypes(drain(sub)); len(types) != 1 || types[0] != realtime.EventChatUpdated {
			t.Fatalf("events = %v", types)
		}
	})

	t.Run("refresh provider failure", func(t *testing.T) {
		s, _ := newChatService(t)
		s.MockMode = false
		s.Avito = &stubProvider{}
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		if _, err := s.Messages(context.Background(), chat.ID, true); !errors.Is(err, ErrProviderFailed) {
			t.Fatalf("err = %v; want ErrProviderFailed", err)
		}
	})
}

func TestChatService_Send(t *testing.T) {
	t.Run("mock send moves chat to manager", func(t *testing.T) {
		s, bus := newChatService(t)
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, Direction: domain.DirectionIn, Text: "q", SentAt: at(1)})
		sub := bus.Subscribe(chat.ID, 8)
		defer sub.Close()

		res, err := s.Send(context.Background(), chat.ID, SendInput{Text: "  answer ", MarkRead: true})
		if err != nil {
			t.Fatal(err)
		}
		if res.Replayed || res.Message.Text != "answer" || !strings.HasPrefix(res.Message.AvitoMessageID, "mock_out_") {
			t.Fatalf("result = %+v", res.Message)
		}
		got := mustChat(t, s.DB, chat.ID)
		if got.Status != domain.StatusManager || got.UnreadCount != 0 || *got.LastMessageText != "answer" {
			t.Fatalf("chat = %+v", got)
		}
		want := []realtime.EventType{realtime.EventMessageCreated, realtime.EventChatRead, realtime.EventChatUpdated}
		if types := eventTypes(drain(sub)); fmt.Sprint(types) != fmt.Sprint(want) {
			t.Fatalf("events = %v; want %v", types, want)
		}
	})

	t.Run("without mark read inbound stays unread", func(t *testing.T) {
		s, _ := newChatService(t)
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, Direction: domain.DirectionIn, Text: "q", SentAt: at(1)})
		if _, err := s.Send(context.Background(), chat.ID, SendInput{Text: "a"}); err != nil {
			t.Fatal(err)
		}
		if got := mustChat(t, s.DB, chat.ID).UnreadCount; got != 1 {
			t.Fatalf("unread = %d; want 1", got)
		}
	})

	t.Run("idempotency key replays", func(t *testing.T) {
		s, _ := newChatService(t)
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		first, err := s.Send(context.Background(), chat.ID, SendInput{Text: "a", IdempotencyKey: "k1"})
		if err != nil {
			t.Fatal(err)
		}
		second, err := s.Send(context.Background(), chat.ID, SendInput{Text: "a", IdempotencyKey: "k1"})
		if err != nil {
			t.Fatal(err)
		}
		if !second.Replayed || second.Message.ID != first.Message.ID {
			t.Fatalf("second = %+v", second)
		}
		if n := countRows(t, s.DB, &domain.Message{}, ""); n != 1 {
			t.Fatalf("messages = %d; want 1", n)
		}
	})

	t.Run("errors", func(t *testing.T) {
		s, _ := newChatService(t)
		if _, err := s.Send(context.Background(), "nope", SendInput{Text: "a"}); !errors.Is(err, ErrChatNotFound) {
			t.Fatalf("missing chat: %v", err)
		}
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		if _, err := s.Send(context.Background(), chat.ID, SendInput{Text: " "}); !errors.Is(err, ErrEmptyText) {
			t.Fatalf("empty text: %v", err)
		}

		s.MockMode = false
		s.Avito = &stubProvider{send: func(string, string) (any, error) { return nil, errors.New("bad gateway") }}
		if _, err := s.Send(context.Background(), chat.ID, SendInput{Text: "a"}); !errors.Is(err, ErrSendFailed) {
			t.Fatalf("provider failure: %v", err)
		}
		unlinked := seedChat(t, s.DB, domain.Chat{})
		if _, err := s.Send(context.Background(), unlinked.ID, SendInput{Text: "a"}); !errors.Is(err, ErrNotLinked) {
			t.Fatalf("unlinked: %v", err)
		}
		if n := countRows(t, s.DB, &domain.Message{}, ""); n != 0 {
			t.Fatalf("messages = %d; want 0", n)
		}
	})

	t.Run("provider id is used", func(t *testing.T) {
		s, _ := newChatService(t)
		s.MockMode = false
		s.Avito = &stubProvider{send: func(string, string) (any, error) {
			return map[string]any{"id": "av-1"}, nil
		}}
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		res, err := s.Send(context.Background(), chat.ID, SendInput{Text: "a"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Message.AvitoMessageID != "av-1" {
			t.Fatalf("id = %q", res.Message.AvitoMessageID)
		}
	})

	t.Run("provider response without id gets a fallback id", func(t *testing.T) {
		s, bus := newChatService(t)
		s.MockMode = false
		s.now = func() time.Time { return time.UnixMilli(1700000000123) }
		s.Avito = &stubProvider{send: func(string, string) (any, error) {
			return map[string]any{"ok": true}, nil
		}}
		chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
		seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, Direction: domain.DirectionIn, Text: "q", SentAt: at(1)})
		sub := bus.Subscribe(chat.ID, 8)
		defer sub.Close()

		res, err := s.Send(context.Background(), chat.ID, SendInput{Text: "a"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Message.AvitoMessageID != "avito_1700000000123" {
			t.Fatalf("id = %q", res.Message.AvitoMessageID)
		}
		raw := domain.DecodeRaw(res.Message.Raw)
		if raw.String("source") != "crm_send" || raw["avitoSendResp"] == nil || raw["from"] != nil {
			t.Fatalf("raw = %v", raw)
		}
		got := mustChat(t, s.DB, chat.ID)
		if got.Status != domain.StatusManager || got.UnreadCount != 1 {
			t.Fatalf("chat = %+v", got)
		}
		want := []realtime.EventType{realtime.EventMessageCreated, realtime.EventChatUpdated}
		if types := eventTypes(drain(sub)); fmt.Sprint(types) != fmt.Sprint(want) {
			t.Fatalf("events = %v; want %v", types, want)
		}
	})
}

func TestChatService_MarkRead(t *testing.T) {
	s, bus := newChatService(t)
	s.MockMode = false
	var lastSeen string
	s.Avito = &stubProvider{markRead: func(_, last string) error {
		lastSeen = last
		return errors.New("unauthorized")
	}}
	chat := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("c1")})
	seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, AvitoMessageID: "m1", Direction: domain.DirectionIn, SentAt: at(1)})
	seedMessage(t, s.DB, domain.Message{ChatID: chat.ID, AvitoMessageID: "m2", Direction: domain.DirectionIn, SentAt: at(2)})
	sub := bus.Subscribe("", 8)
	defer sub.Close()

	res, err := s.MarkRead(context.Background(), chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.AvitoOK == nil || *res.AvitoOK || res.AvitoErr == nil || lastSeen != "m2" {
		t.Fatalf("result = %+v last=%s", res, lastSeen)
	}
	if got := mustChat(t, s.DB, chat.ID).UnreadCount; got != 0 {
		t.Fatalf("unread = %d", got)
	}
	want := []realtime.EventType{realtime.EventChatRead, realtime.EventChatUpdated}
	if types := eventTypes(drain(sub)); fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("events = %v", types)
	}

	s.MockMode = true
	res, err = s.MarkRead(context.Background(), chat.ID)
	if err != nil || res.AvitoOK != nil {
		t.Fatalf("mock mark read = %+v, %v", res, err)
	}
}

func TestChatService_PinAndFinish(t *testing.T) {
	s, _ := newChatService(t)
	ctx := context.Background()
	bot := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("b")})
	mgr := seedChat(t, s.DB, domain.Chat{AvitoChatID: strp("m"), Status: domain.StatusManager})

	if _, err := s.Pin(ctx, bot.ID, nil); !errors.Is(err, ErrNotManager) {
		t.Fatalf("pin bot chat: %v", err)
	}
	if err := s.Finish(ctx, bot.ID); !errors.Is(err, ErrNotManager) {
		t.Fatalf("finish bot chat: %v", err)
	}
	if _, err := s.Pin(ctx, "nope", nil); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("pin missing: %v", err)
	}

	pinned, err := s.Pin(ctx, mgr.ID, nil)
	if err != nil || !pinned {
		t.Fatalf("toggle = %v, %v", pinned, err)
	}
	off := false
	if pinned, err = s.Pin(ctx, mgr.ID, &off); err != nil || pinned {
		t.Fatalf("explicit = %v, %v", pinned, err)
	}
	if _, err := s.Pin(ctx, mgr.ID, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Finish(ctx, mgr.ID); err != nil {
		t.Fatal(err)
	}
	got := mustChat(t, s.DB, mgr.ID)
	if got.Status != domain.StatusBot || got.Pinned {
		t.Fatalf("finished chat = %+v", got)
	}
}

func ids(chats []domain.Chat) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}

func ptrTime(t time.Time) *time.Time { return &t }
