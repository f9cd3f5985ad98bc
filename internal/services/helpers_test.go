package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/realtime"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

const testAccountID int64 = 777

// newTestDB returns an isolated shared-cache in-memory SQLite database with
// the schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// stubProvider is a Provider whose behaviour is set per test. Nil funcs
// fail the call.
type stubProvider struct {
	getChatInfo   func(chatID string) (any, error)
	listMessages  func(chatID string, limit, offset int) (any, error)
	send          func(chatID, text string) (any, error)
	markRead      func(chatID, lastID string) error
	getItemInfo   func(itemID int64) (normalize.ItemInfo, error)
	subscribe     func(url string) (normalize.Subscription, error)
	unsubscribe   func(id string) error
	subscriptions func() ([]normalize.Subscription, error)

	mu    sync.Mutex
	calls []string
}

var errNotStubbed = errors.New("not stubbed")

func (p *stubProvider) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *stubProvider) count(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (p *stubProvider) AccountID() int64 { return testAccountID }

func (p *stubProvider) GetChatInfo(_ context.Context, chatID string) (any, error) {
	p.record("GetChatInfo " + chatID)
	if p.getChatInfo == nil {
		return nil, errNotStubbed
	}
	return p.getChatInfo(chatID)
}

func (p *stubProvider) ListMessages(_ context.Context, chatID string, limit, offset int) (any, error) {
	p.record(fmt.Sprintf("ListMessages %s %d", chatID, offset))
	if p.listMessages == nil {
		return nil, errNotStubbed
	}
	return p.listMessages(chatID, limit, offset)
}

func (p *stubProvider) SendTextMessage(_ context.Context, chatID, text string) (any, error) {
	p.record("Send " + chatID)
	if p.send == nil {
		return nil, errNotStubbed
	}
	return p.send(chatID, text)
}

func (p *stubProvider) MarkChatRead(_ context.Context, chatID, lastID string) error {
	p.record("MarkRead " + chatID)
	if p.markRead == nil {
		return errNotStubbed
	}
	return p.markRead(chatID, lastID)
}

func (p *stubProvider) GetItemInfo(_ context.Context, itemID int64) (normalize.ItemInfo, error) {
	p.record(fmt.Sprintf("GetItemInfo %d", itemID))
	if p.getItemInfo == nil {
		return normalize.ItemInfo{}, errNotStubbed
	}
	return p.getItemInfo(itemID)
}

func (p *stubProvider) SubscribeWebhook(_ context.Context, url string) (normalize.Subscription, error) {
	p.record("Subscribe " + url)
	if p.subscribe == nil {
		return normalize.Subscription{}, errNotStubbed
	}
	return p.subscribe(url)
}

func (p *stubProvider) UnsubscribeWebhook(_ context.Context, id string) error {
	p.record("Unsubscribe " + id)
	if p.unsubscribe == nil {
		return errNotStubbed
	}
	return p.unsubscribe(id)
}

func (p *stubProvider) WebhookSubscriptions(context.Context) ([]normalize.Subscription, error) {
	p.record("Subscriptions")
	if p.subscriptions == nil {
		return nil, errNotStubbed
	}
	return p.subscriptions()
}

// drain collects the events currently buffered on sub.
func drain(sub *realtime.Subscription) []realtime.Event {
	var out []realtime.Event
	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(evs []realtime.Event) []realtime.EventType {
	out := make([]realtime.EventType, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

func seedChat(t *testing.T, db *gorm.DB, c domain.Chat) *domain.Chat {
	t.Helper()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.StatusBot
	}
	if len(c.Raw) == 0 {
		c.Raw = domain.RawBag{}.Encode()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	return &c
}

func seedMessage(t *testing.T, db *gorm.DB, m domain.Message) *domain.Message {
	t.Helper()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.AvitoMessageID == "" {
		m.AvitoMessageID = m.ID
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if err := db.Omit("Chat").Create(&m).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return &m
}

func strp(s string) *string { return &s }

func i64p(v int64) *int64 { return &v }

func mustChat(t *testing.T, db *gorm.DB, id string) *domain.Chat {
	t.Helper()
	c, err := repo.GetChat(context.Background(), db, id)
	if err != nil {
		t.Fatalf("GetChat(%s): %v", id, err)
	}
	return c
}
