package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func strp(s string) *string { return &s }

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Chat{}).TableName():             "chats",
		(Message{}).TableName():          "messages",
		(WebhookEvent{}).TableName():     "webhook_events",
		(IntegrationState{}).TableName(): "integration_state",
		(AiAssistant{}).TableName():      "ai_assistant",
		(Idempotency{}).TableName():      "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestChatStatus_Valid(t *testing.T) {
	if !StatusBot.Valid() || !StatusManager.Valid() {
		t.Fatal("known statuses must be valid")
	}
	if ChatStatus("bot").Valid() || ChatStatus("").Valid() {
		t.Fatal("unknown statuses must be invalid")
	}
}

func TestChat_ExternalID_NeedsEnrichment(t *testing.T) {
	var nilChat *Chat
	if nilChat.ExternalID() != "" {
		t.Fatal("nil chat has no external id")
	}
	c := &Chat{AvitoChatID: strp("u2i-1")}
	if c.ExternalID() != "u2i-1" {
		t.Fatalf("ExternalID = %q", c.ExternalID())
	}
	if !c.NeedsEnrichment() {
		t.Fatal("empty chat should need enrichment")
	}
	c.CustomerName = strp("Ann")
	c.ItemTitle = strp("Bike")
	c.AdURL = strp("https://avito.ru/x_1")
	if !c.NeedsEnrichment() {
		t.Fatal("chat without chat url should still need enrichment")
	}
	c.ChatURL = strp("")
	if !c.NeedsEnrichment() {
		t.Fatal("empty string counts as missing")
	}
	c.ChatURL = strp("https://avito.ru/chat/1")
	if c.NeedsEnrichment() {
		t.Fatal("fully populated chat should not need enrichment")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Chat{}, &Message{}, &WebhookEvent{}, &IntegrationState{}, &AiAssistant{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, idx := range []struct {
		model any
		name  string
	}{
		{&Chat{}, "ux_chats_avito_chat_id"},
		{&Chat{}, "idx_chats_status_last"},
		{&Message{}, "ux_messages_chat_avito"},
		{&Message{}, "idx_messages_chat_sent"},
		{&WebhookEvent{}, "ux_webhook_source_event"},
	} {
		if !m.HasIndex(idx.model, idx.name) {
			t.Fatalf("expected index %s on %T", idx.name, idx.model)
		}
	}

	now := time.Now().UTC()
	ch := &Chat{ID: "c1", AvitoChatID: strp("a1"), Status: StatusBot, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(ch).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	dupChat := &Chat{ID: "c2", AvitoChatID: strp("a1"), Status: StatusBot}
	if err := db.Create(dupChat).Error; err == nil {
		t.Fatal("expected unique violation on avito_chat_id")
	}

	m1 := &Message{ID: "m1", ChatID: "c1", AvitoMessageID: "x1", Direction: DirectionIn, Text: "hi", SentAt: now}
	if err := db.Omit("Chat").Create(m1).Error; err != nil {
		t.Fatalf("insert m1: %v", err)
	}
	m1dup := &Message{ID: "m2", ChatID: "c1", AvitoMessageID: "x1", Direction: DirectionIn, Text: "hi", SentAt: now}
	if err := db.Omit("Chat").Create(m1dup).Error; err == nil {
		t.Fatal("expected unique violation on (chat_id, avito_message_id)")
	}

	// CASCADE: deleting the chat removes its messages.
	if err := db.Delete(&Chat{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("chat_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got %d", cnt)
	}
}

func TestWebhookEvent_NullEventIDNeverConflicts(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&WebhookEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		ev := &WebhookEvent{ID: uuid.NewString(), Source: "AVITO", Payload: []byte(`{}`), ReceivedAt: now}
		if err := db.Create(ev).Error; err != nil {
			t.Fatalf("insert #%d: %v", i, err)
		}
	}
	for i := 0; i < 2; i++ {
		ev := &WebhookEvent{ID: uuid.NewString(), Source: "AVITO", EventID: strp("e1"), Payload: []byte(`{}`), ReceivedAt: now}
		err := db.Create(ev).Error
		if i == 0 && err != nil {
			t.Fatalf("first insert: %v", err)
		}
		if i == 1 && err == nil {
			t.Fatal("expected unique violation on (source, event_id)")
		}
	}
}

func TestRawBag_RoundTrip(t *testing.T) {
	bag := DecodeRaw(nil)
	if len(bag) != 0 {
		t.Fatalf("nil column should decode to empty bag, got %v", bag)
	}
	if got := DecodeRaw([]byte(`[1,2]`)); len(got) != 0 {
		t.Fatalf("non-object should decode to empty bag, got %v", got)
	}

	bag["itemId"] = float64(42)
	bag.Object("enrich")["source"] = "avitoGetChatInfo"
	back := DecodeRaw(bag.Encode())
	if back.Object("enrich")["source"] != "avitoGetChatInfo" {
		t.Fatalf("nested value lost: %v", back)
	}
	if back["itemId"] != float64(42) {
		t.Fatalf("itemId lost: %v", back)
	}
	if back.String("missing") != "" {
		t.Fatal("missing key should read as empty string")
	}

	// Object replaces a non-object value.
	back["testBot"] = "junk"
	back.Object("testBot")["greetedAt"] = "now"
	if _, ok := back["testBot"].(map[string]any); !ok {
		t.Fatalf("testBot should now be an object: %T", back["testBot"])
	}
}

func TestMustJSON(t *testing.T) {
	if got := string(MustJSON(map[string]any{"a": 1})); got != `{"a":1}` {
		t.Fatalf("MustJSON = %s", got)
	}
	if got := string(MustJSON(func() {})); got != "{}" {
		t.Fatalf("unmarshalable input should yield {}, got %s", got)
	}
}
