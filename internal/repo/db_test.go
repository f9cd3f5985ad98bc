package repo

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/config"
	"github.com/andrrrrey/avito-crm/internal/domain"
)

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "crm.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want error", bad, db, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v; want not-exist", err)
	}
}

func TestOpenSQLite_PragmasPoolAndSchema(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "crm.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, p := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + p.name).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", p.name, err)
		}
		if strings.ToLower(got) != p.want {
			t.Errorf("PRAGMA %s = %q; want %q", p.name, got, p.want)
		}
	}
	if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
		t.Fatalf("MaxOpenConnections = %d; want 10", n)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.Chat{}, &domain.Message{}, &domain.WebhookEvent{}, &domain.IntegrationState{}, &domain.AiAssistant{}, &domain.Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("missing table for %T", tbl)
		}
	}

	// Quick insert round-trip to prove schema is usable.
	now := time.Now().UTC()
	avitoID := "u2i-1"
	chat := &domain.Chat{ID: "c1", AvitoChatID: &avitoID, Status: domain.StatusBot, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(chat).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	msg := &domain.Message{ID: "m1", ChatID: "c1", AvitoMessageID: "x1", Direction: domain.DirectionIn, Text: "hi", SentAt: now}
	if err := db.Omit("Chat").Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	idem := &domain.Idempotency{ID: "i1", Key: "k1", ChatID: "c1", MessageID: "m1", Status: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(idem).Error; err != nil {
		t.Fatalf("insert idempotency: %v", err)
	}

	var got domain.Chat
	if err := db.First(&got, "id = ?", "c1").Error; err != nil || got.ExternalID() != "u2i-1" {
		t.Fatalf("readback chat failed: err=%v got=%+v", err, got)
	}
}

func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "crm.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	conns := make([]*sql.Conn, 3)
	for i := range conns {
		c, err := sqlDB.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn %d: %v", i, err)
		}
		defer c.Close()
		conns[i] = c
	}
	for i, c := range conns {
		var timeout, fk int
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d busy_timeout: %v", i, err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("conn %d foreign_keys: %v", i, err)
		}
		if timeout != 5000 || fk != 1 {
			t.Fatalf("conn %d: busy_timeout=%d foreign_keys=%d", i, timeout, fk)
		}
	}
}

func TestOpen_FallsBackToSQLite(t *testing.T) {
	cfg := config.Config{DBPath: filepath.Join(t.TempDir(), "crm.db")}
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if db.Dialector.Name() != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %q", db.Dialector.Name())
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
}

func TestIsPostgresURL(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@h/db": true,
		"POSTGRESQL://h/db":   true,
		" postgres://h/db ":   true,
		"":                    false,
		"file:crm.db":         false,
		"mysql://u:p@h/db":    false,
	}
	for in, want := range cases {
		if got := isPostgresURL(in); got != want {
			t.Fatalf("isPostgresURL(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestIsDuplicate(t *testing.T) {
	if isDuplicate(nil) {
		t.Fatal("nil is not a duplicate")
	}
	for _, msg := range []string{
		"UNIQUE constraint failed: chats.avito_chat_id",
		"constraint failed: UNIQUE constraint failed (2067)",
		`ERROR: duplicate key value violates unique constraint "ux_idem_chat_key"`,
	} {
		if !isDuplicate(errors.New(msg)) {
			t.Fatalf("expected %q to be detected as duplicate", msg)
		}
	}
	if !isDuplicate(gorm.ErrDuplicatedKey) {
		t.Fatal("gorm.ErrDuplicatedKey must be a duplicate")
	}
	if isDuplicate(errors.New("database is locked")) {
		t.Fatal("unrelated error flagged as duplicate")
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
