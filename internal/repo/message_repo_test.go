package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

func msg(chatID, avitoID string, dir domain.Direction, at time.Time) *domain.Message {
	return &domain.Message{ChatID: chatID, AvitoMessageID: avitoID, Direction: dir, Text: avitoID, SentAt: at, IsRead: dir == domain.DirectionOut}
}

func TestInsertMessage_SkipsDuplicates(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	c := seedChat(t, db, "a1")
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	first, created, err := InsertMessage(ctx, db, msg(c.ID, "m1", domain.DirectionIn, at))
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}
	dup := msg(c.ID, "m1", domain.DirectionIn, at.Add(time.Hour))
	dup.Text = "changed"
	second, created, err := InsertMessage(ctx, db, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if created {
		t.Fatal("duplicate must not report creation")
	}
	if second.ID != first.ID || second.Text != "m1" || !second.SentAt.Equal(at) {
		t.Fatalf("stored row must be the original: %+v", second)
	}

	var n int64
	db.Model(&domain.Message{}).Where("chat_id = ?", c.ID).Count(&n)
	if n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}

	// Same provider id in another chat is a different message.
	other := seedChat(t, db, "a2")
	if _, created, err := InsertMessage(ctx, db, msg(other.ID, "m1", domain.DirectionIn, at)); err != nil || !created {
		t.Fatalf("insert in other chat: created=%v err=%v", created, err)
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	db := newMigratedDB(t)
	if _, err := GetMessage(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkInboundRead_And_RecomputeUnread(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	c := seedChat(t, db, "a1")
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"in1", "in2", "in3"} {
		if _, _, err := InsertMessage(ctx, db, msg(c.ID, id, domain.DirectionIn, t0.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if _, _, err := InsertMessage(ctx, db, msg(c.ID, "out1", domain.DirectionOut, t0.Add(5*time.Minute))); err != nil {
		t.Fatalf("insert out: %v", err)
	}

	n, err := RecomputeUnread(ctx, db, c.ID)
	if err != nil || n != 3 {
		t.Fatalf("RecomputeUnread = %d, %v; want 3", n, err)
	}

	upTo := t0.Add(time.Minute)
	marked, err := MarkInboundRead(ctx, db, c.ID, &upTo)
	if err != nil || marked != 2 {
		t.Fatalf("MarkInboundRead(upTo) = %d, %v; want 2", marked, err)
	}
	if n, _ := RecomputeUnread(ctx, db, c.ID); n != 1 {
		t.Fatalf("unread after partial read = %d; want 1", n)
	}
	if cnt, _ := CountUnread(ctx, db, c.ID); cnt != 1 {
		t.Fatalf("CountUnread = %d; want 1", cnt)
	}

	if marked, _ := MarkInboundRead(ctx, db, c.ID, nil); marked != 1 {
		t.Fatalf("MarkInboundRead(nil) = %d; want 1", marked)
	}
	if n, _ := RecomputeUnread(ctx, db, c.ID); n != 0 {
		t.Fatalf("unread after full read = %d; want 0", n)
	}
}

func TestRecomputeAllUnread_RepairsDrift(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	a := seedChat(t, db, "a")
	b := seedChat(t, db, "b")
	now := time.Now().UTC()
	_, _, _ = InsertMessage(ctx, db, msg(a.ID, "x", domain.DirectionIn, now))

	db.Model(&domain.Chat{}).Where("id = ?", b.ID).Update("unread_count", 5)

	fixed, err := RecomputeAllUnread(ctx, db)
	if err != nil {
		t.Fatalf("RecomputeAllUnread: %v", err)
	}
	if fixed != 2 {
		t.Fatalf("expected 2 repaired chats, got %d", fixed)
	}
	ga, _ := GetChat(ctx, db, a.ID)
	gb, _ := GetChat(ctx, db, b.ID)
	if ga.UnreadCount != 1 || gb.UnreadCount != 0 {
		t.Fatalf("unexpected counts a=%d b=%d", ga.UnreadCount, gb.UnreadCount)
	}
	if fixed, _ := RecomputeAllUnread(ctx, db); fixed != 0 {
		t.Fatalf("second pass should be a no-op, repaired %d", fixed)
	}
}

func TestListMessagesTail_ChronologicalNewestWindow(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	c := seedChat(t, db, "a1")
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		_, _, _ = InsertMessage(ctx, db, msg(c.ID, id, domain.DirectionIn, t0.Add(time.Duration(i)*time.Second)))
	}

	got, err := ListMessagesTail(ctx, db, c.ID, 3)
	if err != nil {
		t.Fatalf("ListMessagesTail: %v", err)
	}
	if len(got) != 3 || got[0].AvitoMessageID != "m2" || got[2].AvitoMessageID != "m4" {
		t.Fatalf("unexpected window: %+v", got)
	}

	all, _ := ListMessagesTail(ctx, db, c.ID, 0)
	if len(all) != 4 || all[0].AvitoMessageID != "m1" {
		t.Fatalf("unlimited tail: %+v", all)
	}
}
