package repo

import (
	"context"
	"testing"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

func TestInsertWebhookEvent_DedupOnlyWithEventID(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := InsertWebhookEvent(ctx, db, &domain.WebhookEvent{Source: "AVITO", Payload: []byte(`{"a":1}`)})
		if err != nil || !ok {
			t.Fatalf("anonymous event #%d: ok=%v err=%v", i, ok, err)
		}
	}

	ok, err := InsertWebhookEvent(ctx, db, &domain.WebhookEvent{Source: "AVITO", EventID: sp("e1"), Type: sp("message")})
	if err != nil || !ok {
		t.Fatalf("first e1: ok=%v err=%v", ok, err)
	}
	ok, err = InsertWebhookEvent(ctx, db, &domain.WebhookEvent{Source: "AVITO", EventID: sp("e1")})
	if err != nil {
		t.Fatalf("duplicate e1 must not error: %v", err)
	}
	if ok {
		t.Fatal("duplicate e1 must not insert")
	}

	var n int64
	db.Model(&domain.WebhookEvent{}).Count(&n)
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}
