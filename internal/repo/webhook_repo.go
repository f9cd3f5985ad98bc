package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrrrrey/avito-crm/internal/domain"
)

// InsertWebhookEvent appends ev to the audit log. Events carrying an EventID
// are skipped when the same (source, event_id) was already recorded; events
// without one are always inserted. The boolean reports whether a row was added.
func InsertWebhookEvent(ctx context.Context, db *gorm.DB, ev *domain.WebhookEvent) (bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	if len(ev.Payload) == 0 {
		ev.Payload = domain.RawBag{}.Encode()
	}
	q := db.WithContext(ctx)
	if ev.EventID != nil {
		q = q.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "event_id"}},
			DoNothing: true,
		})
	}
	res := q.Create(ev)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
