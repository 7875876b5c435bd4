package mailer

import (
	"context"
	"fmt"
	"time"

	"taskflow/internal/ids"
	"taskflow/internal/storage"
)

// OutboxSender writes each message as an .eml object instead of sending it.
// An external relay or an operator picks them up from the bucket.
type OutboxSender struct {
	store *storage.ObjectStore
	from  Address
	now   func() time.Time
}

func NewOutboxSender(store *storage.ObjectStore, from Address) *OutboxSender {
	return &OutboxSender{
		store: store,
		from:  from,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *OutboxSender) Send(ctx context.Context, msg Message) error {
	raw, err := Encode(s.from, msg)
	if err != nil {
		return err
	}
	key := OutboxKey(s.now(), ids.New())
	meta := map[string]string{"recipient": msg.To.Email}
	if err := s.store.PutOutbox(ctx, key, raw, meta); err != nil {
		return fmt.Errorf("outbox put %s: %w", key, err)
	}
	return nil
}

func OutboxKey(at time.Time, id string) string {
	return fmt.Sprintf("%s/%s.eml", at.Format("2006/01/02"), id)
}
