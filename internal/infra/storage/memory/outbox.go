package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	infraoutbox "staybook/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type outboxEntry struct {
	record   appoutbox.EventRecord
	state    string
	attempts int
	next     time.Time
	lastErr  string
}

// Outbox keeps event records until the outbox worker publishes them. Records
// added inside a memory unit of work only become visible when it commits.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok && mu.store.outbox == o {
			return mu.stageEvent(record)
		}
	}
	o.append(record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	return nil
}

func (o *Outbox) append(records ...appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, rec := range records {
		o.entries = append(o.entries, &outboxEntry{record: rec, state: stateNew, next: now})
	}
}

// Pending returns records that have not been published yet.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.entries))
	for _, e := range o.entries {
		if e.state != stateSent {
			out = append(out, e.record)
		}
	}
	return out
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range o.entries {
		if (e.state == stateNew || e.state == stateFailed) && !e.next.After(now) {
			e.state = stateClaimed
			return &infraoutbox.Message{
				ID:         e.record.ID,
				Name:       e.record.Name,
				Payload:    e.record.Payload,
				OccurredAt: e.record.OccurredAt,
				Aggregate:  e.record.Aggregate,
				Headers:    e.record.Headers,
				Attempts:   e.attempts,
			}, nil
		}
	}
	return nil, nil
}

// MarkSent drops the record.
func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.record.ID == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.record.ID == id {
			e.state = stateFailed
			e.attempts++
			e.next = next
			e.lastErr = errMsg
			return nil
		}
	}
	return nil
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ infraoutbox.Queue = (*Outbox)(nil)
)
