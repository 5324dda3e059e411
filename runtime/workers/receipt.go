package workers

import (
	"context"
	"log/slog"

	"chat-sync/contract"
	"chat-sync/conversation"
	"chat-sync/domain"
	"chat-sync/observability"
)

// ReceiptDriver emits one outbound read-acknowledgement per qualifying
// visible message, exactly once. Qualifying: confirmed server identity,
// sender is not the current user, not yet acknowledged. Failures are
// non-fatal and retried per message on the next scan; the server treats
// duplicate acks as idempotent.
type ReceiptDriver struct {
	log     *slog.Logger
	store   *conversation.Store
	sink    contract.ReceiptSink
	token   string
	me      domain.UserID
	stats   *observability.Stats
	trigger chan struct{}
	acked   map[domain.MessageID]struct{}
}

func NewReceiptDriver(log *slog.Logger, store *conversation.Store,
	sink contract.ReceiptSink, me domain.UserID, token string,
	stats *observability.Stats) *ReceiptDriver {
	return &ReceiptDriver{
		log:     log,
		store:   store,
		sink:    sink,
		token:   token,
		me:      me,
		stats:   stats,
		trigger: make(chan struct{}, 1),
		acked:   make(map[domain.MessageID]struct{}),
	}
}

// Trigger requests a rescan. Safe from any goroutine; consecutive
// triggers coalesce into one pending scan.
func (d *ReceiptDriver) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

func (d *ReceiptDriver) Run(ctx context.Context) error {
	// Initial pass covers the snapshot loaded before the driver started.
	d.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Context done, stopping receipt driver")
			return ctx.Err()
		case <-d.trigger:
			d.scan(ctx)
		}
	}
}

func (d *ReceiptDriver) scan(ctx context.Context) {
	for _, m := range d.store.CurrentView() {
		if ctx.Err() != nil {
			return
		}
		if !m.Confirmed() || m.SenderID == d.me || m.ReadByMe {
			continue
		}
		if _, done := d.acked[m.ID]; done {
			continue
		}
		if err := d.sink.AcknowledgeRead(ctx, m.ID, d.token); err != nil {
			d.log.Warn("Read acknowledgement failed, will retry on next scan",
				"message", m.ID, "error", err)
			continue
		}
		d.acked[m.ID] = struct{}{}
		d.stats.ReceiptSent()
		d.store.MarkReadByMe(m.ID)
	}
}
