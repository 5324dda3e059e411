package workers

import (
	"context"
	"log/slog"

	"chat-sync/conversation"
	"chat-sync/domain/event"
	"chat-sync/observability"
)

// ApplyWorker drains the decoded event channel into the active room's
// store. One goroutine, FIFO in arrival order: every store mutation
// driven by the push channel is serialized here.
type ApplyWorker struct {
	log    *slog.Logger
	store  *conversation.Store
	events <-chan event.PushEvent
	stats  *observability.Stats
}

func NewApplyWorker(log *slog.Logger, store *conversation.Store,
	events <-chan event.PushEvent, stats *observability.Stats) *ApplyWorker {
	return &ApplyWorker{log: log, store: store, events: events, stats: stats}
}

func (w *ApplyWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event apply")
			return ctx.Err()
		case evt := <-w.events:
			w.apply(evt)
			w.stats.EventApplied()
		}
	}
}

func (w *ApplyWorker) apply(e event.PushEvent) {
	switch evt := e.(type) {
	case event.MessageReceived:
		w.store.ApplyNewMessage(evt.Message)
	case event.ReadReceipt:
		w.store.ApplyReadReceipt(evt.ID)
	case event.MessageEdited:
		w.store.ApplyEdit(evt.ID, evt.Content)
	case event.MessageDeleted:
		w.store.ApplyDelete(evt.ID)
	}
}
