package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-sync/domain/event"
	"chat-sync/observability"
)

// ChannelCapacityWorker periodically samples the event channel occupancy.
// Reading len(channel) and cap(channel) is non-blocking, so this never
// interferes with the apply loop. Samples land in the stats registry for
// the debug page.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	name           string
	events         chan event.PushEvent
	stats          *observability.Stats
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, name string,
	events chan event.PushEvent, stats *observability.Stats,
	metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:            log,
		name:           name,
		events:         events,
		stats:          stats,
		metricInterval: metricInterval,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			length, capacity := len(w.events), cap(w.events)
			w.stats.RecordQueue(length, capacity)
			w.log.Debug("Event channel occupancy",
				"channel", w.name, "len", length, "cap", capacity)
		}
	}
}
