// Package runtime orchestrates the engine lifecycle: room activation,
// push channel supervision and teardown. It contains no domain rules.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-sync/contract"
	"chat-sync/conversation"
	"chat-sync/domain"
	"chat-sync/domain/event"
	apperrors "chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/pushchannel"
	"chat-sync/runtime/workers"
)

// Controller guarantees atomic, race-free transitions between rooms.
// Exactly one room is active; its store, push channel and workers live
// inside one activation context that the next activation cancels.
type Controller struct {
	log       *slog.Logger
	fetcher   contract.HistoryFetcher
	receipts  contract.ReceiptSink
	transport contract.Transport
	identity  domain.Identity
	stats     *observability.Stats

	bufferSize      int
	backoffMin      time.Duration
	backoffMax      time.Duration
	restartInterval time.Duration
	metricInterval  time.Duration

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	store      *conversation.Store
	manager    *pushchannel.Manager
	observers  []func()
}

type Options struct {
	BufferSize      int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	RestartInterval time.Duration
	MetricInterval  time.Duration
}

func NewController(log *slog.Logger, fetcher contract.HistoryFetcher,
	receipts contract.ReceiptSink, transport contract.Transport,
	identity domain.Identity, stats *observability.Stats, opts Options) *Controller {
	return &Controller{
		log:             log,
		fetcher:         fetcher,
		receipts:        receipts,
		transport:       transport,
		identity:        identity,
		stats:           stats,
		bufferSize:      opts.BufferSize,
		backoffMin:      opts.BackoffMin,
		backoffMax:      opts.BackoffMax,
		restartInterval: opts.RestartInterval,
		metricInterval:  opts.MetricInterval,
	}
}

// RegisterObserver adds a presentation-layer callback notified after each
// mutation batch. Observers survive room switches: they are re-attached
// to every newly activated store.
func (c *Controller) RegisterObserver(fn func()) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	store := c.store
	c.mu.Unlock()
	if store != nil {
		store.Subscribe(fn)
	}
}

// Store returns the active room's store, or nil before first activation.
func (c *Controller) Store() *conversation.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// ActivateRoom tears down the previous room and brings up the new one:
//
//  1. cancel the previous activation (its push channel, workers and any
//     in-flight callbacks become no-ops),
//  2. install a fresh empty store for the new room,
//  3. fetch history and load the snapshot — unless a later activation
//     superseded this one while the fetch was in flight,
//  4. open the push channel and start the workers.
//
// Steps 1-2 complete synchronously before any suspension point, so a slow
// fetch for room A can never overwrite room B's state after a rapid A→B
// switch.
func (c *Controller) ActivateRoom(ctx context.Context, room domain.RoomID) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	store := conversation.NewStore(c.log, room, c.identity.UserID)
	for _, fn := range c.observers {
		store.Subscribe(fn)
	}
	c.store = store

	activationCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	events := make(chan event.PushEvent, c.bufferSize)
	manager := pushchannel.NewManager(c.log, c.transport, room, c.identity.Token,
		events, c.stats, c.backoffMin, c.backoffMax)
	manager.OnConnect(func() { c.resendPending(store, manager) })
	c.manager = manager
	c.mu.Unlock()

	c.stats.RoomSwitch()

	messages, err := c.fetcher.FetchHistory(activationCtx, room, c.identity.Token)

	if c.superseded(gen) {
		// A newer activation owns the engine; this fetch result is stale.
		c.log.Debug("Discarding stale history fetch", "room", room)
		return nil
	}
	switch {
	case errors.Is(err, apperrors.ErrNotAuthorized):
		cancel()
		return fmt.Errorf("history fetch for room %d: %w", room, err)
	case err != nil:
		// Room stays empty with an observable error; the channel still
		// opens so pushed messages are not lost.
		c.log.Warn("History fetch failed", "room", room, "error", err)
		store.SetLoadError(err)
	default:
		store.LoadSnapshot(messages)
	}

	driver := workers.NewReceiptDriver(c.log, store, c.receipts,
		c.identity.UserID, c.identity.Token, c.stats)
	store.Subscribe(driver.Trigger)

	sup := workers.NewSupervisor(c.log, c.restartInterval)
	sup.Add(
		manager,
		workers.NewApplyWorker(c.log, store, events, c.stats),
		driver,
		workers.NewChannelCapacityWorker(c.log, "push-events", events, c.stats, c.metricInterval),
	)
	go sup.Run(activationCtx)

	return nil
}

// Send applies the optimistic placeholder and transmits it when the
// channel is open. A closed channel is not an error: the message stays
// visible as pending and is retransmitted once connectivity resumes.
func (c *Controller) Send(content string, attachments []domain.Attachment) error {
	c.mu.Lock()
	store, manager := c.store, c.manager
	c.mu.Unlock()
	if store == nil {
		return fmt.Errorf("no active room")
	}

	placeholder := domain.NewPlaceholder(store.Room(), c.identity.UserID,
		c.identity.Username, content, attachments)
	store.ApplyLocalSend(placeholder)

	if err := manager.Send(placeholder); err != nil {
		if errors.Is(err, apperrors.ErrChannelClosed) {
			c.log.Info("Channel closed, send kept pending", "room", store.Room())
			return nil
		}
		c.log.Warn("Send over push channel failed", "room", store.Room(), "error", err)
	}
	return nil
}

func (c *Controller) resendPending(store *conversation.Store, manager *pushchannel.Manager) {
	for _, m := range store.PendingMessages() {
		if err := manager.Send(m); err != nil {
			c.log.Warn("Pending resend failed", "room", store.Room(), "error", err)
			return
		}
	}
}

// Shutdown cancels the current activation, if any.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != gen
}
