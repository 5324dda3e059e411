// Package pushchannel owns the persistent per-room event stream.
// Exactly one channel exists per active room; the lifecycle controller
// cancels the previous activation before starting a new manager, so no
// two channels ever feed the same store.
package pushchannel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	apperrors "chat-sync/errors"
	"chat-sync/observability"
)

// State of the push channel connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Manager dials the room's push stream, decodes inbound frames into typed
// events and forwards them to the apply worker's channel. On unexpected
// closure it reconnects with bounded exponential backoff; the store keeps
// its state and new events continue to merge into it.
type Manager struct {
	log       *slog.Logger
	transport contract.Transport
	room      domain.RoomID
	token     string
	events    chan<- event.PushEvent
	stats     *observability.Stats

	backoffMin time.Duration
	backoffMax time.Duration

	mu        sync.Mutex
	conn      contract.Conn
	state     State
	onConnect func()

	// The transport allows a single concurrent writer; writeMu serializes
	// user sends with the reconnect resend hook.
	writeMu sync.Mutex
}

func NewManager(log *slog.Logger, transport contract.Transport,
	room domain.RoomID, token string, events chan<- event.PushEvent,
	stats *observability.Stats, backoffMin, backoffMax time.Duration) *Manager {
	return &Manager{
		log:        log,
		transport:  transport,
		room:       room,
		token:      token,
		events:     events,
		stats:      stats,
		backoffMin: backoffMin,
		backoffMax: backoffMax,
	}
}

// OnConnect registers a hook invoked each time the channel reaches
// Connected, used to retransmit pending local sends.
func (m *Manager) OnConnect(fn func()) {
	m.mu.Lock()
	m.onConnect = fn
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send transmits a local send frame when the channel is open. When it is
// not, the caller keeps the optimistic entry pending; retransmission
// happens through the OnConnect hook.
func (m *Manager) Send(msg domain.Message) error {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()
	if state != Connected || conn == nil {
		return apperrors.ErrChannelClosed
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(event.EncodeSend(msg))
}

// Run drives the Disconnected → Connecting → Connected state machine until
// the activation context is canceled (deliberate teardown, terminal).
func (m *Manager) Run(ctx context.Context) error {
	defer m.setState(Disconnected)
	backoff := m.backoffMin

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.setState(Connecting)

		conn, err := m.transport.Dial(ctx, m.room, m.token)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Warn("Push channel dial failed", "room", m.room, "error", err)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, m.backoffMax)
			continue
		}

		m.attach(conn)
		backoff = m.backoffMin
		m.log.Info("Push channel connected", "room", m.room)
		if hook := m.connectHook(); hook != nil {
			hook()
		}

		m.readLoop(ctx, conn)
		_ = conn.Close()
		m.detach()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Unexpected closure while the room is still active.
		m.setState(Reconnecting)
		m.stats.Reconnect()
		m.log.Warn("Push channel closed unexpectedly, reconnecting", "room", m.room)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, m.backoffMax)
	}
}

// readLoop forwards decoded events until the connection breaks or the
// activation context is canceled.
func (m *Manager) readLoop(ctx context.Context, conn contract.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		// Unblocks ReadMessage on teardown.
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		evt, err := event.Decode(data)
		if err != nil {
			// Malformed frames are dropped, never fatal to the channel.
			m.stats.FrameMalformed()
			m.log.Warn("Dropping malformed frame", "room", m.room, "error", err)
			continue
		}
		select {
		case m.events <- evt:
			m.stats.FrameForwarded()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) attach(conn contract.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.state = Connected
	m.mu.Unlock()
}

func (m *Manager) detach() {
	m.mu.Lock()
	m.conn = nil
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) connectHook() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onConnect
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
