// Package conversation owns the authoritative message set of the active room.
// It merges the history snapshot, push events, and optimistic local sends
// into one ordered, deduplicated timeline. All mutations are idempotent and
// order-tolerant: the push channel guarantees neither ordering nor
// exactly-once delivery, so the store must converge regardless of the
// sequence in which events arrive.
package conversation

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"chat-sync/domain"
)

// reconcileWindow bounds how far apart a placeholder and its server echo
// may be timestamped and still be considered the same message.
const reconcileWindow = 2 * time.Minute

// LoadState tracks the outcome of the one-shot history load.
type LoadState int

const (
	LoadPending LoadState = iota
	Loaded
	LoadFailed
)

// Store is created empty on room activation and discarded on deactivation.
// Safe for concurrent use: one writer context mutates it while the
// presentation layer reads snapshots.
type Store struct {
	mu       sync.RWMutex
	log      *slog.Logger
	room     domain.RoomID
	me       domain.UserID
	messages []domain.Message
	state    LoadState
	loadErr  error
	subs     []func()
}

func NewStore(log *slog.Logger, room domain.RoomID, me domain.UserID) *Store {
	return &Store{log: log, room: room, me: me}
}

func (s *Store) Room() domain.RoomID {
	return s.room
}

// Subscribe registers a callback invoked after every mutation batch.
// Callbacks run outside the store lock and must not block.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// LoadSnapshot replaces the store content with the fetched backlog.
// Called once per room activation. Placeholders from local sends issued
// while the fetch was in flight are carried over, not dropped.
func (s *Store) LoadSnapshot(messages []domain.Message) {
	s.mu.Lock()
	var pending []domain.Message
	for _, m := range s.messages {
		if m.Pending && !m.Confirmed() {
			pending = append(pending, m)
		}
	}
	s.messages = make([]domain.Message, len(messages), len(messages)+len(pending))
	copy(s.messages, messages)
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
	for _, p := range pending {
		s.insertLocked(p)
	}
	s.state = Loaded
	s.loadErr = nil
	s.mu.Unlock()
	s.notify()
}

// SetLoadError records a failed history load. The room stays empty with an
// observable error state instead of crashing the view.
func (s *Store) SetLoadError(err error) {
	s.mu.Lock()
	s.state = LoadFailed
	s.loadErr = err
	s.mu.Unlock()
	s.notify()
}

func (s *Store) State() (LoadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.loadErr
}

// ApplyNewMessage inserts a confirmed message unless it is already present.
// An echo of a local send reconciles its placeholder in place: the result
// is exactly one visible entry, never two.
func (s *Store) ApplyNewMessage(m domain.Message) {
	s.mu.Lock()
	changed := s.applyNewLocked(m)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) applyNewLocked(m domain.Message) bool {
	if m.Confirmed() && s.indexOf(m.ID) >= 0 {
		return false // at-least-once delivery, duplicate
	}
	if m.SenderID == s.me {
		if i := s.matchPlaceholder(m); i >= 0 {
			key := s.messages[i].ClientKey
			m.Pending = false
			m.ClientKey = key
			s.messages[i] = m
			return true
		}
	}
	m.Pending = false
	s.insertLocked(m)
	return true
}

// matchPlaceholder finds an unresolved placeholder for the same content,
// sender and room, temporally adjacent to the echo.
func (s *Store) matchPlaceholder(m domain.Message) int {
	for i, cur := range s.messages {
		if !cur.Pending || cur.Confirmed() {
			continue
		}
		if cur.SenderID != m.SenderID || cur.Content != m.Content {
			continue
		}
		delta := m.CreatedAt.Sub(cur.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= reconcileWindow {
			return i
		}
	}
	return -1
}

// ApplyLocalSend appends an optimistic placeholder before any server
// acknowledgement so the message is visible immediately.
func (s *Store) ApplyLocalSend(placeholder domain.Message) {
	s.mu.Lock()
	s.insertLocked(placeholder)
	s.mu.Unlock()
	s.notify()
}

// ApplyReadReceipt marks the addressed message as read by its recipients.
// Receipts may race ahead of a still-loading snapshot; an unknown target
// is silently ignored, not an error.
func (s *Store) ApplyReadReceipt(id domain.MessageID) {
	s.mu.Lock()
	changed := false
	if i := s.indexOf(id); i >= 0 && !s.messages[i].ReadByOthers {
		s.messages[i].ReadByOthers = true
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// ApplyEdit replaces the body in place; no-op when the target is absent
// or the body already matches (our own echoed edit).
func (s *Store) ApplyEdit(id domain.MessageID, content string) {
	s.mu.Lock()
	changed := false
	if i := s.indexOf(id); i >= 0 && s.messages[i].Content != content {
		s.messages[i].Content = content
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// ApplyDelete removes the addressed message; no-op when absent.
func (s *Store) ApplyDelete(id domain.MessageID) {
	s.mu.Lock()
	changed := false
	if i := s.indexOf(id); i >= 0 {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// MarkReadByMe records the derived local-read flag once the receipt
// driver has acknowledged the message.
func (s *Store) MarkReadByMe(id domain.MessageID) {
	s.mu.Lock()
	changed := false
	if i := s.indexOf(id); i >= 0 && !s.messages[i].ReadByMe {
		s.messages[i].ReadByMe = true
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// CurrentView returns the present ordered, deduplicated sequence.
// The returned slice is a copy; callers must treat entries as read-only.
func (s *Store) CurrentView() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := make([]domain.Message, len(s.messages))
	copy(view, s.messages)
	return view
}

// PendingMessages returns unconfirmed local sends, used to retransmit
// once connectivity resumes.
func (s *Store) PendingMessages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []domain.Message
	for _, m := range s.messages {
		if m.Pending && !m.Confirmed() {
			pending = append(pending, m)
		}
	}
	return pending
}

// insertLocked keeps chronological order by CreatedAt; ties break by
// arrival order (new entry goes after existing equal timestamps).
func (s *Store) insertLocked(m domain.Message) {
	i := len(s.messages)
	for i > 0 && s.messages[i-1].CreatedAt.After(m.CreatedAt) {
		i--
	}
	s.messages = append(s.messages, domain.Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = m
}

func (s *Store) indexOf(id domain.MessageID) int {
	for i, m := range s.messages {
		if m.Confirmed() && m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}
