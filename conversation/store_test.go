package conversation

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-sync/domain"
	"chat-sync/domain/event"
)

const me = domain.UserID(1)
const alice = domain.UserID(2)

func confirmed(id int64, sender domain.UserID, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(id),
		Room:      1,
		SenderID:  sender,
		Content:   content,
		CreatedAt: at,
	}
}

func Test_ApplyNewMessage_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)
	at := time.Now().UTC()

	// Given a loaded snapshot
	store.LoadSnapshot([]domain.Message{confirmed(1, alice, "hello", at)})

	// When the same push event is applied twice
	msg := confirmed(2, alice, "again", at.Add(time.Minute))
	store.ApplyNewMessage(msg)
	once := store.CurrentView()
	store.ApplyNewMessage(msg)
	twice := store.CurrentView()

	// Then the view is unchanged by the duplicate
	req.Equal(once, twice)
	req.Len(twice, 2)
}

func Test_Placeholder_Reconciliation_Yields_One_Entry(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)
	store.LoadSnapshot(nil)

	// Given an optimistic local send
	placeholder := domain.NewPlaceholder(1, me, "moi", "on my way", nil)
	store.ApplyLocalSend(placeholder)
	req.Len(store.CurrentView(), 1)
	req.True(store.CurrentView()[0].Pending)

	// When the server echo arrives over the push channel
	echo := confirmed(7, me, "on my way", placeholder.CreatedAt.Add(2*time.Second))
	store.ApplyNewMessage(echo)

	// Then exactly one confirmed entry remains
	view := store.CurrentView()
	req.Len(view, 1)
	req.Equal(domain.MessageID(7), view[0].ID)
	req.False(view[0].Pending)

	// And a second echo is a duplicate, not a new entry
	store.ApplyNewMessage(echo)
	req.Len(store.CurrentView(), 1)
}

func Test_Placeholder_Not_Matched_Outside_Window(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)
	store.LoadSnapshot(nil)

	placeholder := domain.NewPlaceholder(1, me, "moi", "hi", nil)
	store.ApplyLocalSend(placeholder)

	// When an echo with the same content arrives far outside the window
	old := confirmed(3, me, "hi", placeholder.CreatedAt.Add(-time.Hour))
	store.ApplyNewMessage(old)

	// Then it is a distinct message, the placeholder stays pending
	view := store.CurrentView()
	req.Len(view, 2)
	req.True(view[1].Pending)
}

func Test_Push_Events_Converge_Under_Any_Permutation(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	arrivals := []event.MessageReceived{
		{Message: confirmed(1, alice, "a", at)},
		{Message: confirmed(2, alice, "b", at.Add(time.Minute))},
	}
	// Independent of new-message ordering once both targets exist.
	dependent := []event.PushEvent{
		event.ReadReceipt{ID: 1},
		event.MessageEdited{ID: 2, Content: "b2"},
		event.MessageDeleted{ID: 3},
		event.ReadReceipt{ID: 1}, // at-least-once duplicate
	}

	apply := func(s *Store, e event.PushEvent) {
		switch evt := e.(type) {
		case event.MessageReceived:
			s.ApplyNewMessage(evt.Message)
		case event.ReadReceipt:
			s.ApplyReadReceipt(evt.ID)
		case event.MessageEdited:
			s.ApplyEdit(evt.ID, evt.Content)
		case event.MessageDeleted:
			s.ApplyDelete(evt.ID)
		}
	}

	var reference []domain.Message
	for _, first := range []int{0, 1} {
		permute(dependent, func(order []event.PushEvent) {
			store := NewStore(slog.Default(), 1, me)
			store.LoadSnapshot(nil)
			apply(store, arrivals[first])
			apply(store, arrivals[1-first])
			for _, e := range order {
				apply(store, e)
			}
			got := store.CurrentView()
			if reference == nil {
				reference = got
				req.Len(got, 2)
				req.True(got[0].ReadByOthers)
				req.Equal("b2", got[1].Content)
				return
			}
			req.Equal(reference, got, fmt.Sprintf("order %v diverged", order))
		})
	}
}

func permute(events []event.PushEvent, visit func([]event.PushEvent)) {
	var rec func(k int)
	rec = func(k int) {
		if k == len(events) {
			order := make([]event.PushEvent, len(events))
			copy(order, events)
			visit(order)
			return
		}
		for i := k; i < len(events); i++ {
			events[k], events[i] = events[i], events[k]
			rec(k + 1)
			events[k], events[i] = events[i], events[k]
		}
	}
	rec(0)
}

func Test_Receipt_Edit_Delete_Before_Target_Are_NoOps(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)
	store.LoadSnapshot(nil)

	// When events address a message that is not loaded yet
	store.ApplyReadReceipt(99)
	store.ApplyEdit(99, "nope")
	store.ApplyDelete(99)

	// Then nothing blows up and the view stays empty
	req.Empty(store.CurrentView())
}

func Test_Chronological_Order_With_Arrival_TieBreak(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)
	at := time.Now().UTC()
	store.LoadSnapshot([]domain.Message{confirmed(5, alice, "later", at.Add(time.Hour))})

	// When an older message arrives after a newer one
	store.ApplyNewMessage(confirmed(4, alice, "earlier", at))
	// And two messages share a timestamp
	store.ApplyNewMessage(confirmed(6, alice, "tie-first", at))
	store.ApplyNewMessage(confirmed(7, alice, "tie-second", at))

	view := store.CurrentView()
	ids := []domain.MessageID{view[0].ID, view[1].ID, view[2].ID, view[3].ID}

	// Then order is chronological, ties in arrival order
	req.Equal([]domain.MessageID{4, 6, 7, 5}, ids)
}

func Test_Worked_Example_Load_Push_Delete_Edit(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)
	at := time.Now().UTC()

	// Given history [{id:1}, {id:2}]
	store.LoadSnapshot([]domain.Message{
		confirmed(1, alice, "one", at),
		confirmed(2, alice, "two", at.Add(time.Second)),
	})

	// When a new message pushes in
	store.ApplyNewMessage(confirmed(3, alice, "three", at.Add(2*time.Second)))
	view := store.CurrentView()
	req.Equal([]domain.MessageID{1, 2, 3}, []domain.MessageID{view[0].ID, view[1].ID, view[2].ID})

	// And message 2 is deleted
	store.ApplyDelete(2)
	view = store.CurrentView()
	req.Equal([]domain.MessageID{1, 3}, []domain.MessageID{view[0].ID, view[1].ID})

	// And message 1 is edited
	store.ApplyEdit(1, "hi")
	req.Equal("hi", store.CurrentView()[0].Content)
}

func Test_LoadSnapshot_Keeps_InFlight_Placeholders(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)

	// Given a local send issued while history is still loading
	placeholder := domain.NewPlaceholder(1, me, "moi", "early bird", nil)
	store.ApplyLocalSend(placeholder)

	// When the snapshot lands
	store.LoadSnapshot([]domain.Message{confirmed(1, alice, "old", placeholder.CreatedAt.Add(-time.Hour))})

	// Then the placeholder survives the replacement
	view := store.CurrentView()
	req.Len(view, 2)
	req.True(view[1].Pending)
}

func Test_Failed_Load_Leaves_Observable_Error_State(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)

	store.SetLoadError(fmt.Errorf("boom"))

	state, err := store.State()
	req.Equal(LoadFailed, state)
	req.Error(err)
	req.Empty(store.CurrentView())
}

func Test_Subscribers_Notified_After_Mutations(t *testing.T) {
	req := require.New(t)
	store := NewStore(slog.Default(), 1, me)
	notifications := 0
	store.Subscribe(func() { notifications++ })

	store.LoadSnapshot(nil)
	store.ApplyNewMessage(confirmed(1, alice, "x", time.Now().UTC()))
	// Duplicate must not notify again
	store.ApplyNewMessage(confirmed(1, alice, "x", time.Now().UTC()))

	req.Equal(2, notifications)
}
