//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-sync/domain"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// HistoryFetcher retrieves the ordered message backlog of a room.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, room domain.RoomID, token string) ([]domain.Message, error)
}

// ReceiptSink emits outbound read acknowledgements. Idempotent server-side.
type ReceiptSink interface {
	AcknowledgeRead(ctx context.Context, id domain.MessageID, token string) error
}

// MessageSubmitter submits edits and deletions. Fire-and-confirm: the
// effect also comes back through the push channel as an echo.
type MessageSubmitter interface {
	EditMessage(ctx context.Context, id domain.MessageID, content, token string) error
	DeleteMessage(ctx context.Context, id domain.MessageID, token string) error
}

// RoomLister retrieves the user's room list with previews.
type RoomLister interface {
	ListRooms(ctx context.Context, token string) ([]domain.Room, error)
}

// Transport opens the room-scoped full-duplex push stream.
type Transport interface {
	Dial(ctx context.Context, room domain.RoomID, token string) (Conn, error)
}

// Conn is one established push connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}
