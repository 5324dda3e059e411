package workers

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-sync/conversation"
	"chat-sync/domain"
	"chat-sync/mocks"
	"chat-sync/observability"
)

const me = domain.UserID(7)

func storeWith(log *slog.Logger, messages ...domain.Message) *conversation.Store {
	store := conversation.NewStore(log, 1, me)
	store.LoadSnapshot(messages)
	return store
}

func incoming(id domain.MessageID, at time.Time) domain.Message {
	return domain.Message{ID: id, Room: 1, SenderID: 2, SenderName: "bob",
		Content: fmt.Sprintf("msg %d", id), CreatedAt: at}
}

func TestReceiptDriver_AcksEachVisibleMessageOnce(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now().UTC()
	own := domain.Message{ID: 3, Room: 1, SenderID: me, Content: "mine", CreatedAt: now}
	store := storeWith(log, incoming(1, now), incoming(2, now.Add(time.Second)), own)

	sinkMock := mocks.NewMockReceiptSink(ctrl)
	acked := make(chan domain.MessageID, 8)

	// Given exactly one ack allowed per incoming message, none for our own
	for _, id := range []domain.MessageID{1, 2} {
		sinkMock.EXPECT().AcknowledgeRead(gomock.Any(), id, "token").
			DoAndReturn(func(_ context.Context, id domain.MessageID, _ string) error {
				acked <- id
				return nil
			}).Times(1)
	}

	stats := observability.NewStats()
	driver := NewReceiptDriver(log, store, sinkMock, me, "token", stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = driver.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-acked:
		case <-time.After(1 * time.Second):
			req.Fail("Missing read acknowledgement")
		}
	}

	// When later mutations trigger rescans
	driver.Trigger()
	driver.Trigger()

	// Then no duplicate ack goes out (Times(1) above) and the local flag holds
	req.Eventually(func() bool {
		view := store.CurrentView()
		return view[0].ReadByMe && view[1].ReadByMe
	}, time.Second, 5*time.Millisecond)
	req.Equal(uint64(2), stats.Snapshot().ReceiptsSent)
}

func TestReceiptDriver_RetriesFailedAckOnNextScan(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := storeWith(log, incoming(1, time.Now().UTC()))
	sinkMock := mocks.NewMockReceiptSink(ctrl)

	succeeded := make(chan struct{})
	attempt := 0
	// Given the first ack failing and the retry going through
	sinkMock.EXPECT().AcknowledgeRead(gomock.Any(), domain.MessageID(1), "token").
		DoAndReturn(func(context.Context, domain.MessageID, string) error {
			attempt++
			if attempt == 1 {
				return fmt.Errorf("backend unavailable")
			}
			close(succeeded)
			return nil
		}).Times(2)

	driver := NewReceiptDriver(log, store, sinkMock, me, "token", observability.NewStats())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = driver.Run(ctx) }()

	// When a rescan follows the failure
	req.Eventually(func() bool { return attempt >= 1 }, time.Second, 5*time.Millisecond)
	driver.Trigger()

	// Then the second attempt lands and the message is marked read
	select {
	case <-succeeded:
	case <-time.After(1 * time.Second):
		req.Fail("Retry never happened")
	}
	req.Eventually(func() bool {
		return store.CurrentView()[0].ReadByMe
	}, time.Second, 5*time.Millisecond)
}

func TestReceiptDriver_SkipsHistoryAlreadyReadByMe(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now().UTC()
	alreadyRead := incoming(1, now)
	alreadyRead.ReadByMe = true
	store := storeWith(log, alreadyRead, incoming(2, now.Add(time.Second)))

	sinkMock := mocks.NewMockReceiptSink(ctrl)
	acked := make(chan domain.MessageID, 1)
	// Given history where message 1 was read in an earlier session: only
	// the unread message may be acknowledged
	sinkMock.EXPECT().AcknowledgeRead(gomock.Any(), domain.MessageID(2), "token").
		DoAndReturn(func(_ context.Context, id domain.MessageID, _ string) error {
			acked <- id
			return nil
		}).Times(1)

	driver := NewReceiptDriver(log, store, sinkMock, me, "token", observability.NewStats())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = driver.Run(ctx) }()

	select {
	case id := <-acked:
		req.Equal(domain.MessageID(2), id)
	case <-time.After(1 * time.Second):
		req.Fail("Unread message was never acknowledged")
	}
	driver.Trigger()
	time.Sleep(50 * time.Millisecond)
}

func TestReceiptDriver_SkipsPendingPlaceholders(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given only an unconfirmed local send in the room
	store := conversation.NewStore(log, 1, me)
	store.ApplyLocalSend(domain.NewPlaceholder(1, me, "alice", "draft", nil))

	// Then no ack is ever emitted (no EXPECT registered on the sink)
	sinkMock := mocks.NewMockReceiptSink(ctrl)
	driver := NewReceiptDriver(log, store, sinkMock, me, "token", observability.NewStats())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = driver.Run(ctx) }()
	driver.Trigger()

	time.Sleep(50 * time.Millisecond)
	req.False(store.CurrentView()[0].ReadByMe)
}
