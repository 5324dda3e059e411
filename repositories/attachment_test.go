package repositories

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *AttachmentCache {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	cache, err := NewAttachmentCache(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestAttachmentCache_RoundTripWithSniffedType(t *testing.T) {
	req := require.New(t)
	cache := newTestCache(t)

	// PNG magic bytes so the detector has something real to sniff
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

	req.NoError(cache.Store("photo.png", png))

	data, mime, err := cache.Get("photo.png")
	req.NoError(err)
	req.Equal(png, data)
	req.Equal("image/png", mime)
}

func TestAttachmentCache_MissingKey(t *testing.T) {
	req := require.New(t)
	cache := newTestCache(t)

	_, _, err := cache.Get("never-stored.bin")

	req.ErrorIs(err, badger.ErrKeyNotFound)
}

func TestAttachmentCache_OverwriteKeepsLatest(t *testing.T) {
	req := require.New(t)
	cache := newTestCache(t)

	req.NoError(cache.Store("notes.txt", []byte("first version")))
	req.NoError(cache.Store("notes.txt", []byte("second version")))

	data, mime, err := cache.Get("notes.txt")
	req.NoError(err)
	req.Equal([]byte("second version"), data)
	req.Equal("text/plain; charset=utf-8", mime)
}
