package internal

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chat-sync/domain"
	"chat-sync/observability"
	"chat-sync/repositories"
)

func newDebugTestServer(t *testing.T, stats *observability.Stats,
	view ViewProvider, cache *repositories.AttachmentCache) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(newDebugMux(stats, view, cache))
	t.Cleanup(server.Close)
	return server
}

func TestDebugServer_ResolvesCachedAttachments(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	cache, err := repositories.NewAttachmentCache(log)
	req.NoError(err)
	t.Cleanup(func() { _ = cache.Close() })

	// Given an attachment cached when its message went out
	req.NoError(cache.Store("notes.txt", []byte("meeting at ten")))

	view := func() []domain.Message {
		return []domain.Message{{ID: 1, Attachments: []domain.Attachment{{FileName: "notes.txt"}}}}
	}
	server := newDebugTestServer(t, observability.NewStats(), view, cache)

	// When resolving the reference carried by the timeline
	resp, err := http.Get(server.URL + "/debug/attachment?name=notes.txt")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	// Then the cached bytes come back with their sniffed type
	req.Equal(http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Equal("meeting at ten", string(body))
	req.Equal("text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestDebugServer_UnknownAttachmentIs404(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	cache, err := repositories.NewAttachmentCache(log)
	req.NoError(err)
	t.Cleanup(func() { _ = cache.Close() })

	server := newDebugTestServer(t, observability.NewStats(),
		func() []domain.Message { return nil }, cache)

	resp, err := http.Get(server.URL + "/debug/attachment?name=never-sent.bin")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestDebugServer_StatsSnapshot(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	cache, err := repositories.NewAttachmentCache(log)
	req.NoError(err)
	t.Cleanup(func() { _ = cache.Close() })

	stats := observability.NewStats()
	stats.FrameForwarded()
	stats.Reconnect()

	server := newDebugTestServer(t, stats, func() []domain.Message { return nil }, cache)

	resp, err := http.Get(server.URL + "/debug/stats")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	var snapshot observability.EngineStats
	req.NoError(json.NewDecoder(resp.Body).Decode(&snapshot))
	req.Equal(uint64(1), snapshot.FramesForwarded)
	req.Equal(uint64(1), snapshot.Reconnects)
}
