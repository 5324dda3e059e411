package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgraph-io/badger/v4"

	"chat-sync/domain"
	"chat-sync/observability"
	"chat-sync/repositories"
)

type ViewProvider func() []domain.Message

func newDebugMux(stats *observability.Stats, view ViewProvider, cache *repositories.AttachmentCache) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.Snapshot())
	})

	mux.HandleFunc("/debug/view", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view())
	})

	// Resolves an attachment reference from the timeline to its bytes.
	mux.HandleFunc("/debug/attachment", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "missing name parameter", http.StatusBadRequest)
			return
		}
		data, mime, err := cache.Get(name)
		if errors.Is(err, badger.ErrKeyNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", mime)
		_, _ = w.Write(data)
	})

	return mux
}

// StartDebugServer exposes the engine's counters, the current timeline and
// cached attachment content on a local port. Read-only, for inspection
// while the client runs.
func StartDebugServer(stats *observability.Stats, view ViewProvider,
	cache *repositories.AttachmentCache, port int) {
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("localhost:%d", port),
			newDebugMux(stats, view, cache))
	}()
}
