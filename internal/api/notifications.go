package api

import (
	"encoding/json"
	"net/http"

	"StoreMirror/pkg/kit"
)

// streamNotifications pushes the toast stream to the UI as server-sent
// events. The stream is a single shared channel: one UI consumer is the
// expected deployment, a second concurrent stream would split the feed.
func (s *Server) streamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-s.Sync.Notifications():
			if !ok {
				return
			}
			raw, err := json.Marshal(n)
			if err != nil {
				continue
			}
			if _, err := w.Write(append(append([]byte("data: "), raw...), '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
