package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"StoreMirror/pkg/kit"
)

// previewSlot holds the UI's image preview selection. It is pure UI state:
// refreshes and mutations in the sync core must never touch it, which is why
// it lives here and not in the catalog packages.
type previewSlot struct {
	mu        sync.Mutex
	imagePath string
}

type previewBody struct {
	ImagePath string `json:"imagePath"`
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	s.preview.mu.Lock()
	body := previewBody{ImagePath: s.preview.imagePath}
	s.preview.mu.Unlock()

	kit.WriteJSON(w, http.StatusOK, body)
}

// putPreview sets or clears the selection; an empty imagePath means none.
func (s *Server) putPreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	defer func() { _ = r.Body.Close() }()

	var body previewBody
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil && err != io.EOF {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	s.preview.mu.Lock()
	s.preview.imagePath = body.ImagePath
	s.preview.mu.Unlock()

	kit.NoContent(w)
}
