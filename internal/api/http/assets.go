package http

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/tq-random/tq-random/internal/storage"
)

// MountBlobs serves stored files read-only: GET /<key>.
func MountBlobs(r chi.Router, bs storage.BlobStore) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key, err := storage.CleanKey(chi.URLParam(r, "*"))
		if err != nil {
			http.Error(w, "bad key", http.StatusBadRequest)
			return
		}
		rc, err := bs.Open(r.Context(), key)
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, "store error", http.StatusBadGateway)
			return
		}
		defer rc.Close()

		br := bufio.NewReaderSize(rc, 512)
		head, _ := br.Peek(512)
		ct := http.DetectContentType(head)
		if path.Ext(key) == ".svg" {
			ct = "image/svg+xml"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = io.Copy(w, br)
	})
}
