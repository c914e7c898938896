package http

import (
	"bufio"
	"net/http"

	"github.com/tq-random/tq-random/internal/account"
	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/remote"
)

const maxAvatarBytes = 5 << 20

type profileResponse struct {
	remote.Profile
	Role string `json:"role"`
}

func MeHandler(store remote.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.CurrentUser(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{Profile: p, Role: p.Role()})
	}
}

func UpdateMeHandler(acct *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var meta map[string]any
		if !decodeJSON(w, r, &meta) {
			return
		}
		p, err := acct.UpdateProfile(r.Context(), meta)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{Profile: p, Role: p.Role()})
	}
}

// AvatarHandler accepts the image as multipart field "file" or as the raw
// request body.
func AvatarHandler(acct *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
		body := r.Body
		ct := r.Header.Get("Content-Type")
		if f, fh, err := r.FormFile("file"); err == nil {
			defer f.Close()
			body, ct = f, fh.Header.Get("Content-Type")
		}

		br := bufio.NewReaderSize(body, 512)
		if ct == "" || ct == "application/octet-stream" {
			head, _ := br.Peek(512)
			ct = http.DetectContentType(head)
		}
		p, err := acct.UploadAvatar(r.Context(), authmw.SubjectFromContext(r.Context()), ct, br)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{Profile: p, Role: p.Role()})
	}
}

func PagesHandler(acct *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages, err := acct.Pages(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
	}
}
