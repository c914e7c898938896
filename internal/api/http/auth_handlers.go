package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/tq-random/tq-random/internal/account"
	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/remote"
)

func RegisterHandler(acct *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in account.Registration
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := acct.Register(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func LoginHandler(auth remote.Auth) http.HandlerFunc {
	type in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body in
		if !decodeJSON(w, r, &body) {
			return
		}
		sess, err := auth.SignInWithPassword(r.Context(), body.Email, body.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		authmw.SetAccessCookie(w, sess.AccessToken, sess.ExpiresAt)
		writeJSON(w, http.StatusOK, sess)
	}
}

func RefreshHandler(auth remote.Auth) http.HandlerFunc {
	type in struct {
		RefreshToken string `json:"refresh_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body in
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.RefreshToken == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "refresh_token required"})
			return
		}
		sess, err := auth.RefreshSession(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, err)
			return
		}
		authmw.SetAccessCookie(w, sess.AccessToken, sess.ExpiresAt)
		writeJSON(w, http.StatusOK, sess)
	}
}

// LogoutHandler always clears the cookie; a missing session is not an error.
func LogoutHandler(auth remote.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := auth.SignOut(r.Context())
		authmw.ClearAccessCookie(w)
		if err != nil && !errors.Is(err, remote.ErrNotAuthenticated) {
			log.Printf("sign out: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionHandler reports the caller's session, null when anonymous.
func SessionHandler(store remote.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.CurrentSession(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if sess != nil {
			// tokens stay with the client that already holds them
			sess.AccessToken, sess.RefreshToken = "", ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": sess})
	}
}
