package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/guard"
	"github.com/tq-random/tq-random/internal/remote"
)

type navigationResponse struct {
	Outcome guard.Outcome   `json:"outcome"`
	Route   string          `json:"route,omitempty"`
	Path    string          `json:"path,omitempty"`
	State   string          `json:"state"`
	Profile *remote.Profile `json:"profile,omitempty"`
}

// NavigationHandler evaluates a client route transition:
// GET /api/navigation?path=/dashboard or ?name=dashboard. Concurrent
// navigations of one client are resolved last-wins; the losers get 409.
func NavigationHandler(navs *guard.Navigators, sessions guard.SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target := guard.Target{Path: q.Get("path"), Name: q.Get("name")}
		if target.Path == "" && target.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "path or name required"})
			return
		}

		d, err := navs.Navigate(r.Context(), clientKey(w, r), target, sessions)
		switch {
		case errors.Is(err, guard.ErrSuperseded):
			writeJSON(w, http.StatusConflict, errorBody{Error: "navigation superseded"})
			return
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case err != nil:
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, navigationResponse{
			Outcome: d.Outcome, Route: d.Route, Path: d.Path, State: d.State.String(), Profile: d.Profile,
		})
	}
}

const (
	// NavSessionHeader lets a client name its navigation session explicitly.
	NavSessionHeader = "X-Nav-Session"
	navSessionCookie = "tq_nav"
)

// clientKey identifies the browser session a navigation belongs to: the
// access token when present, else the client's navigation session. A
// client with neither is handed a fresh session cookie.
func clientKey(w http.ResponseWriter, r *http.Request) string {
	if tok := authmw.TokenFromRequest(r); tok != "" {
		sum := sha256.Sum256([]byte(tok))
		return "t:" + hex.EncodeToString(sum[:8])
	}
	if id := strings.TrimSpace(r.Header.Get(NavSessionHeader)); id != "" {
		return "n:" + id
	}
	if c, err := r.Cookie(navSessionCookie); err == nil && c.Value != "" {
		return "n:" + c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     navSessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return "n:" + id
}
