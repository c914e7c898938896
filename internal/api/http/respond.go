package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tq-random/tq-random/internal/account"
	"github.com/tq-random/tq-random/internal/quiz"
	"github.com/tq-random/tq-random/internal/remote"
	"github.com/tq-random/tq-random/internal/storage"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error   string   `json:"error"`
	Op      *quiz.Op `json:"op,omitempty"`
	Applied *int     `json:"applied,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status. Backend failures keep the backend's
// message as sent.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var rec *quiz.ReconcileError
	var re *remote.Error
	switch {
	case errors.As(err, &rec):
		body.Op, body.Applied = &rec.Op, &rec.Applied
		if errors.As(rec.Err, &re) {
			body.Error = re.Message
		}
	case errors.As(err, &re):
		body.Error = re.Message
	}
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	var rec *quiz.ReconcileError
	var re *remote.Error
	switch {
	case errors.As(err, &rec):
		return http.StatusBadGateway
	case errors.Is(err, quiz.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, quiz.ErrNotFound), errors.Is(err, remote.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrInvalidInput), errors.Is(err, account.ErrInvalidInput), errors.Is(err, storage.ErrBadKey):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &re):
		if re.Status >= 400 && re.Status < 500 {
			return re.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, remote.ErrAuthResolution):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json: " + err.Error()})
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("bad %s", name)})
		return 0, false
	}
	return id, true
}
