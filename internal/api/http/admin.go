package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AdminSetter is implemented by backends that manage the admin flag
// themselves. Hosted projects set it in the dashboard instead.
type AdminSetter interface {
	SetAdmin(ctx context.Context, userID string, admin bool) error
}

// SetAdminHandler handles PATCH /api/admin/users/{userID} {"is_admin": bool}.
func SetAdminHandler(admins AdminSetter) http.HandlerFunc {
	type in struct {
		IsAdmin *bool `json:"is_admin"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var body in
		if !decodeJSON(w, r, &body) {
			return
		}
		if userID == "" || body.IsAdmin == nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "userID and is_admin required"})
			return
		}
		if err := admins.SetAdmin(r.Context(), userID, *body.IsAdmin); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": userID, "is_admin": *body.IsAdmin})
	}
}
