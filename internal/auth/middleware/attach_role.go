// internal/auth/middleware/attach_role.go
package auth

import (
	"log"
	"net/http"

	"github.com/tq-random/tq-random/internal/rbac"
	"github.com/tq-random/tq-random/internal/remote"
)

// AttachRole loads the caller's profile and puts its RBAC role in the
// request context. Must run after RequireSession. A profile that cannot be
// loaded is treated as an expired session.
func AttachRole(store remote.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			prof, err := store.CurrentUser(ctx)
			if err != nil {
				log.Printf("profile lookup for %s failed: %v", SubjectFromContext(ctx), err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			role := rbac.RoleUser
			if prof.IsAdmin {
				role = rbac.RoleAdmin
			}
			next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
		})
	}
}
