package rbac

import (
	"context"
	"strings"
)

type Checker struct {
	RolePermissions map[string][]string
	RolePages       map[string][]string
}

func NewChecker(rp map[string][]string, pages map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	if pages == nil {
		pages = RolePages
	}
	return &Checker{RolePermissions: rp, RolePages: pages}
}

func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// Pages returns a copy of the page names visible to role.
func (c *Checker) Pages(role string) []string {
	return append([]string{}, c.RolePages[role]...)
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
