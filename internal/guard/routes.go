package guard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Well-known route names the guard redirects to.
const (
	RouteHome      = "home"
	RouteLogin     = "login"
	RouteRegister  = "register"
	RouteDashboard = "dashboard"
	RouteForbidden = "forbidden"
	RouteNotFound  = "not-found"
)

// Route describes one client route. Patterns use chi syntax.
type Route struct {
	Name          string `json:"name"`
	Pattern       string `json:"pattern"`
	RequiresAuth  bool   `json:"requires_auth"`
	RequiresAdmin bool   `json:"requires_admin"`
	Public        bool   `json:"public"`
}

// DefaultRoutes is the client route table.
func DefaultRoutes() []Route {
	return []Route{
		{Name: RouteHome, Pattern: "/", Public: true},
		{Name: RouteLogin, Pattern: "/login", Public: true},
		{Name: RouteRegister, Pattern: "/register", Public: true},

		{Name: RouteDashboard, Pattern: "/dashboard", RequiresAuth: true},
		{Name: "question-management", Pattern: "/dashboard/test/{testID}/questions", RequiresAuth: true},
		{Name: "edit-test", Pattern: "/dashboard/test/{testID}/edit", RequiresAuth: true},
		{Name: "profile", Pattern: "/profile", RequiresAuth: true},
		{Name: "admin", Pattern: "/admin", RequiresAuth: true, RequiresAdmin: true},

		{Name: RouteForbidden, Pattern: "/forbidden", Public: true},
		{Name: RouteNotFound, Pattern: "/not-found", Public: true},
	}
}

// Routes is an immutable route table.
type Routes struct {
	byName    map[string]Route
	byPattern map[string]Route
	mux       *chi.Mux
}

func NewRoutes(rs []Route) (*Routes, error) {
	t := &Routes{
		byName:    make(map[string]Route, len(rs)),
		byPattern: make(map[string]Route, len(rs)),
		mux:       chi.NewRouter(),
	}
	noop := func(http.ResponseWriter, *http.Request) {}
	for _, r := range rs {
		if r.Name == "" || !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("guard: route %q: name and absolute pattern required", r.Name)
		}
		if _, dup := t.byName[r.Name]; dup {
			return nil, fmt.Errorf("guard: duplicate route name %q", r.Name)
		}
		if _, dup := t.byPattern[r.Pattern]; dup {
			return nil, fmt.Errorf("guard: duplicate route pattern %q", r.Pattern)
		}
		if r.RequiresAdmin {
			r.RequiresAuth = true
		}
		t.byName[r.Name] = r
		t.byPattern[r.Pattern] = r
		t.mux.Get(r.Pattern, noop)
	}
	for _, name := range []string{RouteLogin, RouteDashboard, RouteForbidden, RouteNotFound} {
		if _, ok := t.byName[name]; !ok {
			return nil, fmt.Errorf("guard: route table lacks %q", name)
		}
	}
	return t, nil
}

// Match resolves a path to its route.
func (t *Routes) Match(path string) (Route, bool) {
	if path == "" {
		path = "/"
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) {
		return Route{}, false
	}
	r, ok := t.byPattern[rctx.RoutePattern()]
	return r, ok
}

func (t *Routes) ByName(name string) (Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}

// Path returns the concrete path of a parameterless route.
func (t *Routes) Path(name string) string {
	if r, ok := t.byName[name]; ok {
		return r.Pattern
	}
	return ""
}
