// Package guard decides whether a client-side route transition is allowed.
package guard

import (
	"context"
	"log"

	"github.com/tq-random/tq-random/internal/remote"
)

// State is the caller's authorization state.
type State int

const (
	Unauthenticated State = iota
	AuthenticatedNonAdmin
	AuthenticatedAdmin
)

func (s State) String() string {
	switch s {
	case AuthenticatedNonAdmin:
		return "authenticated"
	case AuthenticatedAdmin:
		return "admin"
	default:
		return "unauthenticated"
	}
}

// SessionProvider is the slice of the remote store the guard reads.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*remote.Session, error)
	CurrentUser(ctx context.Context) (remote.Profile, error)
}

type Outcome string

const (
	Allow    Outcome = "allow"
	Redirect Outcome = "redirect"
)

// Decision is the result of one evaluation. Profile is set whenever it was
// fetched, so the caller can cache it without asking again.
type Decision struct {
	Outcome Outcome         `json:"outcome"`
	Route   string          `json:"route,omitempty"` // redirect target name
	Path    string          `json:"path,omitempty"`  // redirect target path
	State   State           `json:"-"`
	Profile *remote.Profile `json:"-"`
}

func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Target is the requested transition: a path, or a route name for
// named navigation. Name wins when both are set.
type Target struct {
	Path string
	Name string
}

// Guard evaluates transitions against a route table. It holds no session
// state and never writes to the remote store.
type Guard struct {
	routes  *Routes
	landing string
}

func New(routes *Routes) *Guard {
	return &Guard{routes: routes, landing: RouteDashboard}
}

// authPages are the public routes an authenticated user is bounced from.
var authPages = map[string]bool{RouteHome: true, RouteLogin: true, RouteRegister: true}

// Evaluate runs the checks in fixed order; the first rule that applies
// decides. Remote failures never escape: they degrade to a redirect.
func (g *Guard) Evaluate(ctx context.Context, target Target, sp SessionProvider) Decision {
	route, matched := g.resolve(target)

	sess, err := sp.CurrentSession(ctx)
	if err != nil {
		log.Printf("guard: session resolution failed, treating as unauthenticated: %v", err)
		sess = nil
	}
	authed := sess != nil
	state := Unauthenticated
	if authed {
		state = AuthenticatedNonAdmin
	}

	if matched && route.Public {
		if authed && authPages[route.Name] {
			return g.redirect(g.landing, state, nil)
		}
		return Decision{Outcome: Allow, State: state}
	}

	if !authed && route.RequiresAuth {
		return g.redirect(RouteLogin, state, nil)
	}

	var prof *remote.Profile
	if authed {
		p, err := sp.CurrentUser(ctx)
		if err != nil {
			log.Printf("guard: profile fetch failed for %s, redirecting to login: %v", sess.UserID, err)
			return g.redirect(RouteLogin, Unauthenticated, nil)
		}
		prof = &p
		if p.IsAdmin {
			state = AuthenticatedAdmin
		}
		if route.RequiresAdmin && !p.IsAdmin {
			return g.redirect(RouteForbidden, state, prof)
		}
	}

	if !matched {
		return g.redirect(RouteNotFound, state, prof)
	}
	return Decision{Outcome: Allow, State: state, Profile: prof}
}

func (g *Guard) resolve(t Target) (Route, bool) {
	if t.Name != "" {
		return g.routes.ByName(t.Name)
	}
	return g.routes.Match(t.Path)
}

func (g *Guard) redirect(name string, s State, p *remote.Profile) Decision {
	return Decision{Outcome: Redirect, Route: name, Path: g.routes.Path(name), State: s, Profile: p}
}
