package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tq-random/tq-random/internal/remote"
)

/* ---------------- fake session provider ---------------- */

type fakeSessions struct {
	sess    *remote.Session
	sessErr error
	prof    remote.Profile
	profErr error

	profCalls int
}

func (f *fakeSessions) CurrentSession(context.Context) (*remote.Session, error) {
	return f.sess, f.sessErr
}

func (f *fakeSessions) CurrentUser(context.Context) (remote.Profile, error) {
	f.profCalls++
	return f.prof, f.profErr
}

func anonymous() *fakeSessions { return &fakeSessions{} }

func signedIn(admin bool) *fakeSessions {
	return &fakeSessions{
		sess: &remote.Session{UserID: "u1", Email: "u1@example.com"},
		prof: remote.Profile{ID: "u1", Email: "u1@example.com", IsAdmin: admin},
	}
}

func newGuard(t *testing.T) *Guard {
	t.Helper()
	routes, err := NewRoutes(append(DefaultRoutes(),
		Route{Name: "about", Pattern: "/about", Public: true},
		Route{Name: "reports", Pattern: "/reports/{id}", RequiresAdmin: true},
	))
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	return New(routes)
}

func expectRedirect(t *testing.T, d Decision, route string) {
	t.Helper()
	if d.Outcome != Redirect || d.Route != route {
		t.Fatalf("got %+v, want redirect to %q", d, route)
	}
}

func expectAllow(t *testing.T, d Decision) {
	t.Helper()
	if !d.Allowed() {
		t.Fatalf("got %+v, want allow", d)
	}
}

/* ---------------- properties ---------------- */

func TestPublicRoutesAllowAnonymous(t *testing.T) {
	g := newGuard(t)
	for _, p := range []string{"/", "/login", "/register", "/about", "/forbidden", "/not-found"} {
		expectAllow(t, g.Evaluate(context.Background(), Target{Path: p}, anonymous()))
	}
}

func TestAuthPagesBounceSignedInUsers(t *testing.T) {
	g := newGuard(t)
	for _, name := range []string{RouteHome, RouteLogin, RouteRegister} {
		d := g.Evaluate(context.Background(), Target{Name: name}, signedIn(false))
		expectRedirect(t, d, RouteDashboard)
		if d.Path != "/dashboard" {
			t.Fatalf("redirect path = %q", d.Path)
		}
	}
	// other public pages stay reachable
	expectAllow(t, g.Evaluate(context.Background(), Target{Path: "/about"}, signedIn(false)))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	g := newGuard(t)
	for _, p := range []string{"/dashboard", "/dashboard/test/42/questions", "/dashboard/test/7/edit", "/profile", "/admin", "/reports/1"} {
		expectRedirect(t, g.Evaluate(context.Background(), Target{Path: p}, anonymous()), RouteLogin)
	}
}

func TestAdminRoutesForbidNonAdmins(t *testing.T) {
	g := newGuard(t)
	for _, p := range []string{"/admin", "/reports/9"} {
		d := g.Evaluate(context.Background(), Target{Path: p}, signedIn(false))
		expectRedirect(t, d, RouteForbidden)
		if d.State != AuthenticatedNonAdmin {
			t.Fatalf("state = %v", d.State)
		}
	}
	d := g.Evaluate(context.Background(), Target{Path: "/admin"}, signedIn(true))
	expectAllow(t, d)
	if d.State != AuthenticatedAdmin || d.Profile == nil || !d.Profile.IsAdmin {
		t.Fatalf("admin decision = %+v", d)
	}
}

func TestUnknownPathsGoToNotFound(t *testing.T) {
	g := newGuard(t)
	expectRedirect(t, g.Evaluate(context.Background(), Target{Path: "/nope"}, anonymous()), RouteNotFound)
	expectRedirect(t, g.Evaluate(context.Background(), Target{Path: "/dashboard/test/1/grades"}, signedIn(false)), RouteNotFound)
	expectRedirect(t, g.Evaluate(context.Background(), Target{Name: "ghost"}, signedIn(true)), RouteNotFound)
}

func TestProfileFailureFailsClosed(t *testing.T) {
	g := newGuard(t)
	sp := signedIn(false)
	sp.profErr = errors.New("upstream timeout")

	d := g.Evaluate(context.Background(), Target{Path: "/dashboard"}, sp)
	expectRedirect(t, d, RouteLogin)
	if d.State != Unauthenticated {
		t.Fatalf("state = %v, want unauthenticated", d.State)
	}
}

func TestSessionFailureDegradesToAnonymous(t *testing.T) {
	g := newGuard(t)
	sp := &fakeSessions{sessErr: errors.New("dns failure")}

	expectRedirect(t, g.Evaluate(context.Background(), Target{Path: "/dashboard"}, sp), RouteLogin)
	expectAllow(t, g.Evaluate(context.Background(), Target{Path: "/login"}, sp))
	if sp.profCalls != 0 {
		t.Fatal("profile must not be fetched without a session")
	}
}

func TestQueryAndFragmentIgnored(t *testing.T) {
	g := newGuard(t)
	expectAllow(t, g.Evaluate(context.Background(), Target{Path: "/dashboard?tab=2#top"}, signedIn(false)))
}

func TestPublicCheckPrecedesAuthCheck(t *testing.T) {
	routes, err := NewRoutes(append(DefaultRoutes(),
		Route{Name: "pricing", Pattern: "/pricing", Public: true, RequiresAuth: true}))
	if err != nil {
		t.Fatal(err)
	}
	g := New(routes)
	expectAllow(t, g.Evaluate(context.Background(), Target{Path: "/pricing"}, anonymous()))
}

func TestNewRoutesValidation(t *testing.T) {
	if _, err := NewRoutes([]Route{{Name: "a", Pattern: "/a"}}); err == nil {
		t.Fatal("route table without login/dashboard accepted")
	}
	dup := append(DefaultRoutes(), Route{Name: RouteLogin, Pattern: "/signin"})
	if _, err := NewRoutes(dup); err == nil {
		t.Fatal("duplicate name accepted")
	}
	rs, err := NewRoutes(DefaultRoutes())
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := rs.ByName("admin"); !r.RequiresAuth {
		t.Fatal("admin routes must require auth")
	}
}

/* ---------------- last navigation wins ---------------- */

// blockingSessions parks CurrentSession until ctx is done.
type blockingSessions struct {
	entered chan struct{}
}

func (b *blockingSessions) CurrentSession(ctx context.Context) (*remote.Session, error) {
	close(b.entered)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingSessions) CurrentUser(context.Context) (remote.Profile, error) {
	return remote.Profile{}, errors.New("unreachable")
}

func TestNavigator_LastNavigationWins(t *testing.T) {
	nav := NewNavigator(newGuard(t))
	slow := &blockingSessions{entered: make(chan struct{})}

	type result struct {
		d   Decision
		err error
	}
	first := make(chan result, 1)
	go func() {
		d, err := nav.Navigate(context.Background(), Target{Path: "/dashboard"}, slow)
		first <- result{d, err}
	}()
	<-slow.entered

	d, err := nav.Navigate(context.Background(), Target{Path: "/profile"}, signedIn(false))
	if err != nil {
		t.Fatalf("second navigation: %v", err)
	}
	expectAllow(t, d)

	select {
	case r := <-first:
		if !errors.Is(r.err, ErrSuperseded) {
			t.Fatalf("first navigation = %+v, %v; want ErrSuperseded", r.d, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded navigation did not unblock")
	}
}

func TestNavigators_ReleaseIdleClients(t *testing.T) {
	ns := NewNavigators(newGuard(t))
	d, err := ns.Navigate(context.Background(), "client-a", Target{Path: "/login"}, anonymous())
	if err != nil {
		t.Fatal(err)
	}
	expectAllow(t, d)
	if ns.Len() != 0 {
		t.Fatalf("idle navigator retained: %d", ns.Len())
	}
}

func TestNavigator_CallerCancellation(t *testing.T) {
	nav := NewNavigator(newGuard(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := nav.Navigate(ctx, Target{Path: "/"}, anonymous()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
