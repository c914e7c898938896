package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned for a navigation that a newer one replaced
// before it resolved. Its decision must not be applied.
var ErrSuperseded = errors.New("guard: navigation superseded")

// Navigator serialises one client's navigations: last navigation wins.
// Starting a navigation cancels the one in flight.
type Navigator struct {
	guard *Guard

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc

	refs int // guarded by Navigators.mu
}

func NewNavigator(g *Guard) *Navigator { return &Navigator{guard: g} }

func (n *Navigator) Navigate(ctx context.Context, target Target, sp SessionProvider) (Decision, error) {
	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.seq++
	mine := n.seq
	evalCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.mu.Unlock()

	d := n.guard.Evaluate(evalCtx, target, sp)
	cancel()

	n.mu.Lock()
	defer n.mu.Unlock()
	if mine != n.seq {
		return Decision{}, ErrSuperseded
	}
	n.cancel = nil
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// Navigators keeps one Navigator per client key while that client has
// navigations in flight.
type Navigators struct {
	guard *Guard

	mu sync.Mutex
	m  map[string]*Navigator
}

func NewNavigators(g *Guard) *Navigators {
	return &Navigators{guard: g, m: map[string]*Navigator{}}
}

func (ns *Navigators) Navigate(ctx context.Context, key string, target Target, sp SessionProvider) (Decision, error) {
	ns.mu.Lock()
	n, ok := ns.m[key]
	if !ok {
		n = NewNavigator(ns.guard)
		ns.m[key] = n
	}
	n.refs++
	ns.mu.Unlock()

	d, err := n.Navigate(ctx, target, sp)

	ns.mu.Lock()
	n.refs--
	if n.refs == 0 {
		delete(ns.m, key)
	}
	ns.mu.Unlock()
	return d, err
}

// Len is the number of clients with navigations in flight.
func (ns *Navigators) Len() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.m)
}
