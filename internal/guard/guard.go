// Package guard implements the call-scoped reentrancy lock that wraps every
// state-mutating vault operation.
package guard

import (
	"sync"

	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/model"
)

// Guard is a non-blocking, non-reentrant lock. The zero value is free.
type Guard struct {
	mu     sync.Mutex
	holder string
}

// Enter takes the guard for op. If another operation holds it, Enter fails
// immediately with ErrReentrantCall. The returned release func clears the
// guard; it is idempotent so callers can both defer it and call it early.
func (g *Guard) Enter(op string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != "" {
		return nil, errclass.ErrReentrantCall.WithMessagef("%s called while %s is in progress", op, g.holder)
	}
	g.holder = op

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.holder = ""
			g.mu.Unlock()
		})
	}, nil
}

// State reports whether the guard is held.
func (g *Guard) State() model.LockState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != "" {
		return model.LockStateHeld
	}
	return model.LockStateFree
}

// Holder returns the operation holding the guard, or "".
func (g *Guard) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
