// Package auth holds the authorization collaborators of the settlement
// engine: the solver allow-list and the contract-signature registry.
package auth

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotManager = errors.New("auth: caller is not the manager")

// Allowlist is the membership service answering "is this caller a solver".
// Only the manager may change membership.
type Allowlist struct {
	mu      sync.RWMutex
	manager common.Address
	solvers map[common.Address]bool
}

func NewAllowlist(manager common.Address) *Allowlist {
	return &Allowlist{
		manager: manager,
		solvers: make(map[common.Address]bool),
	}
}

func (a *Allowlist) Manager() common.Address { return a.manager }

// AddSolver grants solver rights. Manager only.
func (a *Allowlist) AddSolver(caller, solver common.Address) error {
	if caller != a.manager {
		return ErrNotManager
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.solvers[solver] = true
	return nil
}

// RemoveSolver revokes solver rights. Manager only.
func (a *Allowlist) RemoveSolver(caller, solver common.Address) error {
	if caller != a.manager {
		return ErrNotManager
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.solvers, solver)
	return nil
}

func (a *Allowlist) IsSolver(addr common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.solvers[addr]
}
