package dex

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/storage"
)

// Authority owns the process-wide privileged state: the admin identity
// (set once at initialization, no rotation) and the circuit-breaker
// flag. Modeled as an explicit object injected at construction rather
// than a mutable global; every mutator checks the caller against the
// admin.
type Authority struct {
	mu     sync.RWMutex
	admin  common.Address
	paused bool
	store  *storage.Store
}

// NewAuthority creates the authority for the deploying admin, restoring
// a persisted pause flag if one exists.
func NewAuthority(admin common.Address, store *storage.Store) (*Authority, error) {
	paused, err := store.Paused()
	if err != nil {
		return nil, fmt.Errorf("load pause flag: %w", err)
	}
	return &Authority{admin: admin, paused: paused, store: store}, nil
}

// Admin returns the privileged account.
func (a *Authority) Admin() common.Address {
	return a.admin
}

// RequireAdmin fails with ErrUnauthorized unless caller is the admin.
func (a *Authority) RequireAdmin(caller common.Address) error {
	if caller != a.admin {
		return fmt.Errorf("caller %s: %w", caller.Hex(), ErrUnauthorized)
	}
	return nil
}

// Paused reports the circuit-breaker state.
func (a *Authority) Paused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paused
}

// Toggle flips the circuit breaker. Admin only. While paused, deposits
// and order creation are rejected; withdrawals stay open so users can
// always retrieve custody during an incident.
func (a *Authority) Toggle(caller common.Address) error {
	if err := a.RequireAdmin(caller); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := !a.paused
	if err := a.store.SetPaused(next); err != nil {
		return fmt.Errorf("persist pause flag: %w", err)
	}
	a.paused = next
	return nil
}
