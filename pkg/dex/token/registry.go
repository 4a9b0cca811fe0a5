package token

import (
	"fmt"
	"sync"
)

// Registry maps tickers to external token contracts. It is the single
// gate every ledger and order-book operation passes through: only
// registered tickers are tradable, and the settlement currency itself
// can never be registered as a tradable asset.
//
// Re-registration of a known ticker is rejected. Overwriting the handle
// under live balances would silently re-point custody at a different
// contract, so the conservative policy wins.
type Registry struct {
	mu      sync.RWMutex
	base    Ticker
	entries map[Ticker]TokenRef
	order   []Ticker // registration order, for listing
}

// NewRegistry creates a registry for the given settlement currency.
func NewRegistry(base Ticker) *Registry {
	return &Registry{
		base:    base,
		entries: make(map[Ticker]TokenRef),
	}
}

// Base returns the settlement currency ticker.
func (r *Registry) Base() Ticker {
	return r.base
}

// Register adds a ticker/contract pair. The contract is not probed
// here; a bogus handle fails lazily on first deposit.
func (r *Registry) Register(ticker Ticker, ref TokenRef) error {
	if !ticker.Valid() {
		return fmt.Errorf("invalid ticker %q", ticker)
	}
	if ticker == r.base {
		return fmt.Errorf("register %s: %w", ticker, ErrBaseNotTradable)
	}
	if ref == nil {
		return fmt.Errorf("register %s: nil token ref", ticker)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[ticker]; exists {
		return fmt.Errorf("register %s: %w", ticker, ErrAlreadyRegistered)
	}
	r.entries[ticker] = ref
	r.order = append(r.order, ticker)
	return nil
}

// IsApproved reports whether a ticker is registered for trading.
// The settlement currency reports true here: it is a valid custody
// asset (deposits and withdrawals), just never a tradable one.
func (r *Registry) IsApproved(ticker Ticker) bool {
	if ticker == r.base {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[ticker]
	return ok
}

// Get returns the contract handle for a ticker, including the base
// currency if it was bound via BindBase.
func (r *Registry) Get(ticker Ticker) (TokenRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.entries[ticker]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", ticker, ErrNotApproved)
	}
	return ref, nil
}

// BindBase attaches the settlement currency's contract handle. The base
// ticker is depositable but never appears in the tradable listing.
func (r *Registry) BindBase(ref TokenRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.base] = ref
}

// List returns all registered tradable tickers in registration order.
func (r *Registry) List() []Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Listing, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, Listing{Ticker: t, Address: r.entries[t].Address()})
	}
	return out
}

// Count returns the number of registered tradable tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
