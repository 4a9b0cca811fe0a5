// Package dex implements the exchange logic: token registry gating,
// custody accounting, and the limit/market matching engine, all
// operating on proxy-owned state so the logic can be upgraded without
// resetting balances or orders.
package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/hyosong/custodex/pkg/dex/book"
	"github.com/hyosong/custodex/pkg/dex/ledger"
	"github.com/hyosong/custodex/pkg/dex/token"
	"github.com/hyosong/custodex/pkg/storage"
)

// State is everything the proxy owns and logic implementations share:
// registry, ledger, order books, authority, the order id counter, and
// the backing store. Successive Logic versions operate on this exact
// layout; an upgrade swaps the code around it and nothing in it.
type State struct {
	Registry  *token.Registry
	Ledger    *ledger.Ledger
	Authority *Authority

	store  *storage.Store
	books  map[token.Ticker]*book.Book
	nextID uint64
	log    *zap.SugaredLogger
}

// StateConfig carries the construction parameters for a fresh or
// restored state.
type StateConfig struct {
	Base    token.Ticker   // settlement currency ticker
	Admin   common.Address // privileged account, immutable afterwards
	Custody common.Address // address external tokens are held under
	Store   *storage.Store
	Logger  *zap.SugaredLogger
}

// NewState builds state on top of the store, restoring balances, the
// order arena, and the pause flag that were persisted by a previous
// run. Token contract handles are runtime bindings and are re-attached
// by the caller after restore.
func NewState(cfg StateConfig) (*State, error) {
	if !cfg.Base.Valid() {
		return nil, fmt.Errorf("invalid base ticker %q", cfg.Base)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	led, err := ledger.New(cfg.Custody, cfg.Store)
	if err != nil {
		return nil, err
	}
	auth, err := NewAuthority(cfg.Admin, cfg.Store)
	if err != nil {
		return nil, err
	}
	nextID, err := cfg.Store.NextOrderID()
	if err != nil {
		return nil, fmt.Errorf("load order counter: %w", err)
	}

	st := &State{
		Registry:  token.NewRegistry(cfg.Base),
		Ledger:    led,
		Authority: auth,
		store:     cfg.Store,
		books:     make(map[token.Ticker]*book.Book),
		nextID:    nextID,
		log:       cfg.Logger,
	}

	// Rebuild the books from the persisted arena. Orders come back in
	// id order, so inserting them one by one reproduces the exact
	// price-time priority of the previous run.
	orders, err := cfg.Store.LoadOrders()
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	for _, o := range orders {
		st.Book(o.Ticker).Insert(o)
	}
	if n := len(orders); n > 0 {
		st.log.Infow("order_arena_restored", "orders", n, "next_id", nextID)
	}

	return st, nil
}

// Book returns the order book for a ticker, creating it on first use.
func (st *State) Book(ticker token.Ticker) *book.Book {
	b, ok := st.books[ticker]
	if !ok {
		b = book.New(ticker)
		st.books[ticker] = b
	}
	return b
}

// NextOrderID peeks the id the next order will be assigned.
func (st *State) NextOrderID() uint64 {
	return st.nextID
}

// Store exposes the backing store for batched settlement writes.
func (st *State) Store() *storage.Store {
	return st.store
}

// Logger returns the state's logger.
func (st *State) Logger() *zap.SugaredLogger {
	return st.log
}

// Close releases the backing store.
func (st *State) Close() error {
	return st.store.Close()
}
