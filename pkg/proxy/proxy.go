// Package proxy is the storage-holding indirection in front of the
// exchange logic. The proxy owns all state (balances, orders, tokens,
// authority) and forwards every call to whichever Logic implementation
// is current; upgrading swaps the implementation while the state, and
// therefore every stored balance and order, stays put.
package proxy

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/dex"
	"github.com/hyosong/custodex/pkg/dex/book"
	"github.com/hyosong/custodex/pkg/dex/token"
)

// Proxy serializes and dispatches exchange operations. One mutex
// guards every state-mutating call: a request is fully applied or
// fully rejected, and two requests never interleave against the same
// stored state. That mutex is the "serializing execution environment"
// the engine's invariants assume.
type Proxy struct {
	mu    sync.Mutex
	state *dex.State
	logic dex.Logic
}

// New creates a proxy owning state with the given initial logic.
func New(state *dex.State, logic dex.Logic) *Proxy {
	return &Proxy{state: state, logic: logic}
}

// Upgrade replaces the active logic implementation. Admin only. State
// is untouched: reads return identical values before and after. Layout
// compatibility between logic versions is a deployment-time
// discipline; the proxy cannot verify it generically.
func (p *Proxy) Upgrade(caller common.Address, newLogic dex.Logic) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.Authority.RequireAdmin(caller); err != nil {
		return err
	}
	old := p.logic.Version()
	p.logic = newLogic
	p.state.Logger().Infow("logic_upgraded", "from", old, "to", newLogic.Version())
	return nil
}

// Version reports the active logic version.
func (p *Proxy) Version() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.Version()
}

// RegisterToken forwards to the active logic.
func (p *Proxy) RegisterToken(caller common.Address, ticker token.Ticker, ref token.TokenRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.RegisterToken(p.state, caller, ticker, ref)
}

// ListTokens forwards to the active logic.
func (p *Proxy) ListTokens() []token.Listing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.ListTokens(p.state)
}

// Deposit forwards to the active logic.
func (p *Proxy) Deposit(caller common.Address, ticker token.Ticker, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.Deposit(p.state, caller, ticker, amount)
}

// Withdraw forwards to the active logic.
func (p *Proxy) Withdraw(caller common.Address, ticker token.Ticker, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.Withdraw(p.state, caller, ticker, amount)
}

// BalanceOf forwards to the active logic.
func (p *Proxy) BalanceOf(account common.Address, ticker token.Ticker) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.BalanceOf(p.state, account, ticker)
}

// CreateLimitOrder forwards to the active logic.
func (p *Proxy) CreateLimitOrder(caller common.Address, ticker token.Ticker, amount, price uint64, side book.Side) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.CreateLimitOrder(p.state, caller, ticker, amount, price, side)
}

// CreateMarketOrder forwards to the active logic.
func (p *Proxy) CreateMarketOrder(caller common.Address, ticker token.Ticker, amount uint64, side book.Side) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.CreateMarketOrder(p.state, caller, ticker, amount, side)
}

// GetOrders forwards to the active logic.
func (p *Proxy) GetOrders(ticker token.Ticker, side book.Side) ([]book.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.GetOrders(p.state, ticker, side)
}

// NextOrderID reports the id the next order will get.
func (p *Proxy) NextOrderID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.NextOrderID()
}

// ToggleCircuitBreaker forwards to the active logic.
func (p *Proxy) ToggleCircuitBreaker(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.ToggleCircuitBreaker(p.state, caller)
}

// IsAlive forwards to the active logic.
func (p *Proxy) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logic.IsAlive(p.state)
}

// Close releases the proxy-owned state.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Close()
}
