package dex

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/dex/book"
	"github.com/hyosong/custodex/pkg/dex/ledger"
	"github.com/hyosong/custodex/pkg/dex/token"
)

// Engine is the v1 logic implementation. It is stateless: every method
// reads and writes the State it is handed, so the proxy can swap it
// for a newer version without touching stored balances or orders.
type Engine struct{}

// NewEngine returns the v1 engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Version implements Logic.
func (e *Engine) Version() string { return "v1" }

// RegisterToken implements Logic. Admin only, at any time: token
// onboarding is incremental, not restricted to pre-launch. The handle
// is not probed here; a bogus contract fails on first deposit.
func (e *Engine) RegisterToken(st *State, caller common.Address, ticker token.Ticker, ref token.TokenRef) error {
	if err := st.Authority.RequireAdmin(caller); err != nil {
		return err
	}
	seq := st.Registry.Count()
	if err := st.Registry.Register(ticker, ref); err != nil {
		return err
	}
	if err := st.Store().SaveToken(seq, token.Listing{Ticker: ticker, Address: ref.Address()}); err != nil {
		return fmt.Errorf("persist token listing: %w", err)
	}
	st.Logger().Infow("token_registered", "ticker", ticker, "address", ref.Address().Hex())
	return nil
}

// ListTokens implements Logic.
func (e *Engine) ListTokens(st *State) []token.Listing {
	return st.Registry.List()
}

// Deposit implements Logic.
func (e *Engine) Deposit(st *State, caller common.Address, ticker token.Ticker, amount uint64) error {
	if !st.Registry.IsApproved(ticker) {
		return fmt.Errorf("deposit %s: %w", ticker, token.ErrNotApproved)
	}
	if st.Authority.Paused() {
		return fmt.Errorf("deposit: %w", ErrSystemPaused)
	}
	ref, err := st.Registry.Get(ticker)
	if err != nil {
		return err
	}
	if err := st.Ledger.Deposit(caller, ref, ticker, amount); err != nil {
		return err
	}
	st.Logger().Infow("deposit", "account", caller.Hex(), "ticker", ticker, "amount", amount)
	return nil
}

// Withdraw implements Logic. Deliberately not gated by the circuit
// breaker: users can always retrieve custody during an incident.
func (e *Engine) Withdraw(st *State, caller common.Address, ticker token.Ticker, amount uint64) error {
	if !st.Registry.IsApproved(ticker) {
		return fmt.Errorf("withdraw %s: %w", ticker, token.ErrNotApproved)
	}
	ref, err := st.Registry.Get(ticker)
	if err != nil {
		return err
	}
	if err := st.Ledger.Withdraw(caller, ref, ticker, amount); err != nil {
		return err
	}
	st.Logger().Infow("withdraw", "account", caller.Hex(), "ticker", ticker, "amount", amount)
	return nil
}

// BalanceOf implements Logic.
func (e *Engine) BalanceOf(st *State, account common.Address, ticker token.Ticker) uint64 {
	return st.Ledger.Balance(account, ticker)
}

// notional computes qty*price, failing instead of wrapping on overflow.
func notional(qty, price uint64) (uint64, error) {
	hi, lo := bits.Mul64(qty, price)
	if hi != 0 {
		return 0, fmt.Errorf("%d x %d: %w", qty, price, ErrNotionalOverflow)
	}
	return lo, nil
}

// checkOrderPreconditions runs the validations shared by limit and
// market orders: registered ticker, not the settlement currency, not
// paused, positive amount.
func checkOrderPreconditions(st *State, ticker token.Ticker, amount uint64) error {
	if ticker == st.Registry.Base() {
		return fmt.Errorf("order on %s: %w", ticker, ErrBaseCurrencyRejected)
	}
	if !st.Registry.IsApproved(ticker) {
		return fmt.Errorf("order on %s: %w", ticker, token.ErrNotApproved)
	}
	if st.Authority.Paused() {
		return fmt.Errorf("order: %w", ErrSystemPaused)
	}
	if amount == 0 {
		return fmt.Errorf("order amount must be positive")
	}
	return nil
}

// CreateLimitOrder implements Logic. The order only rests; no matching
// happens on creation. Balances are checked once here and re-checked
// lazily at match time rather than escrowed, so a trader can spend
// funds backing a resting order before it matches.
func (e *Engine) CreateLimitOrder(st *State, caller common.Address, ticker token.Ticker, amount, price uint64, side book.Side) (uint64, error) {
	if err := checkOrderPreconditions(st, ticker, amount); err != nil {
		return 0, err
	}
	if price == 0 {
		return 0, fmt.Errorf("order price must be positive")
	}

	base := st.Registry.Base()
	switch side {
	case book.Sell:
		if have := st.Ledger.Balance(caller, ticker); have < amount {
			return 0, fmt.Errorf("sell %d %s, have %d: %w", amount, ticker, have, ledger.ErrInsufficientFunds)
		}
	case book.Buy:
		cost, err := notional(amount, price)
		if err != nil {
			return 0, err
		}
		if have := st.Ledger.Balance(caller, base); have < cost {
			return 0, fmt.Errorf("buy costs %d %s, have %d: %w", cost, base, have, ledger.ErrInsufficientBaseBalance)
		}
	default:
		return 0, fmt.Errorf("unknown order side %d", side)
	}

	o := &book.Order{
		ID:        st.nextID,
		Trader:    caller,
		Ticker:    ticker,
		Amount:    amount,
		Price:     price,
		Side:      side,
		CreatedAt: time.Now().UnixMilli(),
	}

	// Order and counter land in one batch so a crash cannot reuse an id.
	batch := st.Store().NewBatch()
	defer batch.Close()
	if err := batch.SaveOrder(o); err != nil {
		return 0, fmt.Errorf("stage order: %w", err)
	}
	if err := batch.SetNextOrderID(o.ID + 1); err != nil {
		return 0, fmt.Errorf("stage order counter: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("persist order: %w", err)
	}

	st.nextID = o.ID + 1
	st.Book(ticker).Insert(o)
	st.Logger().Infow("limit_order",
		"id", o.ID, "trader", caller.Hex(), "ticker", ticker,
		"side", side.String(), "amount", amount, "price", price)
	return o.ID, nil
}

// balKey identifies one staged ledger cell.
type balKey struct {
	addr   common.Address
	ticker token.Ticker
}

// balanceView overlays pending debits/credits on the ledger so each
// fill in a market-order walk is validated against the balances the
// previous fills would leave behind. Nothing reaches the ledger until
// the whole walk has settled.
type balanceView struct {
	led    *ledger.Ledger
	staged map[balKey]uint64
}

func newBalanceView(led *ledger.Ledger) *balanceView {
	return &balanceView{led: led, staged: make(map[balKey]uint64)}
}

func (v *balanceView) get(addr common.Address, ticker token.Ticker) uint64 {
	k := balKey{addr, ticker}
	if amt, ok := v.staged[k]; ok {
		return amt
	}
	return v.led.Balance(addr, ticker)
}

func (v *balanceView) credit(addr common.Address, ticker token.Ticker, amount uint64) {
	v.staged[balKey{addr, ticker}] = v.get(addr, ticker) + amount
}

// debit assumes the caller has verified sufficiency.
func (v *balanceView) debit(addr common.Address, ticker token.Ticker, amount uint64) {
	v.staged[balKey{addr, ticker}] = v.get(addr, ticker) - amount
}

func (v *balanceView) changes() []ledger.Change {
	out := make([]ledger.Change, 0, len(v.staged))
	for k, amt := range v.staged {
		out = append(out, ledger.Change{Account: k.addr, Ticker: k.ticker, Amount: amt})
	}
	return out
}

// CreateMarketOrder implements Logic. The walk over the opposite side
// is atomic: every fill is validated against a staged balance view at
// the resting order's own price, and the first shortfall aborts the
// whole order with no ledger or book mutation. A remainder left after
// the book is exhausted is dropped; market orders never rest.
func (e *Engine) CreateMarketOrder(st *State, caller common.Address, ticker token.Ticker, amount uint64, side book.Side) error {
	if err := checkOrderPreconditions(st, ticker, amount); err != nil {
		return err
	}

	base := st.Registry.Base()
	if side == book.Sell {
		// Sellers must hold the full amount up front, matched or not.
		if have := st.Ledger.Balance(caller, ticker); have < amount {
			return fmt.Errorf("market sell %d %s, have %d: %w", amount, ticker, have, ledger.ErrInsufficientFunds)
		}
	}

	b := st.Book(ticker)
	fills, remaining := b.Propose(side, amount)
	if len(fills) == 0 {
		st.Logger().Infow("market_order_unmatched",
			"trader", caller.Hex(), "ticker", ticker, "side", side.String(), "amount", amount)
		return nil
	}

	view := newBalanceView(st.Ledger)
	for _, f := range fills {
		cost, err := notional(f.Qty, f.Price)
		if err != nil {
			return err
		}

		var buyer, seller common.Address
		if side == book.Buy {
			buyer, seller = caller, f.Maker.Trader
		} else {
			buyer, seller = f.Maker.Trader, caller
		}

		// Re-validate both counterparties at the resting price. Resting
		// balances were classified, not locked, so either side may have
		// spent its backing since the order was placed.
		if have := view.get(buyer, base); have < cost {
			if buyer == caller {
				return fmt.Errorf("buyer needs %d %s, have %d: %w", cost, base, have, ledger.ErrInsufficientBaseBalance)
			}
			return fmt.Errorf("resting buyer %s short of %s: %w", buyer.Hex(), base, ledger.ErrInsufficientFunds)
		}
		if have := view.get(seller, ticker); have < f.Qty {
			return fmt.Errorf("seller %s needs %d %s, have %d: %w", seller.Hex(), f.Qty, ticker, have, ledger.ErrInsufficientFunds)
		}

		view.debit(buyer, base, cost)
		view.credit(seller, base, cost)
		view.debit(seller, ticker, f.Qty)
		view.credit(buyer, ticker, f.Qty)
	}

	// Settle: balances and the makers' fill progress go down in one
	// atomic batch, then memory follows.
	batch := st.Store().NewBatch()
	defer batch.Close()
	for _, f := range fills {
		updated := *f.Maker
		updated.Filled += f.Qty
		if err := batch.SaveOrder(&updated); err != nil {
			return fmt.Errorf("stage fill for order %d: %w", f.Maker.ID, err)
		}
	}
	if err := st.Ledger.Commit(view.changes(), batch); err != nil {
		return err
	}
	b.Apply(fills)

	st.Logger().Infow("market_order_filled",
		"trader", caller.Hex(), "ticker", ticker, "side", side.String(),
		"requested", amount, "matched", amount-remaining, "fills", len(fills), "dropped", remaining)
	return nil
}

// GetOrders implements Logic.
func (e *Engine) GetOrders(st *State, ticker token.Ticker, side book.Side) ([]book.Order, error) {
	if ticker == st.Registry.Base() {
		return nil, fmt.Errorf("orders on %s: %w", ticker, ErrBaseCurrencyRejected)
	}
	if !st.Registry.IsApproved(ticker) {
		return nil, fmt.Errorf("orders on %s: %w", ticker, token.ErrNotApproved)
	}
	return st.Book(ticker).Orders(side), nil
}

// ToggleCircuitBreaker implements Logic.
func (e *Engine) ToggleCircuitBreaker(st *State, caller common.Address) error {
	if err := st.Authority.Toggle(caller); err != nil {
		return err
	}
	st.Logger().Infow("circuit_breaker_toggled", "paused", st.Authority.Paused())
	return nil
}

// IsAlive implements Logic.
func (e *Engine) IsAlive(st *State) bool {
	return !st.Authority.Paused()
}

var _ Logic = (*Engine)(nil)
