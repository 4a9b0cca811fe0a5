package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/dex/book"
	"github.com/hyosong/custodex/pkg/dex/token"
)

// Logic is the stable contract between the proxy and a replaceable
// engine implementation. Every operation takes the proxy-owned State
// explicitly, the way a delegate executes in its caller's storage
// context: implementations hold no state of their own, so swapping one
// for another changes behavior without resetting balances or orders.
//
// The caller address is passed in because identity comes from the
// external wallet collaborator; there is no ambient sender.
type Logic interface {
	// Version identifies the implementation, for upgrade bookkeeping.
	Version() string

	// RegisterToken binds a ticker to an external token contract.
	// Admin only; the settlement currency is rejected.
	RegisterToken(st *State, caller common.Address, ticker token.Ticker, ref token.TokenRef) error

	// ListTokens returns registered tradable tokens in registration order.
	ListTokens(st *State) []token.Listing

	// Deposit pulls amount of ticker from caller into custody.
	Deposit(st *State, caller common.Address, ticker token.Ticker, amount uint64) error

	// Withdraw pushes amount of ticker from custody back to caller.
	Withdraw(st *State, caller common.Address, ticker token.Ticker, amount uint64) error

	// BalanceOf reads the custody balance for (account, ticker).
	BalanceOf(st *State, account common.Address, ticker token.Ticker) uint64

	// CreateLimitOrder rests a priced order and returns its id.
	CreateLimitOrder(st *State, caller common.Address, ticker token.Ticker, amount, price uint64, side book.Side) (uint64, error)

	// CreateMarketOrder consumes resting liquidity at each resting
	// order's own price. All fills settle or none do; an unmatched
	// remainder is dropped.
	CreateMarketOrder(st *State, caller common.Address, ticker token.Ticker, amount uint64, side book.Side) error

	// GetOrders returns one side of a ticker's book in priority order,
	// filled orders included.
	GetOrders(st *State, ticker token.Ticker, side book.Side) ([]book.Order, error)

	// ToggleCircuitBreaker flips the pause flag. Admin only.
	ToggleCircuitBreaker(st *State, caller common.Address) error

	// IsAlive reports whether the exchange is accepting deposits and
	// orders (i.e. not paused).
	IsAlive(st *State) bool
}
