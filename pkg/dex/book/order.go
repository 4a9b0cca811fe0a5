// Package book implements the per-ticker order book: an append-only
// arena of orders plus price-time-priority indices for each side, and
// the matching walk used by market orders.
package book

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/dex/token"
)

// Side of an order. BUY is the zero value.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the side a taker order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide maps the API representation back to a Side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy", "BUY":
		return Buy, true
	case "sell", "SELL":
		return Sell, true
	}
	return 0, false
}

// Order is a resting limit order. Orders are created by traders,
// mutated only by the matching engine (Filled), and never deleted:
// once Filled == Amount the order is excluded from matching but stays
// addressable by id.
type Order struct {
	ID        uint64         `json:"id"`
	Trader    common.Address `json:"trader"`
	Ticker    token.Ticker   `json:"ticker"`
	Amount    uint64         `json:"amount"`
	Filled    uint64         `json:"filled"`
	Price     uint64         `json:"price"`
	Side      Side           `json:"side"`
	CreatedAt int64          `json:"createdAt"` // Unix milliseconds
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() uint64 {
	return o.Amount - o.Filled
}

// IsFilled reports whether the order is soft-completed.
func (o *Order) IsFilled() bool {
	return o.Filled == o.Amount
}
