package book

import (
	"sort"
	"sync"

	"github.com/hyosong/custodex/pkg/dex/token"
)

// Fill is one proposed match between a taker and a resting maker.
type Fill struct {
	Maker *Order
	Qty   uint64
	Price uint64 // the resting order's price
}

// Book holds both sides of one ticker's order book. Each side is an
// ordered sequence of orders in matching priority: buys by descending
// price then ascending id, sells by ascending price then ascending id.
// Filled orders stay in place for historical queries; the matching walk
// skips them.
type Book struct {
	mu     sync.RWMutex
	ticker token.Ticker
	buys   []*Order
	sells  []*Order
}

// New creates an empty book for a ticker.
func New(ticker token.Ticker) *Book {
	return &Book{ticker: ticker}
}

// Ticker returns the asset this book trades.
func (b *Book) Ticker() token.Ticker {
	return b.ticker
}

// before reports whether order x has strictly higher matching priority
// than y on the given side.
func before(side Side, x, y *Order) bool {
	if x.Price != y.Price {
		if side == Buy {
			return x.Price > y.Price // highest bid first
		}
		return x.Price < y.Price // lowest ask first
	}
	return x.ID < y.ID // time priority within a price
}

// Insert places a resting order at its priority position. Limit orders
// only rest; no matching happens on insertion.
func (b *Book) Insert(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	side := &b.buys
	if o.Side == Sell {
		side = &b.sells
	}

	i := sort.Search(len(*side), func(i int) bool {
		return before(o.Side, o, (*side)[i])
	})
	*side = append(*side, nil)
	copy((*side)[i+1:], (*side)[i:])
	(*side)[i] = o
}

// Orders returns a snapshot of one side in priority order, including
// already-filled orders. Callers filter Remaining() > 0 when they want
// live liquidity only.
func (b *Book) Orders(side Side) []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	src := b.buys
	if side == Sell {
		src = b.sells
	}
	out := make([]Order, len(src))
	for i, o := range src {
		out[i] = *o
	}
	return out
}

// Propose walks the side opposite the taker in priority order and
// computes the fills a market order of the given size would take. No
// state is mutated: the engine validates funds for every fill first and
// applies them only if the whole set settles, which is what makes the
// market order atomic. A remainder left when the book runs out is the
// caller's to drop.
func (b *Book) Propose(takerSide Side, amount uint64) (fills []Fill, remaining uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	resting := b.sells
	if takerSide == Sell {
		resting = b.buys
	}

	remaining = amount
	for _, maker := range resting {
		if remaining == 0 {
			break
		}
		avail := maker.Remaining()
		if avail == 0 {
			continue // soft-completed, no liquidity
		}
		qty := remaining
		if avail < qty {
			qty = avail
		}
		fills = append(fills, Fill{Maker: maker, Qty: qty, Price: maker.Price})
		remaining -= qty
	}
	return fills, remaining
}

// Apply records a proposed fill set against the resting orders. Called
// only after the paired ledger mutation has committed.
func (b *Book) Apply(fills []Fill) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, f := range fills {
		f.Maker.Filled += f.Qty
	}
}

// Depth returns the total unfilled quantity resting on one side.
func (b *Book) Depth(side Side) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	src := b.buys
	if side == Sell {
		src = b.sells
	}
	var total uint64
	for _, o := range src {
		total += o.Remaining()
	}
	return total
}
