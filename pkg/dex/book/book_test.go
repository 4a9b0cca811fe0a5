package book

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func trader(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func sell(id, amount, price uint64) *Order {
	return &Order{ID: id, Trader: trader(byte(id)), Ticker: "BAT", Amount: amount, Price: price, Side: Sell}
}

func buy(id, amount, price uint64) *Order {
	return &Order{ID: id, Trader: trader(byte(id)), Ticker: "BAT", Amount: amount, Price: price, Side: Buy}
}

func ids(orders []Order) []uint64 {
	out := make([]uint64, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestParseSide(t *testing.T) {
	for _, s := range []string{"buy", "BUY"} {
		if side, ok := ParseSide(s); !ok || side != Buy {
			t.Errorf("ParseSide(%q) = %v, %v", s, side, ok)
		}
	}
	for _, s := range []string{"sell", "SELL"} {
		if side, ok := ParseSide(s); !ok || side != Sell {
			t.Errorf("ParseSide(%q) = %v, %v", s, side, ok)
		}
	}
	if _, ok := ParseSide("hold"); ok {
		t.Error("ParseSide accepted garbage")
	}
}

func TestInsertSellPriority(t *testing.T) {
	b := New("BAT")
	b.Insert(sell(1, 10, 300))
	b.Insert(sell(2, 10, 100))
	b.Insert(sell(3, 10, 200))
	b.Insert(sell(4, 10, 100)) // same price as 2, later id

	got := ids(b.Orders(Sell))
	want := []uint64{2, 4, 3, 1} // lowest ask first, id breaks ties
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sell priority = %v, want %v", got, want)
		}
	}
}

func TestInsertBuyPriority(t *testing.T) {
	b := New("BAT")
	b.Insert(buy(1, 10, 100))
	b.Insert(buy(2, 10, 300))
	b.Insert(buy(3, 10, 200))
	b.Insert(buy(4, 10, 300)) // same price as 2, later id

	got := ids(b.Orders(Buy))
	want := []uint64{2, 4, 3, 1} // highest bid first, id breaks ties
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buy priority = %v, want %v", got, want)
		}
	}
}

func TestProposeWalksPriceTimePriority(t *testing.T) {
	b := New("BAT")
	b.Insert(sell(1, 5, 200))
	b.Insert(sell(2, 5, 100)) // best ask, filled first
	b.Insert(sell(3, 5, 200))

	fills, remaining := b.Propose(Buy, 12)
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
	if len(fills) != 3 {
		t.Fatalf("got %d fills, want 3", len(fills))
	}
	wantIDs := []uint64{2, 1, 3}
	wantQty := []uint64{5, 5, 2}
	for i, f := range fills {
		if f.Maker.ID != wantIDs[i] || f.Qty != wantQty[i] {
			t.Errorf("fill[%d] = order %d qty %d, want order %d qty %d",
				i, f.Maker.ID, f.Qty, wantIDs[i], wantQty[i])
		}
		if f.Price != f.Maker.Price {
			t.Errorf("fill[%d] priced at %d, want resting price %d", i, f.Price, f.Maker.Price)
		}
	}
}

func TestProposeDoesNotMutate(t *testing.T) {
	b := New("BAT")
	b.Insert(sell(1, 10, 100))

	b.Propose(Buy, 4)
	if got := b.Orders(Sell)[0].Filled; got != 0 {
		t.Fatalf("Propose mutated Filled to %d", got)
	}

	// Apply is the only mutation path.
	fills, _ := b.Propose(Buy, 4)
	b.Apply(fills)
	if got := b.Orders(Sell)[0].Filled; got != 4 {
		t.Fatalf("Filled = %d after Apply, want 4", got)
	}
}

func TestProposeReportsRemainder(t *testing.T) {
	b := New("BAT")
	b.Insert(sell(1, 3, 100))

	fills, remaining := b.Propose(Buy, 10)
	if len(fills) != 1 || fills[0].Qty != 3 {
		t.Fatalf("fills = %+v, want one fill of 3", fills)
	}
	if remaining != 7 {
		t.Errorf("remaining = %d, want 7", remaining)
	}
}

func TestProposeSkipsFilledOrders(t *testing.T) {
	b := New("BAT")
	done := sell(1, 5, 100)
	done.Filled = 5 // soft-completed, stays in the arena
	b.Insert(done)
	b.Insert(sell(2, 5, 200))

	fills, _ := b.Propose(Buy, 5)
	if len(fills) != 1 || fills[0].Maker.ID != 2 {
		t.Fatalf("fills = %+v, want only order 2", fills)
	}
}

func TestProposeEmptyBook(t *testing.T) {
	b := New("BAT")
	fills, remaining := b.Propose(Buy, 10)
	if len(fills) != 0 || remaining != 10 {
		t.Fatalf("empty book: fills=%d remaining=%d", len(fills), remaining)
	}
}

func TestMarketSellWalksBuys(t *testing.T) {
	b := New("BAT")
	b.Insert(buy(1, 5, 100))
	b.Insert(buy(2, 5, 300)) // best bid, hit first

	fills, remaining := b.Propose(Sell, 8)
	if remaining != 0 {
		t.Fatalf("remaining = %d", remaining)
	}
	if fills[0].Maker.ID != 2 || fills[0].Qty != 5 {
		t.Errorf("first fill %+v, want order 2 qty 5", fills[0])
	}
	if fills[1].Maker.ID != 1 || fills[1].Qty != 3 {
		t.Errorf("second fill %+v, want order 1 qty 3", fills[1])
	}
}

func TestDepth(t *testing.T) {
	b := New("BAT")
	b.Insert(sell(1, 10, 100))
	half := sell(2, 10, 200)
	half.Filled = 4
	b.Insert(half)

	if got := b.Depth(Sell); got != 16 {
		t.Errorf("sell depth = %d, want 16", got)
	}
	if got := b.Depth(Buy); got != 0 {
		t.Errorf("buy depth = %d, want 0", got)
	}
}
