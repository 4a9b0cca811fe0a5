package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/dex/token"
)

// Pebble key schema. Prefix-based so related records range-scan
// together, with fixed-width numeric segments for lexicographic
// ordering.
const (
	prefixBalance = "bal:" // bal:{address}:{ticker} -> uint64 BE
	prefixOrder   = "ord:" // ord:{id, 20 digits}    -> JSON order
	prefixToken   = "tok:" // tok:{seq, 4 digits}    -> JSON listing
	keyPaused     = "meta:paused"
	keyNextOrder  = "meta:nextorder"
)

func balanceKey(addr common.Address, ticker token.Ticker) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, addr.Hex(), ticker))
}

// orderKey zero-pads the id so iteration order equals id order, which
// is also submission (time-priority) order.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// tokenKey keys listings by registration sequence so LoadTokens
// returns them in registration order.
func tokenKey(seq int) []byte {
	return []byte(fmt.Sprintf("%s%04d", prefixToken, seq))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
