package dex

import "errors"

// Engine-level failure conditions. Balance and registry conditions live
// with the packages that own them (ledger, token); everything is
// detected before any mutation and surfaced synchronously.
var (
	ErrUnauthorized         = errors.New("caller is not the admin")
	ErrSystemPaused         = errors.New("system paused")
	ErrBaseCurrencyRejected = errors.New("settlement currency cannot be traded")
	ErrNotionalOverflow     = errors.New("order notional overflows")
)
