// Package token defines tradable asset identifiers and the external
// token-contract collaborator interface the custody ledger pulls from
// and pushes to.
package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Errors surfaced by registry and ticker validation.
var (
	ErrNotApproved       = errors.New("token not approved for trading")
	ErrAlreadyRegistered = errors.New("token already registered")
	ErrBaseNotTradable   = errors.New("settlement currency not approved for trading")
)

// Ticker is the symbolic code naming a tradable asset (e.g. "BAT").
// 3 to 5 upper-case ASCII letters.
type Ticker string

// Valid reports whether t is a well-formed ticker symbol.
func (t Ticker) Valid() bool {
	if len(t) < 3 || len(t) > 5 {
		return false
	}
	for i := 0; i < len(t); i++ {
		if t[i] < 'A' || t[i] > 'Z' {
			return false
		}
	}
	return true
}

func (t Ticker) String() string { return string(t) }

// TokenRef is the contract every external token must honor. The engine
// treats it as a trusted collaborator: any failure from TransferFrom is
// surfaced to the caller as an external transfer failure and no ledger
// state changes.
type TokenRef interface {
	// Address identifies the external contract this handle points at.
	Address() common.Address

	// BalanceOf returns the token balance held by account.
	BalanceOf(account common.Address) uint64

	// TransferFrom moves amount from one account to another. The spender
	// (custody) must have been approved for at least amount by `from`.
	TransferFrom(from, to common.Address, amount uint64) error

	// Approve authorizes spender to move up to amount on behalf of owner.
	Approve(owner, spender common.Address, amount uint64) error
}

// Listing pairs a ticker with the address of its external contract.
// Returned by the registry in registration order.
type Listing struct {
	Ticker  Ticker         `json:"ticker"`
	Address common.Address `json:"address"`
}

func (l Listing) String() string {
	return fmt.Sprintf("%s@%s", l.Ticker, l.Address.Hex())
}
