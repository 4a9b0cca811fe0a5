// Package ledger implements the custody ledger: per-account,
// per-ticker balance accounting backed by externally held tokens.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyosong/custodex/pkg/dex/token"
	"github.com/hyosong/custodex/pkg/storage"
)

// Balance-condition errors.
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientBaseBalance = errors.New("insufficient settlement balance")
	ErrExternalTransferFailed  = errors.New("external token transfer failed")
)

// Change is one staged balance assignment, applied atomically with the
// rest of its set by Commit.
type Change struct {
	Account common.Address
	Ticker  token.Ticker
	Amount  uint64 // new absolute balance
}

// Ledger tracks what each account holds in custody. Balances are
// created implicitly on first deposit and never go negative: every
// debit checks first, and the external pull on deposit completes
// before any credit is recorded.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[token.Ticker]uint64
	custody  common.Address // the address external tokens are held under
	store    *storage.Store
}

// New creates a ledger holding custody under the given address,
// restoring any balances already persisted in the store.
func New(custody common.Address, store *storage.Store) (*Ledger, error) {
	l := &Ledger{
		balances: make(map[common.Address]map[token.Ticker]uint64),
		custody:  custody,
		store:    store,
	}
	recs, err := store.LoadBalances()
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	for _, r := range recs {
		l.set(r.Account, r.Ticker, r.Amount)
	}
	return l, nil
}

// Custody returns the address external token balances are held under.
func (l *Ledger) Custody() common.Address {
	return l.custody
}

// Balance returns the custody balance for (account, ticker). Missing
// entries read as zero; a zero balance is a valid steady state.
func (l *Ledger) Balance(account common.Address, ticker token.Ticker) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account][ticker]
}

// set assumes the caller holds the lock or exclusivity.
func (l *Ledger) set(account common.Address, ticker token.Ticker, amount uint64) {
	m := l.balances[account]
	if m == nil {
		m = make(map[token.Ticker]uint64)
		l.balances[account] = m
	}
	m[ticker] = amount
}

// Deposit pulls amount of the external token from account into custody
// and credits the ledger. The account must have pre-authorized at
// least amount to the custody address; a rejected pull surfaces as
// ErrExternalTransferFailed and leaves the ledger untouched.
func (l *Ledger) Deposit(account common.Address, ref token.TokenRef, ticker token.Ticker, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("deposit amount must be positive")
	}

	// External pull completes before any ledger mutation.
	if err := ref.TransferFrom(account, l.custody, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalTransferFailed, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.balances[account][ticker] + amount
	if err := l.store.SetBalance(account, ticker, next); err != nil {
		return fmt.Errorf("persist deposit: %w", err)
	}
	l.set(account, ticker, next)
	return nil
}

// Withdraw debits the ledger first and only then pushes the external
// token back to the account. Debit-before-transfer closes the window
// where a second withdrawal could be issued against a not-yet-debited
// balance; if the push is rejected the debit is restored and the call
// reports ErrExternalTransferFailed with no net ledger change.
func (l *Ledger) Withdraw(account common.Address, ref token.TokenRef, ticker token.Ticker, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("withdraw amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.balances[account][ticker]
	if have < amount {
		return fmt.Errorf("withdraw %d %s, have %d: %w", amount, ticker, have, ErrInsufficientFunds)
	}

	next := have - amount
	if err := l.store.SetBalance(account, ticker, next); err != nil {
		return fmt.Errorf("persist withdrawal: %w", err)
	}
	l.set(account, ticker, next)

	// Push is modeled as a custody-authorized pull toward the account.
	if err := ref.Approve(l.custody, account, amount); err == nil {
		err = ref.TransferFrom(l.custody, account, amount)
		if err == nil {
			return nil
		}
	}

	// Restore the debit; the operation must leave no partial effect.
	if err := l.store.SetBalance(account, ticker, have); err != nil {
		return fmt.Errorf("restore after failed push: %w", err)
	}
	l.set(account, ticker, have)
	return fmt.Errorf("%w: token %s rejected push", ErrExternalTransferFailed, ticker)
}

// Commit applies a set of staged balance assignments atomically: all of
// them are persisted in one batch together with any extra writes the
// caller staged (order fills), then mirrored in memory. Used by
// market-order settlement.
func (l *Ledger) Commit(changes []Change, batch *storage.Batch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range changes {
		if err := batch.SetBalance(c.Account, c.Ticker, c.Amount); err != nil {
			return fmt.Errorf("stage balance %s/%s: %w", c.Account.Hex(), c.Ticker, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit settlement batch: %w", err)
	}
	for _, c := range changes {
		l.set(c.Account, c.Ticker, c.Amount)
	}
	return nil
}

// Accounts returns the addresses with at least one ledger entry.
func (l *Ledger) Accounts() []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]common.Address, 0, len(l.balances))
	for addr := range l.balances {
		out = append(out, addr)
	}
	return out
}
