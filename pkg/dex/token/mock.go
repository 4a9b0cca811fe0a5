package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Mock transfer failures, matching the failure modes of a real token
// contract.
var (
	ErrTransferExceedsBalance   = errors.New("transfer amount exceeds balance")
	ErrTransferExceedsAllowance = errors.New("transfer amount exceeds allowance")
)

// MockToken is an in-process stand-in for an external balance-bearing
// contract. It implements the TokenRef collaborator contract with
// faucet minting, per-owner balances, and spender allowances. Used by
// tests and devnet bootstrap; a production deployment would bind real
// contract clients instead.
type MockToken struct {
	mu         sync.Mutex
	addr       common.Address
	balances   map[common.Address]uint64
	allowances map[common.Address]map[common.Address]uint64 // owner -> spender -> amount
}

// NewMockToken creates a mock token living at the given address.
func NewMockToken(addr common.Address) *MockToken {
	return &MockToken{
		addr:       addr,
		balances:   make(map[common.Address]uint64),
		allowances: make(map[common.Address]map[common.Address]uint64),
	}
}

func (m *MockToken) Address() common.Address { return m.addr }

// Faucet mints amount to account, for seeding trader wallets.
func (m *MockToken) Faucet(account common.Address, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

func (m *MockToken) BalanceOf(account common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

// Approve sets (not adds) the spender allowance for owner.
func (m *MockToken) Approve(owner, spender common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allowances[owner] == nil {
		m.allowances[owner] = make(map[common.Address]uint64)
	}
	m.allowances[owner][spender] = amount
	return nil
}

// Allowance returns what spender may still move on behalf of owner.
func (m *MockToken) Allowance(owner, spender common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowances[owner][spender]
}

// TransferFrom moves amount from -> to, consuming allowance when the
// mover is not the owner itself. The custody ledger calls this with
// itself as spender on deposit and as owner on withdrawal.
func (m *MockToken) TransferFrom(from, to common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[from] < amount {
		return fmt.Errorf("%s: %w", m.addr.Hex(), ErrTransferExceedsBalance)
	}
	if from != to {
		// Allowance bookkeeping. Transfers out of an account require an
		// approval for the receiving custody address.
		if allowed := m.allowances[from][to]; allowed < amount {
			return fmt.Errorf("%s: %w", m.addr.Hex(), ErrTransferExceedsAllowance)
		}
		m.allowances[from][to] -= amount
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

var _ TokenRef = (*MockToken)(nil)
