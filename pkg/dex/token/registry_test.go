package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func TestTickerValid(t *testing.T) {
	tests := []struct {
		ticker Ticker
		want   bool
	}{
		{"BAT", true},
		{"ZRX", true},
		{"MAKER", true},
		{"AB", false},      // too short
		{"TOOLONG", false}, // too long
		{"bat", false},     // lower case
		{"BA1", false},     // digit
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.ticker.Valid(); got != tt.want {
			t.Errorf("Ticker(%q).Valid() = %v, want %v", tt.ticker, got, tt.want)
		}
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry("DAI")

	bat := NewMockToken(addr(0x10))
	if err := r.Register("BAT", bat); err != nil {
		t.Fatalf("register BAT: %v", err)
	}

	if !r.IsApproved("BAT") {
		t.Error("BAT should be approved after registration")
	}
	if r.IsApproved("REP") {
		t.Error("REP was never registered")
	}

	ref, err := r.Get("BAT")
	if err != nil {
		t.Fatalf("get BAT: %v", err)
	}
	if ref.Address() != bat.Address() {
		t.Errorf("got handle at %s, want %s", ref.Address().Hex(), bat.Address().Hex())
	}

	if _, err := r.Get("REP"); !errors.Is(err, ErrNotApproved) {
		t.Errorf("get unregistered = %v, want ErrNotApproved", err)
	}
}

func TestRegistryRejectsBase(t *testing.T) {
	r := NewRegistry("DAI")
	err := r.Register("DAI", NewMockToken(addr(0x01)))
	if !errors.Is(err, ErrBaseNotTradable) {
		t.Fatalf("register base = %v, want ErrBaseNotTradable", err)
	}
	if r.Count() != 0 {
		t.Errorf("count = %d after rejected registration", r.Count())
	}
}

func TestRegistryRejectsReRegistration(t *testing.T) {
	r := NewRegistry("DAI")
	if err := r.Register("BAT", NewMockToken(addr(0x10))); err != nil {
		t.Fatal(err)
	}
	// Same ticker, different contract: must not re-point custody.
	err := r.Register("BAT", NewMockToken(addr(0x11)))
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("re-register = %v, want ErrAlreadyRegistered", err)
	}

	ref, _ := r.Get("BAT")
	if ref.Address() != addr(0x10) {
		t.Errorf("handle changed to %s after rejected re-registration", ref.Address().Hex())
	}
}

func TestRegistryRejectsInvalidInput(t *testing.T) {
	r := NewRegistry("DAI")
	if err := r.Register("b@d", NewMockToken(addr(0x10))); err == nil {
		t.Error("invalid ticker accepted")
	}
	if err := r.Register("BAT", nil); err == nil {
		t.Error("nil token ref accepted")
	}
}

func TestRegistryBase(t *testing.T) {
	r := NewRegistry("DAI")

	// The settlement currency is a valid custody asset even though it
	// is never registered as tradable.
	if !r.IsApproved("DAI") {
		t.Error("base currency should be approved for custody")
	}

	if _, err := r.Get("DAI"); err == nil {
		t.Error("base handle resolved before BindBase")
	}
	dai := NewMockToken(addr(0x01))
	r.BindBase(dai)
	ref, err := r.Get("DAI")
	if err != nil {
		t.Fatalf("get base after bind: %v", err)
	}
	if ref.Address() != dai.Address() {
		t.Error("base handle mismatch")
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := NewRegistry("DAI")
	r.BindBase(NewMockToken(addr(0x01)))

	for i, ticker := range []Ticker{"BAT", "REP", "ZRX"} {
		if err := r.Register(ticker, NewMockToken(addr(byte(0x10+i)))); err != nil {
			t.Fatal(err)
		}
	}

	got := r.List()
	if len(got) != 3 {
		t.Fatalf("listed %d tokens, want 3 (base must not appear)", len(got))
	}
	for i, want := range []Ticker{"BAT", "REP", "ZRX"} {
		if got[i].Ticker != want {
			t.Errorf("listing[%d] = %s, want %s", i, got[i].Ticker, want)
		}
	}
}

func TestMockTokenTransferFrom(t *testing.T) {
	m := NewMockToken(addr(0xAA))
	owner, custody := addr(0x01), addr(0x02)

	m.Faucet(owner, 1000)

	// No approval yet.
	if err := m.TransferFrom(owner, custody, 100); !errors.Is(err, ErrTransferExceedsAllowance) {
		t.Fatalf("unapproved pull = %v, want ErrTransferExceedsAllowance", err)
	}

	if err := m.Approve(owner, custody, 300); err != nil {
		t.Fatal(err)
	}
	if err := m.TransferFrom(owner, custody, 100); err != nil {
		t.Fatalf("approved pull: %v", err)
	}
	if got := m.BalanceOf(owner); got != 900 {
		t.Errorf("owner balance = %d, want 900", got)
	}
	if got := m.BalanceOf(custody); got != 100 {
		t.Errorf("custody balance = %d, want 100", got)
	}
	if got := m.Allowance(owner, custody); got != 200 {
		t.Errorf("remaining allowance = %d, want 200", got)
	}

	// Allowance exhausted.
	if err := m.TransferFrom(owner, custody, 250); !errors.Is(err, ErrTransferExceedsAllowance) {
		t.Fatalf("over-allowance pull = %v, want ErrTransferExceedsAllowance", err)
	}

	// Balance exhausted beats allowance.
	m.Approve(owner, custody, 10000)
	if err := m.TransferFrom(owner, custody, 5000); !errors.Is(err, ErrTransferExceedsBalance) {
		t.Fatalf("over-balance pull = %v, want ErrTransferExceedsBalance", err)
	}
}
