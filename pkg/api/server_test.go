package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/hyosong/custodex/pkg/dex"
	"github.com/hyosong/custodex/pkg/dex/token"
	"github.com/hyosong/custodex/pkg/proxy"
	"github.com/hyosong/custodex/pkg/storage"
)

var (
	admin   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	custody = common.HexToAddress("0x00000000000000000000000000000000000c0de")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	state, err := dex.NewState(dex.StateConfig{
		Base:    "DAI",
		Admin:   admin,
		Custody: custody,
		Store:   store,
	})
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	p := proxy.New(state, dex.NewEngine())
	t.Cleanup(func() { p.Close() })

	for trader, seed := range map[common.Address]struct {
		ticker token.Ticker
		mock   *token.MockToken
	}{
		alice: {"DAI", token.NewMockToken(common.HexToAddress("0xd001"))},
		bob:   {"BAT", token.NewMockToken(common.HexToAddress("0xd002"))},
	} {
		if seed.ticker == "DAI" {
			state.Registry.BindBase(seed.mock)
		} else if err := p.RegisterToken(admin, seed.ticker, seed.mock); err != nil {
			t.Fatal(err)
		}
		seed.mock.Faucet(trader, 1000)
		if err := seed.mock.Approve(trader, custody, 1000); err != nil {
			t.Fatal(err)
		}
		if err := p.Deposit(trader, seed.ticker, 1000); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(p, zap.NewNop().Sugar())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if out != nil && rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	var health HealthResponse
	rr := doJSON(t, s, "GET", "/health", nil, &health)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !health.Alive || health.Logic != "v1" || health.NextOrderID != 1 {
		t.Errorf("health = %+v", health)
	}
}

func TestListTokensEndpoint(t *testing.T) {
	s := newTestServer(t)
	var tokens []TokenInfo
	rr := doJSON(t, s, "GET", "/api/v1/tokens", nil, &tokens)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(tokens) != 1 || tokens[0].Ticker != "BAT" {
		t.Errorf("tokens = %+v", tokens)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	s := newTestServer(t)
	var bal BalanceInfo
	rr := doJSON(t, s, "GET", "/api/v1/accounts/"+alice.Hex()+"/balances/DAI", nil, &bal)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if bal.Amount != 1000 {
		t.Errorf("amount = %d, want 1000", bal.Amount)
	}

	rr = doJSON(t, s, "GET", "/api/v1/accounts/not-an-address/balances/DAI", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad address status = %d", rr.Code)
	}
}

func TestOrderFlowOverREST(t *testing.T) {
	s := newTestServer(t)

	var placed OrderResponse
	rr := doJSON(t, s, "POST", "/api/v1/orders", OrderRequest{
		Address: bob.Hex(), Ticker: "BAT", Side: "sell", Type: "limit", Amount: 5, Price: 10,
	}, &placed)
	if rr.Code != http.StatusOK {
		t.Fatalf("limit order status = %d: %s", rr.Code, rr.Body.String())
	}
	if placed.Status != "resting" || placed.OrderID != 1 {
		t.Errorf("limit response = %+v", placed)
	}

	var executed OrderResponse
	rr = doJSON(t, s, "POST", "/api/v1/orders", OrderRequest{
		Address: alice.Hex(), Ticker: "BAT", Side: "buy", Type: "market", Amount: 5,
	}, &executed)
	if rr.Code != http.StatusOK {
		t.Fatalf("market order status = %d: %s", rr.Code, rr.Body.String())
	}
	if executed.Status != "executed" {
		t.Errorf("market response = %+v", executed)
	}

	var asks []OrderInfo
	doJSON(t, s, "GET", "/api/v1/books/BAT/sell", nil, &asks)
	if len(asks) != 1 || asks[0].Filled != 5 {
		t.Errorf("asks = %+v", asks)
	}

	var bal BalanceInfo
	doJSON(t, s, "GET", "/api/v1/accounts/"+alice.Hex()+"/balances/BAT", nil, &bal)
	if bal.Amount != 5 {
		t.Errorf("alice BAT = %d, want 5", bal.Amount)
	}
}

func TestOrderErrorMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		req  OrderRequest
		want int
	}{
		{
			"insufficient funds",
			OrderRequest{Address: bob.Hex(), Ticker: "BAT", Side: "sell", Type: "limit", Amount: 5000, Price: 1},
			http.StatusUnprocessableEntity,
		},
		{
			"settlement currency",
			OrderRequest{Address: alice.Hex(), Ticker: "DAI", Side: "buy", Type: "limit", Amount: 1, Price: 1},
			http.StatusBadRequest,
		},
		{
			"unregistered ticker",
			OrderRequest{Address: alice.Hex(), Ticker: "OMG", Side: "buy", Type: "limit", Amount: 1, Price: 1},
			http.StatusBadRequest,
		},
		{
			"bad side",
			OrderRequest{Address: alice.Hex(), Ticker: "BAT", Side: "hold", Type: "limit", Amount: 1, Price: 1},
			http.StatusBadRequest,
		},
		{
			"bad type",
			OrderRequest{Address: alice.Hex(), Ticker: "BAT", Side: "buy", Type: "stop", Amount: 1, Price: 1},
			http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, s, "POST", "/api/v1/orders", tt.req, nil)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestCircuitBreakerEndpoint(t *testing.T) {
	s := newTestServer(t)

	rr := doJSON(t, s, "POST", "/api/v1/admin/circuit-breaker",
		map[string]string{"address": alice.Hex()}, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin toggle status = %d", rr.Code)
	}

	var resp map[string]bool
	rr = doJSON(t, s, "POST", "/api/v1/admin/circuit-breaker",
		map[string]string{"address": admin.Hex()}, &resp)
	if rr.Code != http.StatusOK || resp["alive"] {
		t.Fatalf("admin toggle: status=%d resp=%v", rr.Code, resp)
	}

	// Orders now rejected with 503, withdrawals still pass.
	rr = doJSON(t, s, "POST", "/api/v1/orders", OrderRequest{
		Address: bob.Hex(), Ticker: "BAT", Side: "sell", Type: "limit", Amount: 1, Price: 1,
	}, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("order while paused status = %d", rr.Code)
	}
	rr = doJSON(t, s, "POST", "/api/v1/withdrawals", TransferRequest{
		Address: bob.Hex(), Ticker: "BAT", Amount: 100,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("withdraw while paused status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDepositEndpointExternalFailure(t *testing.T) {
	s := newTestServer(t)

	// Allowance already consumed by the seed deposit.
	rr := doJSON(t, s, "POST", "/api/v1/deposits", TransferRequest{
		Address: bob.Hex(), Ticker: "BAT", Amount: 50,
	}, nil)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("unapproved deposit status = %d: %s", rr.Code, rr.Body.String())
	}
}
