// Package api exposes the exchange to the dashboard collaborator:
// REST for custody and order operations, WebSocket for order-book
// push. Every call goes through the proxy, never at the engine
// directly.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/hyosong/custodex/pkg/dex"
	"github.com/hyosong/custodex/pkg/dex/book"
	"github.com/hyosong/custodex/pkg/dex/ledger"
	"github.com/hyosong/custodex/pkg/dex/token"
	"github.com/hyosong/custodex/pkg/proxy"
)

// Server handles REST and WebSocket connections.
type Server struct {
	dex    *proxy.Proxy
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer builds the server around a proxy instance.
func NewServer(p *proxy.Proxy, log *zap.SugaredLogger) *Server {
	s := &Server{
		dex:    p,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances/{ticker}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/books/{ticker}/{side}", s.handleGetOrders).Methods("GET")

	api.HandleFunc("/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")

	api.HandleFunc("/admin/circuit-breaker", s.handleToggleCircuitBreaker).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the CORS-wrapped root handler.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the hub and serves until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	listings := s.dex.ListTokens()
	out := make([]TokenInfo, len(listings))
	for i, l := range listings {
		out[i] = TokenInfo{Ticker: l.Ticker.String(), Address: l.Address.Hex()}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["address"]) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(vars["address"])
	ticker := token.Ticker(vars["ticker"])

	respondJSON(w, BalanceInfo{
		Address: addr.Hex(),
		Ticker:  ticker.String(),
		Amount:  s.dex.BalanceOf(addr, ticker),
	})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	side, ok := book.ParseSide(vars["side"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "want buy or sell")
		return
	}
	orders, err := s.dex.GetOrders(token.Ticker(vars["ticker"]), side)
	if err != nil {
		s.respondDexError(w, err)
		return
	}
	respondJSON(w, toOrderInfos(orders))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	caller, ticker, ok := s.decodeTransfer(w, r, &req)
	if !ok {
		return
	}
	if err := s.dex.Deposit(caller, ticker, req.Amount); err != nil {
		s.respondDexError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	caller, ticker, ok := s.decodeTransfer(w, r, &req)
	if !ok {
		return
	}
	if err := s.dex.Withdraw(caller, ticker, req.Amount); err != nil {
		s.respondDexError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	caller := common.HexToAddress(req.Address)
	ticker := token.Ticker(req.Ticker)
	side, ok := book.ParseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "want buy or sell")
		return
	}

	switch req.Type {
	case "limit":
		id, err := s.dex.CreateLimitOrder(caller, ticker, req.Amount, req.Price, side)
		if err != nil {
			s.respondDexError(w, err)
			return
		}
		s.broadcastBook(ticker)
		respondJSON(w, OrderResponse{Status: "resting", OrderID: id})
	case "market":
		if err := s.dex.CreateMarketOrder(caller, ticker, req.Amount, side); err != nil {
			s.respondDexError(w, err)
			return
		}
		s.broadcastBook(ticker)
		respondJSON(w, OrderResponse{Status: "executed"})
	default:
		respondError(w, http.StatusBadRequest, "invalid order type", "want limit or market")
	}
}

func (s *Server) handleToggleCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	if err := s.dex.ToggleCircuitBreaker(common.HexToAddress(req.Address)); err != nil {
		s.respondDexError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"alive": s.dex.IsAlive()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:      "ok",
		Alive:       s.dex.IsAlive(),
		Logic:       s.dex.Version(),
		NextOrderID: s.dex.NextOrderID(),
	})
}

// broadcastBook pushes both sides of a ticker's book to subscribers.
func (s *Server) broadcastBook(ticker token.Ticker) {
	buys, err := s.dex.GetOrders(ticker, book.Buy)
	if err != nil {
		return
	}
	sells, _ := s.dex.GetOrders(ticker, book.Sell)

	s.hub.BroadcastToChannel("book:"+ticker.String(), BookUpdate{
		Type:      "book",
		Ticker:    ticker.String(),
		Buys:      toOrderInfos(buys),
		Sells:     toOrderInfos(sells),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) decodeTransfer(w http.ResponseWriter, r *http.Request, req *TransferRequest) (common.Address, token.Ticker, bool) {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return common.Address{}, "", false
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return common.Address{}, "", false
	}
	return common.HexToAddress(req.Address), token.Ticker(req.Ticker), true
}

// respondDexError maps the engine's error taxonomy onto HTTP codes.
func (s *Server) respondDexError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dex.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, dex.ErrSystemPaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, token.ErrNotApproved),
		errors.Is(err, dex.ErrBaseCurrencyRejected),
		errors.Is(err, token.ErrAlreadyRegistered),
		errors.Is(err, dex.ErrNotionalOverflow):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientBaseBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrExternalTransferFailed):
		status = http.StatusBadGateway
	}
	respondError(w, status, err.Error(), "")
}

func toOrderInfos(orders []book.Order) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = OrderInfo{
			ID:        o.ID,
			Trader:    o.Trader.Hex(),
			Ticker:    o.Ticker.String(),
			Side:      o.Side.String(),
			Amount:    o.Amount,
			Filled:    o.Filled,
			Price:     o.Price,
			CreatedAt: o.CreatedAt,
		}
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: detail})
}
