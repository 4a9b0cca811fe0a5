package api

// Request/response shapes for the REST surface. The caller address is
// part of each mutating request: identity and signing belong to the
// external wallet collaborator, not this service.

type TransferRequest struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	Amount  uint64 `json:"amount"`
}

type OrderRequest struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	Side    string `json:"side"` // "buy" or "sell"
	Type    string `json:"type"` // "limit" or "market"
	Amount  uint64 `json:"amount"`
	Price   uint64 `json:"price,omitempty"` // limit orders only
}

type OrderResponse struct {
	Status  string `json:"status"`
	OrderID uint64 `json:"orderId,omitempty"`
}

type OrderInfo struct {
	ID        uint64 `json:"id"`
	Trader    string `json:"trader"`
	Ticker    string `json:"ticker"`
	Side      string `json:"side"`
	Amount    uint64 `json:"amount"`
	Filled    uint64 `json:"filled"`
	Price     uint64 `json:"price"`
	CreatedAt int64  `json:"createdAt"`
}

type BalanceInfo struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	Amount  uint64 `json:"amount"`
}

type TokenInfo struct {
	Ticker  string `json:"ticker"`
	Address string `json:"address"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Alive       bool   `json:"alive"`
	Logic       string `json:"logic"`
	NextOrderID uint64 `json:"nextOrderId"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// BookUpdate is pushed to WebSocket subscribers of "book:{ticker}"
// after every order operation on that ticker.
type BookUpdate struct {
	Type      string      `json:"type"`
	Ticker    string      `json:"ticker"`
	Buys      []OrderInfo `json:"buys"`
	Sells     []OrderInfo `json:"sells"`
	Timestamp int64       `json:"timestamp"`
}

// WSSubscribeRequest is the only inbound WebSocket message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
