package api

// Request/response DTOs. Amounts travel as decimal strings so javascript
// clients cannot silently truncate 64-bit values.

type DepositEtherRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type DepositTokenRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type WithdrawEtherRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type WithdrawTokenRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type MakeOrderRequest struct {
	Maker      string `json:"maker"`
	TokenGet   string `json:"token_get"`
	AmountGet  string `json:"amount_get"`
	TokenGive  string `json:"token_give"`
	AmountGive string `json:"amount_give"`
}

type CancelOrderRequest struct {
	Caller string `json:"caller"`
}

type FillOrderRequest struct {
	Taker string `json:"taker"`
}

type BalanceResponse struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type OrderResponse struct {
	ID         uint64 `json:"id"`
	Maker      string `json:"maker"`
	TokenGet   string `json:"token_get"`
	AmountGet  string `json:"amount_get"`
	TokenGive  string `json:"token_give"`
	AmountGive string `json:"amount_give"`
	Timestamp  int64  `json:"timestamp"`
	Status     string `json:"status"`
}

type TokenResponse struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
