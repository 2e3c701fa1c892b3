// Package api serves the settlement core over REST and streams journal
// events over WebSocket. Failure responses carry the reason string from the
// core unchanged; that text is the compatibility surface.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/clearsettle/clearsettle/pkg/exchange"
	"github.com/clearsettle/clearsettle/pkg/exchange/order"
	"github.com/clearsettle/clearsettle/pkg/exchange/token"
)

type Server struct {
	x      *exchange.Exchange
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(x *exchange.Exchange, log *zap.SugaredLogger) *Server {
	s := &Server{
		x:      x,
		router: mux.NewRouter(),
		hub:    NewHub(x.Journal().Subscribe()),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Reads
	api.HandleFunc("/balances/{asset}/{account}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")

	// Gateway
	api.HandleFunc("/deposits/ether", s.handleDepositEther).Methods("POST")
	api.HandleFunc("/deposits/token", s.handleDepositToken).Methods("POST")
	api.HandleFunc("/withdrawals/ether", s.handleWithdrawEther).Methods("POST")
	api.HandleFunc("/withdrawals/token", s.handleWithdrawToken).Methods("POST")

	// Orders and settlement
	api.HandleFunc("/orders", s.handleMakeOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/fill", s.handleFillOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the hub and blocks serving HTTP.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Handlers
// ==============================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset, err := parseAddress(vars["asset"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := parseAddress(vars["account"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bal := s.x.BalanceOf(asset, account)
	writeJSON(w, http.StatusOK, BalanceResponse{
		Asset:   asset.Hex(),
		Account: account.Hex(),
		Balance: strconv.FormatUint(bal, 10),
	})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.x.Orders()
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = orderResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, order.ErrInvalidOrder)
		return
	}
	o, err := s.x.Order(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse(o))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.x.Trades())
}

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.x.Tokens()
	out := make([]TokenResponse, len(tokens))
	for i, t := range tokens {
		out[i] = TokenResponse{Address: t.Address.Hex(), Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDepositEther(w http.ResponseWriter, r *http.Request) {
	var req DepositEtherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.x.DepositEther(account, amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDepositToken(w http.ResponseWriter, r *http.Request) {
	var req DepositTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokenAddr, err := parseAddress(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.x.DepositToken(tokenAddr, account, amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWithdrawEther(w http.ResponseWriter, r *http.Request) {
	var req WithdrawEtherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.x.WithdrawEther(account, amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWithdrawToken(w http.ResponseWriter, r *http.Request) {
	var req WithdrawTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokenAddr, err := parseAddress(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.x.WithdrawToken(tokenAddr, account, amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMakeOrder(w http.ResponseWriter, r *http.Request) {
	var req MakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	maker, err := parseAddress(req.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokenGet, err := parseAddress(req.TokenGet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokenGive, err := parseAddress(req.TokenGive)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amountGet, err := parseAmount(req.AmountGet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amountGive, err := parseAmount(req.AmountGive)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.x.MakeOrder(maker, tokenGet, amountGet, tokenGive, amountGive)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, order.ErrInvalidOrder)
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.x.CancelOrder(caller, id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, order.ErrInvalidOrder)
		return
	}
	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	taker, err := parseAddress(req.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := s.x.FillOrder(taker, id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ==============================
// Helpers
// ==============================

func orderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		Maker:      o.Maker.Hex(),
		TokenGet:   o.TokenGet.Hex(),
		AmountGet:  strconv.FormatUint(o.AmountGet, 10),
		TokenGive:  o.TokenGive.Hex(),
		AmountGive: strconv.FormatUint(o.AmountGive, 10),
		Timestamp:  o.Timestamp,
		Status:     o.Status.String(),
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %q", s)
	}
	return n, nil
}

func parseAccountAmount(account, amount string) (common.Address, uint64, error) {
	addr, err := parseAddress(account)
	if err != nil {
		return common.Address{}, 0, err
	}
	n, err := parseAmount(amount)
	if err != nil {
		return common.Address{}, 0, err
	}
	return addr, n, nil
}

func parseOrderID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// statusFor maps core failures onto HTTP statuses without losing the reason
// string the client keys on.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidOrder):
		return http.StatusNotFound
	case errors.Is(err, order.ErrAlreadyFilled),
		errors.Is(err, order.ErrAlreadyCancelled),
		errors.Is(err, order.ErrNotAuthorized):
		return http.StatusConflict
	case errors.Is(err, token.ErrUnknownToken):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
