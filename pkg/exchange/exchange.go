// Package exchange composes the balance ledger, the order registry, and the
// settlement engine into the single entry-point surface of the settlement
// core. Each call takes exclusive access for its whole duration and either
// commits completely or leaves no trace; cross-call ordering is imposed by an
// external sequencing authority.
package exchange

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/clearsettle/clearsettle/pkg/exchange/event"
	"github.com/clearsettle/clearsettle/pkg/exchange/ledger"
	"github.com/clearsettle/clearsettle/pkg/exchange/order"
	"github.com/clearsettle/clearsettle/pkg/exchange/token"
	"github.com/clearsettle/clearsettle/pkg/storage"
	"github.com/clearsettle/clearsettle/pkg/util"
)

var (
	ErrCannotDepositEther  = errors.New("cannot deposit ETHER")
	ErrCannotWithdrawEther = errors.New("cannot withdraw ETHER")
	// ErrUseDepositEther rejects bare unrouted native transfers so no value
	// can enter the system without a matching ledger credit.
	ErrUseDepositEther = errors.New("Use Deposit Ether Function")
)

// defaultAddress is the custody address the exchange holds pulled tokens
// under when none is configured. Exactly 20 bytes.
var defaultAddress = common.BytesToAddress([]byte("clearsettle-exchange"))

// tradeHistoryLimit caps how many persisted trades a restart carries back
// into the served history.
const tradeHistoryLimit = 10_000

type Exchange struct {
	mu sync.RWMutex

	addr       common.Address // custody address, spender on token pulls
	feeAccount common.Address // immutable after construction
	feePercent uint64         // immutable after construction

	ledger  *ledger.Ledger
	tokens  *token.Registry
	orders  *order.Registry
	journal *event.Journal
	trades  []event.Trade // settled trades, oldest first

	store *storage.Store // optional; nil keeps state memory-only
	clock util.Clock
	log   *zap.SugaredLogger
}

type Option func(*Exchange)

func WithStore(s *storage.Store) Option   { return func(x *Exchange) { x.store = s } }
func WithClock(c util.Clock) Option       { return func(x *Exchange) { x.clock = c } }
func WithLogger(l *zap.SugaredLogger) Option { return func(x *Exchange) { x.log = l } }
func WithAddress(a common.Address) Option { return func(x *Exchange) { x.addr = a } }

// New creates an exchange. The fee account and fee percent are fixed for the
// exchange's lifetime.
func New(feeAccount common.Address, feePercent uint64, opts ...Option) *Exchange {
	x := &Exchange{
		addr:       defaultAddress,
		feeAccount: feeAccount,
		feePercent: feePercent,
		ledger:     ledger.New(),
		tokens:     token.NewRegistry(),
		orders:     order.NewRegistry(),
		journal:    event.NewJournal(),
		clock:      util.RealClock{},
		log:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Exchange) Address() common.Address    { return x.addr }
func (x *Exchange) FeeAccount() common.Address { return x.feeAccount }
func (x *Exchange) FeePercent() uint64         { return x.feePercent }
func (x *Exchange) Journal() *event.Journal    { return x.journal }

// RegisterToken makes a token usable on the token deposit/withdraw paths.
func (x *Exchange) RegisterToken(t *token.Token) {
	x.tokens.Register(t)
}

// Token resolves a registered token by address.
func (x *Exchange) Token(addr common.Address) (*token.Token, error) {
	return x.tokens.Get(addr)
}

// Tokens lists all registered tokens.
func (x *Exchange) Tokens() []*token.Token {
	return x.tokens.List()
}

// BalanceOf is a pure read, zero for unseen keys.
func (x *Exchange) BalanceOf(asset, account common.Address) uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ledger.BalanceOf(asset, account)
}

// OrderCount returns the number of orders ever created.
func (x *Exchange) OrderCount() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.orders.Count()
}

// Order returns the order with the given ID.
func (x *Exchange) Order(id uint64) (*order.Order, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.orders.Get(id)
}

// Orders returns all orders in creation order.
func (x *Exchange) Orders() []*order.Order {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.orders.All()
}

// Trades returns the settled trade history, oldest first. Includes trades
// restored from storage at startup.
func (x *Exchange) Trades() []event.Trade {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]event.Trade, len(x.trades))
	copy(out, x.trades)
	return out
}

// Load rebuilds ledger and registry state from the configured store. Call
// once before serving traffic.
func (x *Exchange) Load() error {
	if x.store == nil {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.store.LoadBalances()
	if err != nil {
		return err
	}
	for _, row := range rows {
		x.ledger.Restore(row.Asset, row.Account, row.Amount)
	}

	orders, err := x.store.LoadOrders()
	if err != nil {
		return err
	}
	for _, o := range orders {
		if err := x.orders.Restore(o); err != nil {
			return err
		}
	}

	count, err := x.store.LoadOrderCount()
	if err != nil {
		return err
	}
	if count != x.orders.Count() {
		return fmt.Errorf("order count %d does not match %d replayed orders", count, x.orders.Count())
	}

	trades, err := x.store.LoadRecentTrades(tradeHistoryLimit)
	if err != nil {
		return err
	}
	// Stored newest first; the served history runs oldest first.
	for i := len(trades) - 1; i >= 0; i-- {
		x.trades = append(x.trades, trades[i])
	}

	x.log.Infow("state_loaded", "balances", len(rows), "orders", len(orders), "trades", len(trades))
	return nil
}

// persist commits one call's staged writes atomically. By the time persist
// runs, every validation has passed and the in-memory state is already
// final; a storage fault here would leave memory ahead of disk, so it is
// fatal, matching the durable all-or-nothing contract (the committed batch
// either exists or the process state dies with the crash).
func (x *Exchange) persist(stage func(b *storage.Batch) error) {
	if x.store == nil {
		return
	}
	b := x.store.NewBatch()
	defer b.Close()
	if err := stage(b); err != nil {
		panic("storage stage failed: " + err.Error())
	}
	if err := b.Commit(); err != nil {
		panic("storage commit failed: " + err.Error())
	}
}

// creditOverflows reports whether crediting amount to (asset, account) would
// wrap. Used to fail token pulls before any external transfer happens.
func (x *Exchange) creditOverflows(asset, account common.Address, amount uint64) bool {
	return x.ledger.BalanceOf(asset, account) > math.MaxUint64-amount
}
