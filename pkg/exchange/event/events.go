// Package event defines the observable records the settlement core emits.
// Events are modeled as explicit, ordered, append-only values returned
// alongside each call's result rather than an implicit side-channel, so
// downstream consumers see exact-argument compatible payloads.
package event

import "github.com/ethereum/go-ethereum/common"

// Kind discriminates journal entries.
type Kind uint8

const (
	KindDeposit Kind = iota + 1
	KindWithdraw
	KindOrder
	KindCancel
	KindTrade
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindOrder:
		return "order"
	case KindCancel:
		return "cancel"
	case KindTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// Record is any emitted settlement event.
type Record interface {
	Kind() Kind
}

// Deposit mirrors Deposit(asset, account, amount, newBalance).
type Deposit struct {
	Asset   common.Address `json:"asset"`
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
	Balance uint64         `json:"balance"` // ledger balance after the credit
}

func (Deposit) Kind() Kind { return KindDeposit }

// Withdraw mirrors Withdraw(asset, account, amount, newBalance).
type Withdraw struct {
	Asset   common.Address `json:"asset"`
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
	Balance uint64         `json:"balance"`
}

func (Withdraw) Kind() Kind { return KindWithdraw }

// Order is emitted on order creation with the full order fields.
type Order struct {
	ID         uint64         `json:"id"`
	Maker      common.Address `json:"maker"`
	TokenGet   common.Address `json:"token_get"`
	AmountGet  uint64         `json:"amount_get"`
	TokenGive  common.Address `json:"token_give"`
	AmountGive uint64         `json:"amount_give"`
	Timestamp  int64          `json:"timestamp"`
}

func (Order) Kind() Kind { return KindOrder }

// Cancel mirrors the cancelled order's fields; Timestamp is the cancellation
// time, not the creation time.
type Cancel struct {
	ID         uint64         `json:"id"`
	Maker      common.Address `json:"maker"`
	TokenGet   common.Address `json:"token_get"`
	AmountGet  uint64         `json:"amount_get"`
	TokenGive  common.Address `json:"token_give"`
	AmountGive uint64         `json:"amount_give"`
	Timestamp  int64          `json:"timestamp"`
}

func (Cancel) Kind() Kind { return KindCancel }

// Trade is emitted exactly once per filled order.
type Trade struct {
	ID         uint64         `json:"id"`
	Maker      common.Address `json:"maker"`
	TokenGet   common.Address `json:"token_get"`
	AmountGet  uint64         `json:"amount_get"`
	TokenGive  common.Address `json:"token_give"`
	AmountGive uint64         `json:"amount_give"`
	Timestamp  int64          `json:"timestamp"` // fill time
}

func (Trade) Kind() Kind { return KindTrade }
