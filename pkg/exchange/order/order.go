// Package order implements the order registry: creation, storage, and the
// Open → {Filled, Cancelled} state machine. Orders are immutable once
// created except for Status, and are never removed, so the registry doubles
// as the auditable order history.
package order

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Reason strings below are part of the compatibility surface; callers
// distinguish failures only by message text.
var (
	ErrInvalidOrder     = errors.New("Not a valid order")
	ErrAlreadyFilled    = errors.New("Order has already been filled")
	ErrAlreadyCancelled = errors.New("Order has already been cancelled")
	ErrNotAuthorized    = errors.New("only the maker can cancel an order")
)

// Status is the lifecycle state of an order. Filled and Cancelled are
// terminal and mutually exclusive.
type Status int8

const (
	Open Status = iota
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a resting offer: the maker wants AmountGet of TokenGet in return
// for AmountGive of TokenGive.
type Order struct {
	ID         uint64         `json:"id"` // 1-based, monotonic, never reused
	Maker      common.Address `json:"maker"`
	TokenGet   common.Address `json:"token_get"`
	AmountGet  uint64         `json:"amount_get"`
	TokenGive  common.Address `json:"token_give"`
	AmountGive uint64         `json:"amount_give"`
	Timestamp  int64          `json:"timestamp"` // creation time, unix seconds
	Status     Status         `json:"status"`
}

// Terminal reports whether the order can no longer transition.
func (o *Order) Terminal() bool { return o.Status != Open }

// Active returns nil while the order is open, otherwise the terminal-state
// rejection for its status.
func (o *Order) Active() error {
	switch o.Status {
	case Filled:
		return ErrAlreadyFilled
	case Cancelled:
		return ErrAlreadyCancelled
	}
	return nil
}

// Registry stores orders in an arena indexed by ID. Lookups are O(1) and the
// current count gives existence validation by range check.
type Registry struct {
	orders []*Order // orders[i] has ID i+1
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Count returns the number of orders ever created.
func (r *Registry) Count() uint64 { return uint64(len(r.orders)) }

// Make allocates the next ID and stores a new open order. No balance check
// happens here: an order may be created unfunded, and insufficiency is only
// discovered at fill time.
func (r *Registry) Make(maker, tokenGet common.Address, amountGet uint64, tokenGive common.Address, amountGive uint64, now int64) *Order {
	o := &Order{
		ID:         r.Count() + 1,
		Maker:      maker,
		TokenGet:   tokenGet,
		AmountGet:  amountGet,
		TokenGive:  tokenGive,
		AmountGive: amountGive,
		Timestamp:  now,
		Status:     Open,
	}
	r.orders = append(r.orders, o)
	return o
}

// Get returns the order with the given ID, or ErrInvalidOrder when the ID is
// zero or beyond the current count.
func (r *Registry) Get(id uint64) (*Order, error) {
	if id == 0 || id > r.Count() {
		return nil, ErrInvalidOrder
	}
	return r.orders[id-1], nil
}

// Cancel transitions an open order to Cancelled. Check ordering: invalid id,
// already filled, already cancelled, then authorization.
func (r *Registry) Cancel(caller common.Address, id uint64) (*Order, error) {
	o, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := o.Active(); err != nil {
		return nil, err
	}
	if o.Maker != caller {
		return nil, ErrNotAuthorized
	}
	o.Status = Cancelled
	return o, nil
}

// Fill transitions an open order to Filled. Only the settlement engine calls
// this, after the balance moves have committed.
func (r *Registry) Fill(id uint64) (*Order, error) {
	o, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := o.Active(); err != nil {
		return nil, err
	}
	o.Status = Filled
	return o, nil
}

// All returns the orders in creation order. The returned slice shares the
// order pointers; callers must not mutate them.
func (r *Registry) All() []*Order {
	out := make([]*Order, len(r.orders))
	copy(out, r.orders)
	return out
}

// Restore re-inserts a persisted order at its original ID. The storage load
// path replays orders in ascending ID order.
func (r *Registry) Restore(o *Order) error {
	if o.ID != r.Count()+1 {
		return ErrInvalidOrder
	}
	r.orders = append(r.orders, o)
	return nil
}
