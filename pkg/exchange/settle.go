package exchange

import (
	"math/bits"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clearsettle/clearsettle/pkg/exchange/event"
	"github.com/clearsettle/clearsettle/pkg/exchange/ledger"
	"github.com/clearsettle/clearsettle/pkg/storage"
)

// MakeOrder stores a new open order under maker and returns the emitted
// Order record. The ledger is deliberately not consulted: an order may be
// created unfunded, and insufficiency only surfaces at fill time.
func (x *Exchange) MakeOrder(maker, tokenGet common.Address, amountGet uint64, tokenGive common.Address, amountGive uint64) (event.Order, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	o := x.orders.Make(maker, tokenGet, amountGet, tokenGive, amountGive, x.clock.Now().Unix())

	x.persist(func(b *storage.Batch) error {
		if err := b.PutOrder(o); err != nil {
			return err
		}
		return b.SetOrderCount(o.ID)
	})

	rec := event.Order{
		ID:         o.ID,
		Maker:      o.Maker,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Timestamp:  o.Timestamp,
	}
	x.journal.Append(rec)
	x.log.Infow("order_made", "id", o.ID, "maker", maker.Hex(), "amount_get", amountGet, "amount_give", amountGive)
	return rec, nil
}

// CancelOrder transitions caller's open order to Cancelled. Check ordering:
// invalid id, already filled, already cancelled, then authorization.
func (x *Exchange) CancelOrder(caller common.Address, id uint64) (event.Cancel, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	o, err := x.orders.Cancel(caller, id)
	if err != nil {
		return event.Cancel{}, err
	}

	x.persist(func(b *storage.Batch) error {
		return b.PutOrder(o)
	})

	rec := event.Cancel{
		ID:         o.ID,
		Maker:      o.Maker,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Timestamp:  x.clock.Now().Unix(),
	}
	x.journal.Append(rec)
	x.log.Infow("order_cancelled", "id", o.ID, "maker", o.Maker.Hex())
	return rec, nil
}

// FillOrder settles order id against taker in full, exactly once. The taker
// pays amountGet plus the protocol fee in tokenGet (amountGet to the maker,
// fee to the fee account) and receives amountGive of tokenGive from the
// maker. All movements commit together or not at all.
func (x *Exchange) FillOrder(taker common.Address, id uint64) (event.Trade, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	o, err := x.orders.Get(id)
	if err != nil {
		return event.Trade{}, err
	}
	if err := o.Active(); err != nil {
		return event.Trade{}, err
	}

	fee, err := x.tradeFee(o.AmountGet)
	if err != nil {
		return event.Trade{}, err
	}

	// Two debits, two credits across two assets, staged and committed as
	// one transaction. A failed leg leaves the ledger untouched.
	if err := x.ledger.Apply(
		ledger.Move{Asset: o.TokenGet, From: taker, To: o.Maker, Amount: o.AmountGet},
		ledger.Move{Asset: o.TokenGet, From: taker, To: x.feeAccount, Amount: fee},
		ledger.Move{Asset: o.TokenGive, From: o.Maker, To: taker, Amount: o.AmountGive},
	); err != nil {
		return event.Trade{}, err
	}

	// Cannot fail: the order was open above and the lock is still held.
	if _, err := x.orders.Fill(id); err != nil {
		return event.Trade{}, err
	}

	rec := event.Trade{
		ID:         o.ID,
		Maker:      o.Maker,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Timestamp:  x.clock.Now().Unix(),
	}

	x.persist(func(b *storage.Batch) error {
		for _, row := range []struct {
			asset, account common.Address
		}{
			{o.TokenGet, taker},
			{o.TokenGet, o.Maker},
			{o.TokenGet, x.feeAccount},
			{o.TokenGive, taker},
			{o.TokenGive, o.Maker},
		} {
			if err := b.SetBalance(row.asset, row.account, x.ledger.BalanceOf(row.asset, row.account)); err != nil {
				return err
			}
		}
		if err := b.PutOrder(o); err != nil {
			return err
		}
		return b.PutTrade(rec)
	})

	x.trades = append(x.trades, rec)
	x.journal.Append(rec)
	x.log.Infow("trade", "id", o.ID, "maker", o.Maker.Hex(), "taker", taker.Hex(), "fee", fee)
	return rec, nil
}

// tradeFee computes floor(amountGet * feePercent / 100) in full 128-bit
// precision so large amounts cannot wrap.
func (x *Exchange) tradeFee(amountGet uint64) (uint64, error) {
	hi, lo := bits.Mul64(amountGet, x.feePercent)
	if hi >= 100 {
		return 0, ledger.ErrArithmeticOverflow
	}
	fee, _ := bits.Div64(hi, lo, 100)
	return fee, nil
}
