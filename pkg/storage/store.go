// Package storage persists exchange state to Pebble. Every exchange call
// commits its mutations in a single batch, so the durable state is always a
// fully-committed prior state.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/clearsettle/clearsettle/pkg/exchange/event"
	"github.com/clearsettle/clearsettle/pkg/exchange/ledger"
	"github.com/clearsettle/clearsettle/pkg/exchange/order"
)

type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the Pebble database at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// LoadBalances returns every persisted balance row.
func (s *Store) LoadBalances() ([]ledger.Entry, error) {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var rows []ledger.Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var row ledger.Entry
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			return nil, fmt.Errorf("unmarshal balance row %q: %w", iter.Key(), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadOrders returns all persisted orders in ascending ID order, which is
// exactly the replay order Registry.Restore expects.
func (s *Store) LoadOrders() ([]*order.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []*order.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o order.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("unmarshal order %q: %w", iter.Key(), err)
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// LoadOrderCount returns the persisted order count, zero on a fresh store.
func (s *Store) LoadOrderCount() (uint64, error) {
	val, closer, err := s.db.Get([]byte(keyOrderCount))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt order count: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// LoadRecentTrades returns up to limit trades, newest first.
func (s *Store) LoadRecentTrades(limit int) ([]event.Trade, error) {
	prefix := []byte(prefixTrade)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []event.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var tr event.Trade
		if err := json.Unmarshal(iter.Value(), &tr); err != nil {
			return nil, fmt.Errorf("unmarshal trade %q: %w", iter.Key(), err)
		}
		trades = append(trades, tr)
	}
	return trades, nil
}

// Batch stages the writes of one exchange call and commits them atomically.
type Batch struct {
	batch *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// SetBalance stages a balance row write.
func (b *Batch) SetBalance(asset, account common.Address, amount uint64) error {
	data, err := json.Marshal(ledger.Entry{Asset: asset, Account: account, Amount: amount})
	if err != nil {
		return err
	}
	return b.batch.Set(balanceKey(asset, account), data, nil)
}

// PutOrder stages an order write. Called both on creation and on state
// transition; the row is overwritten in place.
func (b *Batch) PutOrder(o *order.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return b.batch.Set(orderKey(o.ID), data, nil)
}

// SetOrderCount stages the order-count meta row.
func (b *Batch) SetOrderCount(n uint64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, n)
	return b.batch.Set([]byte(keyOrderCount), val, nil)
}

// PutTrade stages a trade-history row.
func (b *Batch) PutTrade(tr event.Trade) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return b.batch.Set(tradeKey(tr.Timestamp, tr.ID), data, nil)
}

// Commit durably applies the batch.
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}
