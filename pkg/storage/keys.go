package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so range scans answer "all balances",
// "all orders", "recent trades" without secondary indexes.
const (
	prefixBalance = "bal:"   // bal:{asset}:{account} → balance row
	prefixOrder   = "ord:"   // ord:{id, zero-padded} → order
	prefixTrade   = "trade:" // trade:{ts, zero-padded}:{order id} → trade record
	keyOrderCount = "meta:ordercount"
)

func balanceKey(asset, account common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, asset.Hex(), account.Hex()))
}

// orderKey zero-pads the ID so lexicographic order matches numeric order and
// the load path can replay orders in creation order.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

func tradeKey(timestamp int64, orderID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d", prefixTrade, timestamp, orderID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
