// Package ledger implements the per-asset, per-account balance store that is
// the sole source of truth for funds available to trade. It has no notion of
// authorization; the gateway and settlement engine own that.
package ledger

import (
	"errors"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// Ether is the reserved all-zero asset identifier for the native currency.
// It must never reach the token-specific deposit/withdraw paths.
var Ether = common.Address{}

var (
	// ErrInsufficientBalance text is part of the compatibility surface.
	ErrInsufficientBalance = errors.New("Not enough tokens")
	ErrArithmeticOverflow  = errors.New("balance arithmetic overflow")
)

// Ledger maps asset → account → balance. Entries default to zero and are
// unsigned by construction, so no balance can ever go negative.
type Ledger struct {
	balances map[common.Address]map[common.Address]uint64
}

func New() *Ledger {
	return &Ledger{balances: make(map[common.Address]map[common.Address]uint64)}
}

// BalanceOf returns the stored balance, zero for unseen keys.
func (l *Ledger) BalanceOf(asset, account common.Address) uint64 {
	return l.balances[asset][account]
}

// Credit increases account's balance of asset. The ledger is left untouched
// if the addition would wrap.
func (l *Ledger) Credit(asset, account common.Address, amount uint64) error {
	cur := l.balances[asset][account]
	if cur > math.MaxUint64-amount {
		return ErrArithmeticOverflow
	}
	l.set(asset, account, cur+amount)
	return nil
}

// Debit decreases account's balance of asset, failing without mutation if
// amount exceeds the current balance.
func (l *Ledger) Debit(asset, account common.Address, amount uint64) error {
	cur := l.balances[asset][account]
	if amount > cur {
		return ErrInsufficientBalance
	}
	l.set(asset, account, cur-amount)
	return nil
}

// Move describes a single transfer of amount of asset between two ledger
// accounts. Used by Apply to stage multi-leg settlements.
type Move struct {
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount uint64
}

// Apply executes all moves atomically: every debit and credit is validated
// against a staged view first, and the ledger is only mutated once the whole
// set is known to succeed. A failed Apply leaves no partial transfer behind.
func (l *Ledger) Apply(moves ...Move) error {
	type key struct {
		asset, account common.Address
	}

	staged := make(map[key]uint64, 2*len(moves))
	get := func(k key) uint64 {
		if v, ok := staged[k]; ok {
			return v
		}
		return l.balances[k.asset][k.account]
	}

	for _, m := range moves {
		from := key{m.Asset, m.From}
		bal := get(from)
		if m.Amount > bal {
			return ErrInsufficientBalance
		}
		staged[from] = bal - m.Amount

		to := key{m.Asset, m.To}
		bal = get(to)
		if bal > math.MaxUint64-m.Amount {
			return ErrArithmeticOverflow
		}
		staged[to] = bal + m.Amount
	}

	for k, v := range staged {
		l.set(k.asset, k.account, v)
	}
	return nil
}

// AssetTotal sums all balances held in asset. Conservation means this equals
// total external inflow minus total external outflow for the asset.
func (l *Ledger) AssetTotal(asset common.Address) uint64 {
	var total uint64
	for _, bal := range l.balances[asset] {
		total += bal
	}
	return total
}

// Entry is one (asset, account, amount) row, used for persistence walks.
type Entry struct {
	Asset   common.Address
	Account common.Address
	Amount  uint64
}

// Entries returns a snapshot of every non-zero row.
func (l *Ledger) Entries() []Entry {
	var out []Entry
	for asset, accounts := range l.balances {
		for account, amount := range accounts {
			if amount == 0 {
				continue
			}
			out = append(out, Entry{Asset: asset, Account: account, Amount: amount})
		}
	}
	return out
}

// Restore sets a balance directly, bypassing the credit/debit contract.
// Only the storage load path may use it.
func (l *Ledger) Restore(asset, account common.Address, amount uint64) {
	l.set(asset, account, amount)
}

func (l *Ledger) set(asset, account common.Address, amount uint64) {
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[common.Address]uint64)
		l.balances[asset] = accounts
	}
	accounts[account] = amount
}
