// Package token models the external fungible-token collaborators at the
// exchange boundary: ERC20-style balances with approve/transferFrom pull
// semantics. The settlement core never trusts these balances; it only pulls
// into custody on deposit and releases on withdrawal.
package token

import (
	"errors"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotApproved       = errors.New("transfer not approved")
	ErrInsufficientFunds = errors.New("insufficient token funds")
	ErrSupplyOverflow    = errors.New("token supply overflow")
	ErrUnknownToken      = errors.New("unknown token")
)

// Token is one fungible token contract.
type Token struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8

	mu         sync.RWMutex
	supply     uint64
	balances   map[common.Address]uint64
	allowances map[common.Address]map[common.Address]uint64 // owner → spender → remaining
}

func New(addr common.Address, name, symbol string, decimals uint8) *Token {
	return &Token{
		Address:    addr,
		Name:       name,
		Symbol:     symbol,
		Decimals:   decimals,
		balances:   make(map[common.Address]uint64),
		allowances: make(map[common.Address]map[common.Address]uint64),
	}
}

// Mint creates new supply for holder. Test and genesis plumbing.
func (t *Token) Mint(holder common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.supply > math.MaxUint64-amount {
		return ErrSupplyOverflow
	}
	t.supply += amount
	t.balances[holder] += amount
	return nil
}

func (t *Token) TotalSupply() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

func (t *Token) BalanceOf(holder common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[holder]
}

// Approve lets spender pull up to amount from owner. Overwrites any prior
// allowance, mirroring ERC20.
func (t *Token) Approve(owner, spender common.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]uint64)
		t.allowances[owner] = spenders
	}
	spenders[spender] = amount
}

func (t *Token) Allowance(owner, spender common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(from, to, amount)
}

// TransferFrom moves amount from owner to a recipient on behalf of spender,
// consuming the allowance. Fails before any balance change if the allowance
// does not cover the amount.
func (t *Token) TransferFrom(spender, from, to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.allowances[from][spender]
	if remaining < amount {
		return ErrNotApproved
	}
	if err := t.transferLocked(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = remaining - amount
	return nil
}

func (t *Token) transferLocked(from, to common.Address, amount uint64) error {
	if t.balances[from] < amount {
		return ErrInsufficientFunds
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}

// Registry maps token contract addresses to tokens.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]*Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]*Token)}
}

func (r *Registry) Register(t *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Address] = t
}

// Get returns the token at addr, or ErrUnknownToken.
func (r *Registry) Get(addr common.Address) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[addr]
	if !ok {
		return nil, ErrUnknownToken
	}
	return t, nil
}

// List returns all registered tokens.
func (r *Registry) List() []*Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	return out
}
