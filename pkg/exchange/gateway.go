package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/clearsettle/clearsettle/pkg/exchange/event"
	"github.com/clearsettle/clearsettle/pkg/exchange/ledger"
	"github.com/clearsettle/clearsettle/pkg/storage"
)

// DepositEther credits account's native-currency balance by the attached
// amount. A zero deposit is a legal no-op that still emits a Deposit record.
func (x *Exchange) DepositEther(account common.Address, amount uint64) (event.Deposit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ledger.Credit(ledger.Ether, account, amount); err != nil {
		return event.Deposit{}, err
	}
	balance := x.ledger.BalanceOf(ledger.Ether, account)

	x.persist(func(b *storage.Batch) error {
		return b.SetBalance(ledger.Ether, account, balance)
	})

	rec := event.Deposit{Asset: ledger.Ether, Account: account, Amount: amount, Balance: balance}
	x.journal.Append(rec)
	x.log.Infow("deposit", "asset", "ether", "account", account.Hex(), "amount", amount, "balance", balance)
	return rec, nil
}

// DepositToken pulls amount of the token at tokenAddr from account into
// custody, then credits the ledger. Tokens and native currency use disjoint
// entry points: the native sentinel is rejected here. Nothing is mutated if
// the pull is not pre-approved.
func (x *Exchange) DepositToken(tokenAddr, account common.Address, amount uint64) (event.Deposit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if tokenAddr == ledger.Ether {
		return event.Deposit{}, ErrCannotDepositEther
	}
	tok, err := x.tokens.Get(tokenAddr)
	if err != nil {
		return event.Deposit{}, err
	}
	if x.creditOverflows(tokenAddr, account, amount) {
		return event.Deposit{}, ledger.ErrArithmeticOverflow
	}

	// Pull into custody. Fails before any ledger mutation when the account
	// has not approved the exchange for at least this amount.
	if err := tok.TransferFrom(x.addr, account, x.addr, amount); err != nil {
		return event.Deposit{}, err
	}

	// Credit cannot fail: overflow was ruled out above.
	_ = x.ledger.Credit(tokenAddr, account, amount)
	balance := x.ledger.BalanceOf(tokenAddr, account)

	x.persist(func(b *storage.Batch) error {
		return b.SetBalance(tokenAddr, account, balance)
	})

	rec := event.Deposit{Asset: tokenAddr, Account: account, Amount: amount, Balance: balance}
	x.journal.Append(rec)
	x.log.Infow("deposit", "asset", tokenAddr.Hex(), "account", account.Hex(), "amount", amount, "balance", balance)
	return rec, nil
}

// WithdrawEther debits account's native balance and releases the value back
// to the account.
func (x *Exchange) WithdrawEther(account common.Address, amount uint64) (event.Withdraw, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ledger.Debit(ledger.Ether, account, amount); err != nil {
		return event.Withdraw{}, err
	}
	balance := x.ledger.BalanceOf(ledger.Ether, account)

	x.persist(func(b *storage.Batch) error {
		return b.SetBalance(ledger.Ether, account, balance)
	})

	rec := event.Withdraw{Asset: ledger.Ether, Account: account, Amount: amount, Balance: balance}
	x.journal.Append(rec)
	x.log.Infow("withdraw", "asset", "ether", "account", account.Hex(), "amount", amount, "balance", balance)
	return rec, nil
}

// WithdrawToken debits account's token balance and releases the token from
// custody. The native sentinel is rejected.
func (x *Exchange) WithdrawToken(tokenAddr, account common.Address, amount uint64) (event.Withdraw, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if tokenAddr == ledger.Ether {
		return event.Withdraw{}, ErrCannotWithdrawEther
	}
	tok, err := x.tokens.Get(tokenAddr)
	if err != nil {
		return event.Withdraw{}, err
	}
	if x.ledger.BalanceOf(tokenAddr, account) < amount {
		return event.Withdraw{}, ledger.ErrInsufficientBalance
	}

	// Custody must cover every ledger balance (conservation), so this
	// release cannot fail once the ledger check above passed.
	if err := tok.Transfer(x.addr, account, amount); err != nil {
		return event.Withdraw{}, err
	}
	_ = x.ledger.Debit(tokenAddr, account, amount)
	balance := x.ledger.BalanceOf(tokenAddr, account)

	x.persist(func(b *storage.Batch) error {
		return b.SetBalance(tokenAddr, account, balance)
	})

	rec := event.Withdraw{Asset: tokenAddr, Account: account, Amount: amount, Balance: balance}
	x.journal.Append(rec)
	x.log.Infow("withdraw", "asset", tokenAddr.Hex(), "account", account.Hex(), "amount", amount, "balance", balance)
	return rec, nil
}

// Receive rejects bare unrouted transfers of native currency. Value may only
// enter through DepositEther so every credit has a ledger record.
func (x *Exchange) Receive(account common.Address, amount uint64) error {
	return ErrUseDepositEther
}
