package exchange

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clearsettle/clearsettle/pkg/exchange/event"
	"github.com/clearsettle/clearsettle/pkg/exchange/ledger"
	"github.com/clearsettle/clearsettle/pkg/exchange/order"
	"github.com/clearsettle/clearsettle/pkg/exchange/token"
	"github.com/clearsettle/clearsettle/pkg/util"
)

const ether = uint64(1_000_000_000_000_000_000) // 1 ether in wei

var (
	maker      = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	taker      = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	feeAccount = common.HexToAddress("0xFE00000000000000000000000000000000000000")
	tokenAddr  = common.HexToAddress("0x7000000000000000000000000000000000000001")
)

const ts = int64(1_700_000_000)

func newTestExchange(t *testing.T, feePercent uint64) (*Exchange, *util.FakeClock) {
	t.Helper()
	clock := util.NewFakeClock(ts)
	x := New(feeAccount, feePercent, WithClock(clock))
	return x, clock
}

// newFundedToken registers a token holding supply for its owner, already
// approved for pulls by the exchange.
func newFundedToken(t *testing.T, x *Exchange, owner common.Address, supply uint64) *token.Token {
	t.Helper()
	tok := token.New(tokenAddr, "Demo Token", "DEMO", 18)
	if err := tok.Mint(owner, supply); err != nil {
		t.Fatalf("mint: %v", err)
	}
	tok.Approve(owner, x.Address(), supply)
	x.RegisterToken(tok)
	return tok
}

func TestConstructorArguments(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	if x.FeeAccount() != feeAccount {
		t.Errorf("fee account = %s, want %s", x.FeeAccount().Hex(), feeAccount.Hex())
	}
	if x.FeePercent() != 10 {
		t.Errorf("fee percent = %d, want 10", x.FeePercent())
	}
}

func TestDepositEther(t *testing.T) {
	x, _ := newTestExchange(t, 10)

	rec, err := x.DepositEther(maker, ether)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := x.BalanceOf(ledger.Ether, maker); got != ether {
		t.Errorf("balance = %d, want %d", got, ether)
	}

	want := event.Deposit{Asset: ledger.Ether, Account: maker, Amount: ether, Balance: ether}
	if rec != want {
		t.Errorf("deposit record = %+v, want %+v", rec, want)
	}
}

func TestDepositEtherZeroIsLegalAndEmits(t *testing.T) {
	x, _ := newTestExchange(t, 10)

	rec, err := x.DepositEther(maker, 0)
	if err != nil {
		t.Fatalf("zero deposit: %v", err)
	}
	if rec.Amount != 0 || rec.Balance != 0 {
		t.Errorf("record = %+v, want zero amount and balance", rec)
	}
	if x.Journal().Len() != 1 {
		t.Errorf("journal = %d entries, want 1 (zero deposit still emits)", x.Journal().Len())
	}
}

func TestBareTransferRejected(t *testing.T) {
	x, _ := newTestExchange(t, 10)

	err := x.Receive(maker, ether)
	if err == nil || err.Error() != "Use Deposit Ether Function" {
		t.Fatalf("err = %v, want Use Deposit Ether Function", err)
	}
	if got := x.BalanceOf(ledger.Ether, maker); got != 0 {
		t.Errorf("bare transfer credited the ledger: %d", got)
	}
}

func TestWithdrawEtherRoundTrip(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	x.DepositEther(taker, ether)

	rec, err := x.WithdrawEther(taker, ether)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := x.BalanceOf(ledger.Ether, taker); got != 0 {
		t.Errorf("balance = %d, want 0 after round trip", got)
	}
	want := event.Withdraw{Asset: ledger.Ether, Account: taker, Amount: ether, Balance: 0}
	if rec != want {
		t.Errorf("withdraw record = %+v, want %+v", rec, want)
	}
}

func TestWithdrawEtherInsufficient(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	x.DepositEther(taker, ether)

	_, err := x.WithdrawEther(taker, 2*ether)
	if err == nil || err.Error() != "Not enough tokens" {
		t.Fatalf("err = %v, want Not enough tokens", err)
	}
	if got := x.BalanceOf(ledger.Ether, taker); got != ether {
		t.Errorf("failed withdraw mutated balance: %d", got)
	}
}

func TestDepositToken(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	tok := newFundedToken(t, x, maker, 10_000)

	rec, err := x.DepositToken(tokenAddr, maker, 1000)
	if err != nil {
		t.Fatalf("deposit token: %v", err)
	}
	if got := x.BalanceOf(tokenAddr, maker); got != 1000 {
		t.Errorf("ledger balance = %d, want 1000", got)
	}
	if got := tok.BalanceOf(x.Address()); got != 1000 {
		t.Errorf("custody = %d, want 1000", got)
	}
	want := event.Deposit{Asset: tokenAddr, Account: maker, Amount: 1000, Balance: 1000}
	if rec != want {
		t.Errorf("record = %+v, want %+v", rec, want)
	}
}

func TestDepositTokenRejectsEtherSentinel(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	newFundedToken(t, x, maker, 10_000)

	for _, amount := range []uint64{0, 1, ether} {
		if _, err := x.DepositToken(ledger.Ether, maker, amount); !errors.Is(err, ErrCannotDepositEther) {
			t.Errorf("amount %d: err = %v, want ErrCannotDepositEther", amount, err)
		}
	}
}

func TestDepositTokenNotApproved(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	tok := token.New(tokenAddr, "Demo Token", "DEMO", 18)
	tok.Mint(maker, 10_000)
	x.RegisterToken(tok) // no approval

	_, err := x.DepositToken(tokenAddr, maker, 1000)
	if !errors.Is(err, token.ErrNotApproved) {
		t.Fatalf("err = %v, want ErrNotApproved", err)
	}
	if got := x.BalanceOf(tokenAddr, maker); got != 0 {
		t.Errorf("refused pull credited the ledger: %d", got)
	}
	if got := tok.BalanceOf(maker); got != 10_000 {
		t.Errorf("refused pull moved tokens: %d", got)
	}
}

func TestWithdrawToken(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	tok := newFundedToken(t, x, maker, 10_000)
	x.DepositToken(tokenAddr, maker, 1000)

	rec, err := x.WithdrawToken(tokenAddr, maker, 1000)
	if err != nil {
		t.Fatalf("withdraw token: %v", err)
	}
	if got := x.BalanceOf(tokenAddr, maker); got != 0 {
		t.Errorf("ledger balance = %d, want 0", got)
	}
	if got := tok.BalanceOf(maker); got != 10_000 {
		t.Errorf("holder balance = %d, want 10000 back", got)
	}
	want := event.Withdraw{Asset: tokenAddr, Account: maker, Amount: 1000, Balance: 0}
	if rec != want {
		t.Errorf("record = %+v, want %+v", rec, want)
	}
}

func TestWithdrawTokenRejectsEtherSentinel(t *testing.T) {
	x, _ := newTestExchange(t, 10)

	_, err := x.WithdrawToken(ledger.Ether, maker, 1)
	if err == nil || err.Error() != "cannot withdraw ETHER" {
		t.Fatalf("err = %v, want cannot withdraw ETHER", err)
	}
}

func TestMakeOrderAllowsUnfunded(t *testing.T) {
	x, _ := newTestExchange(t, 10)

	// Maker has deposited nothing; order creation must still succeed.
	rec, err := x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)
	if err != nil {
		t.Fatalf("make order: %v", err)
	}
	if x.OrderCount() != 1 {
		t.Errorf("order count = %d, want 1", x.OrderCount())
	}

	o, err := x.Order(1)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if o.Maker != maker || o.TokenGet != ledger.Ether || o.AmountGet != ether ||
		o.TokenGive != tokenAddr || o.AmountGive != 1000 {
		t.Errorf("stored order = %+v", o)
	}
	if o.Status != order.Open {
		t.Errorf("status = %v, want open", o.Status)
	}

	want := event.Order{ID: 1, Maker: maker, TokenGet: ledger.Ether, AmountGet: ether,
		TokenGive: tokenAddr, AmountGive: 1000, Timestamp: ts}
	if rec != want {
		t.Errorf("order record = %+v, want %+v", rec, want)
	}
}

func TestCancelOrderByNonMaker(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)

	_, err := x.CancelOrder(taker, 1)
	if !errors.Is(err, order.ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
	o, _ := x.Order(1)
	if o.Status != order.Open {
		t.Errorf("status = %v, order must remain open", o.Status)
	}
}

func TestCancelOrderEmitsCancelTimestamp(t *testing.T) {
	x, clock := newTestExchange(t, 10)
	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)

	clock.Advance(60 * time.Second)
	rec, err := x.CancelOrder(maker, 1)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	want := event.Cancel{ID: 1, Maker: maker, TokenGet: ledger.Ether, AmountGet: ether,
		TokenGive: tokenAddr, AmountGive: 1000, Timestamp: ts + 60}
	if rec != want {
		t.Errorf("cancel record = %+v, want %+v", rec, want)
	}
	o, _ := x.Order(1)
	if o.Status != order.Cancelled {
		t.Errorf("status = %v, want cancelled", o.Status)
	}
	if o.Timestamp != ts {
		t.Errorf("creation timestamp mutated: %d", o.Timestamp)
	}
}

// TestFillOrderSettles runs the reference scenario: maker offers 1000 DEMO
// for 1 ether at a 10% fee. The taker pays amountGet plus the fee; the maker
// receives amountGet; the fee account receives the fee; conservation holds.
func TestFillOrderSettles(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	newFundedToken(t, x, maker, 10_000)
	x.DepositToken(tokenAddr, maker, 10_000)
	x.DepositEther(taker, 2*ether)

	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)
	rec, err := x.FillOrder(taker, 1)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}

	fee := ether / 10
	if got := x.BalanceOf(ledger.Ether, taker); got != 2*ether-ether-fee {
		t.Errorf("taker ether = %d, want %d (paid amountGet+fee)", got, 2*ether-ether-fee)
	}
	if got := x.BalanceOf(ledger.Ether, maker); got != ether {
		t.Errorf("maker ether = %d, want %d", got, ether)
	}
	if got := x.BalanceOf(ledger.Ether, feeAccount); got != fee {
		t.Errorf("fee account = %d, want %d", got, fee)
	}
	if got := x.BalanceOf(tokenAddr, taker); got != 1000 {
		t.Errorf("taker tokens = %d, want 1000", got)
	}
	if got := x.BalanceOf(tokenAddr, maker); got != 9000 {
		t.Errorf("maker tokens = %d, want 9000", got)
	}

	o, _ := x.Order(1)
	if o.Status != order.Filled {
		t.Errorf("status = %v, want filled", o.Status)
	}

	want := event.Trade{ID: 1, Maker: maker, TokenGet: ledger.Ether, AmountGet: ether,
		TokenGive: tokenAddr, AmountGive: 1000, Timestamp: ts}
	if rec != want {
		t.Errorf("trade record = %+v, want %+v", rec, want)
	}

	// Conservation: total ether still equals the taker's deposit.
	total := x.BalanceOf(ledger.Ether, taker) + x.BalanceOf(ledger.Ether, maker) + x.BalanceOf(ledger.Ether, feeAccount)
	if total != 2*ether {
		t.Errorf("ether total = %d, want %d", total, 2*ether)
	}

	trades := x.Trades()
	if len(trades) != 1 || trades[0] != want {
		t.Errorf("trade history = %+v, want [%+v]", trades, want)
	}
}

func TestFillOrderInvalidID(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)

	for _, id := range []uint64{0, 2, 99} {
		_, err := x.FillOrder(taker, id)
		if err == nil || err.Error() != "Not a valid order" {
			t.Errorf("id %d: err = %v, want Not a valid order", id, err)
		}
	}
}

func TestFillOrderTerminalStates(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	newFundedToken(t, x, maker, 10_000)
	x.DepositToken(tokenAddr, maker, 10_000)
	x.DepositEther(taker, 2*ether)

	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)
	if _, err := x.FillOrder(taker, 1); err != nil {
		t.Fatalf("fill: %v", err)
	}

	if _, err := x.FillOrder(taker, 1); !errors.Is(err, order.ErrAlreadyFilled) {
		t.Errorf("second fill: err = %v, want ErrAlreadyFilled", err)
	}
	if _, err := x.CancelOrder(maker, 1); !errors.Is(err, order.ErrAlreadyFilled) {
		t.Errorf("cancel filled: err = %v, want ErrAlreadyFilled", err)
	}

	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)
	x.CancelOrder(maker, 2)
	if _, err := x.FillOrder(taker, 2); !errors.Is(err, order.ErrAlreadyCancelled) {
		t.Errorf("fill cancelled: err = %v, want ErrAlreadyCancelled", err)
	}
}

func TestFillOrderInsufficientTakerIsAtomic(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	newFundedToken(t, x, maker, 10_000)
	x.DepositToken(tokenAddr, maker, 10_000)
	// Taker can cover amountGet but not the fee on top.
	x.DepositEther(taker, ether)

	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)
	_, err := x.FillOrder(taker, 1)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// No partial transfer, order still open.
	if got := x.BalanceOf(ledger.Ether, taker); got != ether {
		t.Errorf("taker ether = %d, want %d", got, ether)
	}
	if got := x.BalanceOf(ledger.Ether, maker); got != 0 {
		t.Errorf("maker ether = %d, want 0", got)
	}
	if got := x.BalanceOf(tokenAddr, taker); got != 0 {
		t.Errorf("taker tokens = %d, want 0", got)
	}
	o, _ := x.Order(1)
	if o.Status != order.Open {
		t.Errorf("status = %v, want open after failed fill", o.Status)
	}
	if got := x.Trades(); len(got) != 0 {
		t.Errorf("failed fill recorded a trade: %+v", got)
	}
}

func TestFillOrderUnfundedMakerIsAtomic(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	// Order was created unfunded; the failure surfaces only now.
	x.DepositEther(taker, 2*ether)
	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)

	_, err := x.FillOrder(taker, 1)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := x.BalanceOf(ledger.Ether, taker); got != 2*ether {
		t.Errorf("taker ether = %d, want untouched", got)
	}
	o, _ := x.Order(1)
	if o.Status != order.Open {
		t.Errorf("status = %v, want open", o.Status)
	}
}

func TestFeeIsFloorDivision(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	newFundedToken(t, x, maker, 10_000)
	x.DepositToken(tokenAddr, maker, 10_000)
	x.DepositEther(taker, 7)

	// amountGet=7, feePercent=10 → fee = floor(0.7) = 0; the taker pays
	// exactly 7.
	x.MakeOrder(maker, ledger.Ether, 7, tokenAddr, 100)
	if _, err := x.FillOrder(taker, 1); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got := x.BalanceOf(ledger.Ether, taker); got != 0 {
		t.Errorf("taker = %d, want 0", got)
	}
	if got := x.BalanceOf(ledger.Ether, maker); got != 7 {
		t.Errorf("maker = %d, want 7", got)
	}
	if got := x.BalanceOf(ledger.Ether, feeAccount); got != 0 {
		t.Errorf("fee account = %d, want 0 (floor, not rounded up)", got)
	}
}

func TestJournalOrdering(t *testing.T) {
	x, _ := newTestExchange(t, 10)
	newFundedToken(t, x, maker, 10_000)
	x.DepositToken(tokenAddr, maker, 10_000)
	x.DepositEther(taker, 2*ether)
	x.MakeOrder(maker, ledger.Ether, ether, tokenAddr, 1000)
	x.FillOrder(taker, 1)

	entries := x.Journal().All()
	wantKinds := []event.Kind{event.KindDeposit, event.KindDeposit, event.KindOrder, event.KindTrade}
	if len(entries) != len(wantKinds) {
		t.Fatalf("journal = %d entries, want %d", len(entries), len(wantKinds))
	}
	for i, e := range entries {
		if e.Seq != uint64(i)+1 {
			t.Errorf("entry %d: seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.Record.Kind() != wantKinds[i] {
			t.Errorf("entry %d: kind = %v, want %v", i, e.Record.Kind(), wantKinds[i])
		}
	}
}

// Failed calls must not emit records.
func TestFailedCallsEmitNothing(t *testing.T) {
	x, _ := newTestExchange(t, 10)

	x.Receive(maker, ether)
	x.WithdrawEther(maker, 1)
	x.FillOrder(taker, 1)
	x.CancelOrder(taker, 1)

	if got := x.Journal().Len(); got != 0 {
		t.Errorf("journal = %d entries, want 0 after only failed calls", got)
	}
}
