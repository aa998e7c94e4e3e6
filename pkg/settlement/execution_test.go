package settlement

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/pkg/order"
	"github.com/uhyunpark/clearport/pkg/storage"
)

const testNow = uint32(1_700_000_000)

func recoveredOrder(kind order.Kind, partial bool, sell, buy, fee int64) *RecoveredOrder {
	owner := common.HexToAddress("0xA100000000000000000000000000000000000000")
	o := order.Order{
		SellToken:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		BuyToken:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SellAmount:        big.NewInt(sell),
		BuyAmount:         big.NewInt(buy),
		FeeAmount:         big.NewInt(fee),
		ValidTo:           testNow + 3600,
		Kind:              kind,
		PartiallyFillable: partial,
		SellTokenBalance:  order.BalanceERC20,
		BuyTokenBalance:   order.BalanceERC20,
	}
	digest := common.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101")
	return &RecoveredOrder{
		Order:    o,
		UID:      order.PackUID(digest, owner, o.ValidTo),
		Owner:    owner,
		Receiver: owner,
	}
}

func TestComputeExecutionRejectsLimitPrice(t *testing.T) {
	// At 1:1 prices a 100-for-200 sell order is under its limit.
	ro := recoveredOrder(order.Sell, false, 100, 200, 10)

	_, err := computeExecution(ro, big.NewInt(1), big.NewInt(1), new(big.Int), new(big.Int), testNow)
	if !errors.Is(err, ErrLimitPriceNotRespected) {
		t.Fatalf("got %v, want ErrLimitPriceNotRespected", err)
	}
}

func TestComputeExecutionFillOrKillSell(t *testing.T) {
	ro := recoveredOrder(order.Sell, false, 100, 200, 10)

	exec, err := computeExecution(ro, big.NewInt(2), big.NewInt(1), new(big.Int), new(big.Int), testNow)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// 100 sold at 2:1 buys exactly 200; fee is charged on top.
	if exec.event.SellAmount.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("executed sell = %s, want 100", exec.event.SellAmount)
	}
	if exec.event.BuyAmount.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("executed buy = %s, want 200", exec.event.BuyAmount)
	}
	if exec.event.FeeAmount.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("fee = %s, want 10", exec.event.FeeAmount)
	}
	if exec.inbound.Amount.Cmp(big.NewInt(110)) != 0 {
		t.Errorf("inbound transfer = %s, want 110 (sell + fee)", exec.inbound.Amount)
	}
	if exec.outbound.Amount.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("outbound transfer = %s, want 200", exec.outbound.Amount)
	}
	if exec.newFill.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("fill = %s, want 100", exec.newFill)
	}
	if exec.inbound.Token != ro.Order.SellToken || exec.outbound.Token != ro.Order.BuyToken {
		t.Error("transfer tokens do not match the order")
	}
}

func TestComputeExecutionPartialBuy(t *testing.T) {
	ro := recoveredOrder(order.Buy, true, 100, 50, 10)

	exec, err := computeExecution(ro, big.NewInt(1), big.NewInt(2), big.NewInt(20), new(big.Int), testNow)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// 20 of 50 bought: fee 10*20/50 = 4, sell 20*2/1 = 40.
	if exec.event.FeeAmount.Cmp(big.NewInt(4)) != 0 {
		t.Errorf("fee = %s, want 4", exec.event.FeeAmount)
	}
	if exec.event.SellAmount.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("executed sell = %s, want 40", exec.event.SellAmount)
	}
	if exec.inbound.Amount.Cmp(big.NewInt(44)) != 0 {
		t.Errorf("inbound transfer = %s, want 44", exec.inbound.Amount)
	}
	if exec.newFill.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("fill = %s, want 20 (buy orders fill in buy token)", exec.newFill)
	}
}

func TestComputeExecutionRoundsBuyAmountUp(t *testing.T) {
	// 1 unit sold at price 1 against buy price 3 is 1/3 of a buy unit; the
	// trader must still receive a full unit.
	ro := recoveredOrder(order.Sell, true, 100, 1, 0)

	exec, err := computeExecution(ro, big.NewInt(1), big.NewInt(3), big.NewInt(1), new(big.Int), testNow)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if exec.event.BuyAmount.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("executed buy = %s, want 1 (rounded up)", exec.event.BuyAmount)
	}
}

func TestComputeExecutionRoundsSellAmountDown(t *testing.T) {
	// 1 unit bought at buy price 1 against sell price 3 costs 1/3 of a sell
	// unit; the trader pays zero rather than a full unit.
	ro := recoveredOrder(order.Buy, true, 100, 10, 0)

	exec, err := computeExecution(ro, big.NewInt(3), big.NewInt(1), big.NewInt(1), new(big.Int), testNow)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if exec.event.SellAmount.Sign() != 0 {
		t.Errorf("executed sell = %s, want 0 (rounded down)", exec.event.SellAmount)
	}
	if exec.event.BuyAmount.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("executed buy = %s, want 1", exec.event.BuyAmount)
	}
}

func TestComputeExecutionProratesFeeFloored(t *testing.T) {
	ro := recoveredOrder(order.Sell, true, 3, 1, 10)

	exec, err := computeExecution(ro, big.NewInt(1), big.NewInt(1), big.NewInt(1), new(big.Int), testNow)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// 10 * 1/3 floors to 3.
	if exec.event.FeeAmount.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("fee = %s, want 3", exec.event.FeeAmount)
	}
}

func TestComputeExecutionRejectsExpiredOrder(t *testing.T) {
	ro := recoveredOrder(order.Sell, false, 100, 50, 0)
	ro.Order.ValidTo = testNow - 1

	_, err := computeExecution(ro, big.NewInt(1), big.NewInt(1), new(big.Int), new(big.Int), testNow)
	if !errors.Is(err, ErrOrderExpired) {
		t.Fatalf("got %v, want ErrOrderExpired", err)
	}
}

func TestComputeExecutionRejectsNonPositivePrice(t *testing.T) {
	ro := recoveredOrder(order.Sell, false, 100, 50, 0)

	if _, err := computeExecution(ro, new(big.Int), big.NewInt(1), new(big.Int), new(big.Int), testNow); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero sell price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := computeExecution(ro, big.NewInt(1), new(big.Int), new(big.Int), new(big.Int), testNow); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero buy price: got %v, want ErrInvalidPrice", err)
	}
	// A negative price would invert the cross-multiplied limit check.
	if _, err := computeExecution(ro, big.NewInt(-1), big.NewInt(1), new(big.Int), new(big.Int), testNow); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("negative sell price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := computeExecution(ro, big.NewInt(1), big.NewInt(-1), new(big.Int), new(big.Int), testNow); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("negative buy price: got %v, want ErrInvalidPrice", err)
	}
}

func TestComputeExecutionRejectsNegativeExecutedAmount(t *testing.T) {
	// A negative executed amount on a partial order would walk the cumulative
	// fill backwards and turn the inbound transfer into a credit.
	ro := recoveredOrder(order.Sell, true, 100, 50, 10)

	_, err := computeExecution(ro, big.NewInt(1), big.NewInt(1), big.NewInt(-50), big.NewInt(50), testNow)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
}

func TestComputeExecutionRejectsOverfill(t *testing.T) {
	// A fill-or-kill order with any prior fill cannot execute again.
	fok := recoveredOrder(order.Sell, false, 100, 50, 0)
	_, err := computeExecution(fok, big.NewInt(1), big.NewInt(1), new(big.Int), big.NewInt(1), testNow)
	if !errors.Is(err, ErrOrderOverfilled) {
		t.Errorf("replayed fill-or-kill: got %v, want ErrOrderOverfilled", err)
	}

	// A partial order cannot execute past its remaining amount.
	partial := recoveredOrder(order.Sell, true, 100, 50, 0)
	_, err = computeExecution(partial, big.NewInt(1), big.NewInt(1), big.NewInt(31), big.NewInt(70), testNow)
	if !errors.Is(err, ErrOrderOverfilled) {
		t.Errorf("partial past remainder: got %v, want ErrOrderOverfilled", err)
	}

	// The invalidation sentinel blocks every execution.
	invalidated := recoveredOrder(order.Sell, true, 100, 50, 0)
	_, err = computeExecution(invalidated, big.NewInt(1), big.NewInt(1), big.NewInt(1), storage.InvalidationSentinel(), testNow)
	if !errors.Is(err, ErrOrderOverfilled) {
		t.Errorf("invalidated order: got %v, want ErrOrderOverfilled", err)
	}
}
