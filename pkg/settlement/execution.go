package settlement

import (
	"fmt"
	"math/big"

	"github.com/uhyunpark/clearport/pkg/order"
	"github.com/uhyunpark/clearport/pkg/vault"
)

// tradeExecution is everything one trade contributes to the batch: the two
// fund movements, the updated cumulative fill, and the audit record.
type tradeExecution struct {
	inbound  vault.Transfer
	outbound vault.Transfer
	newFill  *big.Int
	event    TradeEvent
}

// computeExecution converts clearing prices and the requested executed
// amount into exact sell/buy/fee amounts. All arithmetic is integer big.Int;
// rounding always favors the protocol: buy amounts owed by a sell order
// round up, sell amounts owed by a buy order round down.
func computeExecution(ro *RecoveredOrder, sellPrice, buyPrice, executedAmount, prevFill *big.Int, now uint32) (*tradeExecution, error) {
	o := &ro.Order

	if o.ValidTo < now {
		return nil, fmt.Errorf("%w: uid %s", ErrOrderExpired, ro.UID)
	}
	if sellPrice.Sign() <= 0 || buyPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if executedAmount.Sign() < 0 {
		return nil, fmt.Errorf("%w: executed amount %s", ErrInvalidAmount, executedAmount)
	}

	// Cross-multiplied limit check over the order's original amounts; no
	// division, so no rounding bias.
	sellValue := new(big.Int).Mul(o.SellAmount, sellPrice)
	buyValue := new(big.Int).Mul(o.BuyAmount, buyPrice)
	if sellValue.Cmp(buyValue) < 0 {
		return nil, fmt.Errorf("%w: uid %s", ErrLimitPriceNotRespected, ro.UID)
	}

	var executedSell, executedBuy, executedFee, newFill *big.Int
	switch o.Kind {
	case order.Sell:
		if o.PartiallyFillable {
			executedSell = new(big.Int).Set(executedAmount)
			// Fee prorated by the executed fraction, floored.
			executedFee = new(big.Int).Div(new(big.Int).Mul(o.FeeAmount, executedSell), o.SellAmount)
		} else {
			executedSell = new(big.Int).Set(o.SellAmount)
			executedFee = new(big.Int).Set(o.FeeAmount)
		}
		newFill = new(big.Int).Add(prevFill, executedSell)
		if newFill.Cmp(o.SellAmount) > 0 {
			return nil, fmt.Errorf("%w: uid %s", ErrOrderOverfilled, ro.UID)
		}
		executedBuy = ceilDiv(new(big.Int).Mul(executedSell, sellPrice), buyPrice)

	default: // order.Buy is the only other kind
		if o.PartiallyFillable {
			executedBuy = new(big.Int).Set(executedAmount)
			executedFee = new(big.Int).Div(new(big.Int).Mul(o.FeeAmount, executedBuy), o.BuyAmount)
		} else {
			executedBuy = new(big.Int).Set(o.BuyAmount)
			executedFee = new(big.Int).Set(o.FeeAmount)
		}
		newFill = new(big.Int).Add(prevFill, executedBuy)
		if newFill.Cmp(o.BuyAmount) > 0 {
			return nil, fmt.Errorf("%w: uid %s", ErrOrderOverfilled, ro.UID)
		}
		executedSell = new(big.Int).Div(new(big.Int).Mul(executedBuy, buyPrice), sellPrice)
	}

	// The fee is paid in the sell token on top of the trade.
	transferredSell := new(big.Int).Add(executedSell, executedFee)

	return &tradeExecution{
		inbound: vault.Transfer{
			Account: ro.Owner,
			Token:   o.SellToken,
			Amount:  transferredSell,
			Balance: o.SellTokenBalance,
		},
		outbound: vault.Transfer{
			Account: ro.Receiver,
			Token:   o.BuyToken,
			Amount:  executedBuy,
			Balance: o.BuyTokenBalance,
		},
		newFill: newFill,
		event: TradeEvent{
			Owner:      ro.Owner,
			SellToken:  o.SellToken,
			BuyToken:   o.BuyToken,
			SellAmount: executedSell,
			BuyAmount:  executedBuy,
			FeeAmount:  executedFee,
			UID:        ro.UID.String(),
		},
	}, nil
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
