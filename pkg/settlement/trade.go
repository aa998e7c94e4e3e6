package settlement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/pkg/order"
)

// Trade is the compact per-order record a solver submits inside a batch.
// Token fields are indices into the settlement's token list; everything else
// reconstructs the order the user signed.
type Trade struct {
	SellTokenIndex int
	BuyTokenIndex  int
	Receiver       common.Address
	SellAmount     *big.Int
	BuyAmount      *big.Int
	ValidTo        uint32
	AppData        common.Hash
	FeeAmount      *big.Int
	Flags          TradeFlags
	ExecutedAmount *big.Int
	Signature      []byte
}

// TradeFlags packs the order's kind, fill behavior, balance sources and
// signing scheme into one byte:
//
//	bit 0:    kind (0 sell, 1 buy)
//	bit 1:    partially fillable
//	bits 2-3: sell balance source (00 erc20, 10 external, 11 internal)
//	bit 4:    buy balance source (0 erc20, 1 internal)
//	bits 5-6: signing scheme
//
// The zero value decodes to a fill-or-kill sell order with erc20 balances and
// a typed-data signature.
type TradeFlags uint8

func (f TradeFlags) kind() order.Kind {
	if f&0x01 != 0 {
		return order.Buy
	}
	return order.Sell
}

func (f TradeFlags) partiallyFillable() bool {
	return f&0x02 != 0
}

func (f TradeFlags) sellTokenBalance() (order.BalanceSource, error) {
	switch (f >> 2) & 0x03 {
	case 0b00:
		return order.BalanceERC20, nil
	case 0b10:
		return order.BalanceExternal, nil
	case 0b11:
		return order.BalanceInternal, nil
	default:
		// 0b01 is unassigned.
		return 0, fmt.Errorf("%w: sell balance bits 0b01", ErrInvalidTradeFlags)
	}
}

func (f TradeFlags) buyTokenBalance() order.BalanceSource {
	if f&0x10 != 0 {
		return order.BalanceInternal
	}
	return order.BalanceERC20
}

func (f TradeFlags) scheme() order.Scheme {
	return order.Scheme((f >> 5) & 0x03)
}

// RecoveredOrder is the transient result of decoding one trade: the full
// order, its identifier, the authorizing owner, and the effective receiver.
type RecoveredOrder struct {
	Order    order.Order
	UID      order.UID
	Owner    common.Address
	Receiver common.Address
}

// recoverTrade rebuilds the signed order from a trade record, verifies its
// authorization, and derives UID and receiver.
func (e *Engine) recoverTrade(tokens []common.Address, trade Trade) (*RecoveredOrder, error) {
	if trade.Flags > 0x7f {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidTradeFlags, uint8(trade.Flags))
	}
	if trade.SellTokenIndex < 0 || trade.SellTokenIndex >= len(tokens) {
		return nil, fmt.Errorf("%w: sell token %d", ErrTokenIndexOutOfRange, trade.SellTokenIndex)
	}
	if trade.BuyTokenIndex < 0 || trade.BuyTokenIndex >= len(tokens) {
		return nil, fmt.Errorf("%w: buy token %d", ErrTokenIndexOutOfRange, trade.BuyTokenIndex)
	}
	sellBalance, err := trade.Flags.sellTokenBalance()
	if err != nil {
		return nil, err
	}
	// Amounts come from the solver; the data model is unsigned, so anything
	// nil or negative is malformed rather than a legal zero.
	for _, a := range []struct {
		name   string
		amount *big.Int
	}{
		{"sellAmount", trade.SellAmount},
		{"buyAmount", trade.BuyAmount},
		{"feeAmount", trade.FeeAmount},
	} {
		if a.amount == nil || a.amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: %s %s", ErrInvalidAmount, a.name, a.amount)
		}
	}
	if trade.ExecutedAmount != nil && trade.ExecutedAmount.Sign() < 0 {
		return nil, fmt.Errorf("%w: executedAmount %s", ErrInvalidAmount, trade.ExecutedAmount)
	}

	o := order.Order{
		SellToken:         tokens[trade.SellTokenIndex],
		BuyToken:          tokens[trade.BuyTokenIndex],
		Receiver:          trade.Receiver,
		SellAmount:        trade.SellAmount,
		BuyAmount:         trade.BuyAmount,
		ValidTo:           trade.ValidTo,
		AppData:           trade.AppData,
		FeeAmount:         trade.FeeAmount,
		Kind:              trade.Flags.kind(),
		PartiallyFillable: trade.Flags.partiallyFillable(),
		SellTokenBalance:  sellBalance,
		BuyTokenBalance:   trade.Flags.buyTokenBalance(),
	}

	digest, owner, err := e.verifier.Recover(&o, trade.Flags.scheme(), trade.Signature)
	if err != nil {
		return nil, err
	}

	receiver := o.Receiver
	if receiver == (common.Address{}) {
		receiver = owner
	}

	return &RecoveredOrder{
		Order:    o,
		UID:      order.PackUID(digest, owner, o.ValidTo),
		Owner:    owner,
		Receiver: receiver,
	}, nil
}
