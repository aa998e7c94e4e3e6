package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is an audit record emitted after a batch commits. Events for a
// failed batch are discarded together with the rest of its effects.
type Event interface {
	Name() string
}

// Sink receives committed audit events (websocket hub, log collector, ...).
type Sink interface {
	Publish(Event)
}

// TradeEvent records one executed trade. Amounts are the executed amounts,
// not the order totals; the fee is reported separately from the sell amount.
type TradeEvent struct {
	Owner      common.Address `json:"owner"`
	SellToken  common.Address `json:"sellToken"`
	BuyToken   common.Address `json:"buyToken"`
	SellAmount *big.Int       `json:"sellAmount"`
	BuyAmount  *big.Int       `json:"buyAmount"`
	FeeAmount  *big.Int       `json:"feeAmount"`
	UID        string         `json:"uid"`
}

func (TradeEvent) Name() string { return "trade" }

// InteractionEvent records an executed interaction. Only the 4-byte call
// discriminant is kept, not the full payload.
type InteractionEvent struct {
	Target   common.Address `json:"target"`
	Value    *big.Int       `json:"value"`
	Selector [4]byte        `json:"selector"`
}

func (InteractionEvent) Name() string { return "interaction" }

// SettlementEvent marks a committed batch, tagged with the submitting solver.
type SettlementEvent struct {
	Solver common.Address `json:"solver"`
}

func (SettlementEvent) Name() string { return "settlement" }

// OrderInvalidatedEvent records an owner cancelling an order.
type OrderInvalidatedEvent struct {
	Owner common.Address `json:"owner"`
	UID   string         `json:"uid"`
}

func (OrderInvalidatedEvent) Name() string { return "order_invalidated" }

// PreSignatureEvent records an owner marking or unmarking an order as
// pre-signed.
type PreSignatureEvent struct {
	Owner  common.Address `json:"owner"`
	UID    string         `json:"uid"`
	Signed bool           `json:"signed"`
}

func (PreSignatureEvent) Name() string { return "pre_signature" }
