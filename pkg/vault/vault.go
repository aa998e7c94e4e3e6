// Package vault models the custodian that actually moves funds on the
// settlement engine's instruction: batched account transfers and a swap
// primitive against registered liquidity.
package vault

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/pkg/order"
)

var (
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	ErrNegativeAmount      = errors.New("vault: amount must be a non-negative integer")
	ErrNoSwapRoute         = errors.New("vault: no route for token pair")
	ErrDeadlineExpired     = errors.New("vault: swap deadline expired")
)

// Transfer is the minimal instruction to move funds in one direction:
// Account → custody for pulls, custody → Account for pushes.
type Transfer struct {
	Account common.Address
	Token   common.Address
	Amount  *big.Int
	Balance order.BalanceSource
}

// SwapKind tells the swap primitive which leg of a step is fixed.
type SwapKind uint8

const (
	// GivenIn fixes the input amount; output is whatever the route yields.
	GivenIn SwapKind = iota
	// GivenOut fixes the output amount; input is whatever the route costs.
	GivenOut
)

// SwapStep is one hop of a swap route. Token fields are indices into the
// swap's token list. A nil or zero Amount chains the previous step's result.
type SwapStep struct {
	TokenInIndex  int
	TokenOutIndex int
	Amount        *big.Int
}

// FundManagement tells the swap where to draw input funds and where to send
// output funds.
type FundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// Custodian is the external fund-holding collaborator. Every method is
// all-or-nothing within a single call.
type Custodian interface {
	// TransferFromAccounts pulls funds from user accounts into custody.
	TransferFromAccounts(transfers []Transfer) error
	// TransferToAccounts pushes funds from custody to user accounts.
	TransferToAccounts(transfers []Transfer) error
	// BatchSwap executes a route and returns per-token deltas, positive when
	// the custodian received tokens and negative when it paid them out.
	BatchSwap(kind SwapKind, steps []SwapStep, tokens []common.Address, funds FundManagement, limits []*big.Int, deadline uint32) ([]*big.Int, error)
	// Relayer is the address that performs the transfers; settlements must
	// never interact with it outside the audited transfer path.
	Relayer() common.Address
}

// Transactional is implemented by custodians that can stage a settlement's
// fund movements and roll them back as a unit.
type Transactional interface {
	Snapshot()
	Rollback()
	Commit()
}
