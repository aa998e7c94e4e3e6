package settlement

import "errors"

// Every failure is fatal to the enclosing batch: nothing is committed and the
// reason is surfaced verbatim to the caller.
var (
	ErrNotSolver              = errors.New("settlement: caller is not a solver")
	ErrNotSelfInteraction     = errors.New("settlement: reclaim callable only as self-interaction")
	ErrSettlementInProgress   = errors.New("settlement: settlement already in progress")
	ErrPriceCountMismatch     = errors.New("settlement: clearing price count does not match token count")
	ErrInvalidPrice           = errors.New("settlement: clearing price must be positive")
	ErrInvalidAmount          = errors.New("settlement: amount must be a non-negative integer")
	ErrTokenIndexOutOfRange   = errors.New("settlement: token index out of range")
	ErrInvalidTradeFlags      = errors.New("settlement: invalid trade flags")
	ErrOrderExpired           = errors.New("settlement: order expired")
	ErrLimitPriceNotRespected = errors.New("settlement: limit price not respected")
	ErrOrderOverfilled        = errors.New("settlement: order overfilled")
	ErrSwapLimitViolated      = errors.New("settlement: swap limit violated")
	ErrSwapNotFullyExecuted   = errors.New("settlement: swap did not fully execute order")
	ErrForbiddenInteraction   = errors.New("settlement: interaction with custodian relayer forbidden")
	ErrNotOrderOwner          = errors.New("settlement: caller is not the order owner")
	ErrOrderStillValid        = errors.New("settlement: order still valid")
)
