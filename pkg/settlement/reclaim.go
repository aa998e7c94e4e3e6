package settlement

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/pkg/order"
)

// Storage reclamation frees stale anti-replay entries once an order's
// deadline has passed. Both entry points are reachable only as
// self-interactions: a settlement's interaction list may target the engine
// itself, and nothing else may.

// FreeFilledAmountStorage reclaims filled-amount entries for expired orders.
func (e *Engine) FreeFilledAmountStorage(caller common.Address, uids []order.UID) error {
	if caller != e.self {
		return fmt.Errorf("%w: caller %s", ErrNotSelfInteraction, caller.Hex())
	}
	if err := e.requireExpired(uids); err != nil {
		return err
	}
	return e.store.FreeFilledAmount(uids)
}

// FreePreSignatureStorage reclaims pre-signature entries for expired orders.
func (e *Engine) FreePreSignatureStorage(caller common.Address, uids []order.UID) error {
	if caller != e.self {
		return fmt.Errorf("%w: caller %s", ErrNotSelfInteraction, caller.Hex())
	}
	if err := e.requireExpired(uids); err != nil {
		return err
	}
	return e.store.FreePreSignatures(uids)
}

// freeFilledAmounts is the staged variant used when the reclaim runs inside
// a settlement, so the deletes commit atomically with the batch.
func (e *Engine) freeFilledAmounts(st *batchState, uids []order.UID) error {
	if err := e.requireExpired(uids); err != nil {
		return err
	}
	for _, uid := range uids {
		st.fills[uid] = nil
	}
	return nil
}

func (e *Engine) freePreSignatures(st *batchState, uids []order.UID) error {
	if err := e.requireExpired(uids); err != nil {
		return err
	}
	st.preSigFrees = append(st.preSigFrees, uids...)
	return nil
}

func (e *Engine) requireExpired(uids []order.UID) error {
	now := e.now()
	for _, uid := range uids {
		if uid.ValidTo() >= now {
			return fmt.Errorf("%w: uid %s", ErrOrderStillValid, uid)
		}
	}
	return nil
}
