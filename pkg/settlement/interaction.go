package settlement

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/clearport/pkg/order"
)

// Interaction is an arbitrary external call bundled into a settlement for
// pre-, intra-, or post-trade side effects.
type Interaction struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// Selector returns the leading 4-byte call discriminant. Shorter payloads
// report a zero selector.
func (i Interaction) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], i.CallData)
	return sel
}

// Executor runs interactions against external targets. Implementations may
// call back into other entry points; the engine's single-flight lock keeps
// nested settlements out.
type Executor interface {
	Execute(Interaction) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(Interaction) error

func (f ExecutorFunc) Execute(i Interaction) error { return f(i) }

// Self-interaction selectors for the storage reclaimer.
var (
	selectorFreeFilledAmounts = callSelector("freeFilledAmountStorage(bytes[])")
	selectorFreePreSignatures = callSelector("freePreSignatureStorage(bytes[])")
)

func callSelector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// FreeFilledAmountCall builds the self-interaction payload that reclaims the
// filled-amount entries for the given orders.
func FreeFilledAmountCall(uids []order.UID) []byte {
	return packReclaimCall(selectorFreeFilledAmounts, uids)
}

// FreePreSignatureCall builds the self-interaction payload that reclaims the
// pre-signature entries for the given orders.
func FreePreSignatureCall(uids []order.UID) []byte {
	return packReclaimCall(selectorFreePreSignatures, uids)
}

func packReclaimCall(selector [4]byte, uids []order.UID) []byte {
	data := make([]byte, 0, 4+len(uids)*order.UIDLength)
	data = append(data, selector[:]...)
	for _, uid := range uids {
		data = append(data, uid[:]...)
	}
	return data
}

// runInteractions executes one interaction group in order, rejecting any
// call into the custodian relayer and routing calls to the engine's own
// address through the reclaim dispatcher.
func (e *Engine) runInteractions(st *batchState, interactions []Interaction) error {
	for _, it := range interactions {
		if it.Target == e.relayer {
			return fmt.Errorf("%w: %s", ErrForbiddenInteraction, it.Target.Hex())
		}
		if it.Target == e.self {
			if err := e.dispatchSelf(st, it); err != nil {
				return err
			}
		} else if err := e.executor.Execute(it); err != nil {
			return fmt.Errorf("interaction %s failed: %w", it.Target.Hex(), err)
		}
		st.events = append(st.events, InteractionEvent{
			Target:   it.Target,
			Value:    valueOrZero(it.Value),
			Selector: it.Selector(),
		})
	}
	return nil
}

// dispatchSelf decodes an interaction targeting the engine itself:
// a 4-byte selector followed by packed 56-byte UIDs.
func (e *Engine) dispatchSelf(st *batchState, it Interaction) error {
	if len(it.CallData) < 4 {
		return fmt.Errorf("settlement: self-interaction payload too short")
	}
	uids, err := unpackUIDs(it.CallData[4:])
	if err != nil {
		return err
	}

	selector := it.Selector()
	switch {
	case bytes.Equal(selector[:], selectorFreeFilledAmounts[:]):
		return e.freeFilledAmounts(st, uids)
	case bytes.Equal(selector[:], selectorFreePreSignatures[:]):
		return e.freePreSignatures(st, uids)
	default:
		return fmt.Errorf("settlement: unknown self-interaction selector 0x%x", selector)
	}
}

func unpackUIDs(data []byte) ([]order.UID, error) {
	if len(data)%order.UIDLength != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", order.ErrMalformedUID, len(data)%order.UIDLength)
	}
	uids := make([]order.UID, 0, len(data)/order.UIDLength)
	for off := 0; off < len(data); off += order.UIDLength {
		uid, err := order.ParseUID(data[off : off+order.UIDLength])
		if err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
