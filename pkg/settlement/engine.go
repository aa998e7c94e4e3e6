// Package settlement implements the batch-auction settlement engine: it
// verifies every submitted order's authorization and limit price, computes
// executed amounts with exact integer arithmetic, and moves funds through
// the custodian — committing the whole batch or none of it.
package settlement

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/clearport/pkg/order"
	"github.com/uhyunpark/clearport/pkg/storage"
	"github.com/uhyunpark/clearport/pkg/util"
	"github.com/uhyunpark/clearport/pkg/vault"
)

// Authenticator answers whether a caller may submit settlements.
type Authenticator interface {
	IsSolver(addr common.Address) bool
}

// Config wires the engine's collaborators.
type Config struct {
	Log       *zap.Logger
	Domain    order.Domain
	Self      common.Address // the engine's own address, used for self-interactions
	Auth      Authenticator
	Custodian vault.Custodian
	Store     *storage.LedgerStore
	Contracts order.ContractVerifier
	Executor  Executor
	Sink      Sink
	Clock     util.Clock
}

// Engine orchestrates settlements. A single-flight lock serializes batches;
// all other entry points are individually atomic against the ledger store.
type Engine struct {
	log       *zap.Logger
	self      common.Address
	relayer   common.Address
	auth      Authenticator
	custodian vault.Custodian
	store     *storage.LedgerStore
	verifier  *order.Verifier
	executor  Executor
	sink      Sink
	clock     util.Clock

	settling atomic.Bool
}

func NewEngine(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	executor := cfg.Executor
	if executor == nil {
		executor = ExecutorFunc(func(Interaction) error { return nil })
	}
	clock := cfg.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Engine{
		log:       log,
		self:      cfg.Self,
		relayer:   cfg.Custodian.Relayer(),
		auth:      cfg.Auth,
		custodian: cfg.Custodian,
		store:     cfg.Store,
		verifier:  order.NewVerifier(cfg.Domain, cfg.Contracts, cfg.Store),
		executor:  executor,
		sink:      cfg.Sink,
		clock:     clock,
	}
}

// Self returns the engine's own address (the target of self-interactions).
func (e *Engine) Self() common.Address { return e.self }

// Domain returns the typed-data domain orders must be signed for.
func (e *Engine) Domain() order.Domain { return e.verifier.Domain() }

// batchState stages a settlement's side effects until every step has
// succeeded. A nil fill value marks a reclaimed entry.
type batchState struct {
	fills       map[order.UID]*big.Int
	preSigFrees []order.UID
	events      []Event
}

func newBatchState() *batchState {
	return &batchState{fills: make(map[order.UID]*big.Int)}
}

// Settle executes a batch: pre-interactions, per-trade execution, pulling
// all inbound transfers, intra-interactions, pushing all outbound transfers,
// post-interactions. Any failing step discards the whole batch.
func (e *Engine) Settle(solver common.Address, tokens []common.Address, prices []*big.Int, trades []Trade, interactions [3][]Interaction) error {
	return e.execute(solver, func(st *batchState) error {
		if len(prices) != len(tokens) {
			return fmt.Errorf("%w: %d prices for %d tokens", ErrPriceCountMismatch, len(prices), len(tokens))
		}
		return e.runSettlement(st, tokens, prices, trades, interactions)
	})
}

// Swap settles a single order directly against the custodian's liquidity.
// The order must execute in full, and per-token limits derived from the
// order's own amounts protect its limit price.
func (e *Engine) Swap(solver common.Address, steps []vault.SwapStep, tokens []common.Address, trade Trade) error {
	return e.execute(solver, func(st *batchState) error {
		return e.runSwap(st, steps, tokens, trade)
	})
}

// execute wraps a settlement body with the entry guards, custodian
// transaction, ledger commit, and event publication shared by Settle and
// Swap.
func (e *Engine) execute(solver common.Address, run func(*batchState) error) error {
	if !e.auth.IsSolver(solver) {
		return fmt.Errorf("%w: %s", ErrNotSolver, solver.Hex())
	}
	if !e.settling.CompareAndSwap(false, true) {
		return ErrSettlementInProgress
	}
	defer e.settling.Store(false)

	tx, transactional := e.custodian.(vault.Transactional)
	if transactional {
		tx.Snapshot()
	}

	st := newBatchState()
	if err := run(st); err != nil {
		if transactional {
			tx.Rollback()
		}
		e.log.Warn("settlement_reverted",
			zap.String("solver", solver.Hex()),
			zap.Error(err))
		return err
	}
	st.events = append(st.events, SettlementEvent{Solver: solver})

	if err := e.store.CommitSettlement(st.fills, st.preSigFrees); err != nil {
		if transactional {
			tx.Rollback()
		}
		return err
	}
	if transactional {
		tx.Commit()
	}

	e.publish(st.events)
	e.log.Info("settlement_committed",
		zap.String("solver", solver.Hex()),
		zap.Int("events", len(st.events)))
	return nil
}

func (e *Engine) runSettlement(st *batchState, tokens []common.Address, prices []*big.Int, trades []Trade, interactions [3][]Interaction) error {
	if err := e.runInteractions(st, interactions[0]); err != nil {
		return err
	}

	now := e.now()
	inbound := make([]vault.Transfer, 0, len(trades))
	outbound := make([]vault.Transfer, 0, len(trades))
	for i, trade := range trades {
		ro, err := e.recoverTrade(tokens, trade)
		if err != nil {
			return fmt.Errorf("trade %d: %w", i, err)
		}
		prevFill, err := e.filledAmount(st, ro.UID)
		if err != nil {
			return err
		}
		exec, err := computeExecution(ro,
			prices[trade.SellTokenIndex], prices[trade.BuyTokenIndex],
			valueOrZero(trade.ExecutedAmount), prevFill, now)
		if err != nil {
			return fmt.Errorf("trade %d: %w", i, err)
		}
		st.fills[ro.UID] = exec.newFill
		inbound = append(inbound, exec.inbound)
		outbound = append(outbound, exec.outbound)
		st.events = append(st.events, exec.event)
	}

	if err := e.custodian.TransferFromAccounts(inbound); err != nil {
		return fmt.Errorf("pull transfers: %w", err)
	}
	if err := e.runInteractions(st, interactions[1]); err != nil {
		return err
	}
	if err := e.custodian.TransferToAccounts(outbound); err != nil {
		return fmt.Errorf("push transfers: %w", err)
	}
	return e.runInteractions(st, interactions[2])
}

func (e *Engine) runSwap(st *batchState, steps []vault.SwapStep, tokens []common.Address, trade Trade) error {
	ro, err := e.recoverTrade(tokens, trade)
	if err != nil {
		return err
	}
	o := &ro.Order
	if o.ValidTo < e.now() {
		return fmt.Errorf("%w: uid %s", ErrOrderExpired, ro.UID)
	}

	kind := vault.GivenIn
	fullAmount := o.SellAmount
	if o.Kind == order.Buy {
		kind = vault.GivenOut
		fullAmount = o.BuyAmount
	}
	if trade.ExecutedAmount == nil || trade.ExecutedAmount.Cmp(fullAmount) != 0 {
		return fmt.Errorf("%w: uid %s", ErrSwapNotFullyExecuted, ro.UID)
	}

	prevFill, err := e.filledAmount(st, ro.UID)
	if err != nil {
		return err
	}
	newFill := new(big.Int).Add(prevFill, fullAmount)
	if newFill.Cmp(fullAmount) > 0 {
		return fmt.Errorf("%w: uid %s", ErrOrderOverfilled, ro.UID)
	}
	st.fills[ro.UID] = newFill

	// Limits protect the order's limit price: pay at most SellAmount, receive
	// at least BuyAmount. Untouched tokens must not move at all.
	limits := make([]*big.Int, len(tokens))
	for i := range limits {
		limits[i] = new(big.Int)
	}
	limits[trade.SellTokenIndex] = new(big.Int).Set(o.SellAmount)
	limits[trade.BuyTokenIndex] = new(big.Int).Neg(o.BuyAmount)

	funds := vault.FundManagement{
		Sender:              ro.Owner,
		FromInternalBalance: o.SellTokenBalance == order.BalanceInternal,
		Recipient:           ro.Receiver,
		ToInternalBalance:   o.BuyTokenBalance == order.BalanceInternal,
	}
	deltas, err := e.custodian.BatchSwap(kind, steps, tokens, funds, limits, o.ValidTo)
	if err != nil {
		return fmt.Errorf("batch swap: %w", err)
	}
	for i, delta := range deltas {
		if delta.Cmp(limits[i]) > 0 {
			return fmt.Errorf("%w: token %s delta %s over limit %s",
				ErrSwapLimitViolated, tokens[i].Hex(), delta, limits[i])
		}
	}

	// The fee is paid in the sell token, outside the swap route.
	if o.FeeAmount.Sign() > 0 {
		fee := vault.Transfer{
			Account: ro.Owner,
			Token:   o.SellToken,
			Amount:  o.FeeAmount,
			Balance: o.SellTokenBalance,
		}
		if err := e.custodian.TransferFromAccounts([]vault.Transfer{fee}); err != nil {
			return fmt.Errorf("pull fee: %w", err)
		}
	}

	executedSell := new(big.Int).Set(deltas[trade.SellTokenIndex])
	executedBuy := new(big.Int).Neg(deltas[trade.BuyTokenIndex])
	st.events = append(st.events, TradeEvent{
		Owner:      ro.Owner,
		SellToken:  o.SellToken,
		BuyToken:   o.BuyToken,
		SellAmount: executedSell,
		BuyAmount:  executedBuy,
		FeeAmount:  new(big.Int).Set(o.FeeAmount),
		UID:        ro.UID.String(),
	})
	return nil
}

// InvalidateOrder permanently blocks an order by setting its filled amount
// to the invalidation sentinel. Only the owner embedded in the UID may call
// it; repeating the call leaves the ledger at the sentinel.
func (e *Engine) InvalidateOrder(caller common.Address, uid order.UID) error {
	if uid.Owner() != caller {
		return fmt.Errorf("%w: %s", ErrNotOrderOwner, caller.Hex())
	}
	if err := e.store.SetFilledAmount(uid, storage.InvalidationSentinel()); err != nil {
		return err
	}
	e.publish([]Event{OrderInvalidatedEvent{Owner: caller, UID: uid.String()}})
	e.log.Info("order_invalidated", zap.String("uid", uid.String()))
	return nil
}

// SetPreSignature marks or unmarks an order as authorized without a
// cryptographic signature. Only the owner embedded in the UID may call it.
func (e *Engine) SetPreSignature(caller common.Address, uid order.UID, signed bool) error {
	if uid.Owner() != caller {
		return fmt.Errorf("%w: %s", ErrNotOrderOwner, caller.Hex())
	}
	if err := e.store.SetPreSignature(uid, signed); err != nil {
		return err
	}
	e.publish([]Event{PreSignatureEvent{Owner: caller, UID: uid.String(), Signed: signed}})
	e.log.Info("pre_signature", zap.String("uid", uid.String()), zap.Bool("signed", signed))
	return nil
}

// filledAmount reads through the batch overlay so repeated trades against
// the same order within one batch observe each other's fills.
func (e *Engine) filledAmount(st *batchState, uid order.UID) (*big.Int, error) {
	if staged, ok := st.fills[uid]; ok {
		if staged == nil {
			return new(big.Int), nil
		}
		return new(big.Int).Set(staged), nil
	}
	return e.store.FilledAmount(uid)
}

func (e *Engine) now() uint32 {
	return uint32(e.clock.Now().Unix())
}

func (e *Engine) publish(events []Event) {
	if e.sink == nil {
		return
	}
	for _, ev := range events {
		e.sink.Publish(ev)
	}
}
