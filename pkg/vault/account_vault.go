package vault

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/pkg/order"
	"github.com/uhyunpark/clearport/pkg/util"
)

// balances maps token → account → amount.
type balances map[common.Address]map[common.Address]*big.Int

func (b balances) get(token, account common.Address) *big.Int {
	if accounts, ok := b[token]; ok {
		if amount, ok := accounts[account]; ok {
			return amount
		}
	}
	return new(big.Int)
}

func (b balances) add(token, account common.Address, delta *big.Int) {
	accounts, ok := b[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		b[token] = accounts
	}
	accounts[account] = new(big.Int).Add(b.get(token, account), delta)
}

func (b balances) clone() balances {
	out := make(balances, len(b))
	for token, accounts := range b {
		cp := make(map[common.Address]*big.Int, len(accounts))
		for account, amount := range accounts {
			cp[account] = new(big.Int).Set(amount)
		}
		out[token] = cp
	}
	return out
}

type pairKey struct {
	in  common.Address
	out common.Address
}

// pool is a constant-rate liquidity source: out = in * rateNum / rateDen.
type pool struct {
	rateNum *big.Int
	rateDen *big.Int
}

type vaultState struct {
	wallet   balances
	internal balances
	custody  map[common.Address]*big.Int
}

func (st *vaultState) clone() *vaultState {
	custody := make(map[common.Address]*big.Int, len(st.custody))
	for token, amount := range st.custody {
		custody[token] = new(big.Int).Set(amount)
	}
	return &vaultState{
		wallet:   st.wallet.clone(),
		internal: st.internal.clone(),
		custody:  custody,
	}
}

// AccountVault is the reference in-process custodian. Wallet balances stand
// in for token balances the relayer may draw on; internal balances live
// inside the custodian itself.
type AccountVault struct {
	mu      sync.Mutex
	relayer common.Address
	state   *vaultState
	snap    *vaultState
	pools   map[pairKey]pool
	clock   util.Clock
}

func NewAccountVault(relayer common.Address) *AccountVault {
	return &AccountVault{
		relayer: relayer,
		state: &vaultState{
			wallet:   make(balances),
			internal: make(balances),
			custody:  make(map[common.Address]*big.Int),
		},
		pools: make(map[pairKey]pool),
		clock: util.RealClock{},
	}
}

func (v *AccountVault) Relayer() common.Address { return v.relayer }

// SetClock overrides the time source used for swap deadlines.
func (v *AccountVault) SetClock(c util.Clock) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock = c
}

// Mint credits a wallet balance. Devnet and test funding only.
func (v *AccountVault) Mint(token, account common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.wallet.add(token, account, amount)
}

// FundCustody credits pooled custody liquidity, standing in for liquidity
// the custodian sources elsewhere (e.g. via intra-settlement interactions).
func (v *AccountVault) FundCustody(token common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.custodyAdd(token, amount)
}

// DepositInternal moves a wallet balance into the custodian-internal balance.
func (v *AccountVault) DepositInternal(token, account common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.wallet.get(token, account).Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s of %s", ErrInsufficientBalance, account.Hex(), token.Hex())
	}
	v.state.wallet.add(token, account, new(big.Int).Neg(amount))
	v.state.internal.add(token, account, amount)
	return nil
}

// RegisterPool adds a directional constant-rate route tokenIn → tokenOut.
func (v *AccountVault) RegisterPool(tokenIn, tokenOut common.Address, rateNum, rateDen *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pools[pairKey{tokenIn, tokenOut}] = pool{
		rateNum: new(big.Int).Set(rateNum),
		rateDen: new(big.Int).Set(rateDen),
	}
}

// BalanceOf returns the wallet balance of account for token.
func (v *AccountVault) BalanceOf(token, account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.state.wallet.get(token, account))
}

// InternalBalanceOf returns the custodian-internal balance.
func (v *AccountVault) InternalBalanceOf(token, account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.state.internal.get(token, account))
}

// CustodyBalance returns the pooled custody balance for token.
func (v *AccountVault) CustodyBalance(token common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount, ok := v.state.custody[token]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

// Snapshot saves the current balance state for rollback.
func (v *AccountVault) Snapshot() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap = v.state.clone()
}

// Rollback restores the last snapshot.
func (v *AccountVault) Rollback() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snap != nil {
		v.state = v.snap
		v.snap = nil
	}
}

// Commit discards the snapshot, keeping the current state.
func (v *AccountVault) Commit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap = nil
}

// source picks the balance map a transfer draws from or deposits into.
func (v *AccountVault) source(b order.BalanceSource) balances {
	if b == order.BalanceInternal {
		return v.state.internal
	}
	// erc20 and external both settle against the wallet balance.
	return v.state.wallet
}

func (v *AccountVault) TransferFromAccounts(transfers []Transfer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Validate the whole batch before applying anything. A negative amount
	// would invert the transfer direction, so it is rejected outright.
	staged := make(balances)
	for _, t := range transfers {
		if t.Amount == nil || t.Amount.Sign() < 0 {
			return fmt.Errorf("%w: %s of %s", ErrNegativeAmount, t.Account.Hex(), t.Token.Hex())
		}
		src := v.source(t.Balance)
		have := new(big.Int).Add(src.get(t.Token, t.Account), staged.get(t.Token, t.Account))
		if have.Cmp(t.Amount) < 0 {
			return fmt.Errorf("%w: %s of %s", ErrInsufficientBalance, t.Account.Hex(), t.Token.Hex())
		}
		staged.add(t.Token, t.Account, new(big.Int).Neg(t.Amount))
	}
	for _, t := range transfers {
		v.source(t.Balance).add(t.Token, t.Account, new(big.Int).Neg(t.Amount))
		v.custodyAdd(t.Token, t.Amount)
	}
	return nil
}

func (v *AccountVault) TransferToAccounts(transfers []Transfer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := make(map[common.Address]*big.Int)
	for _, t := range transfers {
		if t.Amount == nil || t.Amount.Sign() < 0 {
			return fmt.Errorf("%w: %s of %s", ErrNegativeAmount, t.Account.Hex(), t.Token.Hex())
		}
		if _, ok := total[t.Token]; !ok {
			total[t.Token] = new(big.Int)
		}
		total[t.Token].Add(total[t.Token], t.Amount)
	}
	for token, amount := range total {
		have := v.state.custody[token]
		if have == nil || have.Cmp(amount) < 0 {
			return fmt.Errorf("%w: custody of %s", ErrInsufficientBalance, token.Hex())
		}
	}
	for _, t := range transfers {
		v.custodyAdd(t.Token, new(big.Int).Neg(t.Amount))
		v.source(t.Balance).add(t.Token, t.Account, t.Amount)
	}
	return nil
}

func (v *AccountVault) custodyAdd(token common.Address, delta *big.Int) {
	if _, ok := v.state.custody[token]; !ok {
		v.state.custody[token] = new(big.Int)
	}
	v.state.custody[token].Add(v.state.custody[token], delta)
}

// BatchSwap runs steps against the registered pools and settles net deltas
// with the sender and recipient. Deltas follow the custodian's convention:
// positive means the sender paid tokens in, negative means the recipient was
// paid out.
func (v *AccountVault) BatchSwap(kind SwapKind, steps []SwapStep, tokens []common.Address, funds FundManagement, limits []*big.Int, deadline uint32) ([]*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if deadline != 0 && uint32(v.clock.Now().Unix()) > deadline {
		return nil, fmt.Errorf("%w: %d", ErrDeadlineExpired, deadline)
	}

	deltas := make([]*big.Int, len(tokens))
	for i := range deltas {
		deltas[i] = new(big.Int)
	}

	last := new(big.Int)
	for _, step := range steps {
		if step.TokenInIndex < 0 || step.TokenInIndex >= len(tokens) ||
			step.TokenOutIndex < 0 || step.TokenOutIndex >= len(tokens) {
			return nil, fmt.Errorf("vault: swap step token index out of range")
		}
		tokenIn := tokens[step.TokenInIndex]
		tokenOut := tokens[step.TokenOutIndex]
		p, ok := v.pools[pairKey{tokenIn, tokenOut}]
		if !ok {
			return nil, fmt.Errorf("%w: %s -> %s", ErrNoSwapRoute, tokenIn.Hex(), tokenOut.Hex())
		}

		amount := step.Amount
		if amount == nil || amount.Sign() == 0 {
			amount = last
		}
		if amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: swap step %s -> %s", ErrNegativeAmount, tokenIn.Hex(), tokenOut.Hex())
		}

		var in, out *big.Int
		switch kind {
		case GivenIn:
			in = amount
			out = new(big.Int).Div(new(big.Int).Mul(in, p.rateNum), p.rateDen)
			last = out
		case GivenOut:
			out = amount
			// Round the required input up so the pool never underprices.
			in = ceilDiv(new(big.Int).Mul(out, p.rateDen), p.rateNum)
			last = in
		default:
			return nil, fmt.Errorf("vault: unknown swap kind %d", kind)
		}

		deltas[step.TokenInIndex].Add(deltas[step.TokenInIndex], in)
		deltas[step.TokenOutIndex].Sub(deltas[step.TokenOutIndex], out)
	}

	// Settle deltas: sender pays positive, recipient receives negative.
	sendFrom := v.state.wallet
	if funds.FromInternalBalance {
		sendFrom = v.state.internal
	}
	recvTo := v.state.wallet
	if funds.ToInternalBalance {
		recvTo = v.state.internal
	}
	for i, delta := range deltas {
		switch delta.Sign() {
		case 1:
			if sendFrom.get(tokens[i], funds.Sender).Cmp(delta) < 0 {
				return nil, fmt.Errorf("%w: %s of %s", ErrInsufficientBalance, funds.Sender.Hex(), tokens[i].Hex())
			}
			sendFrom.add(tokens[i], funds.Sender, new(big.Int).Neg(delta))
		case -1:
			recvTo.add(tokens[i], funds.Recipient, new(big.Int).Neg(delta))
		}
	}

	return deltas, nil
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

var _ Custodian = (*AccountVault)(nil)
var _ Transactional = (*AccountVault)(nil)
