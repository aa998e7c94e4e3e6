// Package order defines the signed trade-intent data model: the order
// structure users sign off-chain, its typed-data digest, and the 56-byte
// unique identifier derived from it.
package order

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	ErrMalformedUID                = errors.New("order: malformed uid")
	ErrInvalidSignatureLength      = errors.New("order: invalid signature length")
	ErrInvalidSignatureScheme      = errors.New("order: invalid signature scheme")
	ErrSignatureVerificationFailed = errors.New("order: signature verification failed")
)

// Kind is the direction of an order: the executed amount is denominated in
// the sell token for Sell orders and in the buy token for Buy orders.
type Kind uint8

const (
	Sell Kind = iota
	Buy
)

func (k Kind) String() string {
	switch k {
	case Sell:
		return "sell"
	case Buy:
		return "buy"
	default:
		return "unknown"
	}
}

// BalanceSource selects where the custodian draws (or deposits) funds:
// a plain token balance, an external allowance-managed balance, or a
// custodian-internal balance.
type BalanceSource uint8

const (
	BalanceERC20 BalanceSource = iota
	BalanceExternal
	BalanceInternal
)

func (b BalanceSource) String() string {
	switch b {
	case BalanceERC20:
		return "erc20"
	case BalanceExternal:
		return "external"
	case BalanceInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Domain is the typed-data signing domain. Orders signed for one domain
// never verify under another, which pins signatures to a single deployment.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Order is a user's signed intent to trade SellAmount of SellToken for at
// least BuyAmount of BuyToken before ValidTo. It is immutable once signed;
// only its digest and UID are ever persisted.
type Order struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	ValidTo           uint32
	AppData           common.Hash
	FeeAmount         *big.Int
	Kind              Kind
	PartiallyFillable bool
	SellTokenBalance  BalanceSource
	BuyTokenBalance   BalanceSource
}

// Digest computes the EIP-712 digest of the order under the given domain.
// Two orders with identical fields but different domains never collide.
func (o *Order) Digest(domain Domain) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "sellToken", Type: "address"},
				{Name: "buyToken", Type: "address"},
				{Name: "receiver", Type: "address"},
				{Name: "sellAmount", Type: "uint256"},
				{Name: "buyAmount", Type: "uint256"},
				{Name: "validTo", Type: "uint32"},
				{Name: "appData", Type: "bytes32"},
				{Name: "feeAmount", Type: "uint256"},
				{Name: "kind", Type: "string"},
				{Name: "partiallyFillable", Type: "bool"},
				{Name: "sellTokenBalance", Type: "string"},
				{Name: "buyTokenBalance", Type: "string"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         o.SellToken.Hex(),
			"buyToken":          o.BuyToken.Hex(),
			"receiver":          o.Receiver.Hex(),
			"sellAmount":        o.SellAmount.String(),
			"buyAmount":         o.BuyAmount.String(),
			"validTo":           fmt.Sprintf("%d", o.ValidTo),
			"appData":           o.AppData.Hex(),
			"feeAmount":         o.FeeAmount.String(),
			"kind":              o.Kind.String(),
			"partiallyFillable": o.PartiallyFillable,
			"sellTokenBalance":  o.SellTokenBalance.String(),
			"buyTokenBalance":   o.BuyTokenBalance.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash domain: %w", err)
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash order: %w", err)
	}

	// digest = keccak256("\x19\x01" || domainSeparator || structHash)
	return crypto.Keccak256Hash([]byte("\x19\x01"), domainSeparator, structHash), nil
}
