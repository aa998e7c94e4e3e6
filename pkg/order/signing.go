package order

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/pkg/crypto"
)

// Scheme selects how an order's authorization is verified.
type Scheme uint8

const (
	// SchemeEip712 is a typed-data ECDSA signature over the order digest.
	SchemeEip712 Scheme = iota
	// SchemeEthSign is an ECDSA signature over the personal-message wrapping
	// of the same digest, for wallets without typed-data support.
	SchemeEthSign
	// SchemeEip1271 delegates verification to a contract account embedded in
	// the signature payload.
	SchemeEip1271
	// SchemePreSign carries no cryptographic signature; the owner must have
	// marked the order as pre-signed beforehand.
	SchemePreSign
)

func (s Scheme) String() string {
	switch s {
	case SchemeEip712:
		return "eip712"
	case SchemeEthSign:
		return "ethsign"
	case SchemeEip1271:
		return "eip1271"
	case SchemePreSign:
		return "presign"
	default:
		return "unknown"
	}
}

// ContractVerifier answers EIP-1271 style verification requests for contract
// accounts: whether the embedded signature is valid for the digest.
type ContractVerifier interface {
	IsValidSignature(verifier common.Address, digest common.Hash, signature []byte) (bool, error)
}

// PreSignatures is the read side of the pre-signature ledger.
type PreSignatures interface {
	IsPreSigned(uid UID) (bool, error)
}

// ecdsaSignatureLength is R (32) || S (32) || V (1).
const ecdsaSignatureLength = 65

// Verifier recovers the account that authorized an order under one of the
// four supported schemes.
type Verifier struct {
	domain    Domain
	contracts ContractVerifier
	presign   PreSignatures
}

func NewVerifier(domain Domain, contracts ContractVerifier, presign PreSignatures) *Verifier {
	return &Verifier{domain: domain, contracts: contracts, presign: presign}
}

// Domain returns the typed-data domain orders are verified against.
func (v *Verifier) Domain() Domain { return v.domain }

// Recover computes the order digest and the owner that authorized it. A zero
// recovered owner, a failed contract check, and a missing pre-signature all
// surface as ErrSignatureVerificationFailed.
func (v *Verifier) Recover(o *Order, scheme Scheme, signature []byte) (common.Hash, common.Address, error) {
	digest, err := o.Digest(v.domain)
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}

	var owner common.Address
	switch scheme {
	case SchemeEip712:
		owner, err = v.recoverECDSA(digest, signature)
	case SchemeEthSign:
		owner, err = v.recoverECDSA(crypto.EthSignDigest(digest), signature)
	case SchemeEip1271:
		owner, err = v.verifyContract(digest, signature)
	case SchemePreSign:
		owner, err = v.verifyPreSign(digest, o.ValidTo, signature)
	default:
		return common.Hash{}, common.Address{}, fmt.Errorf("%w: %d", ErrInvalidSignatureScheme, scheme)
	}
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	if owner == (common.Address{}) {
		return common.Hash{}, common.Address{}, fmt.Errorf("%w: recovered zero owner", ErrSignatureVerificationFailed)
	}
	return digest, owner, nil
}

func (v *Verifier) recoverECDSA(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != ecdsaSignatureLength {
		return common.Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidSignatureLength, len(signature))
	}
	owner, err := crypto.RecoverAddress(digest, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrSignatureVerificationFailed, err)
	}
	return owner, nil
}

// verifyContract expects the signature payload to be the verifying contract
// address followed by the signature bytes handed to that contract.
func (v *Verifier) verifyContract(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) < common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidSignatureLength, len(signature))
	}
	owner := common.BytesToAddress(signature[:common.AddressLength])
	ok, err := v.contracts.IsValidSignature(owner, digest, signature[common.AddressLength:])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrSignatureVerificationFailed, err)
	}
	if !ok {
		return common.Address{}, fmt.Errorf("%w: contract rejected signature", ErrSignatureVerificationFailed)
	}
	return owner, nil
}

// verifyPreSign expects the signature payload to be exactly the owner
// address; authorization comes from the pre-signature ledger.
func (v *Verifier) verifyPreSign(digest common.Hash, validTo uint32, signature []byte) (common.Address, error) {
	if len(signature) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidSignatureLength, len(signature))
	}
	owner := common.BytesToAddress(signature)
	signed, err := v.presign.IsPreSigned(PackUID(digest, owner, validTo))
	if err != nil {
		return common.Address{}, fmt.Errorf("read pre-signature: %w", err)
	}
	if !signed {
		return common.Address{}, fmt.Errorf("%w: order not pre-signed", ErrSignatureVerificationFailed)
	}
	return owner, nil
}
