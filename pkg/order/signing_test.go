package order

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/clearport/pkg/crypto"
)

type fakePreSignatures map[UID]bool

func (f fakePreSignatures) IsPreSigned(uid UID) (bool, error) { return f[uid], nil }

type fakeContracts map[common.Address][]byte

func (f fakeContracts) IsValidSignature(contract common.Address, digest common.Hash, signature []byte) (bool, error) {
	expected, ok := f[contract]
	if !ok {
		return false, nil
	}
	return string(expected) == string(signature), nil
}

func newTestVerifier(contracts ContractVerifier, presign PreSignatures) *Verifier {
	if contracts == nil {
		contracts = fakeContracts{}
	}
	if presign == nil {
		presign = fakePreSignatures{}
	}
	return NewVerifier(testDomain(), contracts, presign)
}

func mustSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return signer
}

func TestRecoverEip712(t *testing.T) {
	signer := mustSigner(t)
	v := newTestVerifier(nil, nil)
	o := testOrder()

	digest, err := o.Digest(testDomain())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sig, err := signer.Sign(digest.Bytes())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	gotDigest, owner, err := v.Recover(&o, SchemeEip712, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if gotDigest != digest {
		t.Errorf("digest = %s, want %s", gotDigest.Hex(), digest.Hex())
	}
	if owner != signer.Address() {
		t.Errorf("owner = %s, want %s", owner.Hex(), signer.Address().Hex())
	}
}

func TestRecoverEip712AcceptsLegacyV(t *testing.T) {
	signer := mustSigner(t)
	v := newTestVerifier(nil, nil)
	o := testOrder()

	digest, _ := o.Digest(testDomain())
	sig, err := signer.Sign(digest.Bytes())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[64] += 27 // wallet convention

	_, owner, err := v.Recover(&o, SchemeEip712, sig)
	if err != nil {
		t.Fatalf("recover with v=27/28: %v", err)
	}
	if owner != signer.Address() {
		t.Errorf("owner = %s, want %s", owner.Hex(), signer.Address().Hex())
	}
}

func TestRecoverEthSign(t *testing.T) {
	signer := mustSigner(t)
	v := newTestVerifier(nil, nil)
	o := testOrder()

	digest, _ := o.Digest(testDomain())
	sig, err := signer.Sign(crypto.EthSignDigest(digest).Bytes())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, owner, err := v.Recover(&o, SchemeEthSign, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if owner != signer.Address() {
		t.Errorf("owner = %s, want %s", owner.Hex(), signer.Address().Hex())
	}

	// An eth-sign signature must not verify under the typed-data scheme.
	if _, recovered, err := v.Recover(&o, SchemeEip712, sig); err == nil && recovered == signer.Address() {
		t.Error("eth-sign signature verified as typed-data")
	}
}

func TestRecoverEip1271(t *testing.T) {
	contract := common.HexToAddress("0xC000000000000000000000000000000000000000")
	payload := []byte("contract-specific proof")
	v := newTestVerifier(fakeContracts{contract: payload}, nil)
	o := testOrder()

	sig := append(contract.Bytes(), payload...)
	_, owner, err := v.Recover(&o, SchemeEip1271, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if owner != contract {
		t.Errorf("owner = %s, want %s", owner.Hex(), contract.Hex())
	}

	// Wrong embedded payload is rejected.
	bad := append(contract.Bytes(), []byte("wrong")...)
	if _, _, err := v.Recover(&o, SchemeEip1271, bad); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("got %v, want ErrSignatureVerificationFailed", err)
	}

	// Unregistered contract is rejected.
	unknown := append(common.HexToAddress("0xdd").Bytes(), payload...)
	if _, _, err := v.Recover(&o, SchemeEip1271, unknown); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("got %v, want ErrSignatureVerificationFailed", err)
	}

	// Payload shorter than an address is malformed.
	if _, _, err := v.Recover(&o, SchemeEip1271, []byte{1, 2, 3}); !errors.Is(err, ErrInvalidSignatureLength) {
		t.Errorf("got %v, want ErrInvalidSignatureLength", err)
	}
}

func TestRecoverPreSign(t *testing.T) {
	owner := common.HexToAddress("0xAB00000000000000000000000000000000000000")
	o := testOrder()
	digest, _ := o.Digest(testDomain())
	uid := PackUID(digest, owner, o.ValidTo)

	presign := fakePreSignatures{}
	v := newTestVerifier(nil, presign)

	// Not pre-signed yet.
	if _, _, err := v.Recover(&o, SchemePreSign, owner.Bytes()); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("got %v, want ErrSignatureVerificationFailed", err)
	}

	presign[uid] = true
	_, got, err := v.Recover(&o, SchemePreSign, owner.Bytes())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != owner {
		t.Errorf("owner = %s, want %s", got.Hex(), owner.Hex())
	}

	// Payload must be exactly one address.
	if _, _, err := v.Recover(&o, SchemePreSign, append(owner.Bytes(), 0x00)); !errors.Is(err, ErrInvalidSignatureLength) {
		t.Errorf("got %v, want ErrInvalidSignatureLength", err)
	}
}

func TestRecoverRejectsBadInputs(t *testing.T) {
	v := newTestVerifier(nil, nil)
	o := testOrder()

	if _, _, err := v.Recover(&o, Scheme(9), make([]byte, 65)); !errors.Is(err, ErrInvalidSignatureScheme) {
		t.Errorf("got %v, want ErrInvalidSignatureScheme", err)
	}
	if _, _, err := v.Recover(&o, SchemeEip712, make([]byte, 64)); !errors.Is(err, ErrInvalidSignatureLength) {
		t.Errorf("got %v, want ErrInvalidSignatureLength", err)
	}

	// A zero recovered owner must never authorize an order.
	zero := common.Address{}
	presign := fakePreSignatures{PackUID(mustDigest(t, &o), zero, o.ValidTo): true}
	v = newTestVerifier(nil, presign)
	if _, _, err := v.Recover(&o, SchemePreSign, zero.Bytes()); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("got %v, want ErrSignatureVerificationFailed for zero owner", err)
	}
}

func mustDigest(t *testing.T, o *Order) common.Hash {
	t.Helper()
	digest, err := o.Digest(testDomain())
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	return digest
}
