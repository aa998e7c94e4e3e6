package order

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UIDLength is digest (32) + owner (20) + validTo (4).
const UIDLength = 56

// UID is the canonical order identifier: digest ‖ owner ‖ validTo. It binds
// the full order contents to the account that authorized them and to the
// order's expiry, so ledger entries keyed by UID can be reclaimed once the
// deadline has passed without consulting the order itself.
type UID [UIDLength]byte

// PackUID builds a UID from its three components.
func PackUID(digest common.Hash, owner common.Address, validTo uint32) UID {
	var uid UID
	copy(uid[:32], digest[:])
	copy(uid[32:52], owner[:])
	binary.BigEndian.PutUint32(uid[52:], validTo)
	return uid
}

// ParseUID validates and copies a raw byte buffer into a UID. Any buffer
// that is not exactly UIDLength bytes is rejected.
func ParseUID(b []byte) (UID, error) {
	if len(b) != UIDLength {
		return UID{}, fmt.Errorf("%w: %d bytes", ErrMalformedUID, len(b))
	}
	var uid UID
	copy(uid[:], b)
	return uid, nil
}

// ParseUIDHex parses a 0x-prefixed hex string into a UID.
func ParseUIDHex(s string) (UID, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return UID{}, fmt.Errorf("%w: %v", ErrMalformedUID, err)
	}
	return ParseUID(b)
}

func (u UID) Digest() common.Hash {
	return common.BytesToHash(u[:32])
}

func (u UID) Owner() common.Address {
	return common.BytesToAddress(u[32:52])
}

func (u UID) ValidTo() uint32 {
	return binary.BigEndian.Uint32(u[52:])
}

func (u UID) Bytes() []byte { return u[:] }

func (u UID) String() string { return hexutil.Encode(u[:]) }
