package storage

import "github.com/uhyunpark/clearport/pkg/order"

// Ledger key schema:
//
//   fill:<56-byte uid>   → cumulative filled amount (big-endian big.Int bytes)
//   presig:<56-byte uid> → 0x01 while the order is pre-signed
//
// Entries are deleted, not zeroed, when reclaimed.
const (
	prefixFill   = "fill:"
	prefixPreSig = "presig:"
)

func fillKey(uid order.UID) []byte {
	return append([]byte(prefixFill), uid[:]...)
}

func preSigKey(uid order.UID) []byte {
	return append([]byte(prefixPreSig), uid[:]...)
}
