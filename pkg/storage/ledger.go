// Package storage persists the two settlement ledgers: cumulative filled
// amounts and pre-signature marks, both keyed by order UID.
package storage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/clearport/pkg/order"
)

// invalidationSentinel marks an order as permanently unfillable. It exceeds
// any representable order amount, so the overfill check rejects every
// subsequent trade against the order.
var invalidationSentinel = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// InvalidationSentinel returns the filled-amount value stored for cancelled
// orders (max uint256).
func InvalidationSentinel() *big.Int {
	return new(big.Int).Set(invalidationSentinel)
}

// LedgerStore is a pebble-backed key-value store for both ledgers.
type LedgerStore struct {
	db *pebble.DB
}

func NewLedgerStore(path string) (*LedgerStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	return &LedgerStore{db: db}, nil
}

func (s *LedgerStore) Close() error { return s.db.Close() }

// FilledAmount returns the cumulative filled amount for uid. Missing entries
// read as zero; callers never see an implicit-default distinction.
func (s *LedgerStore) FilledAmount(uid order.UID) (*big.Int, error) {
	val, closer, err := s.db.Get(fillKey(uid))
	if errors.Is(err, pebble.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get filled amount: %w", err)
	}
	defer closer.Close()
	return new(big.Int).SetBytes(val), nil
}

// FilledAmounts is the batched read used by the off-chain mirror.
func (s *LedgerStore) FilledAmounts(uids []order.UID) ([]*big.Int, error) {
	amounts := make([]*big.Int, len(uids))
	for i, uid := range uids {
		amount, err := s.FilledAmount(uid)
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
	}
	return amounts, nil
}

// SetFilledAmount writes one ledger entry synchronously.
func (s *LedgerStore) SetFilledAmount(uid order.UID, amount *big.Int) error {
	if err := s.db.Set(fillKey(uid), amount.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("set filled amount: %w", err)
	}
	return nil
}

// CommitSettlement applies a settlement's staged ledger updates in a single
// atomic batch: fill updates (a nil amount deletes the entry, i.e. storage
// reclamation) and pre-signature deletions.
func (s *LedgerStore) CommitSettlement(fills map[order.UID]*big.Int, preSigFrees []order.UID) error {
	if len(fills) == 0 && len(preSigFrees) == 0 {
		return nil
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for uid, amount := range fills {
		if amount == nil {
			if err := batch.Delete(fillKey(uid), nil); err != nil {
				return fmt.Errorf("stage fill delete: %w", err)
			}
			continue
		}
		if err := batch.Set(fillKey(uid), amount.Bytes(), nil); err != nil {
			return fmt.Errorf("stage fill: %w", err)
		}
	}
	for _, uid := range preSigFrees {
		if err := batch.Delete(preSigKey(uid), nil); err != nil {
			return fmt.Errorf("stage pre-signature delete: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

// FreeFilledAmount deletes expired fill entries.
func (s *LedgerStore) FreeFilledAmount(uids []order.UID) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, uid := range uids {
		if err := batch.Delete(fillKey(uid), nil); err != nil {
			return fmt.Errorf("stage fill delete: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("free filled amounts: %w", err)
	}
	return nil
}

// IsPreSigned reports whether uid carries a pre-signature mark.
func (s *LedgerStore) IsPreSigned(uid order.UID) (bool, error) {
	_, closer, err := s.db.Get(preSigKey(uid))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pre-signature: %w", err)
	}
	closer.Close()
	return true, nil
}

// SetPreSignature marks or unmarks uid as pre-signed.
func (s *LedgerStore) SetPreSignature(uid order.UID, signed bool) error {
	if !signed {
		if err := s.db.Delete(preSigKey(uid), pebble.Sync); err != nil {
			return fmt.Errorf("clear pre-signature: %w", err)
		}
		return nil
	}
	if err := s.db.Set(preSigKey(uid), []byte{0x01}, pebble.Sync); err != nil {
		return fmt.Errorf("set pre-signature: %w", err)
	}
	return nil
}

// FreePreSignatures deletes expired pre-signature entries.
func (s *LedgerStore) FreePreSignatures(uids []order.UID) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, uid := range uids {
		if err := batch.Delete(preSigKey(uid), nil); err != nil {
			return fmt.Errorf("stage pre-signature delete: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("free pre-signatures: %w", err)
	}
	return nil
}
