package auth

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// VerifyFunc checks an embedded signature against a digest on behalf of a
// contract account.
type VerifyFunc func(digest common.Hash, signature []byte) bool

// ContractRegistry answers contract-signature verification requests for
// registered contract accounts. Unregistered accounts reject everything.
type ContractRegistry struct {
	mu        sync.RWMutex
	verifiers map[common.Address]VerifyFunc
}

func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{verifiers: make(map[common.Address]VerifyFunc)}
}

// Register installs the verification callback for a contract account.
func (r *ContractRegistry) Register(contract common.Address, fn VerifyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[contract] = fn
}

// IsValidSignature implements the order package's ContractVerifier.
func (r *ContractRegistry) IsValidSignature(contract common.Address, digest common.Hash, signature []byte) (bool, error) {
	r.mu.RLock()
	fn, ok := r.verifiers[contract]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return fn(digest, signature), nil
}
