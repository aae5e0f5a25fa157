package courier

import (
	"fmt"
	"sync"
)

// FeeVault accumulates optional per-message fees. Withdrawal empties
// the vault in one indivisible step: the balance read and the zeroing
// happen under the same lock, so two concurrent withdrawals can never
// both see the same balance.
type FeeVault struct {
	mu      sync.Mutex
	balance uint64
}

// NewFeeVault creates an empty vault.
func NewFeeVault() *FeeVault {
	return &FeeVault{}
}

// Credit adds amount to the vault. Zero is allowed and is a no-op.
func (v *FeeVault) Credit(amount uint64) {
	v.mu.Lock()
	v.balance += amount
	v.mu.Unlock()
}

// Balance returns the current accumulated amount.
func (v *FeeVault) Balance() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

// Withdraw atomically takes the full balance and zeroes the vault.
// Fails when there is nothing to withdraw. The owner check lives in
// the core; the vault only guarantees the withdraw-and-zero is one
// step.
func (v *FeeVault) Withdraw() (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.balance == 0 {
		return 0, fmt.Errorf("nothing to withdraw: %w", ErrEmptyVault)
	}
	amount := v.balance
	v.balance = 0
	return amount, nil
}
