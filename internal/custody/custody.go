// Package custody defines the port for moving settlement-currency value
// between external owners and the ledger's own custody account. The real
// mover is a host concern; the in-process Vault implementation backs tests
// and single-node deployments and tracks the total value held in custody.
package custody

import (
	"context"
	"fmt"
	"sync"

	"nestegg/internal/core"
)

// Transfer moves value into or out of custody. Both directions are atomic
// and fail closed: on error no value has moved.
type Transfer interface {
	// In pulls amount from the principal's external holdings into custody.
	In(ctx context.Context, from core.Principal, amount int64) error
	// Out pushes amount from custody back to the principal.
	Out(ctx context.Context, to core.Principal, amount int64) error
}

// Vault is an in-process custody account. External holdings are modeled as
// unbounded (the host settles them); the vault only refuses to release more
// than it holds, which keeps the conservation invariant checkable.
type Vault struct {
	mu   sync.Mutex
	held int64
}

func NewVault() *Vault {
	return &Vault{}
}

func (v *Vault) In(_ context.Context, from core.Principal, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", core.ErrInvalidInput)
	}
	if err := from.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.held += amount
	return nil
}

func (v *Vault) Out(_ context.Context, to core.Principal, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", core.ErrInvalidInput)
	}
	if err := to.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.held < amount {
		return fmt.Errorf("%w: custody holds %d, cannot release %d", core.ErrInsufficientFunds, v.held, amount)
	}
	v.held -= amount
	return nil
}

// Restore sets the held total directly. Used at startup to line custody up
// with the liabilities of a reloaded ledger snapshot.
func (v *Vault) Restore(held int64) error {
	if held < 0 {
		return fmt.Errorf("%w: custody total cannot be negative", core.ErrInvalidInput)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.held = held
	return nil
}

// Held reports the total value currently in custody.
func (v *Vault) Held() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.held
}
