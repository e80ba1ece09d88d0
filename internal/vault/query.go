package vault

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/pkg/model"
)

// Owner returns the owner fixed at deployment.
func (v *Vault) Owner() common.Address { return v.owner }

// Address returns the vault's custody account.
func (v *Vault) Address() common.Address { return v.address }

// UnlockTime returns the earliest time InitiateWithdrawal may succeed.
func (v *Vault) UnlockTime() time.Time { return v.unlockTime }

// GracePeriod returns the delay between unlock and the emergency path.
func (v *Vault) GracePeriod() time.Duration { return v.gracePeriod }

// EmergencyUnlockTime returns the earliest time EmergencyWithdraw may succeed.
func (v *Vault) EmergencyUnlockTime() time.Time { return v.unlockTime.Add(v.gracePeriod) }

// DepositsEnabled reports whether deposits are accepted.
func (v *Vault) DepositsEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.depositsEnabled
}

// Balance returns the value currently held. Anyone may query it.
func (v *Vault) Balance() model.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

// PendingWithdrawal returns the committed, not yet executed amount. Owner only.
func (v *Vault) PendingWithdrawal(caller common.Address) (model.Amount, error) {
	if err := v.requireOwner(caller); err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending, nil
}

// TimeUntilUnlock returns the time left before unlock, or zero once reached.
func (v *Vault) TimeUntilUnlock() time.Duration {
	if d := v.unlockTime.Sub(v.now()); d > 0 {
		return d
	}
	return 0
}

// WithdrawalState reports the withdrawal protocol phase.
func (v *Vault) WithdrawalState() model.WithdrawalState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending > 0 {
		return model.WithdrawalPending
	}
	return model.WithdrawalIdle
}

// Status returns a consistent snapshot of the vault, including owner-only
// fields; callers exposing it must apply their own access rules.
func (v *Vault) Status() model.VaultStatus {
	v.mu.Lock()
	enabled, balance, pending := v.depositsEnabled, v.balance, v.pending
	v.mu.Unlock()

	state := model.WithdrawalIdle
	if pending > 0 {
		state = model.WithdrawalPending
	}
	return model.VaultStatus{
		Address:             v.address,
		Owner:               v.owner,
		UnlockTime:          v.unlockTime,
		EmergencyUnlockTime: v.EmergencyUnlockTime(),
		DepositsEnabled:     enabled,
		Balance:             balance,
		PendingWithdrawal:   pending,
		WithdrawalState:     state,
		TimeUntilUnlock:     v.TimeUntilUnlock(),
		Guard:               v.guard.State(),
	}
}
