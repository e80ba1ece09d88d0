package vault

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/model"
)

// InitiateWithdrawal commits the whole current balance as the pending
// withdrawal. Calling it again while pending re-commits the balance at that
// moment; it never adds to the previous amount. Owner only, after unlock.
func (v *Vault) InitiateWithdrawal(ctx context.Context, caller common.Address) (err error) {
	defer v.observe(OpInitiateWithdrawal, caller, &err)

	release, err := v.guard.Enter(OpInitiateWithdrawal)
	if err != nil {
		return err
	}
	defer release()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if err := v.requireUnlocked(v.unlockTime); err != nil {
		return err
	}

	v.mu.Lock()
	if v.balance == 0 {
		v.mu.Unlock()
		return errclass.ErrNoFundsAvailable.WithMessage("vault balance is zero")
	}
	v.pending = v.balance
	amount := v.pending
	v.mu.Unlock()

	v.log.Info("withdrawal initiated", map[string]any{"amount": uint64(amount)})
	v.emit(ctx, model.Event{
		Type:   model.EventWithdrawalInitiated,
		Actor:  caller,
		Amount: amount,
	})
	return nil
}

// ExecuteWithdrawal releases the pending withdrawal to the owner.
//
// Pending and balance are debited before the release so a recipient calling
// back in finds nothing left to withdraw even without the guard. If the
// release fails both are restored and the release error is returned.
func (v *Vault) ExecuteWithdrawal(ctx context.Context, caller common.Address) (err error) {
	defer v.observe(OpExecuteWithdrawal, caller, &err)

	release, err := v.guard.Enter(OpExecuteWithdrawal)
	if err != nil {
		return err
	}
	defer release()

	if err := v.requireOwner(caller); err != nil {
		return err
	}

	v.mu.Lock()
	amount := v.pending
	if amount == 0 {
		v.mu.Unlock()
		return errclass.ErrNoFundsAvailable.WithMessage("no withdrawal is pending")
	}
	v.pending = 0
	v.balance -= amount
	v.mu.Unlock()

	if err := v.settlement.Release(ctx, v.address, v.owner, amount); err != nil {
		v.restore(amount, amount)
		v.log.ErrorErr("withdrawal release failed, state restored", err, map[string]any{"amount": uint64(amount)})
		return err
	}

	v.log.Info("withdrawn", map[string]any{"amount": uint64(amount)})
	v.emit(ctx, model.Event{
		Type:   model.EventWithdrawn,
		Actor:  v.owner,
		Amount: amount,
	})
	return nil
}

// EmergencyWithdraw releases the entire balance to the owner once the grace
// period after unlock has passed, whether or not a withdrawal is pending.
func (v *Vault) EmergencyWithdraw(ctx context.Context, caller common.Address) (err error) {
	defer v.observe(OpEmergencyWithdraw, caller, &err)

	release, err := v.guard.Enter(OpEmergencyWithdraw)
	if err != nil {
		return err
	}
	defer release()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if err := v.requireUnlocked(v.EmergencyUnlockTime()); err != nil {
		return err
	}

	v.mu.Lock()
	amount, pending := v.balance, v.pending
	if amount == 0 {
		v.mu.Unlock()
		return errclass.ErrNoFundsAvailable.WithMessage("vault balance is zero")
	}
	v.balance = 0
	v.pending = 0
	v.mu.Unlock()

	if err := v.settlement.Release(ctx, v.address, v.owner, amount); err != nil {
		v.restore(amount, pending)
		v.log.ErrorErr("emergency release failed, state restored", err, map[string]any{"amount": uint64(amount)})
		return err
	}

	v.log.Warn("emergency withdrawal", map[string]any{"amount": uint64(amount)})
	v.emit(ctx, model.Event{
		Type:   model.EventEmergencyWithdrawal,
		Actor:  v.owner,
		Amount: amount,
	})
	return nil
}

func (v *Vault) requireUnlocked(threshold time.Time) error {
	now := v.now()
	if now.Before(threshold) {
		return errclass.ErrFundsStillLocked.WithMessagef("locked until %s (%s remaining)",
			threshold.Format(time.RFC3339), threshold.Sub(now))
	}
	return nil
}

// restore undoes a debit after a failed release. The guard is still held, so
// nothing else has touched balance or pending since the debit.
func (v *Vault) restore(balance, pending model.Amount) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance += balance
	v.pending = pending
}
