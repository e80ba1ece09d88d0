package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/model"
)

// Deposit pulls amount from caller into custody and credits the balance.
// Anyone may deposit.
func (v *Vault) Deposit(ctx context.Context, caller common.Address, amount model.Amount) (err error) {
	defer v.observe(OpDeposit, caller, &err)

	release, err := v.guard.Enter(OpDeposit)
	if err != nil {
		return err
	}
	defer release()

	if err := v.admit(amount); err != nil {
		return err
	}
	if err := v.settlement.Collect(ctx, caller, v.address, amount); err != nil {
		return err
	}
	v.credit(ctx, caller, amount)
	return nil
}

// custodyReceiver is what New registers with the settlement for the vault's
// address. It is the only way into receive, so the balance is credited only
// for value the settlement is actually moving into custody.
type custodyReceiver struct{ v *Vault }

func (r custodyReceiver) Receive(ctx context.Context, from common.Address, amount model.Amount) error {
	return r.v.receive(ctx, from, amount)
}

// receive handles a bare value transfer to the vault's address. The value is
// already on its way into custody; receive applies the same admission rules
// as Deposit and rejecting it rejects the transfer.
func (v *Vault) receive(ctx context.Context, from common.Address, amount model.Amount) (err error) {
	defer v.observe(OpReceive, from, &err)

	release, err := v.guard.Enter(OpReceive)
	if err != nil {
		return err
	}
	defer release()

	if err := v.admit(amount); err != nil {
		return err
	}
	v.credit(ctx, from, amount)
	return nil
}

func (v *Vault) admit(amount model.Amount) error {
	if amount == 0 {
		return errclass.ErrInvalidDepositAmount.WithMessage("deposit amount must be greater than zero")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.depositsEnabled {
		return errclass.ErrDepositsDisabled.WithMessage("deposits are disabled by the owner")
	}
	if _, ok := v.balance.Add(amount); !ok {
		return errclass.ErrBalanceOverflow.WithMessagef("balance %d cannot accept %d more", v.balance, amount)
	}
	return nil
}

func (v *Vault) credit(ctx context.Context, depositor common.Address, amount model.Amount) {
	v.mu.Lock()
	v.balance += amount
	v.mu.Unlock()

	v.emit(ctx, model.Event{
		Type:   model.EventDeposited,
		Actor:  depositor,
		Amount: amount,
	})
}

// ToggleDeposits flips the deposit switch. Owner only.
func (v *Vault) ToggleDeposits(ctx context.Context, caller common.Address) (err error) {
	defer v.observe(OpToggleDeposits, caller, &err)

	release, err := v.guard.Enter(OpToggleDeposits)
	if err != nil {
		return err
	}
	defer release()

	if err := v.requireOwner(caller); err != nil {
		return err
	}

	v.mu.Lock()
	v.depositsEnabled = !v.depositsEnabled
	enabled := v.depositsEnabled
	v.mu.Unlock()

	v.log.Info("deposits toggled", map[string]any{"enabled": enabled})
	v.emit(ctx, model.Event{
		Type:    model.EventDepositsToggled,
		Actor:   caller,
		Enabled: &enabled,
	})
	return nil
}
