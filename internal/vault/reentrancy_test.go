package vault_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/timelock/internal/ledger"
	"github.com/jvs-project/timelock/internal/vault"
	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/model"
)

// attacker is an owner account whose receive hook calls back into the vault.
type attacker struct {
	v        *vault.Vault
	reenter  func(ctx context.Context, v *vault.Vault) error
	swallow  bool
	calls    int
	innerErr []error
}

func (a *attacker) Receive(ctx context.Context, _ common.Address, _ model.Amount) error {
	a.calls++
	err := a.reenter(ctx, a.v)
	a.innerErr = append(a.innerErr, err)
	if a.swallow {
		return nil
	}
	return err
}

func armedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.v.Deposit(f.ctx, user, 100))
	f.clk.IncreaseTo(f.v.EmergencyUnlockTime())
	require.NoError(t, f.v.InitiateWithdrawal(f.ctx, owner))
	return f
}

func TestReentrancy_PropagatedRevertsWholeWithdrawal(t *testing.T) {
	f := armedFixture(t)
	a := &attacker{v: f.v, reenter: func(ctx context.Context, v *vault.Vault) error {
		return v.ExecuteWithdrawal(ctx, owner)
	}}
	f.l.Register(owner, a)

	err := f.v.ExecuteWithdrawal(f.ctx, owner)
	require.ErrorIs(t, err, errclass.ErrTransferFailed)

	require.Len(t, a.innerErr, 1)
	assert.ErrorIs(t, a.innerErr[0], errclass.ErrReentrantCall)

	assert.Equal(t, model.Amount(100), f.v.Balance())
	assert.Equal(t, funding, f.l.BalanceOf(owner))
	assert.Equal(t, model.WithdrawalPending, f.v.WithdrawalState())
	assert.Equal(t, model.LockStateFree, f.v.Status().Guard)
	f.assertCustody(t)
}

func TestReentrancy_EveryOperationIsRefused(t *testing.T) {
	reentries := map[string]func(ctx context.Context, v *vault.Vault) error{
		vault.OpDeposit: func(ctx context.Context, v *vault.Vault) error {
			return v.Deposit(ctx, owner, 1)
		},
		vault.OpToggleDeposits: func(ctx context.Context, v *vault.Vault) error {
			return v.ToggleDeposits(ctx, owner)
		},
		vault.OpInitiateWithdrawal: func(ctx context.Context, v *vault.Vault) error {
			return v.InitiateWithdrawal(ctx, owner)
		},
		vault.OpExecuteWithdrawal: func(ctx context.Context, v *vault.Vault) error {
			return v.ExecuteWithdrawal(ctx, owner)
		},
		vault.OpEmergencyWithdraw: func(ctx context.Context, v *vault.Vault) error {
			return v.EmergencyWithdraw(ctx, owner)
		},
	}

	for name, reenter := range reentries {
		t.Run(name, func(t *testing.T) {
			f := armedFixture(t)
			a := &attacker{v: f.v, reenter: reenter, swallow: true}
			f.l.Register(owner, a)

			require.NoError(t, f.v.ExecuteWithdrawal(f.ctx, owner))

			require.Equal(t, 1, a.calls)
			assert.ErrorIs(t, a.innerErr[0], errclass.ErrReentrantCall)
			assert.Contains(t, a.innerErr[0].Error(), vault.OpExecuteWithdrawal)

			assert.Zero(t, f.v.Balance())
			assert.Equal(t, funding+100, f.l.BalanceOf(owner))
			assert.True(t, f.v.DepositsEnabled())
			assert.Len(t, f.rec.ByType(model.EventWithdrawn), 1)
			f.assertCustody(t)
		})
	}
}

func TestReentrancy_DuringEmergencyWithdraw(t *testing.T) {
	f := armedFixture(t)
	a := &attacker{v: f.v, swallow: true, reenter: func(ctx context.Context, v *vault.Vault) error {
		return v.EmergencyWithdraw(ctx, owner)
	}}
	f.l.Register(owner, a)

	require.NoError(t, f.v.EmergencyWithdraw(f.ctx, owner))
	assert.ErrorIs(t, a.innerErr[0], errclass.ErrReentrantCall)
	assert.Equal(t, funding+100, f.l.BalanceOf(owner))
	assert.Zero(t, f.v.Balance())
	f.assertCustody(t)
}

func TestReentrancy_BareTransferBackIsRefused(t *testing.T) {
	f := armedFixture(t)
	var inner error
	f.l.Register(owner, ledger.ReceiverFunc(func(ctx context.Context, _ common.Address, _ model.Amount) error {
		inner = f.l.Transfer(ctx, owner, f.v.Address(), 1)
		return nil
	}))

	require.NoError(t, f.v.ExecuteWithdrawal(f.ctx, owner))
	require.ErrorIs(t, inner, errclass.ErrTransferFailed)
	assert.Contains(t, inner.Error(), errclass.ErrReentrantCall.Code)
	assert.Zero(t, f.v.Balance())
	f.assertCustody(t)
}

func TestReentrancy_GuardReleasedAfterFailure(t *testing.T) {
	f := armedFixture(t)
	f.l.Register(owner, ledger.Reject("no"))
	require.Error(t, f.v.ExecuteWithdrawal(f.ctx, owner))

	f.l.Unregister(owner)
	require.NoError(t, f.v.ToggleDeposits(f.ctx, owner))
	require.NoError(t, f.v.ExecuteWithdrawal(f.ctx, owner))
}
