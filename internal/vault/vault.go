// Package vault implements the time-locked custody vault: a single owner, a
// fixed unlock time, a two-phase withdrawal protocol and an emergency path
// that opens one grace period after unlock.
//
// Every state-mutating operation runs under a call-scoped reentrancy guard.
// State is updated before value leaves custody, and a failed release restores
// it, so a call either completes fully or leaves nothing behind.
package vault

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/jvs-project/timelock/internal/guard"
	"github.com/jvs-project/timelock/internal/ledger"
	"github.com/jvs-project/timelock/pkg/clock"
	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
)

// DefaultGracePeriod is the delay after unlock before EmergencyWithdraw opens.
const DefaultGracePeriod = model.Year

// Operation names, used for guard holders, logs and metrics.
const (
	OpDeposit            = "deposit"
	OpReceive            = "receive"
	OpToggleDeposits     = "toggle_deposits"
	OpInitiateWithdrawal = "initiate_withdrawal"
	OpExecuteWithdrawal  = "execute_withdrawal"
	OpEmergencyWithdraw  = "emergency_withdraw"
	OpPendingWithdrawal  = "pending_withdrawal"
)

// ErrNoSettlement is returned by New when Options.Settlement is nil.
var ErrNoSettlement = errors.New("vault: a settlement is required")

// Settlement moves value in and out of the vault's custody account.
// Release may synchronously run recipient code, including calls back into
// the vault.
type Settlement interface {
	Collect(ctx context.Context, from, custody common.Address, amount model.Amount) error
	Release(ctx context.Context, custody, to common.Address, amount model.Amount) error
}

// Registrar is implemented by settlements that run recipient code on
// incoming transfers. New registers the vault's custody address with it so
// bare transfers are credited as deposits.
type Registrar interface {
	Register(addr common.Address, r ledger.Receiver)
}

// Emitter receives every event of a successful operation.
type Emitter interface {
	Emit(ctx context.Context, ev model.Event)
}

// Observer is told the outcome of every mutating operation, accepted or not.
type Observer interface {
	ObserveOperation(op string, err error)
}

// Options configures a new vault.
type Options struct {
	Address     common.Address // custody account; derived from the owner when zero
	GracePeriod time.Duration  // defaults to DefaultGracePeriod
	Clock       clock.Clock    // defaults to the system clock
	Settlement  Settlement
	Emitter     Emitter
	Observer    Observer
	Logger      *logging.Logger
}

// Vault is a single-owner, single-asset time-locked vault.
type Vault struct {
	owner       common.Address
	address     common.Address
	unlockTime  time.Time
	gracePeriod time.Duration

	clock      clock.Clock
	settlement Settlement
	emitter    Emitter
	observer   Observer
	log        *logging.Logger
	guard      guard.Guard

	// mu protects the fields below. It is never held across a settlement
	// call or an emission.
	mu              sync.Mutex
	depositsEnabled bool
	balance         model.Amount
	pending         model.Amount
}

// New deploys a vault owned by owner that unlocks at unlockTime. The unlock
// time is truncated to whole seconds and must be strictly after the clock's
// current second.
func New(owner common.Address, unlockTime time.Time, opts Options) (*Vault, error) {
	if owner == (common.Address{}) {
		return nil, errclass.ErrInvalidAddress.WithMessage("owner must not be the zero address")
	}
	if opts.Settlement == nil {
		return nil, ErrNoSettlement
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.GracePeriod < 0 {
		return nil, errclass.ErrInvalidUnlockTime.WithMessagef("grace period %s is negative", opts.GracePeriod)
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Address == (common.Address{}) {
		opts.Address = crypto.CreateAddress(owner, 0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}

	now := truncate(opts.Clock.Now())
	unlock := truncate(unlockTime)
	if !unlock.After(now) {
		return nil, errclass.ErrInvalidUnlockTime.WithMessagef("unlock time %s is not after %s",
			unlock.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	v := &Vault{
		owner:           owner,
		address:         opts.Address,
		unlockTime:      unlock,
		gracePeriod:     opts.GracePeriod,
		clock:           opts.Clock,
		settlement:      opts.Settlement,
		emitter:         opts.Emitter,
		observer:        opts.Observer,
		log:             opts.Logger.WithFields(map[string]any{"vault": opts.Address.Hex()}),
		depositsEnabled: true,
	}

	if reg, ok := opts.Settlement.(Registrar); ok {
		reg.Register(v.address, custodyReceiver{v: v})
	}

	v.log.Info("vault deployed", map[string]any{
		"owner":       owner.Hex(),
		"unlock_time": unlock.Format(time.RFC3339),
	})
	v.emit(context.Background(), model.Event{
		Type:       model.EventDeployed,
		Actor:      owner,
		UnlockTime: &unlock,
	})
	return v, nil
}

func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (v *Vault) now() time.Time {
	return truncate(v.clock.Now())
}

func (v *Vault) requireOwner(caller common.Address) error {
	if caller != v.owner {
		return errclass.ErrUnauthorizedCaller.WithMessagef("%s is not the owner", caller.Hex())
	}
	return nil
}

func (v *Vault) emit(ctx context.Context, ev model.Event) {
	if v.emitter == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Vault = v.address
	if ev.Timestamp.IsZero() {
		ev.Timestamp = v.now()
	}
	v.emitter.Emit(ctx, ev)
}

// observe reports an operation outcome. Call it deferred with a pointer to
// the named error result.
func (v *Vault) observe(op string, caller common.Address, errp *error) {
	err := *errp
	if v.observer != nil {
		v.observer.ObserveOperation(op, err)
	}
	if err != nil {
		v.log.Debug("operation rejected", map[string]any{
			"op":     op,
			"caller": caller.Hex(),
			"code":   errclass.CodeOf(err),
			"error":  err.Error(),
		})
	}
}
