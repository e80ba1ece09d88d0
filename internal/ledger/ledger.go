// Package ledger is an in-memory settlement layer for the custodied asset.
//
// It tracks the external holdings of every account, including the vault's own
// custody account, and moves value between them. Accounts with a registered
// Receiver behave like code-bearing accounts: the receiver runs synchronously
// on every incoming transfer and may reject it or call back into the vault.
package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/model"
)

// Receiver is notified of an incoming transfer before it settles. Returning
// an error rejects the transfer.
type Receiver interface {
	Receive(ctx context.Context, from common.Address, amount model.Amount) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, from common.Address, amount model.Amount) error

// Receive calls f.
func (f ReceiverFunc) Receive(ctx context.Context, from common.Address, amount model.Amount) error {
	return f(ctx, from, amount)
}

// Reject returns a Receiver that refuses every transfer with reason.
func Reject(reason string) Receiver {
	return ReceiverFunc(func(context.Context, common.Address, model.Amount) error {
		return errclass.ErrTransferFailed.WithMessage(reason)
	})
}

// Ledger holds account balances. It is safe for concurrent use; no lock is
// held while a Receiver runs.
type Ledger struct {
	mu        sync.Mutex
	balances  map[common.Address]model.Amount
	receivers map[common.Address]Receiver
	nonces    map[common.Address]uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances:  make(map[common.Address]model.Amount),
		receivers: make(map[common.Address]Receiver),
		nonces:    make(map[common.Address]uint64),
	}
}

// Fund mints amount into addr's holdings.
func (l *Ledger) Fund(addr common.Address, amount model.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum, ok := l.balances[addr].Add(amount)
	if !ok {
		return errclass.ErrBalanceOverflow.WithMessagef("funding %s", addr.Hex())
	}
	l.balances[addr] = sum
	return nil
}

// BalanceOf returns addr's holdings.
func (l *Ledger) BalanceOf(addr common.Address) model.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// Balances returns a copy of every non-zero balance.
func (l *Ledger) Balances() map[common.Address]model.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[common.Address]model.Amount, len(l.balances))
	for a, b := range l.balances {
		if b > 0 {
			out[a] = b
		}
	}
	return out
}

// Register attaches r to addr, replacing any previous receiver.
func (l *Ledger) Register(addr common.Address, r Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receivers[addr] = r
}

// Unregister removes addr's receiver.
func (l *Ledger) Unregister(addr common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.receivers, addr)
}

// NextContractAddress derives the address of the next contract deployed by
// deployer and advances deployer's nonce.
func (l *Ledger) NextContractAddress(deployer common.Address) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	nonce := l.nonces[deployer]
	l.nonces[deployer] = nonce + 1
	return crypto.CreateAddress(deployer, nonce)
}

// Transfer moves amount from one account to another. If to has a Receiver it
// runs first; a rejection fails the transfer with ErrTransferFailed and no
// balance changes.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount model.Amount) error {
	if err := l.checkMove(from, to, amount); err != nil {
		return err
	}

	l.mu.Lock()
	r := l.receivers[to]
	l.mu.Unlock()

	if r != nil {
		if err := r.Receive(ctx, from, amount); err != nil {
			if errclass.CodeOf(err) == errclass.ErrTransferFailed.Code {
				return err
			}
			return errclass.ErrTransferFailed.WithMessagef("%s rejected %d from %s: %v", to.Hex(), amount, from.Hex(), err)
		}
	}
	return l.move(from, to, amount)
}

// Collect moves amount into custody without notifying custody's receiver.
// The vault uses it for explicit deposits, where it does its own accounting.
func (l *Ledger) Collect(_ context.Context, from, custody common.Address, amount model.Amount) error {
	return l.move(from, custody, amount)
}

// Release moves amount out of custody to a recipient, notifying it.
func (l *Ledger) Release(ctx context.Context, custody, to common.Address, amount model.Amount) error {
	return l.Transfer(ctx, custody, to, amount)
}

func (l *Ledger) checkMove(from, to common.Address, amount model.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkMoveLocked(from, to, amount)
}

func (l *Ledger) checkMoveLocked(from, to common.Address, amount model.Amount) error {
	if have := l.balances[from]; have < amount {
		return errclass.ErrInsufficientFunds.WithMessagef("%s holds %d, needs %d", from.Hex(), have, amount)
	}
	if from == to {
		return nil
	}
	if _, ok := l.balances[to].Add(amount); !ok {
		return errclass.ErrBalanceOverflow.WithMessagef("crediting %s", to.Hex())
	}
	return nil
}

func (l *Ledger) move(from, to common.Address, amount model.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkMoveLocked(from, to, amount); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
