package model

import (
	"math"
	"time"
)

// Amount is a quantity of the custodied asset in its smallest unit.
type Amount uint64

// MaxAmount is the largest representable amount.
const MaxAmount Amount = math.MaxUint64

// Add returns a+b and false if the sum overflows.
func (a Amount) Add(b Amount) (Amount, bool) {
	if b > MaxAmount-a {
		return 0, false
	}
	return a + b, true
}

// WithdrawalState is the phase of the two-step withdrawal protocol.
type WithdrawalState string

const (
	WithdrawalIdle    WithdrawalState = "idle"
	WithdrawalPending WithdrawalState = "pending"
)

// LockState represents the current state of the reentrancy guard.
type LockState string

const (
	LockStateHeld LockState = "held"
	LockStateFree LockState = "free"
)

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// Year is the lock duration used by default deployments.
const Year = 365 * 24 * time.Hour
