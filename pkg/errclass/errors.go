// Package errclass defines the stable, machine-readable failure classes of the vault.
package errclass

import (
	"errors"
	"fmt"
)

// VaultError is a stable, machine-readable error class.
type VaultError struct {
	Code    string
	Message string
}

func (e *VaultError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code only, so a class with a message still matches its base class.
func (e *VaultError) Is(target error) bool {
	t, ok := target.(*VaultError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new VaultError with the same Code but a specific message.
func (e *VaultError) WithMessage(msg string) *VaultError {
	return &VaultError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new VaultError with a formatted message.
func (e *VaultError) WithMessagef(format string, args ...any) *VaultError {
	return &VaultError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Vault failure classes.
var (
	ErrInvalidUnlockTime    = &VaultError{Code: "E_INVALID_UNLOCK_TIME"}
	ErrInvalidDepositAmount = &VaultError{Code: "E_INVALID_DEPOSIT_AMOUNT"}
	ErrDepositsDisabled     = &VaultError{Code: "E_DEPOSITS_DISABLED"}
	ErrUnauthorizedCaller   = &VaultError{Code: "E_UNAUTHORIZED_CALLER"}
	ErrFundsStillLocked     = &VaultError{Code: "E_FUNDS_STILL_LOCKED"}
	ErrNoFundsAvailable     = &VaultError{Code: "E_NO_FUNDS_AVAILABLE"}
	ErrReentrantCall        = &VaultError{Code: "E_REENTRANT_CALL"}
	ErrTransferFailed       = &VaultError{Code: "E_TRANSFER_FAILED"}
	ErrInsufficientFunds    = &VaultError{Code: "E_INSUFFICIENT_FUNDS"}
	ErrBalanceOverflow      = &VaultError{Code: "E_BALANCE_OVERFLOW"}
	ErrInvalidAddress       = &VaultError{Code: "E_INVALID_ADDRESS"}
)

// Tooling failure classes.
var (
	ErrJournalChainBroken = &VaultError{Code: "E_JOURNAL_CHAIN_BROKEN"}
	ErrScenarioMismatch   = &VaultError{Code: "E_SCENARIO_MISMATCH"}
)

var all = []*VaultError{
	ErrInvalidUnlockTime,
	ErrInvalidDepositAmount,
	ErrDepositsDisabled,
	ErrUnauthorizedCaller,
	ErrFundsStillLocked,
	ErrNoFundsAvailable,
	ErrReentrantCall,
	ErrTransferFailed,
	ErrInsufficientFunds,
	ErrBalanceOverflow,
	ErrInvalidAddress,
	ErrJournalChainBroken,
	ErrScenarioMismatch,
}

// All returns every error class in declaration order.
func All() []*VaultError {
	out := make([]*VaultError, len(all))
	copy(out, all)
	return out
}

// Lookup returns the base class for code, or nil if the code is unknown.
func Lookup(code string) *VaultError {
	for _, e := range all {
		if e.Code == code {
			return e
		}
	}
	return nil
}

// CodeOf extracts the class code from err, or "" if err carries no class.
func CodeOf(err error) string {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
