// Package timelock provides a high-level library API for deploying and
// operating a time-locked custody vault.
//
// Deploy wires a vault to an in-memory settlement ledger, an event bus and
// the optional journal, webhook and metrics sinks, the same way the timelock
// binary does.
//
// # Concurrency Safety
//
// The vault refuses any mutating call made while another one is in progress
// with ErrReentrantCall. That is how callbacks from a receiving account are
// stopped, so callers must serialize mutating operations themselves:
//
//   - Views (Status, Balance, BalanceOf, Events) are safe from any goroutine.
//
//   - Deposit, Transfer, ToggleDeposits and the withdrawal calls must not run
//     concurrently on the same Client. The HTTP server wraps every request in
//     one mutex for this reason.
//
// # Usage
//
//	client, err := timelock.Deploy(timelock.DeployOptions{
//	    Owner:    owner,
//	    Accounts: map[common.Address]model.Amount{owner: 1_000, alice: 500},
//	})
//	defer client.Close()
//
//	client.Deposit(ctx, alice, 100)
//	// a year later
//	client.InitiateWithdrawal(ctx, owner)
//	client.ExecuteWithdrawal(ctx, owner)
package timelock
