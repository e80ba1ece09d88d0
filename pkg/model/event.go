package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies a vault event.
type EventType string

const (
	EventDeployed            EventType = "deployed"
	EventDeposited           EventType = "deposited"
	EventDepositsToggled     EventType = "deposits_toggled"
	EventWithdrawalInitiated EventType = "withdrawal_initiated"
	EventWithdrawn           EventType = "withdrawn"
	EventEmergencyWithdrawal EventType = "emergency_withdrawal"
)

// EventTypes lists every event type in emission-independent order.
var EventTypes = []EventType{
	EventDeployed,
	EventDeposited,
	EventDepositsToggled,
	EventWithdrawalInitiated,
	EventWithdrawn,
	EventEmergencyWithdrawal,
}

// Event is emitted by every successful state-mutating vault operation.
// Enabled is set only for deposits_toggled; UnlockTime only for deployed.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Vault      common.Address `json:"vault"`
	Actor      common.Address `json:"actor"`
	Amount     Amount         `json:"amount"`
	Enabled    *bool          `json:"enabled,omitempty"`
	UnlockTime *time.Time     `json:"unlock_time,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
