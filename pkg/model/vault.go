package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VaultStatus is a point-in-time view of a vault.
type VaultStatus struct {
	Address             common.Address  `json:"address"`
	Owner               common.Address  `json:"owner"`
	UnlockTime          time.Time       `json:"unlock_time"`
	EmergencyUnlockTime time.Time       `json:"emergency_unlock_time"`
	DepositsEnabled     bool            `json:"deposits_enabled"`
	Balance             Amount          `json:"balance"`
	PendingWithdrawal   Amount          `json:"pending_withdrawal"`
	WithdrawalState     WithdrawalState `json:"withdrawal_state"`
	TimeUntilUnlock     time.Duration   `json:"time_until_unlock"`
	Guard               LockState       `json:"guard"`
}

// BalancePoint is one step of a balance history reconstructed from events.
type BalancePoint struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	Balance   Amount    `json:"balance"`
	Pending   Amount    `json:"pending"`
	Timestamp time.Time `json:"timestamp"`
}

// JournalRecord is a single line in the event journal (JSONL format).
type JournalRecord struct {
	Event      Event     `json:"event"`
	PrevHash   HashValue `json:"prev_hash"`
	RecordHash HashValue `json:"record_hash"`
}
