package events

import (
	"fmt"

	"github.com/jvs-project/timelock/pkg/model"
)

// Projection is vault state rebuilt from its event stream alone.
type Projection struct {
	Balance         model.Amount         `json:"balance"`
	Pending         model.Amount         `json:"pending"`
	DepositsEnabled bool                 `json:"deposits_enabled"`
	Deposited       model.Amount         `json:"total_deposited"`
	Released        model.Amount         `json:"total_released"`
	History         []model.BalancePoint `json:"history"`
}

// Replay folds events into a Projection. It fails on a stream no vault could
// have produced, such as a release larger than the balance.
func Replay(evs []model.Event) (*Projection, error) {
	p := &Projection{DepositsEnabled: true}
	for i, ev := range evs {
		switch ev.Type {
		case model.EventDeployed:
			if i != 0 {
				return nil, fmt.Errorf("replay: deployed event at position %d", i)
			}
		case model.EventDeposited:
			sum, ok := p.Balance.Add(ev.Amount)
			if !ok {
				return nil, fmt.Errorf("replay: event %s overflows balance", ev.ID)
			}
			p.Balance = sum
			p.Deposited += ev.Amount
		case model.EventDepositsToggled:
			if ev.Enabled == nil {
				return nil, fmt.Errorf("replay: event %s has no enabled state", ev.ID)
			}
			p.DepositsEnabled = *ev.Enabled
		case model.EventWithdrawalInitiated:
			if ev.Amount != p.Balance {
				return nil, fmt.Errorf("replay: event %s commits %d but balance is %d", ev.ID, ev.Amount, p.Balance)
			}
			p.Pending = ev.Amount
		case model.EventWithdrawn:
			if ev.Amount != p.Pending || ev.Amount > p.Balance {
				return nil, fmt.Errorf("replay: event %s releases %d with %d pending", ev.ID, ev.Amount, p.Pending)
			}
			p.Balance -= ev.Amount
			p.Pending = 0
			p.Released += ev.Amount
		case model.EventEmergencyWithdrawal:
			if ev.Amount != p.Balance {
				return nil, fmt.Errorf("replay: event %s drains %d but balance is %d", ev.ID, ev.Amount, p.Balance)
			}
			p.Balance = 0
			p.Pending = 0
			p.Released += ev.Amount
		default:
			return nil, fmt.Errorf("replay: unknown event type %q", ev.Type)
		}
		p.History = append(p.History, model.BalancePoint{
			EventID:   ev.ID,
			Type:      ev.Type,
			Balance:   p.Balance,
			Pending:   p.Pending,
			Timestamp: ev.Timestamp,
		})
	}
	return p, nil
}
