package timelock

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/internal/events"
	"github.com/jvs-project/timelock/internal/journal"
	"github.com/jvs-project/timelock/internal/ledger"
	"github.com/jvs-project/timelock/internal/vault"
	"github.com/jvs-project/timelock/pkg/clock"
	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/metrics"
	"github.com/jvs-project/timelock/pkg/model"
	"github.com/jvs-project/timelock/pkg/webhook"
)

// DeployOptions configures Deploy.
type DeployOptions struct {
	Owner       common.Address // required
	UnlockTime  time.Time      // wins over UnlockIn when set
	UnlockIn    time.Duration  // defaults to one year
	GracePeriod time.Duration  // defaults to vault.DefaultGracePeriod

	Clock    clock.Clock                     // defaults to the system clock
	Ledger   *ledger.Ledger                  // defaults to a new, empty ledger
	Accounts map[common.Address]model.Amount // funded on the ledger before deploy

	JournalPath string          // empty disables the journal
	Webhook     *webhook.Config // nil or disabled skips webhooks
	WebhookKey  []byte          // signs hooks without their own secret
	Metrics     *metrics.Registry
	Logger      *logging.Logger
}

// Client operates one deployed vault and the accounts around it.
type Client struct {
	vault    *vault.Vault
	ledger   *ledger.Ledger
	clock    clock.Clock
	bus      *events.Bus
	recorder *events.Recorder
	journal  *journal.Journal
	hooks    *webhook.Client
	metrics  *metrics.Registry
}

// Deploy funds the configured accounts and deploys a vault owned by
// opts.Owner. The vault's address is derived from the owner's next contract
// nonce on the ledger, and the vault is registered there as a receiving
// account so bare transfers to it count as deposits.
func Deploy(opts DeployOptions) (*Client, error) {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Ledger == nil {
		opts.Ledger = ledger.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}

	for addr, amount := range opts.Accounts {
		if err := opts.Ledger.Fund(addr, amount); err != nil {
			return nil, fmt.Errorf("fund %s: %w", addr.Hex(), err)
		}
	}

	c := &Client{
		ledger:   opts.Ledger,
		clock:    opts.Clock,
		bus:      events.NewBus(opts.Logger),
		recorder: events.NewRecorder(),
		metrics:  opts.Metrics,
	}
	c.bus.Subscribe("recorder", c.recorder)
	if opts.JournalPath != "" {
		c.journal = journal.New(opts.JournalPath)
		c.bus.Subscribe("journal", c.journal)
	}
	if opts.Metrics != nil {
		c.bus.Subscribe("metrics", opts.Metrics)
	}
	if opts.Webhook != nil && opts.Webhook.Enabled {
		c.hooks = webhook.NewClient(opts.Webhook,
			webhook.WithLogger(opts.Logger),
			webhook.WithSigningKey(opts.WebhookKey))
		c.bus.Subscribe("webhook", c.hooks)
	}

	unlock := opts.UnlockTime
	if unlock.IsZero() {
		in := opts.UnlockIn
		if in == 0 {
			in = model.Year
		}
		unlock = opts.Clock.Now().Add(in)
	}

	vopts := vault.Options{
		Address:     opts.Ledger.NextContractAddress(opts.Owner),
		GracePeriod: opts.GracePeriod,
		Clock:       opts.Clock,
		Settlement:  opts.Ledger,
		Emitter:     c.bus,
		Logger:      opts.Logger,
	}
	if opts.Metrics != nil {
		vopts.Observer = opts.Metrics
	}

	v, err := vault.New(opts.Owner, unlock, vopts)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("deploy vault: %w", err)
	}
	c.vault = v
	if opts.Metrics != nil {
		opts.Metrics.TrackVault(v)
	}
	return c, nil
}

// Deposit moves amount from caller into the vault.
func (c *Client) Deposit(ctx context.Context, caller common.Address, amount model.Amount) error {
	return c.vault.Deposit(ctx, caller, amount)
}

// Transfer sends amount between ledger accounts. A transfer to the vault's
// address is a bare value transfer and runs the vault's deposit rules.
func (c *Client) Transfer(ctx context.Context, from, to common.Address, amount model.Amount) error {
	return c.ledger.Transfer(ctx, from, to, amount)
}

// ToggleDeposits flips whether deposits are accepted. Owner only.
func (c *Client) ToggleDeposits(ctx context.Context, caller common.Address) error {
	return c.vault.ToggleDeposits(ctx, caller)
}

// InitiateWithdrawal commits the current balance for withdrawal.
func (c *Client) InitiateWithdrawal(ctx context.Context, caller common.Address) error {
	return c.vault.InitiateWithdrawal(ctx, caller)
}

// ExecuteWithdrawal releases the pending withdrawal to the owner.
func (c *Client) ExecuteWithdrawal(ctx context.Context, caller common.Address) error {
	return c.vault.ExecuteWithdrawal(ctx, caller)
}

// EmergencyWithdraw releases everything once the grace period has passed.
func (c *Client) EmergencyWithdraw(ctx context.Context, caller common.Address) error {
	return c.vault.EmergencyWithdraw(ctx, caller)
}

// PendingWithdrawal returns the committed amount. Owner only.
func (c *Client) PendingWithdrawal(caller common.Address) (model.Amount, error) {
	return c.vault.PendingWithdrawal(caller)
}

// Status returns a snapshot of the vault.
func (c *Client) Status() model.VaultStatus {
	return c.vault.Status()
}

// Balance returns the vault's balance.
func (c *Client) Balance() model.Amount {
	return c.vault.Balance()
}

// BalanceOf returns an account's holdings on the ledger.
func (c *Client) BalanceOf(addr common.Address) model.Amount {
	return c.ledger.BalanceOf(addr)
}

// Events returns every event emitted since deployment.
func (c *Client) Events() []model.Event {
	return c.recorder.Events()
}

// History rebuilds the vault's balance history from its events.
func (c *Client) History() (*events.Projection, error) {
	return events.Replay(c.recorder.Events())
}

// Subscribe adds an event sink. It sees events emitted after the call.
func (c *Client) Subscribe(name string, s events.Sink) {
	c.bus.Subscribe(name, s)
}

// Vault returns the underlying vault.
func (c *Client) Vault() *vault.Vault { return c.vault }

// Ledger returns the settlement ledger.
func (c *Client) Ledger() *ledger.Ledger { return c.ledger }

// Clock returns the clock the vault reads.
func (c *Client) Clock() clock.Clock { return c.clock }

// Journal returns the event journal, or nil when journaling is off.
func (c *Client) Journal() *journal.Journal { return c.journal }

// Metrics returns the metrics registry, or nil.
func (c *Client) Metrics() *metrics.Registry { return c.metrics }

// Close flushes queued webhook deliveries.
func (c *Client) Close() error {
	if c.hooks != nil {
		return c.hooks.Close()
	}
	return nil
}
