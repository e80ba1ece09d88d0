package timelock

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/pkg/clock"
	"github.com/jvs-project/timelock/pkg/config"
	"github.com/jvs-project/timelock/pkg/keys"
	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/metrics"
	"github.com/jvs-project/timelock/pkg/model"
)

// OptionsFromConfig translates a configuration file into DeployOptions.
// The webhook signing key is derived from server.secret when one is set.
func OptionsFromConfig(cfg *config.Config, clk clock.Clock, log *logging.Logger) (DeployOptions, error) {
	if clk == nil {
		clk = clock.System{}
	}

	owner, err := cfg.Resolve(cfg.Vault.Owner)
	if err != nil {
		return DeployOptions{}, fmt.Errorf("vault.owner: %w", err)
	}
	unlock, err := cfg.UnlockAt(clk.Now())
	if err != nil {
		return DeployOptions{}, err
	}

	opts := DeployOptions{
		Owner:       owner,
		UnlockTime:  unlock,
		GracePeriod: cfg.Vault.GracePeriod,
		Clock:       clk,
		Accounts:    make(map[common.Address]model.Amount, len(cfg.Accounts)),
		Logger:      log,
	}
	for _, name := range cfg.AccountNames() {
		addr, err := cfg.AccountAddress(name)
		if err != nil {
			return DeployOptions{}, fmt.Errorf("accounts.%s: %w", name, err)
		}
		sum, ok := opts.Accounts[addr].Add(model.Amount(cfg.Accounts[name].Balance))
		if !ok {
			return DeployOptions{}, fmt.Errorf("accounts.%s: balance overflows", name)
		}
		opts.Accounts[addr] = sum
	}

	if cfg.Journal.Enabled {
		opts.JournalPath = cfg.Journal.Path
	}
	if cfg.Webhook.Enabled {
		wh := cfg.Webhook
		opts.Webhook = &wh
		if cfg.Server.Secret != "" {
			if opts.WebhookKey, err = keys.Derive([]byte(cfg.Server.Secret), keys.PurposeWebhook); err != nil {
				return DeployOptions{}, err
			}
		}
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.NewRegistry()
	}
	return opts, nil
}
