// Package config provides configuration file support for timelock.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/timelock/internal/ledger"
	"github.com/jvs-project/timelock/pkg/fsutil"
	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
	"github.com/jvs-project/timelock/pkg/webhook"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = "timelock.yaml"

// Config represents the timelock configuration.
type Config struct {
	Vault    VaultConfig              `yaml:"vault"`
	Accounts map[string]AccountConfig `yaml:"accounts,omitempty"`
	Logging  LoggingConfig            `yaml:"logging"`
	Journal  JournalConfig            `yaml:"journal"`
	Server   ServerConfig             `yaml:"server"`
	Webhook  webhook.Config           `yaml:"webhook"`
	Metrics  MetricsConfig            `yaml:"metrics"`
}

// VaultConfig describes the vault to deploy. UnlockTime, when set, wins over
// UnlockIn.
type VaultConfig struct {
	Owner       string        `yaml:"owner"`
	UnlockIn    time.Duration `yaml:"unlock_in,omitempty"`
	UnlockTime  string        `yaml:"unlock_time,omitempty"` // RFC 3339
	GracePeriod time.Duration `yaml:"grace_period,omitempty"`
}

// AccountConfig funds an account on the in-memory ledger at startup.
// Address is optional; named accounts derive one from the name.
type AccountConfig struct {
	Address string `yaml:"address,omitempty"`
	Balance uint64 `yaml:"balance"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// JournalConfig configures the on-disk event journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr     string        `yaml:"addr"`
	Secret   string        `yaml:"secret,omitempty"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Vault: VaultConfig{
			Owner:       "owner",
			UnlockIn:    model.Year,
			GracePeriod: model.Year,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Journal: JournalConfig{
			Path: "timelock-journal.jsonl",
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:8545",
			TokenTTL: 24 * time.Hour,
		},
		Webhook: *webhook.DefaultConfig(),
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads configuration from path.
// Returns default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks field values without touching the network or disk.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ledger.Resolve(c.Vault.Owner); err != nil {
		errs = append(errs, fmt.Errorf("vault.owner: %w", err))
	}
	if c.Vault.UnlockIn < 0 {
		errs = append(errs, fmt.Errorf("vault.unlock_in: must not be negative"))
	}
	if c.Vault.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("vault.grace_period: must not be negative"))
	}
	if c.Vault.UnlockTime != "" {
		if _, err := time.Parse(time.RFC3339, c.Vault.UnlockTime); err != nil {
			errs = append(errs, fmt.Errorf("vault.unlock_time: %w", err))
		}
	}

	for _, name := range c.AccountNames() {
		if _, err := c.AccountAddress(name); err != nil {
			errs = append(errs, fmt.Errorf("accounts.%s: %w", name, err))
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch logging.Format(c.Logging.Format) {
	case "", logging.FormatJSON, logging.FormatText:
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, fmt.Errorf("journal.path: required when the journal is enabled"))
	}
	if c.Server.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("server.token_ttl: must not be negative"))
	}

	for i, h := range c.Webhook.Hooks {
		if h.URL == "" {
			errs = append(errs, fmt.Errorf("webhook.hooks[%d].url: required", i))
		}
		if len(h.Events) == 0 {
			errs = append(errs, fmt.Errorf("webhook.hooks[%d].events: at least one event is required", i))
		}
	}
	if c.Webhook.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("webhook.max_retries: must not be negative"))
	}

	return errors.Join(errs...)
}

// UnlockAt resolves the configured unlock time relative to now.
func (c *Config) UnlockAt(now time.Time) (time.Time, error) {
	if c.Vault.UnlockTime != "" {
		t, err := time.Parse(time.RFC3339, c.Vault.UnlockTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("vault.unlock_time: %w", err)
		}
		return t.UTC(), nil
	}
	in := c.Vault.UnlockIn
	if in == 0 {
		in = model.Year
	}
	return now.Add(in), nil
}

// AccountNames returns the configured account names, sorted.
func (c *Config) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for n := range c.Accounts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AccountAddress returns the address for a configured account.
func (c *Config) AccountAddress(name string) (common.Address, error) {
	acct, ok := c.Accounts[name]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown account %q", name)
	}
	if acct.Address != "" {
		return ledger.Resolve(acct.Address)
	}
	return ledger.Resolve(name)
}

// Resolve turns an account name, configured or not, or a hex address into an
// address. Configured accounts with an explicit address take precedence.
func (c *Config) Resolve(s string) (common.Address, error) {
	if acct, ok := c.Accounts[s]; ok && acct.Address != "" {
		return ledger.Resolve(acct.Address)
	}
	return ledger.Resolve(s)
}
