// Package scenario replays scripted vault sessions written in YAML: funded
// accounts, a deployment, then a sequence of calls, clock moves and checks.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jvs-project/timelock/internal/vault"
)

// VaultAccount names the vault's own address in steps.
const VaultAccount = "vault"

// DefaultStart is the clock's initial time when a scenario sets none.
var DefaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Scenario is one scripted session.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Start       time.Time `yaml:"start,omitempty"`
	Accounts    []Account `yaml:"accounts"`
	Deploy      Deploy    `yaml:"deploy"`
	Steps       []Step    `yaml:"steps"`
}

// Account is a ledger account funded before deployment.
//
// Rejects makes the account refuse every incoming transfer. Reenter makes it
// call the named vault operation, as itself, whenever it receives value; the
// callback's error is swallowed unless Propagate is set.
type Account struct {
	Name      string `yaml:"name"`
	Address   string `yaml:"address,omitempty"`
	Balance   uint64 `yaml:"balance"`
	Rejects   bool   `yaml:"rejects,omitempty"`
	Reenter   string `yaml:"reenter,omitempty"`
	Propagate bool   `yaml:"propagate,omitempty"`
}

// Deploy describes the vault deployment. A deployment expected to fail ends
// the scenario once the failure is confirmed.
type Deploy struct {
	Owner       string        `yaml:"owner"`
	UnlockIn    time.Duration `yaml:"unlock_in"`
	GracePeriod time.Duration `yaml:"grace_period,omitempty"`
	ExpectError string        `yaml:"expect_error,omitempty"`
}

// Step is a single action. Exactly one action field is set.
type Step struct {
	Name string `yaml:"name,omitempty"`

	Deposit            *Move          `yaml:"deposit,omitempty"`
	Transfer           *Move          `yaml:"transfer,omitempty"`
	ToggleDeposits     *Call          `yaml:"toggle_deposits,omitempty"`
	InitiateWithdrawal *Call          `yaml:"initiate_withdrawal,omitempty"`
	ExecuteWithdrawal  *Call          `yaml:"execute_withdrawal,omitempty"`
	EmergencyWithdraw  *Call          `yaml:"emergency_withdraw,omitempty"`
	PendingWithdrawal  *Call          `yaml:"pending_withdrawal,omitempty"`
	Advance            *time.Duration `yaml:"advance,omitempty"`
	IncreaseTo         string         `yaml:"increase_to,omitempty"`
	Check              *Check         `yaml:"check,omitempty"`

	ExpectError string `yaml:"expect_error,omitempty"`
	ExpectEvent string `yaml:"expect_event,omitempty"`
}

// Move transfers value. To defaults to the vault.
type Move struct {
	From   string `yaml:"from"`
	To     string `yaml:"to,omitempty"`
	Amount uint64 `yaml:"amount"`
}

// Call invokes a vault operation as By.
type Call struct {
	By string `yaml:"by"`
}

// Check asserts vault and ledger state. Unset fields are not checked.
type Check struct {
	Balance         *uint64           `yaml:"balance,omitempty"`
	Pending         *uint64           `yaml:"pending,omitempty"`
	DepositsEnabled *bool             `yaml:"deposits_enabled,omitempty"`
	TimeUntilUnlock *time.Duration    `yaml:"time_until_unlock,omitempty"`
	Holdings        map[string]uint64 `yaml:"holdings,omitempty"`
	Events          *int              `yaml:"events,omitempty"`
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a scenario, rejecting unknown fields.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Deploy.Owner == "" {
		return fmt.Errorf("deploy.owner is required")
	}
	seen := make(map[string]bool, len(sc.Accounts))
	for _, a := range sc.Accounts {
		if a.Name == "" {
			return fmt.Errorf("account without a name")
		}
		if a.Name == VaultAccount {
			return fmt.Errorf("account name %q is reserved", VaultAccount)
		}
		if seen[a.Name] {
			return fmt.Errorf("account %q declared twice", a.Name)
		}
		seen[a.Name] = true
		if a.Reenter != "" {
			if _, ok := reentryOps[a.Reenter]; !ok {
				return fmt.Errorf("account %q: unknown reenter operation %q", a.Name, a.Reenter)
			}
		}
	}
	for i, st := range sc.Steps {
		if n := st.actions(); n != 1 {
			return fmt.Errorf("step %d: expected exactly one action, found %d", i+1, n)
		}
	}
	return nil
}

func (st *Step) actions() int {
	n := 0
	for _, set := range []bool{
		st.Deposit != nil,
		st.Transfer != nil,
		st.ToggleDeposits != nil,
		st.InitiateWithdrawal != nil,
		st.ExecuteWithdrawal != nil,
		st.EmergencyWithdraw != nil,
		st.PendingWithdrawal != nil,
		st.Advance != nil,
		st.IncreaseTo != "",
		st.Check != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Op names the step's action.
func (st *Step) Op() string {
	switch {
	case st.Deposit != nil:
		return vault.OpDeposit
	case st.Transfer != nil:
		return "transfer"
	case st.ToggleDeposits != nil:
		return vault.OpToggleDeposits
	case st.InitiateWithdrawal != nil:
		return vault.OpInitiateWithdrawal
	case st.ExecuteWithdrawal != nil:
		return vault.OpExecuteWithdrawal
	case st.EmergencyWithdraw != nil:
		return vault.OpEmergencyWithdraw
	case st.PendingWithdrawal != nil:
		return vault.OpPendingWithdrawal
	case st.Advance != nil:
		return "advance"
	case st.IncreaseTo != "":
		return "increase_to"
	case st.Check != nil:
		return "check"
	}
	return "unknown"
}

// parseTarget resolves an increase_to value: "unlock", "emergency", either
// with an optional signed duration suffix such as "unlock+100s", or an
// RFC 3339 time.
func parseTarget(s string, unlock, emergency time.Time) (time.Time, error) {
	for _, base := range []struct {
		name string
		at   time.Time
	}{{"unlock", unlock}, {"emergency", emergency}} {
		if !strings.HasPrefix(s, base.name) {
			continue
		}
		rest := strings.TrimPrefix(s, base.name)
		if rest == "" {
			return base.at, nil
		}
		if rest[0] != '+' && rest[0] != '-' {
			break
		}
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("increase_to %q: %w", s, err)
		}
		return base.at.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("increase_to %q: want unlock, emergency or an RFC 3339 time", s)
	}
	return t, nil
}
