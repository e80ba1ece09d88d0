package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/internal/ledger"
	"github.com/jvs-project/timelock/internal/vault"
	"github.com/jvs-project/timelock/pkg/clock"
	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
	"github.com/jvs-project/timelock/pkg/timelock"
)

// Options configures a run.
type Options struct {
	Logger      *logging.Logger
	JournalPath string // journal the run's events when set
}

// Report is the outcome of a run.
type Report struct {
	Name      string                  `json:"name"`
	Passed    bool                    `json:"passed"`
	Vault     common.Address          `json:"vault"`
	Steps     []StepResult            `json:"steps"`
	Reentries []Reentry               `json:"reentries,omitempty"`
	Final     *model.VaultStatus      `json:"final,omitempty"`
	Holdings  map[string]model.Amount `json:"holdings,omitempty"`
	Events    []model.Event           `json:"events,omitempty"`
}

// StepResult records one executed step.
type StepResult struct {
	Index  int               `json:"index"`
	Name   string            `json:"name,omitempty"`
	Op     string            `json:"op"`
	Code   string            `json:"code,omitempty"`
	Error  string            `json:"error,omitempty"`
	Events []model.EventType `json:"events,omitempty"`
	Time   time.Time         `json:"time"`
}

// Reentry records a callback made by a reentering account.
type Reentry struct {
	Account string `json:"account"`
	Op      string `json:"op"`
	Code    string `json:"code,omitempty"`
}

var reentryOps = map[string]func(ctx context.Context, v *vault.Vault, as common.Address) error{
	vault.OpDeposit: func(ctx context.Context, v *vault.Vault, as common.Address) error {
		return v.Deposit(ctx, as, 1)
	},
	vault.OpToggleDeposits: func(ctx context.Context, v *vault.Vault, as common.Address) error {
		return v.ToggleDeposits(ctx, as)
	},
	vault.OpInitiateWithdrawal: func(ctx context.Context, v *vault.Vault, as common.Address) error {
		return v.InitiateWithdrawal(ctx, as)
	},
	vault.OpExecuteWithdrawal: func(ctx context.Context, v *vault.Vault, as common.Address) error {
		return v.ExecuteWithdrawal(ctx, as)
	},
	vault.OpEmergencyWithdraw: func(ctx context.Context, v *vault.Vault, as common.Address) error {
		return v.EmergencyWithdraw(ctx, as)
	},
}

type run struct {
	sc     *Scenario
	log    *logging.Logger
	clk    *clock.Manual
	client *timelock.Client
	names  map[string]common.Address
	report *Report
}

// Run executes sc on a fresh ledger and manual clock. It stops at the first
// step whose outcome differs from the script and returns the partial report
// with ErrScenarioMismatch. Errors unrelated to the script, such as a bad
// account name, are returned as they are.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}
	if err := sc.validate(); err != nil {
		return &Report{Name: sc.Name}, err
	}
	start := sc.Start
	if start.IsZero() {
		start = DefaultStart
	}

	r := &run{
		sc:     sc,
		log:    opts.Logger.WithFields(map[string]any{"scenario": sc.Name}),
		clk:    clock.NewManual(start),
		names:  make(map[string]common.Address, len(sc.Accounts)+1),
		report: &Report{Name: sc.Name},
	}

	l := ledger.New()
	funding := make(map[common.Address]model.Amount, len(sc.Accounts))
	for _, a := range sc.Accounts {
		addr, err := accountAddress(a)
		if err != nil {
			return r.report, fmt.Errorf("account %s: %w", a.Name, err)
		}
		r.names[a.Name] = addr
		sum, ok := funding[addr].Add(model.Amount(a.Balance))
		if !ok {
			return r.report, errclass.ErrBalanceOverflow.WithMessagef("account %s: funding %s overflows", a.Name, addr.Hex())
		}
		funding[addr] = sum
	}
	owner, err := r.resolve(sc.Deploy.Owner)
	if err != nil {
		return r.report, fmt.Errorf("deploy.owner: %w", err)
	}

	client, err := timelock.Deploy(timelock.DeployOptions{
		Owner:       owner,
		UnlockIn:    sc.Deploy.UnlockIn,
		GracePeriod: sc.Deploy.GracePeriod,
		Clock:       r.clk,
		Ledger:      l,
		Accounts:    funding,
		JournalPath: opts.JournalPath,
		Logger:      opts.Logger,
	})
	if done, mismatch := r.deployOutcome(err); done {
		return r.report, mismatch
	}
	defer client.Close()
	r.client = client
	r.names[VaultAccount] = client.Vault().Address()
	r.report.Vault = client.Vault().Address()

	for _, a := range sc.Accounts {
		r.installReceiver(a)
	}

	for i := range sc.Steps {
		if err := r.step(ctx, i, &sc.Steps[i]); err != nil {
			r.finish()
			return r.report, err
		}
	}

	r.finish()
	r.report.Passed = true
	r.log.Info("scenario passed", map[string]any{"steps": len(sc.Steps)})
	return r.report, nil
}

func (r *run) deployOutcome(err error) (done bool, mismatch error) {
	want := r.sc.Deploy.ExpectError
	got := errclass.CodeOf(err)
	switch {
	case err != nil && want == "":
		return true, errclass.ErrScenarioMismatch.WithMessagef("deploy: unexpected error: %v", err)
	case err == nil && want != "":
		return true, errclass.ErrScenarioMismatch.WithMessagef("deploy: expected %s, got success", want)
	case err != nil && got != want:
		return true, errclass.ErrScenarioMismatch.WithMessagef("deploy: expected %s, got %v", want, err)
	case err != nil:
		r.report.Passed = true
		return true, nil
	}
	return false, nil
}

func accountAddress(a Account) (common.Address, error) {
	if a.Address != "" {
		return ledger.Resolve(a.Address)
	}
	return ledger.Resolve(a.Name)
}

func (r *run) resolve(name string) (common.Address, error) {
	if addr, ok := r.names[name]; ok {
		return addr, nil
	}
	return ledger.Resolve(name)
}

func (r *run) installReceiver(a Account) {
	addr := r.names[a.Name]
	switch {
	case a.Rejects:
		r.client.Ledger().Register(addr, ledger.Reject(a.Name+" rejects transfers"))
	case a.Reenter != "":
		call := reentryOps[a.Reenter]
		v := r.client.Vault()
		r.client.Ledger().Register(addr, ledger.ReceiverFunc(
			func(ctx context.Context, _ common.Address, _ model.Amount) error {
				err := call(ctx, v, addr)
				r.report.Reentries = append(r.report.Reentries, Reentry{
					Account: a.Name,
					Op:      a.Reenter,
					Code:    errclass.CodeOf(err),
				})
				if a.Propagate {
					return err
				}
				return nil
			}))
	}
}

func (r *run) step(ctx context.Context, i int, st *Step) error {
	res := StepResult{Index: i + 1, Name: st.Name, Op: st.Op()}
	before := len(r.client.Events())

	err := r.do(ctx, st)
	res.Time = r.clk.Now()
	if err != nil {
		res.Code = errclass.CodeOf(err)
		res.Error = err.Error()
	}
	evs := r.client.Events()[before:]
	for _, ev := range evs {
		res.Events = append(res.Events, ev.Type)
	}
	r.report.Steps = append(r.report.Steps, res)

	fail := func(format string, args ...any) error {
		msg := fmt.Sprintf(format, args...)
		r.log.Warn("scenario step mismatch", map[string]any{"step": res.Index, "op": res.Op, "detail": msg})
		return errclass.ErrScenarioMismatch.WithMessagef("step %d (%s): %s", res.Index, res.Op, msg)
	}

	var mm *mismatch
	if errors.As(err, &mm) {
		return fail("%s", mm.msg)
	}
	switch {
	case st.ExpectError == "" && err != nil:
		return fail("unexpected error: %v", err)
	case st.ExpectError != "" && err == nil:
		return fail("expected %s, got success", st.ExpectError)
	case st.ExpectError != "" && res.Code != st.ExpectError:
		return fail("expected %s, got %v", st.ExpectError, err)
	}

	if st.ExpectEvent != "" {
		found := false
		for _, t := range res.Events {
			if string(t) == st.ExpectEvent {
				found = true
			}
		}
		if !found {
			return fail("expected event %s, got %v", st.ExpectEvent, res.Events)
		}
	}
	if err != nil && len(res.Events) > 0 {
		return fail("failed call emitted %v", res.Events)
	}
	return nil
}

// mismatch is a failed check; it is not a vault error.
type mismatch struct{ msg string }

func (m *mismatch) Error() string { return m.msg }

func (r *run) do(ctx context.Context, st *Step) error {
	c := r.client
	switch {
	case st.Deposit != nil:
		from, err := r.resolve(st.Deposit.From)
		if err != nil {
			return err
		}
		return c.Deposit(ctx, from, model.Amount(st.Deposit.Amount))
	case st.Transfer != nil:
		from, err := r.resolve(st.Transfer.From)
		if err != nil {
			return err
		}
		to := c.Vault().Address()
		if st.Transfer.To != "" {
			if to, err = r.resolve(st.Transfer.To); err != nil {
				return err
			}
		}
		return c.Transfer(ctx, from, to, model.Amount(st.Transfer.Amount))
	case st.ToggleDeposits != nil:
		return r.call(st.ToggleDeposits, func(as common.Address) error { return c.ToggleDeposits(ctx, as) })
	case st.InitiateWithdrawal != nil:
		return r.call(st.InitiateWithdrawal, func(as common.Address) error { return c.InitiateWithdrawal(ctx, as) })
	case st.ExecuteWithdrawal != nil:
		return r.call(st.ExecuteWithdrawal, func(as common.Address) error { return c.ExecuteWithdrawal(ctx, as) })
	case st.EmergencyWithdraw != nil:
		return r.call(st.EmergencyWithdraw, func(as common.Address) error { return c.EmergencyWithdraw(ctx, as) })
	case st.PendingWithdrawal != nil:
		return r.call(st.PendingWithdrawal, func(as common.Address) error {
			_, err := c.PendingWithdrawal(as)
			return err
		})
	case st.Advance != nil:
		r.clk.Advance(*st.Advance)
		return nil
	case st.IncreaseTo != "":
		v := c.Vault()
		t, err := parseTarget(st.IncreaseTo, v.UnlockTime(), v.EmergencyUnlockTime())
		if err != nil {
			return err
		}
		r.clk.IncreaseTo(t)
		return nil
	case st.Check != nil:
		return r.check(st.Check)
	}
	return fmt.Errorf("empty step")
}

func (r *run) call(c *Call, fn func(common.Address) error) error {
	as, err := r.resolve(c.By)
	if err != nil {
		return err
	}
	return fn(as)
}

func (r *run) check(ck *Check) error {
	st := r.client.Status()
	if ck.Balance != nil && model.Amount(*ck.Balance) != st.Balance {
		return &mismatch{fmt.Sprintf("balance is %d, want %d", st.Balance, *ck.Balance)}
	}
	if ck.Pending != nil && model.Amount(*ck.Pending) != st.PendingWithdrawal {
		return &mismatch{fmt.Sprintf("pending is %d, want %d", st.PendingWithdrawal, *ck.Pending)}
	}
	if ck.DepositsEnabled != nil && *ck.DepositsEnabled != st.DepositsEnabled {
		return &mismatch{fmt.Sprintf("deposits_enabled is %t, want %t", st.DepositsEnabled, *ck.DepositsEnabled)}
	}
	if ck.TimeUntilUnlock != nil && *ck.TimeUntilUnlock != st.TimeUntilUnlock {
		return &mismatch{fmt.Sprintf("time_until_unlock is %s, want %s", st.TimeUntilUnlock, *ck.TimeUntilUnlock)}
	}
	for name, want := range ck.Holdings {
		addr, err := r.resolve(name)
		if err != nil {
			return err
		}
		if got := r.client.BalanceOf(addr); got != model.Amount(want) {
			return &mismatch{fmt.Sprintf("%s holds %d, want %d", name, got, want)}
		}
	}
	if ck.Events != nil && len(r.client.Events()) != *ck.Events {
		return &mismatch{fmt.Sprintf("%d events emitted, want %d", len(r.client.Events()), *ck.Events)}
	}
	return nil
}

func (r *run) finish() {
	st := r.client.Status()
	r.report.Final = &st
	r.report.Events = r.client.Events()
	r.report.Holdings = make(map[string]model.Amount, len(r.names))
	for name, addr := range r.names {
		r.report.Holdings[name] = r.client.BalanceOf(addr)
	}
}
