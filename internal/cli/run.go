package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/timelock/internal/scenario"
	"github.com/jvs-project/timelock/pkg/color"
	"github.com/jvs-project/timelock/pkg/model"
)

var (
	runJournal string
	runVerbose bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Run vault scenarios",
	Long: `Run one or more scenario files against a fresh vault each.

A scenario funds named accounts, deploys a vault on a simulated clock and
walks through deposits, withdrawals and clock moves, checking the outcome
of every step. The command fails if any scenario does not play out as
written.

Examples:
  timelock run testdata/withdrawal.yaml
  timelock run --journal events.jsonl lifecycle.yaml
  timelock run --json *.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.Logging)
		if err != nil {
			return err
		}
		if runJournal != "" && len(args) > 1 {
			return errors.New("--journal takes a single scenario")
		}

		var (
			reports []*scenario.Report
			failed  int
		)
		for _, path := range args {
			sc, err := scenario.Load(path)
			if err != nil {
				return err
			}
			report, runErr := scenario.Run(cmd.Context(), sc, scenario.Options{
				Logger:      log,
				JournalPath: runJournal,
			})
			if runErr != nil {
				failed++
				log.ErrorErr("scenario failed", runErr, map[string]any{"file": path})
			}
			reports = append(reports, report)
			if !jsonOutput {
				printReport(path, report, runErr)
			}
		}

		if jsonOutput {
			if err := outputJSON(reports); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
		}
		return nil
	},
}

func printReport(path string, r *scenario.Report, runErr error) {
	name := r.Name
	if name == "" {
		name = path
	}
	if runErr != nil {
		fmt.Printf("%s %s\n", color.Error("FAIL"), name)
		fmt.Printf("  %s\n", color.Dim(runErr.Error()))
	} else {
		fmt.Printf("%s %s\n", color.Success("PASS"), name)
	}

	if runVerbose {
		for _, s := range r.Steps {
			label := s.Op
			if s.Name != "" {
				label = s.Name + " (" + s.Op + ")"
			}
			line := fmt.Sprintf("  %2d. %s", s.Index+1, label)
			if s.Code != "" {
				line += " " + color.Warning(s.Code)
			}
			for _, ev := range s.Events {
				line += " " + color.Info(string(ev))
			}
			fmt.Println(line)
		}
		for _, re := range r.Reentries {
			fmt.Printf("  reentry: %s -> %s %s\n", re.Account, re.Op, color.Warning(re.Code))
		}
	}

	if r.Final != nil {
		printStatus(r.Final)
	}
}

func printStatus(st *model.VaultStatus) {
	fmt.Printf("  vault %s  owner %s\n", color.Address(st.Address), color.Address(st.Owner))
	fmt.Printf("  balance %s  pending %s  deposits %s\n",
		color.Amount(st.Balance), color.Amount(st.PendingWithdrawal), onOff(st.DepositsEnabled))
	fmt.Printf("  unlock %s  emergency %s\n",
		st.UnlockTime.Format("2006-01-02T15:04:05Z"), st.EmergencyUnlockTime.Format("2006-01-02T15:04:05Z"))
}

func onOff(b bool) string {
	if b {
		return color.Success("enabled")
	}
	return color.Warning("disabled")
}

func init() {
	runCmd.Flags().StringVar(&runJournal, "journal", "", "append the run's events to this journal file")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print every step")
	rootCmd.AddCommand(runCmd)
}
