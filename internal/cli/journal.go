package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/timelock/internal/events"
	"github.com/jvs-project/timelock/internal/journal"
	"github.com/jvs-project/timelock/pkg/color"
	"github.com/jvs-project/timelock/pkg/config"
)

var journalCmd = &cobra.Command{
	Use:   "journal <command>",
	Short: "Inspect a vault event journal",
	Long: `Inspect the hash-chained event journal written by 'timelock serve' or
'timelock run --journal'. The path defaults to journal.path from the
configuration.

Available commands:
  verify   - Check the hash chain
  events   - List the journaled events
  history  - Replay the events into balance history`,
	DisableFlagsInUseLine: true,
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Check the journal's hash chain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal(args)
		if err != nil {
			return err
		}
		n, verr := j.Verify()
		if jsonOutput {
			out := map[string]any{"path": j.Path(), "records": n, "valid": verr == nil}
			if verr != nil {
				out["error"] = verr.Error()
			}
			if err := outputJSON(out); err != nil {
				return err
			}
			return verr
		}
		if verr != nil {
			fmt.Printf("%s %s\n", color.Error("BROKEN"), j.Path())
			return verr
		}
		fmt.Printf("%s %s (%d records)\n", color.Success("OK"), j.Path(), n)
		return nil
	},
}

var journalEventsCmd = &cobra.Command{
	Use:   "events [path]",
	Short: "List the journaled events",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal(args)
		if err != nil {
			return err
		}
		evs, err := j.Events()
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(evs)
		}
		for _, ev := range evs {
			line := fmt.Sprintf("%s  %-22s %s", ev.Timestamp.Format("2006-01-02T15:04:05Z"), ev.Type, color.Address(ev.Actor))
			if ev.Amount > 0 {
				line += "  " + color.Amount(ev.Amount)
			}
			if ev.Enabled != nil {
				line += "  " + onOff(*ev.Enabled)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var journalHistoryCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Replay the journal into balance history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal(args)
		if err != nil {
			return err
		}
		evs, err := j.Events()
		if err != nil {
			return err
		}
		p, err := events.Replay(evs)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(p)
		}

		fmt.Println(color.Header("Balance history"))
		for _, pt := range p.History {
			fmt.Printf("  %s  %-22s balance %s  pending %s\n",
				pt.Timestamp.Format("2006-01-02T15:04:05Z"), pt.Type, color.Amount(pt.Balance), color.Amount(pt.Pending))
		}
		fmt.Printf("deposited %s  released %s  balance %s  deposits %s\n",
			color.Amount(p.Deposited), color.Amount(p.Released), color.Amount(p.Balance), onOff(p.DepositsEnabled))
		return nil
	},
}

func openJournal(args []string) (*journal.Journal, error) {
	if len(args) == 1 {
		return journal.New(args[0]), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.Journal.Path
	if path == "" {
		path = config.Default().Journal.Path
	}
	return journal.New(path), nil
}

func init() {
	journalCmd.AddCommand(journalVerifyCmd)
	journalCmd.AddCommand(journalEventsCmd)
	journalCmd.AddCommand(journalHistoryCmd)
	rootCmd.AddCommand(journalCmd)
}
