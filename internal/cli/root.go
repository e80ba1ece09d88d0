package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvs-project/timelock/pkg/color"
	"github.com/jvs-project/timelock/pkg/config"
)

var (
	jsonOutput bool
	noColor    bool
	configPath string
	logLevel   string
	rootCmd    = &cobra.Command{
		Use:   "timelock",
		Short: "timelock - a time-locked single-asset vault",
		Long: `timelock runs a custody vault that holds one owner's funds until an
unlock time. After the unlock the owner withdraws in two steps; after an
additional grace period an emergency withdrawal drains the vault at once.

The vault can be exercised from scenario files, served over HTTP, or
inspected through its event journal.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: preRun,
	}
)

func init() {
	addPersistentFlags(rootCmd)
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level from the configuration")
}

func preRun(cmd *cobra.Command, args []string) error {
	color.Init(noColor || jsonOutput)
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "timelock: "
	if color.Enabled() {
		prefix = color.Error("timelock:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
