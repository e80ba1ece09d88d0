package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/jvs-project/timelock/pkg/color"
)

var addressCmd = &cobra.Command{
	Use:   "address [name]...",
	Short: "Show the addresses behind account names",
	Long: `Show the address each account name resolves to.

Without arguments, lists the configured accounts, their addresses and
starting balances.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		type row struct {
			Name    string         `json:"name"`
			Address common.Address `json:"address"`
			Balance uint64         `json:"balance,omitempty"`
		}
		var rows []row
		if len(args) == 0 {
			for _, name := range cfg.AccountNames() {
				addr, err := cfg.AccountAddress(name)
				if err != nil {
					return err
				}
				rows = append(rows, row{Name: name, Address: addr, Balance: cfg.Accounts[name].Balance})
			}
		} else {
			for _, name := range args {
				addr, err := cfg.Resolve(name)
				if err != nil {
					return err
				}
				rows = append(rows, row{Name: name, Address: addr})
			}
		}

		if jsonOutput {
			return outputJSON(rows)
		}
		if len(rows) == 0 {
			fmt.Println(suggestAccounts("", cfg))
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%-12s %s\n", r.Name, color.Address(r.Address))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
