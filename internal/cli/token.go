package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/jvs-project/timelock/internal/server"
	"github.com/jvs-project/timelock/pkg/config"
	"github.com/jvs-project/timelock/pkg/keys"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <account|address>",
	Short: "Issue a bearer token for the HTTP server",
	Long: `Issue a bearer token that authenticates requests to 'timelock serve'
as the given account. The account is a configured account name or a hex
address. The token is signed with a key derived from server.secret.

Examples:
  timelock token owner
  timelock token --ttl 1h 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr, err := tokenSubject(cfg, args[0])
		if err != nil {
			return err
		}
		secret, err := serverSecret(cfg.Server.Secret)
		if err != nil {
			return err
		}
		key, err := keys.Derive([]byte(secret), keys.PurposeToken)
		if err != nil {
			return err
		}

		ttl := cfg.Server.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl = tokenTTL
		}
		tok, err := server.IssueToken(addr, key, ttl)
		if err != nil {
			return err
		}

		if jsonOutput {
			out := map[string]any{"address": addr, "token": tok}
			if ttl > 0 {
				out["expires_in"] = ttl.String()
			}
			return outputJSON(out)
		}
		fmt.Println(tok)
		return nil
	},
}

// tokenSubject accepts hex addresses and configured account names only.
func tokenSubject(cfg *config.Config, s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return cfg.Resolve(s)
	}
	if _, ok := cfg.Accounts[s]; ok {
		return cfg.AccountAddress(s)
	}
	if s == cfg.Vault.Owner {
		return cfg.Resolve(s)
	}
	return common.Address{}, errors.New(formatAccountNotFoundError(s, cfg))
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to server.token_ttl; 0 never expires)")
	rootCmd.AddCommand(tokenCmd)
}
