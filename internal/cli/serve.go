package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jvs-project/timelock/internal/server"
	"github.com/jvs-project/timelock/pkg/clock"
	"github.com/jvs-project/timelock/pkg/keys"
	"github.com/jvs-project/timelock/pkg/timelock"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Deploy a vault and serve it over HTTP",
	Long: `Deploy a vault from the configuration file and serve it over HTTP.

Read-only endpoints are public. Mutating endpoints take a bearer token
issued with 'timelock token'. The server.secret setting (or the
TIMELOCK_SECRET environment variable) is required.

Endpoints:
  GET  /healthz
  GET  /metrics                    (when metrics.enabled)
  GET  /v1/vault
  GET  /v1/events[?type=...]
  GET  /v1/accounts/{address}
  GET  /v1/vault/pending           owner only
  POST /v1/deposit                 {"amount": N}
  POST /v1/transfer                {"to": "...", "amount": N}
  POST /v1/deposits/toggle         owner only
  POST /v1/withdrawals/initiate    owner only
  POST /v1/withdrawals/execute     owner only
  POST /v1/withdrawals/emergency   owner only`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.Logging)
		if err != nil {
			return err
		}
		secret, err := serverSecret(cfg.Server.Secret)
		if err != nil {
			return err
		}
		cfg.Server.Secret = secret

		opts, err := timelock.OptionsFromConfig(cfg, clock.System{}, log)
		if err != nil {
			return err
		}
		client, err := timelock.Deploy(opts)
		if err != nil {
			return err
		}
		defer client.Close()

		key, err := keys.Derive([]byte(secret), keys.PurposeToken)
		if err != nil {
			return err
		}
		srv, err := server.New(client, server.Options{Key: key, Logger: log})
		if err != nil {
			return err
		}

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("server stopped")
		return nil
	},
}

// serverSecret prefers TIMELOCK_SECRET over the configured value.
func serverSecret(configured string) (string, error) {
	if env := os.Getenv("TIMELOCK_SECRET"); env != "" {
		return env, nil
	}
	if configured == "" {
		return "", errors.New("server.secret is not set (or set TIMELOCK_SECRET)")
	}
	return configured, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
