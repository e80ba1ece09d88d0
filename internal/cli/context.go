package cli

import (
	"fmt"
	"os"

	"github.com/jvs-project/timelock/pkg/config"
	"github.com/jvs-project/timelock/pkg/logging"
)

// loadConfig reads --config. A missing file yields the defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section and installs
// it as the global logger.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log := logging.NewLogger(level)
	log.SetOutput(os.Stderr)
	if cfg.Format != "" {
		log.SetFormat(logging.Format(cfg.Format))
	}
	logging.SetGlobal(log)
	return log, nil
}
