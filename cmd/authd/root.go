package main

import (
	"github.com/spf13/cobra"

	"github.com/caffeine-addictt/greenbitessg-sub000/config"
)

var configPath string

// flagOverrides are applied after the file and the environment
var flagOverrides struct {
	addr   string
	driver string
	dsn    string
}

var rootCmd = &cobra.Command{
	Use:           "authd",
	Short:         "greenbites authentication service",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&flagOverrides.addr, "addr", "", "listen address, overrides server.addr")
	flags.StringVar(&flagOverrides.driver, "db-driver", "", "database driver (sqlite or postgres)")
	flags.StringVar(&flagOverrides.dsn, "db-dsn", "", "database DSN")
}

// loadConfig resolves the layered configuration and validates it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if flagOverrides.addr != "" {
		cfg.Server.Addr = flagOverrides.addr
	}
	if flagOverrides.driver != "" {
		cfg.Database.Driver = flagOverrides.driver
	}
	if flagOverrides.dsn != "" {
		cfg.Database.DSN = flagOverrides.dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
