package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
)

// loadConfig reads .env files and the config file and returns the path the
// configuration came from. When --config was not given and the default file
// is missing, the built-in development configuration with a single echo
// provider is used and the path is empty.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, "", cli.NewConfigError("env-file", err.Error())
	}

	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) {
			return config.NewDefaultConfig(), "", nil
		}
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, "", cli.NewConfigError(cfgFile, err.Error())
	}
	return cfg, cfgFile, nil
}
