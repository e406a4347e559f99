package config

import (
	"github.com/spf13/cobra"
)

// ConfigDirFlag is the persistent flag that overrides .ssechat/ resolution.
const ConfigDirFlag = "config-dir"

// LoadForCommand resolves the configuration for cmd. Values come from, in
// increasing precedence: defaults, config.toml, SSECHAT_* environment
// variables and the registry flags named by keys.
func LoadForCommand(cmd *cobra.Command, keys ...string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString(ConfigDirFlag)

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	BindRegisteredFlags(v, cmd, Flags, keys)

	return Decode(v)
}
