// Package configcmder provides the config command for managing persistent
// ssechat configuration stored in the .ssechat/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ssechat/pkg/cliui"
	"github.com/papercomputeco/ssechat/pkg/config"
)

const configLongDesc string = `Manage persistent ssechat configuration.

Configuration is stored as config.toml in the .ssechat/ directory and provides
default values for command flags. CLI flags and SSECHAT_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  session.policy, session.reject_duplicate_results,
  storage.sqlite_path, storage.postgres_dsn, storage.redis_addr,
  proxy.upstream, proxy.listen, api.listen,
  client.target, client.thinking,
  publisher.kafka_brokers, publisher.kafka_topic

Use subcommands to get, set, or list configuration values:
  ssechat config set <key> <value>    Set a configuration value
  ssechat config get <key>            Get a configuration value
  ssechat config list                 List all configuration values

Examples:
  ssechat config set session.policy lenient
  ssechat config set proxy.upstream http://localhost:5000
  ssechat config get storage.sqlite_path
  ssechat config list`

const configShortDesc string = "Manage persistent ssechat configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys offers config keys for the first positional argument.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// openConfiger validates key (when given) and opens the config file,
// announcing which one is used.
func openConfiger(w io.Writer, cmd *cobra.Command, key string) (*config.Configer, error) {
	if key != "" && !config.IsValidConfigKey(key) {
		return nil, fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}

	configDir, _ := cmd.Flags().GetString(config.ConfigDirFlag)
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
			cliui.DimStyle.Render("("+cfger.GetSource().String()+")"),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	return cfger, nil
}
