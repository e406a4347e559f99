package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ssechat/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .ssechat/ directory. Boolean keys accept true or false;
session.policy accepts strict or lenient.

Examples:
  ssechat config set session.policy lenient
  ssechat config set storage.sqlite_path ~/.ssechat/turns.db
  ssechat config set publisher.kafka_brokers localhost:9092`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			key, value := args[0], args[1]

			cfger, err := openConfiger(w, cmd, key)
			if err != nil {
				return err
			}

			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			fmt.Fprintf(w, "  %s Set %s = %s\n\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(key),
				cliui.ValueStyle.Render(value),
			)
			return nil
		},
	}
}
