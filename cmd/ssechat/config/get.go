package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ssechat/pkg/cliui"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file
stored in the .ssechat/ directory.

Examples:
  ssechat config get session.policy
  ssechat config get client.target`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get <key>",
		Short:             getShortDesc,
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			key := args[0]

			cfger, err := openConfiger(w, cmd, key)
			if err != nil {
				return err
			}

			value, err := cfger.GetConfigValue(key)
			if err != nil {
				return err
			}

			if value == "" {
				fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
			} else {
				fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
			}
			return nil
		},
	}
}
