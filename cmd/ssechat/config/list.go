package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ssechat/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .ssechat/ directory.`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()

			cfger, err := openConfiger(w, cmd, "")
			if err != nil {
				return err
			}

			keys := config.ValidConfigKeys()

			maxLen := 0
			for _, k := range keys {
				maxLen = max(maxLen, len(k))
			}

			for _, key := range keys {
				value, err := cfger.GetConfigValue(key)
				if err != nil {
					return err
				}

				if value == "" {
					fmt.Fprintf(w, "%-*s = <not set>\n", maxLen, key)
				} else {
					fmt.Fprintf(w, "%-*s = %q\n", maxLen, key, value)
				}
			}
			return nil
		},
	}
}
