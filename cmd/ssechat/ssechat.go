// Package ssechatcmder is the root of the ssechat command tree.
package ssechatcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/ssechat/cmd/ssechat/chat"
	configcmder "github.com/papercomputeco/ssechat/cmd/ssechat/config"
	decodecmder "github.com/papercomputeco/ssechat/cmd/ssechat/decode"
	replaycmder "github.com/papercomputeco/ssechat/cmd/ssechat/replay"
	servecmder "github.com/papercomputeco/ssechat/cmd/ssechat/serve"
	versioncmder "github.com/papercomputeco/ssechat/cmd/version"
	"github.com/papercomputeco/ssechat/pkg/config"
)

const ssechatLongDesc string = `ssechat speaks the streaming chat turn protocol: server-sent events
carrying a model's reasoning, tool calls, tool results and answer.

Talk to a chat server:
  ssechat chat "What is Moutai trading at?"

Inspect a recorded turn:
  ssechat decode turn.sse

Run services:
  ssechat serve          Run the recording proxy and the API server
  ssechat serve proxy    Run the proxy server
  ssechat serve api      Run the API server
  ssechat replay FILE    Serve a recorded turn as a chat server`

const ssechatShortDesc string = "ssechat - streaming chat turn toolkit"

func NewSsechatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ssechat",
		Short:        ssechatShortDesc,
		Long:         ssechatLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(config.ConfigDirFlag, "", "Override path to .ssechat/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(decodecmder.NewDecodeCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
