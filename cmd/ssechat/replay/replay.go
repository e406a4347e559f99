// Package replaycmder provides the replay command, which serves a recorded
// chat turn as a stand-in chat server.
package replaycmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/logger"
	"github.com/papercomputeco/ssechat/pkg/replay"
)

type replayCommander struct {
	listen   string
	path     string
	delay    time.Duration
	verbatim bool
	debug    bool

	logger *zap.Logger
}

const replayLongDesc string = `Serve a recorded chat turn.

Starts an HTTP server that answers every chat request with the recorded
turn, streamed as server-sent events on the chat endpoint and as a single
JSON payload on its "-sync" variant. Point the proxy upstream or the chat
command at it to exercise them without a live model.

The recording is decoded and re-encoded by default, dropping unknown events
and comments. Use --verbatim to serve the recorded bytes unchanged.

Examples:
  ssechat replay turn.sse
  ssechat replay --delay 50ms turn.sse
  ssechat replay --listen :5000 --verbatim turn.sse`

const replayShortDesc string = "Serve a recorded chat turn as a chat server"

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay [file|-]",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening recording: %w", err)
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, in, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", ":3000", "Address for the replay server to listen on")
	cmd.Flags().StringVar(&cmder.path, "path", replay.DefaultPath, "Streaming chat endpoint path")
	cmd.Flags().DurationVar(&cmder.delay, "delay", 0, "Pause before each replayed event")
	cmd.Flags().BoolVar(&cmder.verbatim, "verbatim", false, "Serve the recorded bytes unchanged")

	return cmd
}

func (c *replayCommander) run(ctx context.Context, in io.Reader, errOut io.Writer) error {
	c.logger = logger.NewLoggerWithWriters(c.debug, errOut)
	defer func() { _ = c.logger.Sync() }()

	rec, err := replay.Load(in)
	if err != nil {
		return err
	}

	server, err := replay.NewServer(replay.Config{
		ListenAddr: c.listen,
		Path:       c.path,
		Delay:      c.delay,
		Verbatim:   c.verbatim,
	}, rec, c.logger)
	if err != nil {
		return err
	}

	return server.Serve(ctx)
}
