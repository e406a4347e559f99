// Package decodecmder provides the decode command, which validates and
// assembles a recorded chat turn stream.
package decodecmder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
	"github.com/papercomputeco/ssechat/pkg/cliui"
	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/logger"
	"github.com/papercomputeco/ssechat/pkg/pipeline"
	"github.com/papercomputeco/ssechat/pkg/session"
)

type decodeCommander struct {
	policy           string
	rejectDuplicates bool
	jsonOut          bool
	raw              bool
	quiet            bool
	debug            bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

const decodeLongDesc string = `Decode a recorded chat turn stream.

Reads an SSE chat turn from a file, or from stdin when the file is "-" or
omitted, validates it against the session rules and prints the assembled
turn. Protocol warnings are logged to stderr. The command fails when the
stream violates the protocol or ends without an end or error event; the
partial turn is still printed.

Examples:
  ssechat decode turn.sse
  curl -sN -X POST -d '{"prompt":"hi"}' http://localhost:5000/chat/endpoint | ssechat decode
  ssechat decode --json --policy lenient turn.sse
  ssechat decode --raw turn.sse > copy.sse`

const decodeShortDesc string = "Validate and assemble a recorded chat turn stream"

func NewDecodeCmd() *cobra.Command {
	cmder := &decodeCommander{}

	cmd := &cobra.Command{
		Use:   "decode [file|-]",
		Short: decodeShortDesc,
		Long:  decodeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		// Usage text would corrupt --json and --raw output on stdout.
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, config.FlagPolicy, config.FlagRejectDuplicates)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.policy = cfg.Session.Policy
			cmder.rejectDuplicates = cfg.Session.RejectDuplicateResults
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening stream: %w", err)
				}
				defer f.Close()
				cmder.in = f
			}
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagPolicy, &cmder.policy)
	config.AddBoolFlag(cmd, config.Flags, config.FlagRejectDuplicates, &cmder.rejectDuplicates)
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the assembled turn as JSON")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Echo the raw stream to stdout instead of printing the turn")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Only print the summary, not each event")

	return cmd
}

func (c *decodeCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLoggerWithWriters(c.debug, c.errOut)
	defer func() { _ = c.logger.Sync() }()

	policy, err := session.ParsePolicy(c.policy)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(c.logger),
		pipeline.WithSessionOptions(session.Options{
			Policy:                 policy,
			RejectDuplicateResults: c.rejectDuplicates,
		}),
	}

	var dec *chatevent.Decoder
	switch {
	case c.raw:
		dec = chatevent.NewTeeDecoder(c.in, c.out)
	case !c.jsonOut && !c.quiet:
		dec = chatevent.NewDecoder(c.in)
		opts = append(opts, pipeline.WithObserver(cliui.NewStreamPrinter(c.out).Observe))
	default:
		dec = chatevent.NewDecoder(c.in)
	}

	sess := pipeline.New(opts...)
	res, runErr := sess.RunDecoder(cmd.Context(), dec)

	if warnings := sess.Warnings(); len(warnings) > 0 {
		c.logger.Info("stream decoded with warnings", zap.Int("warnings", len(warnings)))
	}

	switch {
	case c.raw:
	case c.jsonOut:
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encoding turn: %w", err)
		}
	case c.quiet:
		if err := cliui.RenderTurn(c.out, res, false); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("decoding stream: %w", runErr)
	}
	return nil
}
