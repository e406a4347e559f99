// Package chatcmder provides the chat command, which sends prompts to a chat
// server and prints the streamed turn as it arrives.
package chatcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/client"
	"github.com/papercomputeco/ssechat/pkg/cliui"
	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/dotdir"
	"github.com/papercomputeco/ssechat/pkg/logger"
	"github.com/papercomputeco/ssechat/pkg/session"
	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/utils"
)

var userPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")

type chatCommander struct {
	target           string
	thinking         bool
	policy           string
	rejectDuplicates bool
	sync             bool
	markdown         bool
	last             bool
	forget           bool
	debug            bool
	configDir        string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
	client *client.Client
}

const chatLongDesc string = `Send prompts to a chat server.

With a prompt as arguments a single turn is sent; without arguments prompts
are read from stdin, one per line, until /exit or EOF. Each streamed turn is
printed as it arrives and the assembled turn is saved to the .ssechat/
directory, where "ssechat chat --last" shows it again.

Point --target at the relay proxy ("ssechat serve proxy") to have turns
stored as well.

Examples:
  ssechat chat "What does Moutai trade at?"
  ssechat chat --thinking --target http://localhost:5000/chat/endpoint
  ssechat chat --sync "Summarise today's market"
  ssechat chat --last
  ssechat chat --forget`

const chatShortDesc string = "Send prompts to a chat server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd,
				config.FlagTarget,
				config.FlagThinking,
				config.FlagPolicy,
				config.FlagRejectDuplicates,
			)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.target = cfg.Client.Target
			cmder.thinking = cfg.Client.Thinking
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
			cmder.configDir, _ = cmd.Flags().GetString(config.ConfigDirFlag)
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run(cmd.Context(), strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddBoolFlag(cmd, config.Flags, config.FlagThinking, &cmder.thinking)
	config.AddStringFlag(cmd, config.Flags, config.FlagPolicy, &cmder.policy)
	config.AddBoolFlag(cmd, config.Flags, config.FlagRejectDuplicates, &cmder.rejectDuplicates)
	cmd.Flags().BoolVar(&cmder.sync, "sync", false, "Use the synchronous endpoint and print only the final answer")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Print a markdown rendered summary after each streamed turn")
	cmd.Flags().BoolVar(&cmder.last, "last", false, "Print the last saved turn and exit")
	cmd.Flags().BoolVar(&cmder.forget, "forget", false, "Delete the saved last turn and exit")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, prompt string) error {
	c.logger = logger.NewLoggerWithWriters(c.debug, c.errOut)
	defer func() { _ = c.logger.Sync() }()

	if c.last {
		return c.printLast()
	}
	if c.forget {
		return dotdir.NewManager().ClearState(dotdir.LastTurnState, c.configDir)
	}

	policy, err := session.ParsePolicy(c.policy)
	if err != nil {
		return err
	}

	c.client, err = client.New(c.target,
		client.WithLogger(c.logger),
		client.WithSessionOptions(session.Options{
			Policy:                 policy,
			RejectDuplicateResults: c.rejectDuplicates,
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.TrimSpace(prompt) != "" {
		return c.send(ctx, prompt)
	}

	fmt.Fprintf(c.out, "\n  %s %s\n", cliui.KeyStyle.Render("Target:"), cliui.NameStyle.Render(c.target))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.send(ctx, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
		}
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// send runs one turn, printing it and saving it as the last turn.
func (c *chatCommander) send(ctx context.Context, prompt string) error {
	req := client.Request{Prompt: prompt, Thinking: c.thinking}

	if c.sync {
		var resp *client.SyncResponse
		err := cliui.Step(c.errOut, "waiting for answer", func() error {
			var err error
			resp, err = c.client.Sync(ctx, req)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, syncText(resp.Result))
		return nil
	}

	start := time.Now()
	printer := cliui.NewStreamPrinter(c.out)
	res, runErr := c.client.Stream(ctx, req, printer.Observe)
	if res == nil {
		return runErr
	}

	if c.markdown {
		fmt.Fprintln(c.out)
		if err := cliui.RenderTurn(c.out, res, true); err != nil {
			return err
		}
	}

	rec := storage.NewRecord(client.Source, targetPath(c.target), start, res, runErr)
	if err := dotdir.NewManager().SaveState(dotdir.LastTurnState, rec, c.configDir); err != nil {
		c.logger.Warn("could not save last turn", zap.Error(err))
	} else {
		c.logger.Debug("saved last turn", zap.String("id", rec.ID))
	}

	return runErr
}

func (c *chatCommander) printLast() error {
	var rec storage.Record
	ok, err := dotdir.NewManager().LoadState(dotdir.LastTurnState, &rec, c.configDir)
	if err != nil {
		return fmt.Errorf("loading last turn: %w", err)
	}
	if !ok {
		return errors.New("no turn saved yet")
	}

	fmt.Fprintf(c.out, "%s %s %s\n\n",
		cliui.KeyStyle.Render("Turn:"),
		cliui.NameStyle.Render(utils.Truncate(rec.ID, 8)),
		cliui.DimStyle.Render(rec.CompletedAt.Local().Format(time.DateTime)),
	)
	if rec.Error != "" {
		fmt.Fprintf(c.out, "%s %s\n\n", cliui.FailMark, cliui.ErrorStyle.Render(rec.Error))
	}
	return cliui.RenderTurn(c.out, rec.Turn, true)
}

func syncText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func targetPath(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Path
}
