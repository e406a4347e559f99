// Package proxycmder provides the proxy server command.
package proxycmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/backend"
	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/logger"
	"github.com/papercomputeco/ssechat/proxy"
)

type proxyCommander struct {
	listen           string
	upstream         string
	sqlitePath       string
	postgresDSN      string
	redisAddr        string
	kafkaBrokers     string
	kafkaTopic       string
	policy           string
	rejectDuplicates bool
	workers          uint
	debug            bool

	cfg    *config.Config
	logger *zap.Logger
}

var proxyFlags = []string{
	config.FlagProxyListenStandalone,
	config.FlagUpstream,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagRedis,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagPolicy,
	config.FlagRejectDuplicates,
}

const proxyLongDesc string = `Run the proxy server.

The proxy forwards every request to the configured upstream chat server.
Chat turn streams (text/event-stream responses) are relayed to the client
byte for byte while a copy is decoded, validated and assembled. Each
assembled turn is stored, including turns that ended in a protocol
violation, and optionally published to Kafka.

Clients may label their turns with the X-Ssechat-Source header; the header
is not forwarded upstream.`

const proxyShortDesc string = "Run the ssechat proxy server"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, proxyFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedis, &cmder.redisAddr)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagPolicy, &cmder.policy)
	config.AddBoolFlag(cmd, config.Flags, config.FlagRejectDuplicates, &cmder.rejectDuplicates)
	cmd.Flags().UintVar(&cmder.workers, "workers", 0, "Number of storage workers (default: pool default)")

	return cmd
}

func (c *proxyCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	sessionOpts, err := c.cfg.SessionOptions()
	if err != nil {
		return err
	}

	driver, err := backend.OpenStorage(context.Background(), c.cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.OpenPublisher(c.cfg.Publisher, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	p, err := proxy.New(proxy.Config{
		ListenAddr:  c.cfg.Proxy.Listen,
		UpstreamURL: c.cfg.Proxy.Upstream,
		Session:     sessionOpts,
		Publisher:   publisher,
		NumWorkers:  c.workers,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	c.logger.Info("starting proxy server",
		zap.String("listen", c.cfg.Proxy.Listen),
		zap.String("upstream", c.cfg.Proxy.Upstream),
		zap.String("policy", sessionOpts.Policy.String()),
	)

	return p.Run()
}
