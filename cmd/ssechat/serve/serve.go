// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/api"
	apicmder "github.com/papercomputeco/ssechat/cmd/ssechat/serve/api"
	proxycmder "github.com/papercomputeco/ssechat/cmd/ssechat/serve/proxy"
	"github.com/papercomputeco/ssechat/pkg/backend"
	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/logger"
	"github.com/papercomputeco/ssechat/proxy"
)

type serveCommander struct {
	proxyListen      string
	apiListen        string
	upstream         string
	sqlitePath       string
	postgresDSN      string
	redisAddr        string
	kafkaBrokers     string
	kafkaTopic       string
	policy           string
	rejectDuplicates bool
	debug            bool

	cfg    *config.Config
	logger *zap.Logger
}

// serveFlags are the registry flags the combined serve command binds.
var serveFlags = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagRedis,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagPolicy,
	config.FlagRejectDuplicates,
}

const serveLongDesc string = `Run ssechat services.

Use subcommands to run individual services or all services together:
  ssechat serve          Run both proxy and API server together
  ssechat serve api      Run just the API server
  ssechat serve proxy    Run just the proxy server

The proxy relays chat turn streams from the upstream chat server unchanged
and stores every assembled turn. The API server reads the same store.`

const serveShortDesc string = "Run ssechat services"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, serveFlags...)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedis, &cmder.redisAddr)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagPolicy, &cmder.policy)
	config.AddBoolFlag(cmd, config.Flags, config.FlagRejectDuplicates, &cmder.rejectDuplicates)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	sessionOpts, err := c.cfg.SessionOptions()
	if err != nil {
		return err
	}

	// Shared store for the proxy and the API server
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
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	c.logger.Info("starting proxy",
		zap.String("proxy_addr", c.cfg.Proxy.Listen),
		zap.String("upstream", c.cfg.Proxy.Upstream),
		zap.String("policy", sessionOpts.Policy.String()),
	)

	apiServer := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	defer func() { _ = apiServer.Shutdown() }()

	c.logger.Info("starting api server",
		zap.String("api_addr", c.cfg.API.Listen),
	)

	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}
