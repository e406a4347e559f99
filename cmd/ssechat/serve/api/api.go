// Package apicmder provides the API server cobra command.
package apicmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/api"
	"github.com/papercomputeco/ssechat/pkg/backend"
	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/logger"
)

type apiCommander struct {
	listen      string
	sqlitePath  string
	postgresDSN string
	redisAddr   string
	debug       bool

	cfg    *config.Config
	logger *zap.Logger
}

var apiFlags = []string{
	config.FlagAPIListenStandalone,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagRedis,
}

const apiLongDesc string = `Run the ssechat API server for inspecting stored chat turns.

Endpoints:
  GET /ping          Health check
  GET /turns         List stored turns, newest first (?limit=N)
  GET /turns/stats   Aggregate counts over stored turns
  GET /turns/:id     A single stored turn
  /mcp               MCP tools: list_turns, get_turn, turn_stats`

const apiShortDesc string = "Run the ssechat API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, apiFlags...)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedis, &cmder.redisAddr)

	return cmd
}

func (c *apiCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	driver, err := backend.OpenStorage(context.Background(), c.cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	server := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)

	c.logger.Info("starting API server",
		zap.String("listen", c.cfg.API.Listen),
	)

	return server.Run()
}
