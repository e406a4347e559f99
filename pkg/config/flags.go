package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --upstream
// on both "ssechat serve" and "ssechat serve proxy").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "proxy.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagProxyListen      = "proxy-listen"
	FlagAPIListen        = "api-listen"
	FlagUpstream         = "upstream"
	FlagSQLite           = "sqlite"
	FlagPostgres         = "postgres"
	FlagRedis            = "redis"
	FlagKafkaBrokers     = "kafka-brokers"
	FlagKafkaTopic       = "kafka-topic"
	FlagPolicy           = "policy"
	FlagRejectDuplicates = "reject-duplicate-results"
	FlagTarget           = "target"
	FlagThinking         = "thinking"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry shared by every ssechat command.
var Flags = FlagSet{
	FlagProxyListen:  {Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListen:    {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagUpstream:     {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "Upstream chat server URL"},
	FlagSQLite:       {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to a SQLite turn database"},
	FlagPostgres:     {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for the turn store"},
	FlagRedis:        {Name: "redis", ViperKey: "storage.redis_addr", Description: "Redis address for the turn store"},
	FlagKafkaBrokers: {Name: "kafka-brokers", ViperKey: "publisher.kafka_brokers", Description: "Comma separated Kafka brokers for turn events"},
	FlagKafkaTopic:   {Name: "kafka-topic", ViperKey: "publisher.kafka_topic", Description: "Kafka topic for turn events"},
	FlagPolicy:       {Name: "policy", ViperKey: "session.policy", Description: "Session policy for unknown tool call references (strict, lenient)"},
	FlagRejectDuplicates: {
		Name:        "reject-duplicate-results",
		ViperKey:    "session.reject_duplicate_results",
		Description: "Fail a turn on a second tool_result for the same call",
	},
	FlagTarget:   {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "Streaming chat endpoint URL"},
	FlagThinking: {Name: "thinking", ViperKey: "client.thinking", Description: "Request reasoning output"},

	FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
