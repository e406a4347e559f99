package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/ssechat/pkg/session"
)

// Config represents the persistent ssechat configuration stored as
// config.toml in the .ssechat/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Session   SessionConfig   `toml:"session"`
	Storage   StorageConfig   `toml:"storage"`
	Proxy     ProxyConfig     `toml:"proxy"`
	API       APIConfig       `toml:"api"`
	Client    ClientConfig    `toml:"client"`
	Publisher PublisherConfig `toml:"publisher"`
}

// SessionConfig controls how strictly chat turns are validated.
type SessionConfig struct {
	// Policy is "strict" or "lenient".
	Policy                 string `toml:"policy,omitempty"`
	RejectDuplicateResults bool   `toml:"reject_duplicate_results,omitempty"`
}

// StorageConfig selects the turn store. At most one backend should be set;
// with none, turns are kept in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	RedisAddr   string `toml:"redis_addr,omitempty"`
}

// ProxyConfig holds proxy-specific settings.
type ProxyConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Listen   string `toml:"listen,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for "ssechat chat". Target is the full URL of
// the streaming chat endpoint.
type ClientConfig struct {
	Target   string `toml:"target,omitempty"`
	Thinking bool   `toml:"thinking,omitempty"`
}

// PublisherConfig enables publishing assembled turns to Kafka. Brokers is a
// comma separated list; publishing is off when it is empty.
type PublisherConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// SessionOptions converts the session section to state machine options.
func (c *Config) SessionOptions() (session.Options, error) {
	policy, err := session.ParsePolicy(c.Session.Policy)
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		Policy:                 policy,
		RejectDuplicateResults: c.Session.RejectDuplicateResults,
	}, nil
}

// Brokers splits KafkaBrokers into addresses.
func (p PublisherConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(p.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func boolKey(key string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"session.policy": {
		get: func(c *Config) string { return c.Session.Policy },
		set: func(c *Config, v string) error {
			if _, err := session.ParsePolicy(v); err != nil {
				return err
			}
			c.Session.Policy = v
			return nil
		},
	},
	"session.reject_duplicate_results": boolKey("session.reject_duplicate_results",
		func(c *Config) *bool { return &c.Session.RejectDuplicateResults }),

	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.redis_addr":   stringKey(func(c *Config) *string { return &c.Storage.RedisAddr }),

	"proxy.upstream": stringKey(func(c *Config) *string { return &c.Proxy.Upstream }),
	"proxy.listen":   stringKey(func(c *Config) *string { return &c.Proxy.Listen }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"client.target":   stringKey(func(c *Config) *string { return &c.Client.Target }),
	"client.thinking": boolKey("client.thinking", func(c *Config) *bool { return &c.Client.Thinking }),

	"publisher.kafka_brokers": stringKey(func(c *Config) *string { return &c.Publisher.KafkaBrokers }),
	"publisher.kafka_topic":   stringKey(func(c *Config) *string { return &c.Publisher.KafkaTopic }),
}
