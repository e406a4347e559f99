package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/ssechat/pkg/config"
	"github.com/papercomputeco/ssechat/pkg/dotdir"
	"github.com/papercomputeco/ssechat/pkg/session"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	newConfiger := func() *config.Configer {
		c, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("records that the config directory came from the override", func() {
		c := newConfiger()
		Expect(c.GetTarget()).To(Equal(filepath.Join(tmpDir, "config.toml")))
		Expect(c.GetSource()).To(Equal(dotdir.SourceOverride))
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			cfg, err := newConfiger().LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[session]
policy = "lenient"
reject_duplicate_results = true

[storage]
sqlite_path = "/tmp/ssechat.sqlite"
postgres_dsn = "postgres://localhost/ssechat"
redis_addr = "localhost:6379"

[proxy]
upstream = "http://chat.internal:3000"
listen = ":9090"

[api]
listen = ":9091"

[client]
target = "http://myhost:9090/api/chat"
thinking = true

[publisher]
kafka_brokers = "k1:9092,k2:9092"
kafka_topic = "turns"
`)

			cfg, err := newConfiger().LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Session).To(Equal(config.SessionConfig{Policy: "lenient", RejectDuplicateResults: true}))
			Expect(cfg.Storage).To(Equal(config.StorageConfig{
				SQLitePath:  "/tmp/ssechat.sqlite",
				PostgresDSN: "postgres://localhost/ssechat",
				RedisAddr:   "localhost:6379",
			}))
			Expect(cfg.Proxy).To(Equal(config.ProxyConfig{Upstream: "http://chat.internal:3000", Listen: ":9090"}))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.Client).To(Equal(config.ClientConfig{Target: "http://myhost:9090/api/chat", Thinking: true}))
			Expect(cfg.Publisher.Brokers()).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.Publisher.KafkaTopic).To(Equal("turns"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[proxy]
upstream = "http://elsewhere:3000"
`)

			cfg, err := newConfiger().LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Proxy.Upstream).To(Equal("http://elsewhere:3000"))
			Expect(cfg.Proxy.Listen).To(Equal(defaults.Proxy.Listen))
			Expect(cfg.Session.Policy).To(Equal(defaults.Session.Policy))
			Expect(cfg.Publisher.KafkaTopic).To(Equal(defaults.Publisher.KafkaTopic))
		})

		It("returns error for malformed TOML", func() {
			writeConfig(`[proxy`)
			_, err := newConfiger().LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 7\n")
			_, err := newConfiger().LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips every field", func() {
			c := newConfiger()
			cfg := config.NewDefaultConfig()
			cfg.Session.Policy = "lenient"
			cfg.Storage.RedisAddr = "redis:6379"
			cfg.Client.Thinking = true
			cfg.Publisher.KafkaBrokers = "k:9092"

			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			Expect(newConfiger().SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue", func() {
		It("sets a string config key", func() {
			c := newConfiger()
			Expect(c.SetConfigValue("storage.redis_addr", "localhost:6379")).To(Succeed())

			v, err := c.GetConfigValue("storage.redis_addr")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("localhost:6379"))
		})

		It("sets a bool config key", func() {
			c := newConfiger()
			Expect(c.SetConfigValue("client.thinking", "true")).To(Succeed())

			v, err := c.GetConfigValue("client.thinking")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("true"))
		})

		It("rejects an invalid bool", func() {
			err := newConfiger().SetConfigValue("session.reject_duplicate_results", "maybe")
			Expect(err).To(MatchError(ContainSubstring("invalid value for session.reject_duplicate_results")))
		})

		It("validates the session policy", func() {
			c := newConfiger()
			Expect(c.SetConfigValue("session.policy", "lenient")).To(Succeed())
			Expect(c.SetConfigValue("session.policy", "loose")).To(HaveOccurred())

			v, err := c.GetConfigValue("session.policy")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("lenient"))
		})

		It("returns error for unknown key", func() {
			err := newConfiger().SetConfigValue("proxy.provider", "openai")
			Expect(err).To(MatchError(`unknown config key: "proxy.provider"`))
		})

		It("preserves existing values when setting a new key", func() {
			c := newConfiger()
			Expect(c.SetConfigValue("proxy.upstream", "http://a:1")).To(Succeed())
			Expect(c.SetConfigValue("proxy.listen", ":1")).To(Succeed())

			v, err := c.GetConfigValue("proxy.upstream")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("http://a:1"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			v, err := newConfiger().GetConfigValue("client.target")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(config.NewDefaultConfig().Client.Target))
		})

		It("returns empty string for key with no default", func() {
			v, err := newConfiger().GetConfigValue("storage.sqlite_path")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key in section order", func() {
		Expect(config.ValidConfigKeys()).To(Equal([]string{
			"session.policy",
			"session.reject_duplicate_results",
			"storage.sqlite_path",
			"storage.postgres_dsn",
			"storage.redis_addr",
			"proxy.upstream",
			"proxy.listen",
			"api.listen",
			"client.target",
			"client.thinking",
			"publisher.kafka_brokers",
			"publisher.kafka_topic",
		}))
	})

	It("agrees with IsValidConfigKey", func() {
		for _, k := range config.ValidConfigKeys() {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
		Expect(config.IsValidConfigKey("embedding.model")).To(BeFalse())
	})
})

var _ = Describe("SessionOptions", func() {
	It("maps the session section", func() {
		cfg := config.NewDefaultConfig()
		cfg.Session = config.SessionConfig{Policy: "lenient", RejectDuplicateResults: true}

		opts, err := cfg.SessionOptions()
		Expect(err).NotTo(HaveOccurred())
		Expect(opts).To(Equal(session.Options{Policy: session.PolicyLenient, RejectDuplicateResults: true}))
	})

	It("rejects unknown policies", func() {
		cfg := config.NewDefaultConfig()
		cfg.Session.Policy = "whatever"
		_, err := cfg.SessionOptions()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("session.policy")).To(Equal(defaults.Session.Policy))
		Expect(v.GetString("proxy.upstream")).To(Equal(defaults.Proxy.Upstream))
		Expect(v.GetString("proxy.listen")).To(Equal(defaults.Proxy.Listen))
		Expect(v.GetString("api.listen")).To(Equal(defaults.API.Listen))
		Expect(v.GetString("client.target")).To(Equal(defaults.Client.Target))
	})

	It("reads config file values over defaults", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[session]
policy = "lenient"
`), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("session.policy")).To(Equal("lenient"))
		Expect(v.GetString("proxy.listen")).To(Equal(config.NewDefaultConfig().Proxy.Listen))
	})

	It("env vars take precedence over config file values", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[storage]
redis_addr = "file:6379"
`), 0o600)).To(Succeed())

		os.Setenv("SSECHAT_STORAGE_REDIS_ADDR", "env:6379")
		defer os.Unsetenv("SSECHAT_STORAGE_REDIS_ADDR")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("storage.redis_addr")).To(Equal("env:6379"))
	})

	It("decodes the merged state into a Config", func() {
		os.Setenv("SSECHAT_CLIENT_THINKING", "true")
		defer os.Unsetenv("SSECHAT_CLIENT_THINKING")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Decode(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Client.Thinking).To(BeTrue())
		Expect(cfg.Client.Target).To(Equal(config.NewDefaultConfig().Client.Target))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListenStandalone})

		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[api]
listen = ":5555"
`), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListenStandalone})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		config.BindRegisteredFlags(v, &cobra.Command{Use: "test"}, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("proxy.listen")).To(Equal(config.NewDefaultConfig().Proxy.Listen))
	})

	It("AddStringFlag pulls name, shorthand, default and description from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &target)

		f := cmd.Flags().Lookup("target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("t"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Client.Target))
		Expect(f.Usage).To(Equal("Streaming chat endpoint URL"))
	})

	It("AddBoolFlag registers bool flags", func() {
		cmd := &cobra.Command{Use: "test"}
		var thinking bool
		config.AddBoolFlag(cmd, config.Flags, config.FlagThinking, &thinking)

		Expect(cmd.Flags().Set("thinking", "true")).To(Succeed())
		Expect(thinking).To(BeTrue())
	})
})

var _ = Describe("LoadForCommand", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(`[session]
policy = "lenient"

[proxy]
upstream = "http://chat.internal:5000"
`), 0o600)).To(Succeed())
	})

	newCmd := func(upstream *string) *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String(config.ConfigDirFlag, "", "")
		config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, upstream)
		Expect(cmd.Flags().Set(config.ConfigDirFlag, tmpDir)).To(Succeed())
		return cmd
	}

	It("reads the file named by --config-dir", func() {
		var upstream string
		cfg, err := config.LoadForCommand(newCmd(&upstream), config.FlagUpstream)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Proxy.Upstream).To(Equal("http://chat.internal:5000"))
		Expect(cfg.Session.Policy).To(Equal("lenient"))
	})

	It("lets a set flag win over the file", func() {
		var upstream string
		cmd := newCmd(&upstream)
		Expect(cmd.Flags().Set("upstream", "http://other:1")).To(Succeed())

		cfg, err := config.LoadForCommand(cmd, config.FlagUpstream)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Proxy.Upstream).To(Equal("http://other:1"))
	})
})
