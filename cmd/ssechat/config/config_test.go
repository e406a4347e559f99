package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/ssechat/cmd/ssechat/config"
	"github.com/papercomputeco/ssechat/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))

		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		configDir = filepath.Join(GinkgoT().TempDir(), ".ssechat")
		Expect(os.MkdirAll(configDir, 0o755)).To(Succeed())
		out = &bytes.Buffer{}
	})

	// run executes the config command as the root command would, with the
	// persistent --config-dir flag pointing at the temp directory.
	run := func(args ...string) error {
		root := &cobra.Command{Use: "ssechat"}
		root.PersistentFlags().String(config.ConfigDirFlag, "", "")
		root.AddCommand(configcmder.NewConfigCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"config", "--" + config.ConfigDirFlag, configDir}, args...))
		return root.Execute()
	}

	Describe("set", func() {
		It("writes the value to config.toml", func() {
			Expect(run("set", "session.policy", "lenient")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(configDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`policy = "lenient"`))
			Expect(out.String()).To(ContainSubstring("session.policy"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "proxy.provider", "anthropic")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects invalid policies", func() {
			Expect(run("set", "session.policy", "sloppy")).To(HaveOccurred())
		})

		It("rejects invalid booleans", func() {
			Expect(run("set", "client.thinking", "maybe")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "session.policy")).To(HaveOccurred())
		})
	})

	Describe("get", func() {
		It("prints a previously set value", func() {
			Expect(run("set", "proxy.upstream", "http://chat.internal:5000")).To(Succeed())
			out.Reset()

			Expect(run("get", "proxy.upstream")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("http://chat.internal:5000"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list", func() {
		It("lists every key", func() {
			Expect(run("list")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
