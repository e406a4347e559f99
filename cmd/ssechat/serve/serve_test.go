package servecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	servecmder "github.com/papercomputeco/ssechat/cmd/ssechat/serve"
)

func subcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name {
			return sub
		}
	}
	return nil
}

var _ = Describe("serve command", func() {
	var cmd *cobra.Command

	BeforeEach(func() {
		cmd = servecmder.NewServeCmd()
	})

	It("registers the combined flags with their defaults", func() {
		Expect(cmd.Flags().Lookup("proxy-listen").DefValue).To(Equal(":8080"))
		Expect(cmd.Flags().Lookup("api-listen").DefValue).To(Equal(":8081"))
		Expect(cmd.Flags().Lookup("upstream").DefValue).To(Equal("http://localhost:3000"))
		Expect(cmd.Flags().Lookup("policy").DefValue).To(Equal("strict"))
		Expect(cmd.Flags().Lookup("kafka-topic").DefValue).To(Equal("ssechat.turns"))
		Expect(cmd.Flags().Lookup("sqlite")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("postgres")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("redis")).NotTo(BeNil())
	})

	It("has api and proxy subcommands using a standalone listen flag", func() {
		proxyCmd := subcommand(cmd, "proxy")
		Expect(proxyCmd).NotTo(BeNil())
		Expect(proxyCmd.Flags().Lookup("listen").DefValue).To(Equal(":8080"))
		Expect(proxyCmd.Flags().Lookup("workers")).NotTo(BeNil())

		apiCmd := subcommand(cmd, "api")
		Expect(apiCmd).NotTo(BeNil())
		Expect(apiCmd.Flags().Lookup("listen").DefValue).To(Equal(":8081"))
		Expect(apiCmd.Flags().Lookup("upstream")).To(BeNil())
	})
})
