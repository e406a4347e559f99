package replaycmder_test

import (
	"bytes"
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	replaycmder "github.com/papercomputeco/ssechat/cmd/ssechat/replay"
)

var _ = Describe("replay command", func() {
	run := func(stdin string, args ...string) error {
		root := &cobra.Command{Use: "ssechat"}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.AddCommand(replaycmder.NewReplayCmd())
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"replay"}, args...))
		return root.ExecuteContext(context.Background())
	}

	It("registers its flags", func() {
		cmd := replaycmder.NewReplayCmd()
		Expect(cmd.Flags().Lookup("listen").DefValue).To(Equal(":3000"))
		Expect(cmd.Flags().Lookup("path").DefValue).To(Equal("/chat/endpoint"))
		Expect(cmd.Flags().Lookup("verbatim")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("delay")).NotTo(BeNil())
	})

	It("fails on a missing recording file", func() {
		err := run("", "does-not-exist.sse")
		Expect(err).To(MatchError(ContainSubstring("opening recording")))
	})

	It("fails on a malformed recording before listening", func() {
		err := run("event: message\ndata: {oops\n\n", "-")
		Expect(err).To(MatchError(ContainSubstring("decoding recording")))
	})
})
