package session_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
	"github.com/papercomputeco/ssechat/pkg/session"
)

func call(id string) chatevent.ToolCall {
	return chatevent.ToolCall{ID: id, Kind: "function", Name: "quote", Arguments: map[string]any{}}
}

func result(id string, v any) chatevent.ToolResult {
	return chatevent.ToolResult{ToolCallID: id, Outcome: chatevent.Success(v)}
}

var end = chatevent.End{FinishReason: "stop"}

var _ = Describe("Machine", func() {
	var m *session.Machine

	BeforeEach(func() {
		m = session.NewMachine(session.Options{})
	})

	Describe("transitions", func() {
		It("walks NotStarted → Started → Streaming → Terminated", func() {
			Expect(m.State()).To(Equal(session.NotStarted))

			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
			Expect(m.State()).To(Equal(session.Started))

			Expect(m.Advance(chatevent.Message{Content: "a"})).To(Succeed())
			Expect(m.State()).To(Equal(session.Streaming))

			Expect(m.Advance(chatevent.Message{Content: "b"})).To(Succeed())
			Expect(m.State()).To(Equal(session.Streaming))

			Expect(m.Advance(end)).To(Succeed())
			Expect(m.State()).To(Equal(session.Terminated))
		})

		It("allows termination straight after start", func() {
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
			Expect(m.Advance(chatevent.Error{FinishReason: "error"})).To(Succeed())
			Expect(m.State()).To(Equal(session.Terminated))
		})

		It("rejects a first event other than start", func() {
			err := m.Advance(chatevent.Message{Content: "a"})
			Expect(err).To(MatchError(chatevent.ErrUnexpectedFirstEvent))
			Expect(chatevent.IsFatal(err)).To(BeTrue())
			Expect(m.State()).To(Equal(session.NotStarted))
		})

		It("rejects a second start", func() {
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(MatchError(chatevent.ErrUnexpectedFirstEvent))
		})

		It("is absorbing once terminated", func() {
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
			Expect(m.Advance(end)).To(Succeed())

			for _, ev := range []chatevent.Event{chatevent.Message{}, end, chatevent.Start{}, chatevent.Error{}} {
				err := m.Advance(ev)
				Expect(err).To(MatchError(chatevent.ErrEventAfterTermination))
				Expect(chatevent.IsFatal(err)).To(BeTrue())
			}
			Expect(m.State()).To(Equal(session.Terminated))
		})
	})

	Describe("reasoning", func() {
		It("accepts reasoning when enabled", func() {
			Expect(m.Advance(chatevent.Start{Model: "m", ReasoningEnabled: true})).To(Succeed())
			Expect(m.ReasoningEnabled()).To(BeTrue())
			Expect(m.Advance(chatevent.Reasoning{Content: "hmm"})).To(Succeed())
		})

		It("rejects reasoning when disabled", func() {
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
			err := m.Advance(chatevent.Reasoning{Content: "hmm"})
			Expect(err).To(MatchError(chatevent.ErrUnexpectedReasoningEvent))
			Expect(chatevent.IsFatal(err)).To(BeTrue())
			Expect(m.State()).To(Equal(session.Started))
		})
	})

	Describe("tool results", func() {
		BeforeEach(func() {
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
		})

		It("permits interleaved in-flight calls", func() {
			Expect(m.Advance(call("a"))).To(Succeed())
			Expect(m.Advance(call("b"))).To(Succeed())
			Expect(m.Advance(result("a", 1.0))).To(Succeed())
			Expect(m.Advance(result("b", 2.0))).To(Succeed())
		})

		It("permits results out of call order", func() {
			Expect(m.Advance(call("a"))).To(Succeed())
			Expect(m.Advance(call("b"))).To(Succeed())
			Expect(m.Advance(result("b", 2.0))).To(Succeed())
			Expect(m.Advance(result("a", 1.0))).To(Succeed())
		})

		It("rejects unknown references in strict mode", func() {
			err := m.Advance(result("ghost", nil))
			Expect(err).To(MatchError(chatevent.ErrUnknownToolCallReference))
			Expect(chatevent.IsFatal(err)).To(BeTrue())
			Expect(m.State()).To(Equal(session.Started))
		})

		It("rejects a result that precedes its call", func() {
			Expect(m.Advance(result("a", nil))).To(MatchError(chatevent.ErrUnknownToolCallReference))
		})

		It("accepts duplicate results by default", func() {
			Expect(m.Advance(call("a"))).To(Succeed())
			Expect(m.Advance(result("a", 1.0))).To(Succeed())
			Expect(m.Advance(result("a", 2.0))).To(Succeed())
		})
	})

	Describe("lenient policy", func() {
		BeforeEach(func() {
			m = session.NewMachine(session.Options{Policy: session.PolicyLenient})
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
		})

		It("warns on unknown references and keeps streaming", func() {
			err := m.Advance(result("ghost", nil))
			Expect(err).To(MatchError(chatevent.ErrUnknownToolCallReference))
			Expect(chatevent.IsFatal(err)).To(BeFalse())
			Expect(m.State()).To(Equal(session.Streaming))

			Expect(m.Advance(end)).To(Succeed())
		})
	})

	Describe("duplicate rejection", func() {
		BeforeEach(func() {
			m = session.NewMachine(session.Options{RejectDuplicateResults: true})
			Expect(m.Advance(chatevent.Start{Model: "m"})).To(Succeed())
			Expect(m.Advance(call("a"))).To(Succeed())
			Expect(m.Advance(result("a", 1.0))).To(Succeed())
		})

		It("rejects a second result for the same call", func() {
			err := m.Advance(result("a", 2.0))
			Expect(err).To(MatchError(chatevent.ErrDuplicateToolResult))
			Expect(chatevent.IsFatal(err)).To(BeTrue())
		})
	})

	Describe("ParsePolicy", func() {
		It("parses known policies", func() {
			p, err := session.ParsePolicy("lenient")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(session.PolicyLenient))

			p, err = session.ParsePolicy("")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(session.PolicyStrict))
		})

		It("rejects unknown policies", func() {
			_, err := session.ParsePolicy("loose")
			Expect(err).To(HaveOccurred())
		})
	})
})
