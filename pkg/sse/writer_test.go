package sse

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("writes a typed frame", func() {
		w := NewWriter(buf)
		Expect(w.WriteFrame(&Frame{Type: "message", Data: `{"content":"hi"}`})).To(Succeed())
		Expect(buf.String()).To(Equal("event: message\ndata: {\"content\":\"hi\"}\n\n"))
	})

	It("splits multi-line data across data fields", func() {
		w := NewWriter(buf)
		Expect(w.WriteFrame(&Frame{Type: "end", Data: "{\n\"a\": 1\n}"})).To(Succeed())
		Expect(buf.String()).To(Equal("event: end\ndata: {\ndata: \"a\": 1\ndata: }\n\n"))
	})

	It("writes the done sentinel", func() {
		w := NewWriter(buf)
		Expect(w.WriteDone()).To(Succeed())
		Expect(buf.String()).To(Equal("data: [DONE]\n\n"))
	})

	It("round trips through the Reader", func() {
		w := NewWriter(buf)
		in := &Frame{ID: "7", Type: "reasoning", Data: "line one\nline two"}
		Expect(w.WriteFrame(in)).To(Succeed())

		out, err := NewReader(buf).Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})
})
