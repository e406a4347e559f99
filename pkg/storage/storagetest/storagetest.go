// Package storagetest holds the behaviour every storage.Driver must share,
// written as ginkgo specs that driver test suites register.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/turn"
)

// base is a fixed instant so record times are stable across backends.
var base = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// NewTurn returns a completed turn with one answered tool call.
func NewTurn(text string) *turn.Result {
	res := chatevent.ToolResult{ToolCallID: "call_1", Outcome: chatevent.Success(map[string]any{"price": 1680.5})}
	return &turn.Result{
		Model:       "deepseek-chat",
		MessageText: text,
		ToolCalls: []turn.ToolExchange{{
			Call: chatevent.ToolCall{
				ID:        "call_1",
				Kind:      "function",
				Name:      "get_stock_price",
				Arguments: map[string]any{"code": "600519"},
			},
			Result: &res,
		}},
		FinishReason: "stop",
		Stats: &chatevent.Stats{
			ToolCalls:   1,
			ToolResults: 1,
			Tokens:      chatevent.Tokens{Prompt: 10, Completion: 5, Total: 15},
			TimingMs:    chatevent.Timing{FirstByte: 100, Total: 900},
		},
	}
}

// NewRecord returns a record completed offset after a fixed base time.
func NewRecord(id string, offset time.Duration) *storage.Record {
	return &storage.Record{
		ID:          id,
		Source:      "proxy",
		Path:        "/api/chat",
		StartedAt:   base.Add(offset - time.Second),
		CompletedAt: base.Add(offset),
		Turn:        NewTurn("reply " + id),
	}
}

// DescribeDriver registers the shared driver specs. newDriver is called
// before every spec and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put", func() {
		It("inserts a new record", func() {
			inserted, err := driver.Put(ctx, NewRecord("a", 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())
		})

		It("is a no-op for an existing id", func() {
			_, err := driver.Put(ctx, NewRecord("a", 0))
			Expect(err).NotTo(HaveOccurred())

			dup := NewRecord("a", time.Minute)
			dup.Turn.MessageText = "changed"
			inserted, err := driver.Put(ctx, dup)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Turn.MessageText).To(Equal("reply a"))
		})

		It("rejects nil records", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects records without an id", func() {
			_, err := driver.Put(ctx, NewRecord("", 0))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("round-trips a record", func() {
			rec := NewRecord("a", 0)
			rec.Error = "stream ended without a terminal event"
			_, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("a"))
			Expect(got.Source).To(Equal("proxy"))
			Expect(got.Path).To(Equal("/api/chat"))
			Expect(got.Error).To(Equal(rec.Error))
			Expect(got.StartedAt).To(BeTemporally("==", rec.StartedAt))
			Expect(got.CompletedAt).To(BeTemporally("==", rec.CompletedAt))
			Expect(got.Turn).To(Equal(rec.Turn))
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i, id := range []string{"old", "mid", "new"} {
				_, err := driver.Put(ctx, NewRecord(id, time.Duration(i)*time.Minute))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("returns records newest first", func() {
			recs, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"new", "mid", "old"}))
		})

		It("honours the limit", func() {
			recs, err := driver.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"new", "mid"}))
		})
	})

	It("lists an empty store as empty", func() {
		recs, err := driver.List(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(BeEmpty())
	})
}

func ids(recs []*storage.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
