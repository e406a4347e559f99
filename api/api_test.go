package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ssechat/pkg/logger"
	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/storage/inmemory"
	"github.com/papercomputeco/ssechat/pkg/storage/storagetest"
)

// brokenDriver fails every call.
type brokenDriver struct{}

func (brokenDriver) Put(context.Context, *storage.Record) (bool, error) {
	return false, errors.New("disk on fire")
}

func (brokenDriver) Get(context.Context, string) (*storage.Record, error) {
	return nil, errors.New("disk on fire")
}

func (brokenDriver) List(context.Context, int) ([]*storage.Record, error) {
	return nil, errors.New("disk on fire")
}

func (brokenDriver) Close() error { return nil }

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		ctx    context.Context
	)

	get := func(target string, into any) int {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		if into != nil {
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, into)).To(Succeed())
		}
		return resp.StatusCode
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		server = NewServer(Config{ListenAddr: ":0"}, driver, logger.Nop())
	})

	AfterEach(func() {
		server.Shutdown()
	})

	It("answers ping", func() {
		var body string
		Expect(get("/ping", &body)).To(Equal(http.StatusOK))
		Expect(body).To(Equal("pong"))
	})

	Describe("GET /turns", func() {
		BeforeEach(func() {
			for i, id := range []string{"a", "b", "c"} {
				_, err := driver.Put(ctx, storagetest.NewRecord(id, time.Duration(i)*time.Minute))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("lists turns newest first", func() {
			var body ListResponse
			Expect(get("/turns", &body)).To(Equal(http.StatusOK))
			Expect(body.Count).To(Equal(3))
			Expect(body.Turns[0].ID).To(Equal("c"))
			Expect(body.Turns[2].ID).To(Equal("a"))
			Expect(body.Turns[0].Turn.MessageText).To(Equal("reply c"))
		})

		It("honours the limit", func() {
			var body ListResponse
			Expect(get("/turns?limit=2", &body)).To(Equal(http.StatusOK))
			Expect(body.Count).To(Equal(2))
			Expect(body.Turns[1].ID).To(Equal("b"))
		})

		It("rejects a bad limit", func() {
			var body ErrorResponse
			Expect(get("/turns?limit=many", &body)).To(Equal(http.StatusBadRequest))
			Expect(body.Error).To(ContainSubstring("limit"))
		})
	})

	It("lists an empty store as an empty array", func() {
		var body map[string]any
		Expect(get("/turns", &body)).To(Equal(http.StatusOK))
		Expect(body["turns"]).To(Equal([]any{}))
	})

	Describe("GET /turns/:id", func() {
		It("returns a stored turn", func() {
			_, err := driver.Put(ctx, storagetest.NewRecord("turn-1", 0))
			Expect(err).NotTo(HaveOccurred())

			var rec storage.Record
			Expect(get("/turns/turn-1", &rec)).To(Equal(http.StatusOK))
			Expect(rec.ID).To(Equal("turn-1"))
			Expect(rec.Turn.ToolCalls).To(HaveLen(1))
			Expect(rec.Turn.ToolCalls[0].Call.Name).To(Equal("get_stock_price"))
		})

		It("returns 404 for an unknown id", func() {
			var body ErrorResponse
			Expect(get("/turns/missing", &body)).To(Equal(http.StatusNotFound))
			Expect(body.Error).To(Equal("turn not found"))
		})
	})

	Describe("GET /turns/stats", func() {
		It("counts completed and aborted turns", func() {
			_, err := driver.Put(ctx, storagetest.NewRecord("ok", 0))
			Expect(err).NotTo(HaveOccurred())

			aborted := storagetest.NewRecord("aborted", time.Minute)
			aborted.Turn.TerminatedEarly = true
			aborted.Turn.Model = "qwen"
			_, err = driver.Put(ctx, aborted)
			Expect(err).NotTo(HaveOccurred())

			var stats StatsResponse
			Expect(get("/turns/stats", &stats)).To(Equal(http.StatusOK))
			Expect(stats.Total).To(Equal(2))
			Expect(stats.Completed).To(Equal(1))
			Expect(stats.TerminatedEarly).To(Equal(1))
			Expect(stats.ToolCalls).To(Equal(2))
			Expect(stats.Models).To(Equal(map[string]int{"deepseek-chat": 1, "qwen": 1}))
		})
	})

	Describe("/mcp", func() {
		It("answers an MCP initialize request", func() {
			body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err := server.app.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"name":"ssechat"`))
		})
	})

	Context("when the store fails", func() {
		BeforeEach(func() {
			server = NewServer(Config{}, brokenDriver{}, logger.Nop())
		})

		It("answers 500 without leaking the cause", func() {
			var body ErrorResponse
			Expect(get("/turns", &body)).To(Equal(http.StatusInternalServerError))
			Expect(body.Error).To(Equal("failed to list turns"))

			Expect(get("/turns/x", &body)).To(Equal(http.StatusInternalServerError))
			Expect(body.Error).To(Equal("failed to get turn"))
		})
	})
})
