// Package proxy provides a chat relay proxy that assembles and stores every
// streamed chat turn it forwards.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
	"github.com/papercomputeco/ssechat/pkg/pipeline"
	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/proxy/header"
	"github.com/papercomputeco/ssechat/proxy/worker"
)

const eventStreamContentType = "text/event-stream"

// errorResponse is the JSON body returned when the proxy itself fails.
type errorResponse struct {
	Error string `json:"error"`
}

// Proxy is a transparent relay in front of a chat server. Streamed responses
// reach the client byte for byte while a pipeline.Session assembles the turn
// from the same bytes; assembled turns are handed to the worker pool for
// storage.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	logger        *zap.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler

	// relays tracks in-flight stream relays so Close can wait for their
	// turns to be enqueued.
	relays sync.WaitGroup
}

// New creates a new Proxy that stores assembled turns with driver.
func New(config Config, driver storage.Driver, logger *zap.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})
	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  config.Publisher,
		NumWorkers: config.NumWorkers,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// Turns with long reasoning phases can take minutes.
			Timeout: 5 * time.Minute,
		},
	}

	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the configured listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream", p.config.UpstreamURL),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", p.config.UpstreamURL),
	)

	return p.server.Listener(listener)
}

// Close shuts down the server, waits for open relays and drains the worker
// pool.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.relays.Wait()
	p.workerPool.Close()
	return err
}

// handleProxy forwards any request to the upstream chat server.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	startTime := time.Now()
	path := c.Path()
	source := p.headerHandler.Source(c)

	var reqBody io.Reader
	if body := c.Body(); len(body) > 0 {
		// The body is copied since fasthttp reuses its buffer after the
		// handler returns.
		reqBody = bytes.NewReader(append([]byte(nil), body...))
	}

	// context.Background() instead of c.Context(): fasthttp recycles its
	// RequestCtx when the handler returns, while a streamed body is still
	// being relayed from another goroutine.
	httpReq, err := http.NewRequestWithContext(context.Background(), c.Method(), p.upstreamURL(c), reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		zap.String("method", c.Method()),
		zap.String("url", httpReq.URL.String()),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}

	if httpResp.StatusCode != http.StatusOK || !isEventStream(httpResp) {
		return p.forward(c, httpResp)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Status(httpResp.StatusCode)

	// io.Pipe + SetBodyStream: pw.Write blocks until fasthttp has consumed
	// the chunk, and fasthttp flushes to the socket after every chunk, so
	// the client sees each event as soon as upstream sends it.
	pr, pw := io.Pipe()
	p.relays.Add(1)
	go p.relay(httpResp, pw, source, path, startTime)

	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// forward relays a non-streaming response unchanged.
func (p *Proxy) forward(c *fiber.Ctx, httpResp *http.Response) error {
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "failed to read upstream response"})
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		p.logger.Warn("upstream returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(respBody)),
		)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	return c.Status(httpResp.StatusCode).Send(respBody)
}

// relay copies the upstream event stream to pw while assembling the turn.
// Bytes reach the client exactly as upstream sent them: the decoder reads
// through an io.TeeReader, and whatever follows a fatal protocol error or the
// "[DONE]" sentinel is copied through untouched.
func (p *Proxy) relay(httpResp *http.Response, pw *io.PipeWriter, source, path string, startTime time.Time) {
	defer p.relays.Done()
	defer httpResp.Body.Close()

	logger := p.logger.With(zap.String("path", path), zap.String("source", source))
	tee := io.TeeReader(httpResp.Body, pw)

	sess := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithSessionOptions(p.config.Session),
	)
	res, runErr := sess.RunDecoder(context.Background(), chatevent.NewDecoder(tee))

	if _, err := io.Copy(pw, httpResp.Body); err != nil {
		logger.Debug("client stopped reading", zap.Error(err))
	}
	pw.Close()

	if res == nil {
		return
	}

	if runErr != nil {
		logger.Warn("relayed turn did not complete", zap.Error(runErr))
	}

	logger.Debug("turn assembled",
		zap.String("model", res.Model),
		zap.String("finish_reason", res.FinishReason),
		zap.Int("tool_calls", len(res.ToolCalls)),
		zap.Duration("duration", time.Since(startTime)),
	)

	p.workerPool.Enqueue(worker.Job{
		Record:     storage.NewRecord(source, path, startTime, res, runErr),
		HTTPStatus: httpResp.StatusCode,
	})
}

func (p *Proxy) upstreamURL(c *fiber.Ctx) string {
	u := strings.TrimSuffix(p.config.UpstreamURL, "/") + c.Path()
	if q := c.Context().QueryArgs().QueryString(); len(q) > 0 {
		u += "?" + string(q)
	}
	return u
}

func isEventStream(resp *http.Response) bool {
	return strings.HasPrefix(resp.Header.Get("Content-Type"), eventStreamContentType)
}
