// Package replay serves a recorded chat turn as if it came from a live chat
// server. It gives the proxy and the client a deterministic upstream.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
	"github.com/papercomputeco/ssechat/pkg/client"
	"github.com/papercomputeco/ssechat/pkg/pipeline"
	"github.com/papercomputeco/ssechat/pkg/session"
	"github.com/papercomputeco/ssechat/pkg/turn"
)

// DefaultPath is the streaming endpoint path of the chat server.
const DefaultPath = "/chat/endpoint"

// Recording is a decoded chat turn ready to be served.
type Recording struct {
	// Events holds every known event in stream order.
	Events []chatevent.Event

	// Raw is the recorded stream, byte for byte.
	Raw []byte

	// Turn is the turn the events assemble to, validated leniently.
	Turn *turn.Result
}

// Load decodes a recorded stream. Unknown events are dropped; a malformed
// frame is an error since it cannot be re-encoded.
func Load(r io.Reader) (*Recording, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}

	rec := &Recording{Raw: raw}
	dec := chatevent.NewDecoder(strings.NewReader(string(raw)))
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if chatevent.IsFatal(err) {
				return nil, fmt.Errorf("decoding recording: %w", err)
			}
			continue
		}
		rec.Events = append(rec.Events, ev)
	}

	events := make(chan chatevent.Event, len(rec.Events))
	for _, ev := range rec.Events {
		events <- ev
	}
	close(events)

	// A recording without a terminal event assembles to an aborted turn.
	sess := pipeline.New(pipeline.WithSessionOptions(session.Options{Policy: session.PolicyLenient}))
	rec.Turn, _ = sess.Pump(context.Background(), events)

	return rec, nil
}

// Config is the replay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3000")
	ListenAddr string

	// Path is the streaming endpoint; Path + "-sync" answers synchronously.
	// Defaults to DefaultPath.
	Path string

	// Delay is the pause before each event.
	Delay time.Duration

	// Verbatim serves the recorded bytes unchanged instead of re-encoding
	// the decoded events.
	Verbatim bool
}

// Server answers chat requests with a recording.
type Server struct {
	config    Config
	recording *Recording
	logger    *zap.Logger
	app       *fiber.App

	// done is closed by Shutdown to cut delayed streams short.
	done     chan struct{}
	stopOnce sync.Once
	streams  sync.WaitGroup
}

// errShutdown ends a stream that was still replaying when the server stopped.
var errShutdown = errors.New("replay server shutting down")

// NewServer creates a replay server for rec.
func NewServer(config Config, rec *Recording, logger *zap.Logger) (*Server, error) {
	if rec == nil {
		return nil, errors.New("replay server requires a recording")
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		recording: rec,
		logger:    logger,
		app:       app,
		done:      make(chan struct{}),
	}

	app.Post(config.Path, s.handleStream)
	app.Post(config.Path+client.SyncSuffix, s.handleSync)

	return s, nil
}

// Run starts the replay server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting replay server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("path", s.config.Path),
		zap.Int("events", len(s.recording.Events)),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the replay server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting replay server",
		zap.String("listen", listener.Addr().String()),
		zap.String("path", s.config.Path),
	)
	return s.app.Listener(listener)
}

// Shutdown stops the server and waits for open streams.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.done) })
	err := s.app.Shutdown()
	s.streams.Wait()
	return err
}

// parseRequest reads the chat request body. A non-empty message means the
// request is rejected.
func parseRequest(c *fiber.Ctx) (*client.Request, string) {
	req := &client.Request{Thinking: true}
	if err := c.BodyParser(req); err != nil {
		return nil, "invalid request body"
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, client.ErrEmptyPrompt.Error()
	}
	return req, ""
}

func (s *Server) handleStream(c *fiber.Ctx) error {
	req, msg := parseRequest(c)
	if msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	s.logger.Debug("replaying turn",
		zap.String("prompt", req.Prompt),
		zap.Bool("thinking", req.Thinking),
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	pr, pw := io.Pipe()
	s.streams.Add(1)
	go func() {
		defer s.streams.Done()
		pw.CloseWithError(s.write(pw))
	}()
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// write streams the recording to w.
func (s *Server) write(w io.Writer) error {
	if s.config.Verbatim {
		_, err := w.Write(s.recording.Raw)
		return err
	}

	enc := chatevent.NewEncoder(w)
	for _, ev := range s.recording.Events {
		if err := s.pause(); err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return enc.Done()
}

// pause waits for the configured per-event delay or until shutdown.
func (s *Server) pause() error {
	if s.config.Delay <= 0 {
		return nil
	}

	timer := time.NewTimer(s.config.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-s.done:
		return errShutdown
	}
}

func (s *Server) handleSync(c *fiber.Ctx) error {
	if _, msg := parseRequest(c); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	res := s.recording.Turn
	if res.TerminatedEarly {
		return c.Status(fiber.StatusInternalServerError).JSON(client.SyncResponse{
			Success: false,
			Error:   res.Failure,
		})
	}
	return c.JSON(client.SyncResponse{Success: true, Result: res.MessageText})
}

// Serve runs the server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}
