// Package pipeline drives one chat turn through decoding, validation and
// assembly.
//
//	bytes ─► chatevent.Decoder ─► session.Machine ─► turn.Assembler ─► turn.Result
//
// Each Session owns its own machine and assembler. Sessions share nothing and
// may run concurrently with each other; a single Session is not safe for
// concurrent use.
package pipeline

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/chatevent"
	"github.com/papercomputeco/ssechat/pkg/session"
	"github.com/papercomputeco/ssechat/pkg/turn"
)

// ErrTruncated is returned when the stream ends before an end or error event.
var ErrTruncated = errors.New("stream ended without a terminal event")

// Observer is called with every event accepted by the session, after it was
// applied to the result.
type Observer func(chatevent.Event)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for warnings. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithSessionOptions sets the state machine policy.
func WithSessionOptions(opts session.Options) Option {
	return func(s *Session) {
		s.opts = opts
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// Session validates and assembles the events of one chat turn.
type Session struct {
	opts      session.Options
	logger    *zap.Logger
	observers []Observer

	machine   *session.Machine
	assembler *turn.Assembler

	warnings []error
	err      error
}

// New returns a Session ready for its first event.
func New(opts ...Option) *Session {
	s := &Session{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.machine = session.NewMachine(s.opts)
	s.assembler = turn.NewAssembler()
	return s
}

// Run decodes src until it is exhausted and returns the assembled turn.
//
// Unknown event kinds are logged and skipped. On a fatal protocol error Run
// stops reading and returns the partial result, marked terminated early,
// together with the *chatevent.ProtocolError. A stream that ends without a
// terminal event yields the partial result and ErrTruncated. If ctx is done
// between two events Run returns nil and ctx.Err(); the partial turn is
// discarded.
func (s *Session) Run(ctx context.Context, src io.Reader) (*turn.Result, error) {
	return s.RunDecoder(ctx, chatevent.NewDecoder(src))
}

// RunDecoder is Run over an existing decoder.
func (s *Session) RunDecoder(ctx context.Context, d *chatevent.Decoder) (*turn.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return s.finish()
		}
		if err != nil {
			if !chatevent.IsFatal(err) {
				s.warn(err)
				continue
			}
			s.fail(err)
			return s.assembler.Result(), err
		}

		if err := s.Feed(ev); err != nil {
			return s.assembler.Result(), err
		}
	}
}

// Pump consumes events from ch until it is closed, then returns the assembled
// turn with the same rules as Run.
func (s *Session) Pump(ctx context.Context, ch <-chan chatevent.Event) (*turn.Result, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return s.finish()
			}
			if err := s.Feed(ev); err != nil {
				return s.assembler.Result(), err
			}
		}
	}
}

// Feed pushes a single event through the session. It returns an error only
// when the event is fatal; the session then rejects every later event with
// the same error. Non-fatal violations are logged and recorded in Warnings.
func (s *Session) Feed(ev chatevent.Event) error {
	if s.err != nil {
		return s.err
	}
	if ev == nil {
		return errors.New("nil event")
	}

	if err := s.machine.Advance(ev); err != nil {
		if chatevent.IsFatal(err) {
			s.fail(err)
			return err
		}
		s.warn(err)
	}

	s.assembler.Apply(ev)
	for _, o := range s.observers {
		o(ev)
	}
	return nil
}

// Result returns a copy of the turn assembled so far.
func (s *Session) Result() *turn.Result {
	return s.assembler.Result()
}

// State returns the state machine's current state.
func (s *Session) State() session.State {
	return s.machine.State()
}

// Warnings returns the non-fatal violations seen so far.
func (s *Session) Warnings() []error {
	return append([]error(nil), s.warnings...)
}

// Err returns the fatal error that stopped the session, if any.
func (s *Session) Err() error {
	return s.err
}

func (s *Session) finish() (*turn.Result, error) {
	if s.err != nil {
		return s.assembler.Result(), s.err
	}
	if s.machine.State() != session.Terminated {
		s.fail(ErrTruncated)
		return s.assembler.Result(), ErrTruncated
	}
	return s.assembler.Result(), nil
}

func (s *Session) fail(err error) {
	s.err = err
	s.assembler.Abort(err.Error())
	s.logger.Warn("chat turn aborted",
		zap.Error(err),
		zap.String("state", s.machine.State().String()),
	)
}

func (s *Session) warn(err error) {
	s.warnings = append(s.warnings, err)

	var pe *chatevent.ProtocolError
	if errors.As(err, &pe) && pe.Kind == chatevent.UnknownEventKind {
		s.logger.Warn("skipping unknown event", zap.String("event", pe.Event))
		return
	}
	s.logger.Warn("protocol warning", zap.Error(err))
}
