package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mithrel/agentipc/internal/config"
	"github.com/mithrel/agentipc/internal/ipc/transport"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

var (
	ErrServerClosed = errors.New("ipc: server closed")
	ErrNotBound     = errors.New("ipc: server not bound")
	ErrAlreadyBound = errors.New("ipc: server already bound")
)

// Handler serves one accepted channel. The server closes the channel after
// ServeChannel returns.
type Handler interface {
	ServeChannel(ctx context.Context, ch *transport.Channel)
}

type HandlerFunc func(ctx context.Context, ch *transport.Channel)

func (f HandlerFunc) ServeChannel(ctx context.Context, ch *transport.Channel) { f(ctx, ch) }

// Server binds one named endpoint and serves each accepted connection on its
// own goroutine.
type Server struct {
	reg     *transport.Registry
	load    Loader
	log     *zap.Logger
	metrics *Metrics

	mu     sync.Mutex
	ln     transport.Listener
	kind   config.TransportKind
	conns  map[*transport.Channel]string
	closed bool
	wg     sync.WaitGroup
}

type ServerOption func(*Server)

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewServer(reg *transport.Registry, load Loader, opts ...ServerOption) *Server {
	s := &Server{
		reg:     reg,
		load:    load,
		log:     zap.NewNop(),
		metrics: NilMetrics(),
		conns:   make(map[*transport.Channel]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Bind claims the endpoint for serverName. It fails with
// transport.ErrAddressInUse when a live listener already owns it.
func (s *Server) Bind(serverName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.ln != nil {
		return fmt.Errorf("%w at %s", ErrAlreadyBound, s.ln.Addr())
	}
	st, err := setup(s.reg, s.load, func(p transport.Provider, ep config.Endpoint) (transport.ServerTransport, error) {
		s.kind = ep.Kind
		return p.NewServer(ep)
	})
	if err != nil {
		return err
	}
	ln, err := st.Bind(serverName)
	if err != nil {
		return fmt.Errorf("bind %q: %w", serverName, err)
	}
	s.ln = ln
	s.log.Info("ipc listening",
		zap.String("server", serverName),
		zap.String("transport", string(s.kind)),
		zap.String("addr", ln.Addr()))
	return nil
}

// Addr returns the bound address, or "" before Bind.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr()
}

// Serve accepts connections until Close is called or ctx is done, then waits
// for running handlers and returns nil. Other accept errors are logged and
// retried with a capped exponential delay. Handlers receive a context that is
// cancelled when Serve stops.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	s.mu.Lock()
	ln, closed := s.ln, s.closed
	s.mu.Unlock()
	if closed {
		return ErrServerClosed
	}
	if ln == nil {
		return ErrNotBound
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	backoff := acceptBackoff()
	for {
		ch, err := ln.Accept()
		if err != nil {
			if errors.Is(err, transport.ErrListenerClosed) {
				s.wg.Wait()
				return nil
			}
			delay, _ := backoff.Next()
			s.metrics.AcceptErrors.Inc()
			s.log.Warn("ipc accept failed",
				zap.String("addr", ln.Addr()),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				_ = s.Close()
				return nil
			case <-t.C:
			}
			continue
		}
		backoff = acceptBackoff()
		id := uuid.NewString()
		if !s.track(ch, id) {
			_ = ch.Close()
			s.wg.Wait()
			return nil
		}
		s.metrics.Accepted.Inc()
		s.metrics.Active.Inc()
		s.log.Debug("ipc connection accepted", zap.String("conn", id))
		go s.handle(ctx, h, ch, id)
	}
}

func acceptBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxAcceptDelay, retry.NewExponential(minAcceptDelay))
}

// ListenAndServe binds serverName and serves it.
func (s *Server) ListenAndServe(ctx context.Context, serverName string, h Handler) error {
	if err := s.Bind(serverName); err != nil {
		return err
	}
	return s.Serve(ctx, h)
}

// Close stops accepting, closes every active channel and waits for the
// handlers to return. It must not be called from a Handler.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for ch := range s.conns {
		err = multierr.Append(err, ch.Close())
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) track(ch *transport.Channel, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[ch] = id
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(ch *transport.Channel) {
	s.mu.Lock()
	delete(s.conns, ch)
	s.mu.Unlock()
	_ = ch.Close()
}

func (s *Server) handle(ctx context.Context, h Handler, ch *transport.Channel, id string) {
	defer s.wg.Done()
	defer func() {
		s.untrack(ch)
		s.metrics.Active.Dec()
		s.log.Debug("ipc connection closed", zap.String("conn", id))
	}()
	defer func() {
		if r := recover(); r != nil {
			s.metrics.HandlerPanics.Inc()
			s.log.Error("ipc handler panic",
				zap.String("conn", id),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	h.ServeChannel(ctx, ch)
}
