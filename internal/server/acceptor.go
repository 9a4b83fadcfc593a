// Package server binds the quiz listener and spawns one session per
// accepted connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"quizroom-backend/internal/session"
)

// Acceptor owns the listening socket. Its accept loop polls with a
// bounded deadline so a shutdown request is observed promptly.
type Acceptor struct {
	ln            *net.TCPListener
	acceptTimeout time.Duration
	sessionOpts   session.Options
	logger        *slog.Logger

	closed atomic.Bool
	wg     sync.WaitGroup
}

// Listen binds the quiz address. A port already in use surfaces as an
// error the caller treats as fatal.
func Listen(addr string, acceptTimeout time.Duration, opts session.Options, logger *slog.Logger) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind quiz listener on %s: %w", addr, err)
	}

	a := &Acceptor{
		ln:            ln.(*net.TCPListener),
		acceptTimeout: acceptTimeout,
		sessionOpts:   opts,
		logger:        logger,
	}
	a.sessionOpts.ShuttingDown = a.ShuttingDown
	return a, nil
}

// Addr returns the bound listener address.
func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// ShuttingDown reports whether Shutdown has been requested. Sessions
// poll it during the lobby wait.
func (a *Acceptor) ShuttingDown() bool {
	return a.closed.Load()
}

// Serve accepts connections until Shutdown. Every connection gets its
// own session goroutine immediately; there is no accept queue.
func (a *Acceptor) Serve() error {
	a.logger.Info("quiz server listening", slog.String("addr", a.ln.Addr().String()))

	for {
		if a.closed.Load() {
			return nil
		}
		if err := a.ln.SetDeadline(time.Now().Add(a.acceptTimeout)); err != nil {
			return err
		}

		conn, err := a.ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if a.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			a.logger.Error("accept failed", slog.Any("error", err))
			continue
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			session.New(session.NewConn(conn), a.sessionOpts).Run()
		}()
	}
}

// Shutdown stops accepting, closes the listener and waits for running
// sessions until the context expires.
func (a *Acceptor) Shutdown(ctx context.Context) error {
	a.closed.Store(true)
	if err := a.ln.Close(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
