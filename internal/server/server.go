package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
)

// Server wraps http.Server with graceful shutdown.
type Server struct {
	addr            string
	readTimeout     time.Duration
	shutdownTimeout time.Duration
	log             *logger.Logger

	addrCh chan net.Addr
}

// New returns a Server listening on addr once Run is called.
func New(addr string, readTimeout, shutdownTimeout time.Duration, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		addr:            addr,
		readTimeout:     readTimeout,
		shutdownTimeout: shutdownTimeout,
		log:             log,
		addrCh:          make(chan net.Addr, 1),
	}
}

// Run serves handler until ctx is cancelled, then drains in-flight
// requests for at most the shutdown timeout.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to listen on "+s.addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
	}
	s.addrCh <- ln.Addr()

	s.log.InfoWith("http server listening", map[string]any{"addr": ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.WarnWith("http server shutdown incomplete", err, nil)
		}
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errs.Wrap(errs.ErrKindConnectionFailed, "http server failed", runErr)
	}
	s.log.Info("http server stopped")
	return nil
}

// Addr blocks until Run has bound its listener and returns the address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case a := <-s.addrCh:
		s.addrCh <- a
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
