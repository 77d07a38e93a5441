package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
)

// Pool is a bounded set of reusable connections shared by every storage
// operation. It never hands out more than Config.MaxConns connections at
// once and never gives one connection to two callers. It is safe for
// concurrent use.
type Pool struct {
	cfg    Config
	dialer Dialer
	res    *puddle.Pool[Conn]
	log    *logger.Logger

	exhausted atomic.Int64

	mu       sync.Mutex
	closed   bool
	onClose  []func()
	closeErr error
	once     sync.Once
}

// PoolOption customises a Pool at construction.
type PoolOption func(*Pool)

// WithLogger routes pool diagnostics to l.
func WithLogger(l *logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPool builds a pool that opens connections lazily through dialer.
// cfg is copied; size, mode and timeouts cannot change afterwards.
func NewPool(cfg Config, dialer Dialer, opts ...PoolOption) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dialer == nil {
		return nil, errs.New(errs.ErrKindPoolConstruction, "nil dialer")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	p := &Pool{cfg: cfg, dialer: dialer, log: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}

	res, err := puddle.NewPool(&puddle.Config[Conn]{
		Constructor: p.dial,
		Destructor:  p.destroy,
		MaxSize:     cfg.MaxConns,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindPoolConstruction, "failed to create connection pool", err)
	}
	p.res = res

	p.log.With().
		Str("mode", cfg.Mode.String()).
		Int("max_conns", int(cfg.MaxConns)).
		Dur("acquire_timeout", cfg.AcquireTimeout).
		Logger().
		Debug("connection pool created")
	return p, nil
}

// Config returns a copy of the settings the pool was built with.
func (p *Pool) Config() Config {
	return p.cfg
}

// Acquire checks out a connection, waiting up to Config.AcquireTimeout for
// one to become free. When every connection stays checked out for the
// whole wait the error kind is ErrKindPoolExhausted. The caller must
// Release the lease; WithConn does so automatically.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	for {
		res, err := p.res.Acquire(acquireCtx)
		if err != nil {
			return nil, p.acquireError(ctx, err)
		}

		if res.IdleDuration() < p.cfg.HealthCheckIdle || p.cfg.HealthCheckIdle <= 0 {
			return &Lease{res: res}, nil
		}

		if err := res.Value().Ping(acquireCtx); err != nil {
			p.log.WarnWith("dropping stale connection", err, map[string]any{
				"idle": res.IdleDuration().String(),
			})
			res.Destroy()
			continue
		}
		return &Lease{res: res}, nil
	}
}

// WithConn runs fn on a borrowed connection and returns it to the pool on
// every exit path, including panics. A connection that failed with a
// connectivity error is destroyed rather than reused.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn Conn) error) (err error) {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if errs.IsConnectionFailed(err) {
			lease.Destroy()
			return
		}
		lease.Release()
	}()

	return fn(ctx, lease.Conn())
}

// Stat is a point-in-time snapshot of pool usage.
type Stat struct {
	Acquired       int32
	Idle           int32
	Constructing   int32
	Total          int32
	Max            int32
	AcquireCount   int64
	ExhaustedCount int64
}

// Stat reports current pool usage.
func (p *Pool) Stat() Stat {
	s := p.res.Stat()
	return Stat{
		Acquired:       s.AcquiredResources(),
		Idle:           s.IdleResources(),
		Constructing:   s.ConstructingResources(),
		Total:          s.TotalResources(),
		Max:            s.MaxResources(),
		AcquireCount:   s.AcquireCount(),
		ExhaustedCount: p.exhausted.Load(),
	}
}

// OnClose registers fn to run once the pool has been closed and every
// connection destroyed. Hooks run in reverse registration order. A hook
// registered after Close runs immediately.
func (p *Pool) OnClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.onClose = append(p.onClose, fn)
	p.mu.Unlock()
}

// Close waits for every lease to be released, destroys all connections,
// closes the dialer when it holds resources, then runs the OnClose hooks.
// Safe to call more than once.
func (p *Pool) Close() error {
	p.once.Do(func() {
		p.res.Close()

		if c, ok := p.dialer.(io.Closer); ok {
			if err := c.Close(); err != nil {
				p.closeErr = errs.Wrap(errs.ErrKindConnectionFailed, "failed to close dialer", err)
			}
		}

		p.mu.Lock()
		p.closed = true
		hooks := p.onClose
		p.onClose = nil
		p.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			hooks[i]()
		}
		p.log.Debug("connection pool closed")
	})
	return p.closeErr
}

func (p *Pool) dial(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	conn, err := p.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (p *Pool) destroy(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
	defer cancel()

	if err := conn.Close(ctx); err != nil {
		p.log.WarnWith("failed to close connection", err, nil)
	}
}

// acquireError classifies a failed Acquire. parent is the caller's
// context, used to tell caller cancellation from the pool's own timeout.
func (p *Pool) acquireError(parent context.Context, err error) error {
	switch {
	case errors.Is(err, puddle.ErrClosedPool):
		return errs.Wrap(errs.ErrKindConnectionFailed, "pool is closed", err)

	case parent.Err() != nil:
		return errs.Wrap(errs.ErrKindTimeout, "acquire cancelled by caller", parent.Err())

	case errors.Is(err, context.DeadlineExceeded):
		// With no dial in flight the wait could only have been for a lease.
		// A lease released after the deadline must not turn this into a
		// plain timeout, so the acquired count is not consulted.
		s := p.res.Stat()
		if s.ConstructingResources() == 0 {
			p.exhausted.Add(1)
			return errs.Wrap(errs.ErrKindPoolExhausted,
				fmt.Sprintf("no connection available within %s (%d/%d in use)",
					p.cfg.AcquireTimeout, s.AcquiredResources(), s.MaxResources()),
				err)
		}
		return errs.Wrap(errs.ErrKindTimeout,
			fmt.Sprintf("timed out establishing a connection within %s", p.cfg.AcquireTimeout), err)

	case errs.KindOf(err) != errs.ErrKindUnknown:
		return err

	default:
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to open connection", err)
	}
}

// Lease is a connection checked out of a Pool. Release returns it; calling
// Release or Destroy more than once is a no-op.
type Lease struct {
	res  *puddle.Resource[Conn]
	once sync.Once
}

// Conn returns the leased connection. It must not be used after Release.
func (l *Lease) Conn() Conn {
	return l.res.Value()
}

// Age is how long the underlying connection has existed.
func (l *Lease) Age() time.Duration {
	return time.Since(l.res.CreationTime())
}

// Release hands the connection back to the pool for the next acquirer.
func (l *Lease) Release() {
	l.once.Do(l.res.Release)
}

// Destroy closes the connection instead of returning it to the pool.
func (l *Lease) Destroy() {
	l.once.Do(l.res.Destroy)
}
