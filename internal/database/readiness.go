package database

import (
	"context"
	"fmt"
	"time"

	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/logger"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultReadinessDeadline = 5 * time.Second
	DefaultReadinessInterval = 200 * time.Millisecond
	DefaultSettleDelay       = 500 * time.Millisecond
)

// Prober polls a freshly provisioned database until a connection can be
// checked out of the pool or the deadline passes.
type Prober struct {
	// Deadline is measured from the WaitUntilReady call and includes the
	// settle delay.
	Deadline time.Duration

	// Interval is the pause between failed attempts.
	Interval time.Duration

	// SettleDelay is waited once before the first attempt.
	SettleDelay time.Duration

	Log *logger.Logger
}

// NewProber returns a Prober with the default deadline, interval and settle delay.
func NewProber(log *logger.Logger) *Prober {
	if log == nil {
		log = logger.Nop()
	}
	return &Prober{
		Deadline:    DefaultReadinessDeadline,
		Interval:    DefaultReadinessInterval,
		SettleDelay: DefaultSettleDelay,
		Log:         log,
	}
}

// WaitUntilReady returns nil as soon as one acquisition succeeds; the
// verified connection goes straight back to the pool. Once the deadline
// has passed it returns an ErrKindReadinessTimeout error wrapping the last
// attempt's failure. It never returns a timeout before the deadline, and an
// attempt stuck in a dial is cut off at the deadline rather than at the
// pool's acquire timeout.
func (p *Prober) WaitUntilReady(ctx context.Context, pool *Pool) error {
	log := p.Log
	if log == nil {
		log = logger.Nop()
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultReadinessInterval
	}

	start := time.Now()
	deadlineCtx, cancel := context.WithDeadline(ctx, start.Add(p.Deadline))
	defer cancel()
	backoff := retry.WithMaxDuration(p.Deadline, retry.NewConstant(interval))

	if p.SettleDelay > 0 {
		timer := time.NewTimer(p.SettleDelay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	var (
		attempts int
		lastErr  error
	)
	err := retry.Do(deadlineCtx, backoff, func(ctx context.Context) error {
		attempts++
		lease, err := pool.Acquire(ctx)
		if err != nil {
			lastErr = err
			log.DebugWith("database not ready", map[string]any{
				"attempt": attempts,
				"elapsed": time.Since(start).String(),
				"error":   err.Error(),
			})
			return retry.RetryableError(err)
		}
		lease.Release()
		return nil
	})
	if err == nil {
		log.InfoWith("database ready", map[string]any{
			"attempts": attempts,
			"elapsed":  time.Since(start).String(),
		})
		return nil
	}

	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, "readiness probe cancelled", ctx.Err())
	}
	if lastErr == nil {
		lastErr = err
	}
	return errs.Wrap(errs.ErrKindReadinessTimeout,
		fmt.Sprintf("database not ready after %s (%d attempts)", time.Since(start).Round(time.Millisecond), attempts),
		lastErr)
}
