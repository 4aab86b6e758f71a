package gate

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Target identifies a downstream dependency to wait on.
type Target struct {
	Host string
	Port int

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration

	// PollInterval is how long to sleep between failed attempts.
	PollInterval time.Duration
}

// Addr returns the host:port form of the target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, fmt.Sprintf("%d", t.Port))
}

// DialFunc attempts a single connection to addr, bounded by timeout.
// It exists so tests can simulate an unreachable dependency.
type DialFunc func(ctx context.Context, addr string, timeout time.Duration) error

// Gate blocks callers until its target becomes reachable. It never reports
// the dependency as failed: a job that needs the target is meaningless
// without it, so the only exits are success or context cancellation. The
// database sits behind an intermittent VPN link, hence the retry-forever
// posture.
type Gate struct {
	target Target
	dial   DialFunc
	logger *slog.Logger
}

// New creates a gate for the given target using a real TCP dial.
func New(target Target, logger *slog.Logger) *Gate {
	return &Gate{
		target: target,
		dial:   tcpDial,
		logger: logger,
	}
}

// NewWithDialer creates a gate with a custom dial function (for tests).
func NewWithDialer(target Target, dial DialFunc, logger *slog.Logger) *Gate {
	return &Gate{
		target: target,
		dial:   dial,
		logger: logger,
	}
}

// Target returns the gate's target.
func (g *Gate) Target() Target {
	return g.target
}

// AwaitReachable blocks until the target accepts a connection or ctx is
// cancelled. Returns nil on success, ctx.Err() on cancellation. Every failed
// attempt is logged before sleeping for the poll interval.
func (g *Gate) AwaitReachable(ctx context.Context) error {
	addr := g.target.Addr()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := g.dial(ctx, addr, g.target.DialTimeout)
		if err == nil {
			g.logger.Info("dependency reachable", "target", addr)
			return nil
		}

		g.logger.Warn("dependency unreachable, will retry",
			"target", addr,
			"error", err,
			"retry_in", g.target.PollInterval)

		timer := time.NewTimer(g.target.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tcpDial makes one bounded TCP connection attempt and closes it on success.
func tcpDial(ctx context.Context, addr string, timeout time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return err
	}

	return conn.Close()
}
