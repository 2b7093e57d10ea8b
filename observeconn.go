//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/observeconn.go
//

package mindbridge

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewObserveConnFunc returns a new [*ObserveConnFunc].
//
// The cfg argument contains the common configuration.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewObserveConnFunc(cfg *Config, logger SLogger) *ObserveConnFunc {
	return &ObserveConnFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// ObserveConnFunc wraps a [net.Conn] to log its reads, writes, and close.
//
// Reads and writes are logged at [slog.LevelDebug]; close is logged at Info.
//
// All fields are safe to modify after construction but before first use.
type ObserveConnFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewObserveConnFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewObserveConnFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewObserveConnFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &ObserveConnFunc{}

// Call wraps conn. It never fails.
func (op *ObserveConnFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	observed := &observedConn{
		Conn:     conn,
		laddr:    safeconn.LocalAddr(conn),
		op:       op,
		protocol: safeconn.Network(conn),
		raddr:    safeconn.RemoteAddr(conn),
	}
	return observed, nil
}

// observedConn embeds [net.Conn] so that deadline setters pass through.
type observedConn struct {
	net.Conn
	closeonce sync.Once
	laddr     string
	op        *ObserveConnFunc
	protocol  string
	raddr     string
}

func (c *observedConn) addrs() []any {
	return []any{
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
	}
}

func (c *observedConn) logStart(log func(string, ...any), msg string, extra ...any) time.Time {
	t0 := c.op.TimeNow()
	args := append(c.addrs(), extra...)
	args = append(args, slog.Time("t", t0))
	log(msg, args...)
	return t0
}

func (c *observedConn) logDone(log func(string, ...any), msg string, t0 time.Time, err error, extra ...any) {
	args := append(c.addrs(), extra...)
	args = append(args,
		slog.Any("err", err),
		slog.String("errClass", c.op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)
	log(msg, args...)
}

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.logStart(c.op.Logger.Debug, "readStart", slog.Int("ioBufferSize", len(buf)))
	count, err := c.Conn.Read(buf)
	c.logDone(c.op.Logger.Debug, "readDone", t0, err, slog.Int("ioBytesCount", count))
	return count, err
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.logStart(c.op.Logger.Debug, "writeStart", slog.Int("ioBufferSize", len(data)))
	count, err := c.Conn.Write(data)
	c.logDone(c.op.Logger.Debug, "writeDone", t0, err, slog.Int("ioBytesCount", count))
	return count, err
}

// Close implements [net.Conn].
//
// Subsequent calls return [net.ErrClosed] without closing again.
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.logStart(c.op.Logger.Info, "closeStart")
		err = c.Conn.Close()
		c.logDone(c.op.Logger.Info, "closeDone", t0, err)
	})
	return
}
