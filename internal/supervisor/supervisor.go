// Package supervisor implements the reconnect supervisor (C4, §4.4): a
// long-lived goroutine, independent of the core, that owns the
// connect -> handshake -> supervise loop and reports every transition to
// the core purely by message. It never touches queue state.
//
// Grounded on pkg/cluster/parallel_raft.go's Run(ctx) loop shape (a
// single goroutine selecting on ctx.Done against a timer, with no shared
// mutable state beyond what it emits), reworked from periodic ticking
// into connect-retry looping.
package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/handshake"
	"github.com/lumadb/redisnode/internal/transport"
)

// Emitter is the supervisor-to-core protocol (§9): the four messages the
// supervisor and handshake driver send to the core. The core implements
// this by pushing each call onto its own event channel.
type Emitter interface {
	ConnectError(reason error)
	InitError(errs []error)
	Connected(h transport.Handle, clusterID []byte)
	SocketClosed(reason error)
}

// Options is the supervisor's view of the client's configuration.
type Options struct {
	Host          string
	Port          int
	ConnOpts      transport.Options
	ReconnectWait time.Duration
	Handshake     handshake.Options
}

// Run drives the supervisor loop until ctx is canceled. It is meant to
// be started with `go supervisor.Run(...)`.
func Run(ctx context.Context, connector transport.Connector, emit Emitter, opts Options, log *zap.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		h, err := connector.Connect(ctx, opts.Host, opts.Port, opts.ConnOpts)
		if err != nil {
			emit.ConnectError(err)
			if !sleep(ctx, opts.ReconnectWait) {
				return
			}
			continue
		}

		res, err := handshake.Run(ctx, h, opts.Handshake, emit.InitError, log)
		if err != nil {
			if closed, ok := err.(*handshake.ErrSocketClosed); ok {
				emit.SocketClosed(closed.Cause)
			}
			h.Close()
			if ctx.Err() != nil {
				return
			}
			if !sleep(ctx, opts.ReconnectWait) {
				return
			}
			continue
		}

		emit.Connected(h, res.ClusterID)

		select {
		case reason := <-h.Closed():
			emit.SocketClosed(reason)
		case <-ctx.Done():
			h.Close()
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
