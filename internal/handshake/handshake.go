// Package handshake implements the per-connection handshake driver (C3,
// §4.3): on every fresh Handle, run an optional HELLO 3 and CLUSTER
// MYID, retrying on a reply error until it succeeds or the socket
// closes. Grounded on the retry-with-sleep shape of johnjansen-torua's
// health_monitor.go check loop, adapted from periodic polling to a
// handshake retry with no attempt limit.
package handshake

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/codec"
	"github.com/lumadb/redisnode/internal/transport"
)

// Options carries the handshake-relevant subset of the client's Options.
type Options struct {
	UseClusterID  bool
	RESPVersion   int // 2 or 3
	ReconnectWait time.Duration
}

// Result is what a successful handshake yields to the core.
type Result struct {
	ClusterID []byte
}

// ErrSocketClosed is returned when the handle closes mid-handshake; the
// caller (the reconnect supervisor) should treat this the same as any
// other socket_closed signal.
type ErrSocketClosed struct{ Cause error }

func (e *ErrSocketClosed) Error() string { return "redisnode/handshake: socket closed" }
func (e *ErrSocketClosed) Unwrap() error { return e.Cause }

// OnInitError is invoked once per failed handshake attempt, reporting
// the reply errors to the core as an init_error status event (§4.3).
type OnInitError func(errs []error)

// Run builds the handshake batch in the order §4.3 specifies —
// CLUSTER MYID first, then HELLO 3 — submits it as a single pipelined
// payload, and retries on a reply error until it succeeds or the socket
// closes. If the batch is empty (no cluster id, RESP2), it succeeds
// immediately with no round trip.
func Run(ctx context.Context, h transport.Handle, opts Options, onInitError OnInitError, log *zap.Logger) (Result, error) {
	var batch [][]string
	if opts.UseClusterID {
		batch = append(batch, []string{"CLUSTER", "MYID"})
	}
	if opts.RESPVersion == 3 {
		batch = append(batch, []string{"HELLO", "3"})
	}
	if len(batch) == 0 {
		return Result{}, nil
	}

	const handshakeTag = 0

	for {
		payload := codec.EncodePipeline(batch)
		h.Submit(payload, handshakeTag, len(batch))

		select {
		case reply := <-h.Replies():
			errs := replyErrors(reply.Result)
			if len(errs) > 0 {
				if onInitError != nil {
					onInitError(errs)
				}
				log.Warn("handshake init_error, retrying", zap.Errors("errors", errs))
				select {
				case <-time.After(opts.ReconnectWait):
				case reason := <-h.Closed():
					return Result{}, &ErrSocketClosed{Cause: reason}
				case <-ctx.Done():
					return Result{}, ctx.Err()
				}
				continue
			}
			return Result{ClusterID: clusterID(opts, reply.Result)}, nil
		case reason := <-h.Closed():
			return Result{}, &ErrSocketClosed{Cause: reason}
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// replyErrors inspects a bundled reply vector and returns every element
// that came back as a RESP error.
func replyErrors(result any) []error {
	vals, ok := result.([]any)
	if !ok {
		if rerr, ok := result.(error); ok {
			return []error{rerr}
		}
		return nil
	}
	var errs []error
	for _, v := range vals {
		if rerr, ok := v.(error); ok {
			errs = append(errs, rerr)
		}
	}
	return errs
}

// clusterID extracts the CLUSTER MYID reply, which is always the first
// element of the batch when UseClusterID is set (§4.3's build order).
func clusterID(opts Options, result any) []byte {
	if !opts.UseClusterID {
		return nil
	}
	vals, ok := result.([]any)
	if !ok {
		// A one-command batch comes back as the bare reply, not a vector.
		vals = []any{result}
	}
	if len(vals) == 0 {
		return nil
	}
	switch v := vals[0].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}
