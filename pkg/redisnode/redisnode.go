// Package redisnode is the public control surface (§6): a single-node
// Redis client state machine with a bounded, pipelined in-flight window,
// automatic reconnect, and deduplicated status reporting. Internally it
// is a single-threaded event-loop actor (internal/core); this package
// only validates Options, wires up the default collaborators, and
// exposes the start/stop/command/command_async surface spec.md names.
package redisnode

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/codec"
	"github.com/lumadb/redisnode/internal/command"
	"github.com/lumadb/redisnode/internal/core"
	"github.com/lumadb/redisnode/internal/handshake"
	"github.com/lumadb/redisnode/internal/status"
	"github.com/lumadb/redisnode/internal/transport"
)

// Options is spec.md §6's Options set, plus SPEC_FULL.md's purely
// ambient additions (KafkaBrokers/KafkaTopic/AdminAddr/Logger/
// HeartbeatInterval), which are additive and default to off.
type Options struct {
	ConnectionOpts transport.Options

	MaxWaiting    int
	MaxPending    int
	QueueOkLevel  int
	ReconnectWait time.Duration

	RESPVersion     int
	NodeDownTimeout time.Duration
	UseClusterID    bool

	// Observer receives deduplicated status events (spec.md's
	// info_pid). Optional; nil means no observer beyond the always-on
	// log sink.
	Observer status.Sink

	// Connector overrides the default TCP transport; nil selects
	// transport.TCPConnector{}. Exposed mainly so tests can inject a
	// fake transport without a real socket.
	Connector transport.Connector

	// Logger defaults to a production zap logger if nil.
	Logger *zap.Logger

	// KafkaBrokers/KafkaTopic optionally enable a status.KafkaSink
	// in addition to Observer.
	KafkaBrokers []string
	KafkaTopic   string

	// AdminAddr is an address for internal/adminapi. Start ignores it,
	// and cmd/redisnode does not read it either: the CLI uses its own
	// --admin-addr flag.
	AdminAddr string

	// HeartbeatInterval is an interval for internal/metrics. Start
	// ignores it; cmd/redisnode uses its own --heartbeat-interval flag.
	HeartbeatInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxWaiting == 0 {
		o.MaxWaiting = 5000
	}
	if o.MaxPending == 0 {
		o.MaxPending = 128
	}
	if o.QueueOkLevel == 0 {
		o.QueueOkLevel = 2000
	}
	if o.ReconnectWait == 0 {
		o.ReconnectWait = 1000 * time.Millisecond
	}
	if o.RESPVersion == 0 {
		o.RESPVersion = 3
	}
	if o.NodeDownTimeout == 0 {
		o.NodeDownTimeout = 3000 * time.Millisecond
	}
	if o.Connector == nil {
		o.Connector = transport.TCPConnector{}
	}
	if o.Logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		o.Logger = l
	}
	return o
}

// validate enforces the one cross-field constraint spec.md §6 names
// ("queue_ok_level ... must be < max_waiting"); anything else wrong with
// Options is a programmer error caught by Go's own type system. An
// unknown option at init is a fatal configuration error per spec.md §7;
// in Go there is no "unknown field" to reject (Options is a struct, not
// a map), so that rule is enforced where it still applies: cmd/redisnode
// rejects unrecognized Viper keys before they ever reach Options.
func (o Options) validate() error {
	if o.QueueOkLevel >= o.MaxWaiting {
		return fmt.Errorf("redisnode: queue_ok_level (%d) must be < max_waiting (%d)", o.QueueOkLevel, o.MaxWaiting)
	}
	if o.RESPVersion != 2 && o.RESPVersion != 3 {
		return fmt.Errorf("redisnode: resp_version must be 2 or 3, got %d", o.RESPVersion)
	}
	return nil
}

// Client is a running node: the public handle returned by Start.
type Client struct {
	node      *core.Node
	kafkaSink *status.KafkaSink
}

// Start begins connecting to host:port and returns immediately; commands
// submitted before the first successful handshake simply accumulate in
// the waiting queue (§4.5).
func Start(host string, port int, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var sinks []status.Sink
	if opts.Observer != nil {
		sinks = append(sinks, opts.Observer)
	}

	var kafkaSink *status.KafkaSink
	if len(opts.KafkaBrokers) > 0 && opts.KafkaTopic != "" {
		ks, err := status.NewKafkaSink(opts.KafkaBrokers, opts.KafkaTopic, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("redisnode: kafka sink: %w", err)
		}
		kafkaSink = ks
		sinks = append(sinks, ks)
	}

	node := core.Start(core.Config{
		Host:         host,
		Port:         port,
		Connector:    opts.Connector,
		ConnOpts:     opts.ConnectionOpts,
		MaxWaiting:   opts.MaxWaiting,
		MaxPending:   opts.MaxPending,
		QueueOkLevel: opts.QueueOkLevel,

		ReconnectWait: opts.ReconnectWait,
		Handshake: handshake.Options{
			UseClusterID:  opts.UseClusterID,
			RESPVersion:   opts.RESPVersion,
			ReconnectWait: opts.ReconnectWait,
		},
		NodeDownTimeout: opts.NodeDownTimeout,

		Logger: opts.Logger,
		Sinks:  sinks,
	})

	return &Client{node: node, kafkaSink: kafkaSink}, nil
}

// Stop shuts the client down: every outstanding command is replied to
// with a client_stopped error, and the reconnect supervisor is
// terminated. Idempotent.
func (c *Client) Stop(reason error) {
	c.node.Stop(reason)
	if c.kafkaSink != nil {
		c.kafkaSink.Close()
	}
}

// Command submits a single already-encoded Redis command and blocks for
// its reply, or until ctx is done. Use codec.Encode to build payload.
func (c *Client) Command(ctx context.Context, payload []byte) (any, error) {
	reply, err := c.node.Command(ctx, payload, 1)
	if err != nil {
		return nil, err
	}
	return reply.Result, reply.Err()
}

// CommandAsync submits payload and invokes sink exactly once with the
// eventual reply; it never blocks on the network.
func (c *Client) CommandAsync(payload []byte, sink func(result any, err error)) {
	c.node.CommandAsync(payload, 1, func(r command.Reply) { sink(r.Result, r.Err()) })
}

// Pipeline submits several Redis commands as a single payload that
// provokes len(args) wire replies bundled into one Result ([]any when
// len(args) > 1; the default transport returns a lone reply bare);
// internal/command.Command.ReplyCount is how the transport knows how
// many RESP frames to wait for.
func (c *Client) Pipeline(ctx context.Context, args [][]string) (any, error) {
	reply, err := c.node.Command(ctx, codec.EncodePipeline(args), len(args))
	if err != nil {
		return nil, err
	}
	return reply.Result, reply.Err()
}

// Snapshot returns a point-in-time read of queue depths and connection
// state, the way internal/adminapi's introspection endpoints do.
func (c *Client) Snapshot() core.Snapshot {
	return c.node.Snapshot()
}

// Node returns the underlying core.Node, for callers (cmd/redisnode's
// admin-surface and heartbeat wiring) that need to hand it to a
// collaborator expecting *core.Node directly rather than going through
// Client's own, narrower surface.
func (c *Client) Node() *core.Node {
	return c.node
}

// ForceReconnect tears down the current connection, if any, and lets the
// reconnect supervisor bring up a fresh one. internal/adminapi's
// mutating endpoints call the same operation on core.Node directly.
func (c *Client) ForceReconnect() {
	c.node.ForceReconnect()
}
