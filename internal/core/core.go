// Package core implements the client's central state machine (C7, §4.7
// and §5): a single goroutine owning the pipeline, the status reporter,
// and the current transport handle, driven entirely by messages off one
// channel. Every other component in this module — the supervisor, the
// handshake driver, the transport — only ever talks to Node by sending
// it a message; none of them touch Node's fields directly. That is the
// "only valid execution model" spec.md §5 calls for, and it is also
// exactly the shape pkg/cluster/parallel_raft.go uses for its own
// single-goroutine command loop.
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/command"
	"github.com/lumadb/redisnode/internal/handshake"
	"github.com/lumadb/redisnode/internal/pipeline"
	"github.com/lumadb/redisnode/internal/status"
	"github.com/lumadb/redisnode/internal/supervisor"
	"github.com/lumadb/redisnode/internal/transport"
)

// Config is Node's view of the client's bound options (spec.md §2's
// Options, translated by pkg/redisnode into the pieces each internal
// package actually needs).
type Config struct {
	Host      string
	Port      int
	Connector transport.Connector
	ConnOpts  transport.Options

	MaxWaiting   int
	MaxPending   int
	QueueOkLevel int

	ReconnectWait   time.Duration
	Handshake       handshake.Options
	NodeDownTimeout time.Duration

	Logger *zap.Logger
	// Sinks are attached to the status reporter in addition to the
	// always-on log sink (e.g. a status.KafkaSink).
	Sinks []status.Sink
}

// Node is a running client instance: the event-loop goroutine plus the
// supervisor goroutine feeding it. Exported methods are safe to call
// from any goroutine; everything they do funnels through the event
// channel into the single loop goroutine.
type Node struct {
	cfg Config
	log *zap.Logger

	pipeline *pipeline.Pipeline
	reporter *status.Reporter

	events   chan event
	loopDone chan struct{}

	cancelSupervisor context.CancelFunc

	stopOnce    sync.Once
	stoppedFlag atomic.Bool
	stopReason  error

	// Fields below this line are touched only inside run(); no lock
	// needed because only one goroutine ever reads or writes them.
	handle    transport.Handle
	clusterID []byte

	nodeDown           bool
	nodeDownTimerArmed bool
	nodeDownTimerGen   uint64

	tagSeq uint64
	cmdSeq uint64

	stopped bool
}

// Start builds a Node and launches its supervisor and event-loop
// goroutines. The returned Node is ready to accept commands immediately;
// until the first connected event arrives, commands simply accumulate in
// the waiting queue, exactly as §4.5 intends.
func Start(cfg Config) *Node {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	reporter := status.NewReporter(status.NewLogSink(log))
	for _, s := range cfg.Sinks {
		reporter.Attach(s)
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		cfg: cfg,
		log: log,
		pipeline: pipeline.New(pipeline.Config{
			MaxWaiting:   cfg.MaxWaiting,
			MaxPending:   cfg.MaxPending,
			QueueOkLevel: cfg.QueueOkLevel,
		}),
		reporter:         reporter,
		events:           make(chan event),
		loopDone:         make(chan struct{}),
		cancelSupervisor: cancel,
	}

	go supervisor.Run(ctx, cfg.Connector, n, supervisor.Options{
		Host:          cfg.Host,
		Port:          cfg.Port,
		ConnOpts:      cfg.ConnOpts,
		ReconnectWait: cfg.ReconnectWait,
		Handshake:     cfg.Handshake,
	}, log)

	go n.run()

	return n
}

// --- supervisor.Emitter -----------------------------------------------

func (n *Node) ConnectError(reason error)              { n.send(connectErrorEvent{reason}) }
func (n *Node) InitError(errs []error)                 { n.send(initErrorEvent{errs}) }
func (n *Node) Connected(h transport.Handle, id []byte) { n.send(connectedEvent{h, id}) }
func (n *Node) SocketClosed(reason error)               { n.send(socketClosedEvent{reason}) }

// send delivers ev to the loop, or drops it silently if the loop has
// already exited (Stop was called) — a stopped Node has nothing left to
// react to a late supervisor signal with.
func (n *Node) send(ev event) {
	select {
	case n.events <- ev:
	case <-n.loopDone:
	}
}

// --- public control surface --------------------------------------------

// CommandAsync submits payload for execution and arranges for sink to be
// invoked exactly once with the eventual Reply. It never blocks on the
// network: the call returns as soon as the command has been handed to
// the event loop (or, if the node is down or stopped, as soon as the
// synchronous rejection has been computed).
func (n *Node) CommandAsync(payload []byte, replyCount int, sink command.Sink) {
	cmd := &command.Command{Payload: payload, ReplyCount: replyCount, Sink: sink}
	if n.stoppedFlag.Load() {
		cmd.Reply(command.Reply{Kind: command.Stopped, Cause: n.stopReason})
		return
	}
	select {
	case n.events <- submitEvent{cmd: cmd}:
	case <-n.loopDone:
		cmd.Reply(command.Reply{Kind: command.Stopped, Cause: n.stopReason})
	}
}

// Command is CommandAsync's synchronous counterpart. If ctx is canceled
// before the reply arrives, Command returns ctx.Err() and the command
// remains outstanding — it still occupies a pending/waiting slot and its
// eventual reply is simply discarded by the caller. Per spec.md §2, the
// client itself never imposes a per-command deadline; ctx is entirely
// the caller's own budget layered on top.
func (n *Node) Command(ctx context.Context, payload []byte, replyCount int) (command.Reply, error) {
	resultCh := make(chan command.Reply, 1)
	n.CommandAsync(payload, replyCount, func(r command.Reply) { resultCh <- r })
	select {
	case r := <-resultCh:
		return r, nil
	case <-ctx.Done():
		return command.Reply{}, ctx.Err()
	}
}

// Snapshot returns a consistent point-in-time read of the node's state,
// obtained by asking the event loop rather than reading Node's fields
// directly (§5 again: even a read goes through the channel).
func (n *Node) Snapshot() Snapshot {
	resp := make(chan Snapshot, 1)
	select {
	case n.events <- snapshotEvent{resp: resp}:
	case <-n.loopDone:
		return Snapshot{}
	}
	select {
	case s := <-resp:
		return s
	case <-n.loopDone:
		return Snapshot{}
	}
}

// ForceReconnect tears down the current connection, if any, and lets
// the reconnect supervisor bring up a fresh one. A no-op if the node is
// already disconnected or stopped.
func (n *Node) ForceReconnect() {
	n.send(forceReconnectEvent{})
}

// Stop shuts the node down (§4.7): the supervisor is canceled, every
// outstanding command is replied to with Stopped, and a final
// connection_down(client_stopped) status is emitted. Stop on an
// already-stopped Node is a no-op; concurrent callers all block until
// the single shutdown completes.
func (n *Node) Stop(reason error) {
	n.stopOnce.Do(func() {
		n.stopReason = reason
		n.stoppedFlag.Store(true)
		done := make(chan struct{})
		select {
		case n.events <- stopEvent{reason: reason, done: done}:
			<-done
		case <-n.loopDone:
		}
	})
}

// --- event loop ----------------------------------------------------------

func (n *Node) run() {
	defer close(n.loopDone)
	for {
		var repliesCh <-chan transport.Reply
		if n.handle != nil {
			repliesCh = n.handle.Replies()
		}

		select {
		case ev := <-n.events:
			n.dispatch(ev)
			if n.stopped {
				return
			}
		case r := <-repliesCh:
			n.onReply(r)
		}
	}
}

func (n *Node) dispatch(ev event) {
	switch e := ev.(type) {
	case submitEvent:
		n.onSubmit(e.cmd)
	case connectErrorEvent:
		n.onDisconnect(status.ReasonConnectError, e.err)
	case initErrorEvent:
		n.onDisconnect(status.ReasonInitError, errors.Join(e.errs...))
	case socketClosedEvent:
		n.onDisconnect(status.ReasonSocketClosed, e.err)
	case connectedEvent:
		n.onConnected(e)
	case nodeDownTimerEvent:
		n.onNodeDownTimer(e.gen)
	case snapshotEvent:
		n.onSnapshot(e)
	case forceReconnectEvent:
		if n.handle != nil {
			n.handle.Close()
		}
	case stopEvent:
		n.onStop(e)
	}
}

// onSubmit admits a freshly-submitted command (§4.7's "submit" case). A
// node that has been sticky-down since node_down_timeout rejects new
// submissions synchronously rather than letting them pile up behind
// commands that are already doomed (§4.5's node_down section).
func (n *Node) onSubmit(cmd *command.Command) {
	if n.nodeDown {
		cmd.Reply(command.Reply{Kind: command.NodeDown})
		return
	}
	n.cmdSeq++
	cmd.Seq = n.cmdSeq
	n.pipeline.Enqueue(cmd)
	n.drive()
}

// onReply matches a reply against the oldest in-flight command. Replies
// arrive only on the current handle's channel, which the run loop stops
// reading the moment that handle is torn down (repliesCh goes nil on the
// next iteration) — so any reply processed here is by construction from
// the live handle, never a defunct one.
func (n *Node) onReply(r transport.Reply) {
	cmd, ok := n.pipeline.PopPendingHead()
	if !ok {
		return
	}
	result := r.Result
	if r.Err != nil {
		result = r.Err
	}
	cmd.Reply(command.Reply{Kind: command.OK, Result: result})
	n.drive()
}

// onConnected handles a successful handshake (§4.4's "Connect success").
func (n *Node) onConnected(e connectedEvent) {
	n.handle = e.handle
	n.clusterID = e.clusterID
	if n.nodeDownTimerArmed {
		n.nodeDownTimerArmed = false
		n.nodeDownTimerGen++
	}
	n.nodeDown = false
	n.drive()
	n.reporter.Emit(status.Event{Tag: n.tag(), Kind: status.ConnectionUp})
}

// onDisconnect is the shared handler for connect_error, init_error and
// socket_closed (§4.5's "Disconnect handling" names all three as
// triggering the identical sequence). It runs whether or not a handle
// was ever held: init_error in particular fires while the handshake
// driver is still retrying on an open socket, before the core has ever
// seen a connected event, so connection is already None here.
func (n *Node) onDisconnect(reason status.DownReason, err error) {
	n.handle = nil
	n.pipeline.Disconnect()
	n.drive()
	n.reporter.Emit(status.Event{Tag: n.tag(), Kind: status.ConnectionDown, Reason: reason, ReasonErr: err})
	if !n.nodeDownTimerArmed {
		n.armNodeDownTimer()
	}
}

// onNodeDownTimer fires node_down after node_down_timeout elapsed with
// no successful reconnect (§4.5). gen guards against a timer that was
// canceled (by a reconnect) and then re-armed racing its own stale fire.
func (n *Node) onNodeDownTimer(gen uint64) {
	if !n.nodeDownTimerArmed || gen != n.nodeDownTimerGen {
		return
	}
	n.nodeDownTimerArmed = false
	n.nodeDown = true
	for _, cmd := range n.pipeline.Flush() {
		cmd.Reply(command.Reply{Kind: command.NodeDown})
	}
}

func (n *Node) onSnapshot(e snapshotEvent) {
	e.resp <- Snapshot{
		Connected:  n.handle != nil,
		NodeDown:   n.nodeDown,
		WaitingLen: n.pipeline.WaitingLen(),
		PendingLen: n.pipeline.PendingLen(),
		ClusterID:  n.clusterID,
	}
}

// onStop is §4.7's stop operation: flush both queues, reply Stopped to
// everything, tear down the supervisor, emit a final status, and signal
// the loop to exit.
func (n *Node) onStop(e stopEvent) {
	if n.stopped {
		close(e.done)
		return
	}
	n.stopped = true
	n.cancelSupervisor()
	if n.handle != nil {
		n.handle.Close()
	}
	for _, cmd := range n.pipeline.Flush() {
		cmd.Reply(command.Reply{Kind: command.Stopped, Cause: e.reason})
	}
	n.reporter.Emit(status.Event{Tag: n.tag(), Kind: status.ConnectionDown, Reason: status.ReasonClientStopped, ReasonErr: e.reason})
	close(e.done)
}

// drive runs the pipeline driver and forwards its side effects — §4.5's
// "every event that may change queue state ends by running the pipeline
// driver exactly once before returning control."
func (n *Node) drive() {
	dropped, transition := n.pipeline.Drive(n.handle, n.submit, n.nextTag)
	for _, cmd := range dropped {
		cmd.Reply(command.Reply{Kind: command.Overflow})
	}
	switch transition {
	case pipeline.QueueFull:
		n.reporter.Emit(status.Event{Tag: n.tag(), Kind: status.QueueFull})
	case pipeline.QueueOk:
		n.reporter.Emit(status.Event{Tag: n.tag(), Kind: status.QueueOk})
	}
}

func (n *Node) submit(payload []byte, tag uint64, replyCount int) {
	n.handle.Submit(payload, tag, replyCount)
}

func (n *Node) nextTag() uint64 {
	n.tagSeq++
	return n.tagSeq
}

func (n *Node) tag() status.Tag {
	return status.Tag{Host: n.cfg.Host, Port: n.cfg.Port, ClusterID: n.clusterID}
}

func (n *Node) armNodeDownTimer() {
	n.nodeDownTimerArmed = true
	n.nodeDownTimerGen++
	gen := n.nodeDownTimerGen
	time.AfterFunc(n.cfg.NodeDownTimeout, func() {
		select {
		case n.events <- nodeDownTimerEvent{gen}:
		case <-n.loopDone:
		}
	})
}
