package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/command"
	"github.com/lumadb/redisnode/internal/pipeline"
	"github.com/lumadb/redisnode/internal/status"
	"github.com/lumadb/redisnode/internal/transport"
)

// fakeHandle is a transport.Handle whose Submit records calls on a
// channel and whose Replies/Closed channels are test-controlled, so a
// test can play the part of the supervisor + real transport without
// any actual networking.
type fakeHandle struct {
	submitted chan submittedCall
	replies   chan transport.Reply
	closed    chan error
}

type submittedCall struct {
	payload    []byte
	tag        uint64
	replyCount int
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		submitted: make(chan submittedCall, 16),
		replies:   make(chan transport.Reply, 16),
		closed:    make(chan error, 1),
	}
}

func (h *fakeHandle) Submit(payload []byte, tag uint64, replyCount int) {
	h.submitted <- submittedCall{payload, tag, replyCount}
}
func (h *fakeHandle) Replies() <-chan transport.Reply { return h.replies }
func (h *fakeHandle) Closed() <-chan error            { return h.closed }

// Close mimics tcpHandle's real behavior: idempotent, and it signals
// Closed() the same way an I/O failure would.
func (h *fakeHandle) Close() {
	select {
	case h.closed <- nil:
	default:
	}
}

// newTestNode builds a Node with its event loop running but without the
// real supervisor/handshake goroutines — tests play the supervisor's
// part directly via the Emitter methods (ConnectError, Connected, ...),
// which is all the real supervisor ever does to a Node anyway.
func newTestNode(t *testing.T, cfg Config) *Node {
	t.Helper()
	log := zap.NewNop()
	reporter := status.NewReporter(status.NewLogSink(log))
	_, cancel := context.WithCancel(context.Background())

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
	go n.run()
	t.Cleanup(func() { n.Stop(nil) })
	return n
}

func TestCommandRoundTrip(t *testing.T) {
	n := newTestNode(t, Config{MaxWaiting: 10, MaxPending: 2, QueueOkLevel: 5, NodeDownTimeout: time.Hour})
	h := newFakeHandle()
	n.Connected(h, []byte("cluster-1"))

	resultCh := make(chan command.Reply, 1)
	n.CommandAsync([]byte("GET foo"), 1, func(r command.Reply) { resultCh <- r })

	var call submittedCall
	select {
	case call = <-h.submitted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Submit")
	}

	h.replies <- transport.Reply{Tag: call.tag, Result: "bar"}

	select {
	case r := <-resultCh:
		if r.Kind != command.OK || r.Result != "bar" {
			t.Fatalf("expected OK(bar), got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}

	snap := n.Snapshot()
	if !snap.Connected || snap.PendingLen != 0 {
		t.Fatalf("expected connected with empty pending, got %+v", snap)
	}
}

func TestOverflowDropsFromHeadSynchronously(t *testing.T) {
	// max_waiting=1: of 3 commands submitted with no connection ever
	// established, 2 must be dropped from the head with Overflow; the
	// third stays queued forever (no reply expected for it here).
	n := newTestNode(t, Config{MaxWaiting: 1, MaxPending: 1, QueueOkLevel: 1, NodeDownTimeout: time.Hour})

	resultCh := make(chan command.Reply, 3)
	for i := 0; i < 3; i++ {
		n.CommandAsync([]byte("x"), 1, func(r command.Reply) { resultCh <- r })
	}

	for i := 0; i < 2; i++ {
		select {
		case r := <-resultCh:
			if r.Kind != command.Overflow {
				t.Fatalf("expected Overflow, got %+v", r)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for overflow reply")
		}
	}

	select {
	case r := <-resultCh:
		t.Fatalf("unexpected third reply %+v; one command should remain queued", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNodeDownRejectsSubmissionsAfterTimeout(t *testing.T) {
	n := newTestNode(t, Config{MaxWaiting: 10, MaxPending: 2, QueueOkLevel: 5, NodeDownTimeout: 20 * time.Millisecond})

	n.ConnectError(errors.New("dial refused"))
	time.Sleep(100 * time.Millisecond)

	if snap := n.Snapshot(); !snap.NodeDown {
		t.Fatalf("expected node_down after timeout, got %+v", snap)
	}

	resultCh := make(chan command.Reply, 1)
	n.CommandAsync([]byte("x"), 1, func(r command.Reply) { resultCh <- r })

	select {
	case r := <-resultCh:
		if r.Kind != command.NodeDown {
			t.Fatalf("expected NodeDown, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for node_down reply")
	}
}

func TestReconnectCancelsNodeDownTimer(t *testing.T) {
	n := newTestNode(t, Config{MaxWaiting: 10, MaxPending: 2, QueueOkLevel: 5, NodeDownTimeout: 30 * time.Millisecond})

	n.ConnectError(errors.New("dial refused"))
	time.Sleep(10 * time.Millisecond) // well before the timer fires
	h := newFakeHandle()
	n.Connected(h, nil)

	time.Sleep(80 * time.Millisecond) // past when the canceled timer would have fired

	if snap := n.Snapshot(); snap.NodeDown {
		t.Fatalf("expected node_down timer to have been canceled by reconnect, got %+v", snap)
	}
}

func TestForceReconnectClosesCurrentHandle(t *testing.T) {
	n := newTestNode(t, Config{MaxWaiting: 10, MaxPending: 2, QueueOkLevel: 5, NodeDownTimeout: time.Hour})
	h := newFakeHandle()
	n.Connected(h, nil)

	n.ForceReconnect()

	select {
	case <-h.closed:
	case <-time.After(time.Second):
		t.Fatal("expected ForceReconnect to close the current handle")
	}
}

func TestForceReconnectNoopWhenDisconnected(t *testing.T) {
	n := newTestNode(t, Config{MaxWaiting: 10, MaxPending: 2, QueueOkLevel: 5, NodeDownTimeout: time.Hour})
	// No Connected call: handle is nil. Must not panic or block.
	n.ForceReconnect()
	_ = n.Snapshot()
}

func TestStopFlushesOutstandingCommands(t *testing.T) {
	n := newTestNode(t, Config{MaxWaiting: 10, MaxPending: 2, QueueOkLevel: 5, NodeDownTimeout: time.Hour})
	h := newFakeHandle()
	n.Connected(h, nil)

	resultCh := make(chan command.Reply, 1)
	n.CommandAsync([]byte("x"), 1, func(r command.Reply) { resultCh <- r })
	select {
	case <-h.submitted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Submit")
	}

	cause := errors.New("shutting down")
	n.Stop(cause)

	select {
	case r := <-resultCh:
		if r.Kind != command.Stopped || !errors.Is(r.Err(), cause) {
			t.Fatalf("expected Stopped(%v), got %+v (err=%v)", cause, r, r.Err())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stopped reply")
	}

	// Stop is idempotent, and commands submitted after stop are
	// rejected synchronously.
	n.Stop(nil)
	r, err := n.Command(context.Background(), []byte("x"), 1)
	if err != nil {
		t.Fatalf("unexpected ctx error: %v", err)
	}
	if r.Kind != command.Stopped {
		t.Fatalf("expected Stopped after shutdown, got %+v", r)
	}
}
