package redisnode

import (
	"context"
	"testing"
	"time"

	"github.com/lumadb/redisnode/internal/codec"
	"github.com/lumadb/redisnode/internal/transport"
)

// fakeHandle and fakeConnector let these tests drive a real Client
// through Start/Command/Stop without opening a socket. RESPVersion: 2
// and UseClusterID: false keep the handshake batch empty (§4.3), so
// Connect succeeds straight into the connected event with no RESP
// traffic to fake.
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
func (h *fakeHandle) Close()                          {}

type fakeConnector struct{ handle *fakeHandle }

func (c fakeConnector) Connect(ctx context.Context, host string, port int, opts transport.Options) (transport.Handle, error) {
	return c.handle, nil
}

func TestStartCommandStop(t *testing.T) {
	h := newFakeHandle()
	client, err := Start("127.0.0.1", 6379, Options{
		Connector:    fakeConnector{handle: h},
		RESPVersion:  2,
		UseClusterID: false,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer client.Stop(nil)

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	client.CommandAsync(codec.Encode("GET", "foo"), func(result any, err error) {
		resultCh <- result
		errCh <- err
	})

	var call submittedCall
	select {
	case call = <-h.submitted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Submit")
	}
	h.replies <- transport.Reply{Tag: call.tag, Result: "bar"}

	select {
	case result := <-resultCh:
		if err := <-errCh; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "bar" {
			t.Fatalf("expected bar, got %v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command result")
	}

	snap := client.Snapshot()
	if !snap.Connected {
		t.Fatalf("expected connected snapshot, got %+v", snap)
	}
}

func TestStartRejectsInvalidOptions(t *testing.T) {
	_, err := Start("127.0.0.1", 6379, Options{MaxWaiting: 10, QueueOkLevel: 10})
	if err == nil {
		t.Fatal("expected an error when queue_ok_level >= max_waiting")
	}
}

func TestCommandContextTimeout(t *testing.T) {
	h := newFakeHandle()
	client, err := Start("127.0.0.1", 6379, Options{
		Connector:    fakeConnector{handle: h},
		RESPVersion:  2,
		UseClusterID: false,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer client.Stop(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Command(ctx, codec.Encode("GET", "foo"))
	if err == nil {
		t.Fatal("expected a context deadline error")
	}
}
