package mcpadapter

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/transport"
	"github.com/lumadb/redisnode/pkg/redisnode"
)

// fakeHandle/fakeConnector mirror the doubles used across internal/core,
// pkg/redisnode and internal/adminapi's own test suites: RESPVersion 2
// keeps the handshake batch empty, so a command can be exercised with no
// real RESP wire traffic to fake beyond the single reply below.
type fakeHandle struct {
	submitted chan []byte
	replies   chan transport.Reply
	closed    chan error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		submitted: make(chan []byte, 8),
		replies:   make(chan transport.Reply, 8),
		closed:    make(chan error, 1),
	}
}

func (h *fakeHandle) Submit(payload []byte, tag uint64, replyCount int) {
	h.submitted <- payload
}
func (h *fakeHandle) Replies() <-chan transport.Reply { return h.replies }
func (h *fakeHandle) Closed() <-chan error             { return h.closed }
func (h *fakeHandle) Close() {
	select {
	case h.closed <- nil:
	default:
	}
}

type fakeConnector struct{ handle *fakeHandle }

func (c fakeConnector) Connect(ctx context.Context, host string, port int, opts transport.Options) (transport.Handle, error) {
	return c.handle, nil
}

func newTestClient(t *testing.T) (*redisnode.Client, *fakeHandle) {
	t.Helper()
	handle := newFakeHandle()
	client, err := redisnode.Start("127.0.0.1", 6379, redisnode.Options{
		RESPVersion: 2,
		Connector:   fakeConnector{handle: handle},
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { client.Stop(nil) })
	return client, handle
}

func callCommandTool(ctx context.Context, client *redisnode.Client, commandLine string) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"command": commandLine}
	return handleCommand(client)(ctx, req)
}

func TestHandleCommandReturnsStringReply(t *testing.T) {
	client, handle := newTestClient(t)

	go func() {
		<-handle.submitted
		handle.replies <- transport.Reply{Result: "OK"}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := callCommandTool(ctx, client, "SET foo bar")
	if err != nil {
		t.Fatalf("handleCommand: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
	text := textOf(t, result)
	if text != "OK" {
		t.Fatalf("expected %q, got %q", "OK", text)
	}
}

func TestHandleCommandFormatsArrayReply(t *testing.T) {
	client, handle := newTestClient(t)

	go func() {
		<-handle.submitted
		handle.replies <- transport.Reply{Result: []any{"a", "b", int64(3)}}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := callCommandTool(ctx, client, "LRANGE mylist 0 -1")
	if err != nil {
		t.Fatalf("handleCommand: %v", err)
	}
	text := textOf(t, result)
	want := "a\nb\n3"
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

func TestHandleCommandRejectsMissingCommand(t *testing.T) {
	client, _ := newTestClient(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}
	result, err := handleCommand(client)(context.Background(), req)
	if err != nil {
		t.Fatalf("handleCommand: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a missing command")
	}
}

func TestHandleCommandSurfacesRESPError(t *testing.T) {
	client, handle := newTestClient(t)

	go func() {
		<-handle.submitted
		handle.replies <- transport.Reply{Result: &transport.RESPError{Message: "WRONGTYPE bad thing"}}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := callCommandTool(ctx, client, "INCR notanumber")
	if err != nil {
		t.Fatalf("handleCommand: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a RESP error reply")
	}
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected exactly one content item, got %d", len(result.Content))
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}
