// Package transport defines the Connection collaborator contract (C2,
// §4.2 of the design) and ships a default implementation over net.Conn.
// The default decoder understands RESP2 frame types only; a RESP3-only
// reply (such as the map a server returns for HELLO 3) is treated as a
// protocol error and closes the handle. spec.md treats Connection as an external collaborator
// specified only by the contract the core consumes; this package is
// that contract plus a usable default, the way joomcode/redispipe's
// redisconn package is itself a single node's TCP transport.
package transport

import "context"

// Reply is what a Handle delivers for one submitted payload: the tag it
// was submitted with, and either a decoded value or an error. Result may
// itself be a *RESPError if the server replied with a RESP error — the
// core and handshake driver treat that as a normal (non-OK) reply value,
// never as a transport failure.
type Reply struct {
	Tag    uint64
	Result any
	Err    error // non-nil only for a transport-level decode/read failure
}

// Handle is a single, already-connected transport connection. The core
// owns a Handle from the moment it receives a connected event until the
// Handle reports socket_closed; the reconnect supervisor owns it before
// that handoff.
type Handle interface {
	// Submit hands payload to the transport, tagged for later matching.
	// replyCount is how many discrete RESP frames payload will provoke
	// from the server (>1 when payload packs several commands into one
	// pipeline); the transport bundles that many wire replies into a
	// single tagged Reply. It must not block; the handle guarantees
	// exactly one Reply arrives per Submit call, tagged with tag, in
	// submission order.
	Submit(payload []byte, tag uint64, replyCount int)

	// Replies delivers one Reply per Submit call, in submission order.
	// It may continue to deliver replies for a brief period after Closed
	// fires; callers discard anything read after observing a close.
	Replies() <-chan Reply

	// Closed fires at most once, after which Submit is a no-op; replies
	// already produced may still be read from Replies (see above).
	Closed() <-chan error

	// Close tears the handle down immediately; idempotent.
	Close()
}

// Connector opens new Handles. At most one Connect call is in flight at
// a time per Connector instance (enforced by the reconnect supervisor,
// which never calls Connect again until the previous attempt resolves).
type Connector interface {
	Connect(ctx context.Context, host string, port int, opts Options) (Handle, error)
}

// Options carries connection-level settings forwarded opaquely by the
// core; spec.md's connection_opts.
type Options struct {
	DialTimeout    int64 // milliseconds; 0 means no explicit dial timeout
	TLSEnabled     bool  // ignored by TCPConnector, which dials plain TCP
	ReadBufferSize int   // ignored by TCPConnector; its reader starts at 4 KiB
}
