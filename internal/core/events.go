package core

import (
	"github.com/lumadb/redisnode/internal/command"
	"github.com/lumadb/redisnode/internal/transport"
)

// event is the union of messages the core's single event-loop goroutine
// processes, one at a time, to completion (§5). Go has no sum types, so
// this is a plain interface with a private marker, and every concrete
// event type implements it trivially — the switch in run() is the only
// place that cares about the distinction.
type event interface{ isEvent() }

type submitEvent struct{ cmd *command.Command }

func (submitEvent) isEvent() {}

type connectErrorEvent struct{ err error }

func (connectErrorEvent) isEvent() {}

type initErrorEvent struct{ errs []error }

func (initErrorEvent) isEvent() {}

type socketClosedEvent struct{ err error }

func (socketClosedEvent) isEvent() {}

type connectedEvent struct {
	handle    transport.Handle
	clusterID []byte
}

func (connectedEvent) isEvent() {}

type nodeDownTimerEvent struct{ gen uint64 }

func (nodeDownTimerEvent) isEvent() {}

type stopEvent struct {
	reason error
	done   chan struct{}
}

func (stopEvent) isEvent() {}

// Snapshot is a point-in-time, consistent read of node state, produced
// without ever letting a reader touch the queues directly (§5): the
// admin surface asks for one via this same event channel and waits for
// the answer, instead of reaching into Node's fields.
type Snapshot struct {
	Connected  bool
	NodeDown   bool
	WaitingLen int
	PendingLen int
	ClusterID  []byte
}

type snapshotEvent struct{ resp chan Snapshot }

func (snapshotEvent) isEvent() {}

// forceReconnectEvent backs Node.ForceReconnect, the admin surface's one
// mutating operation: close the current handle (if any) from inside the
// loop goroutine, same as any other handle access, and let the
// supervisor's normal socket_closed path drive the actual reconnect.
type forceReconnectEvent struct{}

func (forceReconnectEvent) isEvent() {}
