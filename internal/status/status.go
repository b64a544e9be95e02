// Package status implements the status reporter (C6, §4.6): it
// deduplicates lifecycle events against the last one emitted and fans
// the survivors out to every attached Sink. Dedup happens once, here,
// so attaching several sinks (log, Kafka, ...) never causes them to see
// independently-flapping duplicates.
package status

import "fmt"

// Kind enumerates the four status events spec.md §6 defines.
type Kind int

const (
	ConnectionUp Kind = iota
	ConnectionDown
	QueueFull
	QueueOk
)

func (k Kind) String() string {
	switch k {
	case ConnectionUp:
		return "connection_up"
	case ConnectionDown:
		return "connection_down"
	case QueueFull:
		return "queue_full"
	case QueueOk:
		return "queue_ok"
	default:
		return "unknown"
	}
}

// DownReason distinguishes why a connection_down was emitted (§6).
type DownReason int

const (
	ReasonConnectError DownReason = iota
	ReasonInitError
	ReasonSocketClosed
	ReasonClientStopped
)

func (r DownReason) String() string {
	switch r {
	case ReasonConnectError:
		return "connect_error"
	case ReasonInitError:
		return "init_error"
	case ReasonSocketClosed:
		return "socket_closed"
	case ReasonClientStopped:
		return "client_stopped"
	default:
		return "unknown"
	}
}

// Tag identifies which node an event is about, carried on every event
// per §6 ("Each event carries (core_handle, (host, port), cluster_id)").
type Tag struct {
	Host      string
	Port      int
	ClusterID []byte
}

// Event is one status event, ready to dispatch to sinks.
type Event struct {
	Tag       Tag
	Kind      Kind
	Reason    DownReason // valid only when Kind == ConnectionDown
	ReasonErr error      // the underlying error, if any
}

func (e Event) String() string {
	if e.Kind == ConnectionDown {
		return fmt.Sprintf("connection_down(%s: %v)", e.Reason, e.ReasonErr)
	}
	return e.Kind.String()
}

// equal reports whether two events are the same observable status,
// ignoring ReasonErr's exact value — spec.md's dedup compares "last
// status" as a value, and two connect_error events with different
// underlying errors are still the same status for dedup purposes
// (scenario 5 in §8: "multiple connect_error signals in succession
// produce exactly one connection_down event").
func (e Event) equal(o Event) bool {
	if e.Kind != o.Kind {
		return false
	}
	if e.Kind == ConnectionDown {
		return e.Reason == o.Reason
	}
	return true
}

// Sink receives every deduplicated event. Delivery is fire-and-forget:
// a Sink must not block the reporter, and a panic in one sink must never
// take down the core, so Reporter recovers around each Send.
type Sink interface {
	Send(Event)
}

// Reporter is C6: the single place dedup happens (§4.6, §7's
// idempotence: "queue_full/queue_ok are each emitted at most once per
// crossing thanks to the hysteresis flag" plus the separate dedup layer
// here for connection_down/connection_up).
type Reporter struct {
	last  *Event
	sinks []Sink
}

func NewReporter(sinks ...Sink) *Reporter {
	return &Reporter{sinks: sinks}
}

// Attach adds a sink after construction; internal/core uses it for the
// extra sinks in Config.Sinks (e.g. a KafkaSink).
func (r *Reporter) Attach(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Emit delivers e unless it is identical to the last event emitted
// (§4.6). Returns whether it was actually delivered, mostly useful in
// tests asserting P6/P7.
func (r *Reporter) Emit(e Event) bool {
	if r.last != nil && r.last.equal(e) {
		return false
	}
	cp := e
	r.last = &cp
	for _, s := range r.sinks {
		dispatch(s, e)
	}
	return true
}

func dispatch(s Sink, e Event) {
	defer func() { _ = recover() }()
	s.Send(e)
}
