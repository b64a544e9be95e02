// Package pipeline implements the command pipeline (C5, §4.5), the
// central algorithm of the client: admitting commands into the waiting
// queue, draining waiting into pending within the in-flight window, and
// enforcing the overflow/hysteresis policy. It owns no channels and
// makes no I/O calls itself — internal/core drives it from the single
// event-loop goroutine and performs the actual Submit calls.
//
// Grounded on pkg/cluster/pipeline_transport.go's PipelineTransport /
// InflightTracker pair: a non-blocking send path with an in-flight limit
// tracked independently of the channel holding the messages, generalized
// from "drop the newest silently" to the spec's "admit, then drop the
// oldest with a reply and a status event."
package pipeline

import (
	"github.com/lumadb/redisnode/internal/command"
	"github.com/lumadb/redisnode/internal/queue"
	"github.com/lumadb/redisnode/internal/transport"
)

// Transition reports a queue_full/queue_ok crossing for the caller to
// forward to the status reporter (§4.5's hysteresis).
type Transition int

const (
	NoTransition Transition = iota
	QueueFull
	QueueOk
)

// Config is the pipeline's view of the client's bound options.
type Config struct {
	MaxWaiting   int
	MaxPending   int
	QueueOkLevel int
}

// Pipeline holds the waiting and pending queues and the backpressure
// hysteresis flag (§3's queue_full_event_sent). It is not safe for
// concurrent use — callers must serialize access themselves, which
// internal/core does by construction (§5).
type Pipeline struct {
	cfg Config

	waiting *queue.Queue[*command.Command]
	pending *queue.Queue[*command.Command]

	queueFullSent bool
}

func New(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		waiting: queue.New[*command.Command](),
		pending: queue.New[*command.Command](),
	}
}

func (p *Pipeline) WaitingLen() int { return p.waiting.Len() }
func (p *Pipeline) PendingLen() int { return p.pending.Len() }

// Enqueue admits cmd into the tail of waiting. The caller must run
// Drive immediately after, per §4.5's "every event ... ends by running
// the pipeline driver exactly once before returning control."
func (p *Pipeline) Enqueue(cmd *command.Command) {
	p.waiting.PushBack(cmd)
}

// Submitter is how Drive hands a command's payload to the transport. The
// core supplies this as a closure over the current Handle.
type Submitter func(payload []byte, tag uint64, replyCount int)

// Drive runs the pipeline driver (§4.5): while connected and under the
// in-flight limit, move commands from waiting to pending and submit
// them; then enforce the overflow/hysteresis policy. nextTag assigns
// each submitted command its reply tag.
//
// If conn is nil (no connection yet), Drive only runs the overflow step
// — commands accumulate in waiting, exactly as §4.5 step 1 specifies.
func (p *Pipeline) Drive(conn transport.Handle, submit Submitter, nextTag func() uint64) (dropped []*command.Command, transition Transition) {
	if conn != nil {
		for p.waiting.Len() > 0 && p.pending.Len() < p.cfg.MaxPending {
			cmd, _ := p.waiting.PopFront()
			p.pending.PushBack(cmd)
			submit(cmd.Payload, nextTag(), replyCountOf(cmd))
		}
	}

	w := p.waiting.Len()
	switch {
	case w > p.cfg.MaxWaiting:
		if !p.queueFullSent {
			p.queueFullSent = true
			transition = QueueFull
		}
		for p.waiting.Len() > p.cfg.MaxWaiting {
			cmd, _ := p.waiting.PopFront()
			dropped = append(dropped, cmd)
		}
	case w < p.cfg.QueueOkLevel && p.queueFullSent:
		p.queueFullSent = false
		transition = QueueOk
	}

	return dropped, transition
}

func replyCountOf(cmd *command.Command) int {
	if cmd.ReplyCount <= 0 {
		return 1
	}
	return cmd.ReplyCount
}

// PopPendingHead removes and returns the oldest in-flight command, for
// matching against a reply delivered by the current handle (§4.5,
// "Reply handling").
func (p *Pipeline) PopPendingHead() (*command.Command, bool) {
	return p.pending.PopFront()
}

// Disconnect moves pending back to the front of waiting, preserving
// relative order, and clears pending — §4.5's disconnect handling,
// invariant 4 and 5 in §3.
func (p *Pipeline) Disconnect() {
	old := p.pending
	p.pending = queue.New[*command.Command]()
	old.Append(p.waiting)
	p.waiting = old
}

// Flush drains both queues in global submission order (pending, which
// holds the oldest still-alive commands, before waiting) and returns
// every command that was outstanding. Used by node-down timeout and by
// stop (§4.5, §4.7).
func (p *Pipeline) Flush() []*command.Command {
	out := p.pending.Clear()
	out = append(out, p.waiting.Clear()...)
	p.queueFullSent = false
	return out
}
