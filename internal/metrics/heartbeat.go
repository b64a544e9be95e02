// Package metrics runs a periodic stats heartbeat over a node: one log
// line per tick summarizing queue depth and connection state, cheap
// enough to leave on in production as a liveness signal independent of
// internal/status's event-driven reporting. No spec.md analogue; added
// to exercise robfig/cron/v3, which the teacher's go.mod requires but no
// retrieved file imports. Grounded on the tick-loop shape of
// pkg/cluster/parallel_raft.go's Run(ctx) — ctx.Done/ticker select, one
// goroutine, no shared state beyond what it logs — adapted from a fixed
// time.Ticker to a cron.Schedule so the dependency is genuinely
// exercised rather than reimplemented beside it.
package metrics

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/core"
)

// Heartbeat logs a Snapshot on a cron schedule until stopped.
type Heartbeat struct {
	node *core.Node
	log  *zap.Logger
	cron *cron.Cron
}

// New builds a Heartbeat that logs node's Snapshot according to spec,
// a standard five-field cron expression (e.g. "* * * * *" for once a
// minute, or "@every 30s" for a fixed interval). It does not start
// ticking until Start is called.
func New(node *core.Node, log *zap.Logger, spec string) (*Heartbeat, error) {
	c := cron.New()
	h := &Heartbeat{node: node, log: log, cron: c}
	if _, err := c.AddFunc(spec, h.tick); err != nil {
		return nil, err
	}
	return h, nil
}

// Start begins the schedule in a background goroutine. Safe to call at
// most once.
func (h *Heartbeat) Start() { h.cron.Start() }

// Stop ends the schedule, waiting for any in-flight tick to finish, or
// for ctx to be done, whichever comes first.
func (h *Heartbeat) Stop(ctx context.Context) {
	stopCtx := h.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

func (h *Heartbeat) tick() {
	snap := h.node.Snapshot()
	h.log.Info("redisnode heartbeat",
		zap.Bool("connected", snap.Connected),
		zap.Bool("node_down", snap.NodeDown),
		zap.Int("waiting_len", snap.WaitingLen),
		zap.Int("pending_len", snap.PendingLen),
		zap.ByteString("cluster_id", snap.ClusterID),
	)
}
