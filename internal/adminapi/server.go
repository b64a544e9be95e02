// Package adminapi is an optional, read-mostly introspection surface
// over a running node (A3 in SPEC_FULL.md's ambient-components table):
// unauthenticated REST status endpoints and a live status WebSocket,
// plus two JWT-protected mutating paths that both reach
// Node.ForceReconnect — POST /admin/reconnect directly, and the
// forceReconnect GraphQL mutation, which is why /graphql as a whole
// sits behind requireAuth() rather than just the REST path. None of it
// touches queue invariants — every handler either reads a Snapshot
// (itself obtained via the core's own event channel, never by reaching
// into Node's fields) or calls Node.ForceReconnect, which is itself
// just another message send.
//
// Route-table shape grounded on pkg/api/server.go's NewServer(node,
// logger)+setupRoutes() pattern, ported from fasthttp/router (not in
// go.mod) to gin-gonic/gin (which is).
package adminapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/lumadb/redisnode/internal/core"
)

// Server is the admin HTTP surface over a single node.
type Server struct {
	node          *core.Node
	log           *zap.Logger
	auth          *authEngine
	engine        *gin.Engine
	graphqlSchema graphql.Schema
}

// NewServer builds the admin surface. jwtSecret signs/verifies the
// bearer tokens issued by POST /admin/login; adminPassword is the single
// admin credential checked there (there is no multi-user store here —
// this is an operability surface for one node, not a platform).
func NewServer(node *core.Node, log *zap.Logger, jwtSecret []byte, adminPassword string) (*Server, error) {
	schema, err := buildSchema(node)
	if err != nil {
		return nil, err
	}

	s := &Server{
		node:          node,
		log:           log,
		auth:          newAuthEngine(jwtSecret, adminPassword),
		engine:        gin.New(),
		graphqlSchema: schema,
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s, nil
}

// Handler returns the net/http handler cmd/redisnode hands to
// http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/ws/status", s.handleStatusStream)

	s.engine.POST("/admin/login", s.handleLogin)
	// /graphql carries a forceReconnect mutation alongside the snapshot
	// query, so the whole endpoint sits behind requireAuth() rather than
	// just /admin/reconnect — otherwise the mutation is reachable
	// unauthenticated through the query language even though the REST
	// path to the same effect is guarded.
	s.engine.POST("/graphql", s.requireAuth(), s.handleGraphQL)
	s.engine.POST("/admin/reconnect", s.requireAuth(), s.handleForceReconnect)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func snapshotJSON(snap core.Snapshot) gin.H {
	return gin.H{
		"connected":   snap.Connected,
		"node_down":   snap.NodeDown,
		"waiting_len": snap.WaitingLen,
		"pending_len": snap.PendingLen,
		"cluster_id":  string(snap.ClusterID),
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotJSON(s.node.Snapshot()))
}

func (s *Server) handleForceReconnect(c *gin.Context) {
	s.node.ForceReconnect()
	c.JSON(http.StatusAccepted, gin.H{"status": "reconnecting"})
}
