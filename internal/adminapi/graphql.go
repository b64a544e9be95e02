package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"

	"github.com/lumadb/redisnode/internal/core"
)

// buildSchema is grounded on pkg/platform/graphql/engine.go's
// BuildSchema: a root Query and Mutation assembled from graphql.Fields,
// resolvers closing over the node instead of a storage engine. There is
// exactly one thing to query (the snapshot) and one thing to mutate
// (force a reconnect), so the schema is built once at construction
// rather than lazily per request the way the teacher's dynamic,
// collection-driven schema needs to be.
func buildSchema(node *core.Node) (graphql.Schema, error) {
	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Snapshot",
		Fields: graphql.Fields{
			"connected":  &graphql.Field{Type: graphql.Boolean},
			"nodeDown":   &graphql.Field{Type: graphql.Boolean},
			"waitingLen": &graphql.Field{Type: graphql.Int},
			"pendingLen": &graphql.Field{Type: graphql.Int},
			"clusterId":  &graphql.Field{Type: graphql.String},
		},
	})

	queryFields := graphql.Fields{
		"snapshot": &graphql.Field{
			Type: snapshotType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				snap := node.Snapshot()
				return map[string]interface{}{
					"connected":  snap.Connected,
					"nodeDown":   snap.NodeDown,
					"waitingLen": snap.WaitingLen,
					"pendingLen": snap.PendingLen,
					"clusterId":  string(snap.ClusterID),
				}, nil
			},
		},
	}

	mutationFields := graphql.Fields{
		"forceReconnect": &graphql.Field{
			Type: graphql.Boolean,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				node.ForceReconnect()
				return true, nil
			},
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutationFields}),
	})
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func (s *Server) handleGraphQL(c *gin.Context) {
	var req graphqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         s.graphqlSchema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		Context:        c.Request.Context(),
	})
	c.JSON(http.StatusOK, result)
}
