// Package mcpadapter exposes a running node as a Model Context Protocol
// tool server, so an agent process can drive Redis commands against it
// the same way a human operator would over redis-cli. No spec.md
// analogue; added to exercise mark3labs/mcp-go, which the teacher's
// go.mod requires but no retrieved teacher file imports.
package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lumadb/redisnode/internal/codec"
	"github.com/lumadb/redisnode/pkg/redisnode"
)

const (
	serverName = "redisnode"
	toolName   = "redis_command"
)

// NewServer builds an MCP server exposing a single tool, redis_command,
// backed by client. The server itself holds no state beyond the client
// reference; every call goes straight through to Client.Command.
func NewServer(client *redisnode.Client, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version)
	s.AddTool(commandTool(), handleCommand(client))
	return s
}

// ServeStdio runs the adapter over stdio, the transport an agent process
// spawning this binary as a subprocess expects.
func ServeStdio(client *redisnode.Client, version string) error {
	return server.ServeStdio(NewServer(client, version))
}

func commandTool() mcp.Tool {
	return mcp.NewTool(toolName,
		mcp.WithDescription("Run a single Redis command against the connected node and return its reply."),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description(`Command name followed by its arguments, space-separated, e.g. "SET foo bar".`),
		),
	)
}

func handleCommand(client *redisnode.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		line, ok := req.GetArguments()["command"].(string)
		if !ok || strings.TrimSpace(line) == "" {
			return mcp.NewToolResultError(`redis_command: missing required "command"`), nil
		}

		args := strings.Fields(line)
		result, err := client.Command(ctx, codec.Encode(args...))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		// A RESP error (e.g. WRONGTYPE) arrives as Kind==OK with Result
		// holding the *transport.RESPError itself (§internal/transport);
		// Client.Command's err stays nil for it, so it's surfaced here.
		if respErr, ok := result.(error); ok {
			return mcp.NewToolResultError(respErr.Error()), nil
		}
		return mcp.NewToolResultText(formatResult(result)), nil
	}
}

// formatResult renders a decoded RESP reply as the plain text an MCP
// client displays; internal/transport's decoder hands back one of
// string, []byte, int64, *transport.RESPError, []any, or nil.
func formatResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "(nil)"
	case error:
		return v.Error()
	case string:
		return v
	case []byte:
		return string(v)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatResult(e)
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(v)
	}
}
