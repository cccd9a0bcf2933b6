package tools

import (
	"context"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/modelops/cardflow/internal/core"
)

// mcpProbe performs a full MCP handshake against a streamable-HTTP server
// and counts its advertised tools.
func mcpProbe(ctx context.Context, cfg core.ToolServerConfig) (int, error) {
	c, err := mcpclient.NewStreamableHttpClient(cfg.URL)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return 0, err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "cardflow",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return 0, err
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return 0, err
	}
	return len(result.Tools), nil
}
