package explain

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/genai"
)

// PortfolioLookup is the subset of PortfolioService explainability needs:
// a single read by user id. Kept as an interface (rather than importing
// the portfolio package directly) so callers can wire a fake in tests and
// so neither package has to own the dependency direction.
type PortfolioLookup interface {
	GetPortfolio(ctx context.Context, userID string) (PortfolioView, bool, error)
}

// PortfolioView is the minimal portfolio shape get_portfolio reports:
// enough for the LLM to decide is_holding/current_position without
// leaking the full Portfolio/Holding model types into this package.
type PortfolioView struct {
	UserID   string          `json:"user_id"`
	Holdings []PortfolioItem `json:"holdings"`
}

// PortfolioItem is a single holding within a PortfolioView.
type PortfolioItem struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

const getPortfolioToolName = "get_portfolio"

// newPortfolioTool builds the MCP tool definition for get_portfolio.
func newPortfolioTool() mcp.Tool {
	return mcp.NewTool(getPortfolioToolName,
		mcp.WithDescription("Look up the user's current portfolio holdings"),
		mcp.WithString("user_id",
			mcp.Description("User ID to look up the portfolio for"),
			mcp.Required(),
		),
	)
}

// portfolioToolHandler adapts PortfolioLookup into an MCP tool handler.
func portfolioToolHandler(lookup PortfolioLookup) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		userID, _ := args["user_id"].(string)
		if userID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "Error: missing user_id"}},
				IsError: true,
			}, nil
		}

		view, found, err := lookup.GetPortfolio(ctx, userID)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "Error: " + err.Error()}},
				IsError: true,
			}, nil
		}
		if !found {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "No portfolio found for this user"}},
			}, nil
		}

		body, _ := json.Marshal(view)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(body)}},
		}, nil
	}
}

// portfolioFunctionDeclaration mirrors newPortfolioTool's schema as a genai
// function declaration, since the LLM side of this loop talks to Gemini's
// native function-calling rather than the MCP wire protocol; the MCP tool
// definition above stays the schema of record and this is a direct
// translation of it.
func portfolioFunctionDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        getPortfolioToolName,
		Description: "Look up the user's current portfolio holdings",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"user_id": {Type: genai.TypeString, Description: "User ID to look up the portfolio for"},
			},
			Required: []string{"user_id"},
		},
	}
}
