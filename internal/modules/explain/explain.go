// Package explain implements ExplainabilityAgent: it assembles a
// deterministic report skeleton from the specialist outputs AgentRouter's
// graph already produced, then asks an LLM (with get_portfolio tool-calling
// enabled, bounded at maxToolIterations) to synthesize portfolio context and
// a narrative summary on top of it. On any LLM failure the deterministic
// skeleton is returned on its own, never an empty report.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/aristath/marketintel/internal/llm"
)

// maxToolIterations bounds the tool-call round-trip loop.
const maxToolIterations = 5

// SuggestedAction is the LLM's recommended action for the user's existing
// position in the analyzed ticker(s).
type SuggestedAction string

const (
	ActionBuy      SuggestedAction = "BUY"
	ActionSell     SuggestedAction = "SELL"
	ActionHold     SuggestedAction = "HOLD"
	ActionRebalance SuggestedAction = "REBALANCE"
	ActionManualReview SuggestedAction = "MANUAL REVIEW"
)

// PortfolioContext is the LLM synthesis's first required output key.
type PortfolioContext struct {
	IsHolding       bool            `json:"is_holding"`
	CurrentPosition string          `json:"current_position"`
	SuggestedAction SuggestedAction `json:"suggested_action"`
}

// Input is everything ExplainabilityAgent needs: the resolved tickers, the
// names of specialists that actually ran, and their joined payload (opaque
// here: only used for the LLM prompt context, never type-asserted).
type Input struct {
	Query         string
	Tickers       []string
	Contributions []string
	Payload       any
}

// Report is ExplainabilityAgent's final output, merging the deterministic
// skeleton with the LLM's synthesis.
type Report struct {
	Type             string           `json:"type"`
	Query            string           `json:"query"`
	Timestamp        time.Time        `json:"timestamp"`
	Tickers          []string         `json:"tickers"`
	AgentsInvoked    []string         `json:"agents_invoked"`
	PortfolioContext PortfolioContext `json:"portfolio_context"`
	Summary          string           `json:"summary"`
}

// Agent is ExplainabilityAgent.
type Agent struct {
	llm       *llm.Client
	portfolio PortfolioLookup
	mcpServer *server.MCPServer
	toolFunc  server.ToolHandlerFunc
	log       zerolog.Logger
}

// New builds an Agent. llmClient may be nil, in which case Explain always
// returns the deterministic fallback report (a no-LLM mode).
func New(llmClient *llm.Client, portfolio PortfolioLookup, log zerolog.Logger) *Agent {
	mcpServer := server.NewMCPServer("explainability-agent", "0.1.0",
		server.WithToolCapabilities(true),
	)
	handler := portfolioToolHandler(portfolio)
	mcpServer.AddTool(newPortfolioTool(), handler)

	return &Agent{
		llm:       llmClient,
		portfolio: portfolio,
		mcpServer: mcpServer,
		toolFunc:  handler,
		log:       log.With().Str("component", "explainability_agent").Logger(),
	}
}

// MCPServer exposes the underlying get_portfolio tool server so cmd/server
// can mount it over a transport for external MCP clients, independent of
// this agent's own in-process tool-calling loop.
func (a *Agent) MCPServer() *server.MCPServer { return a.mcpServer }

func (a *Agent) skeleton(in Input) Report {
	return Report{
		Type:          "stock_analysis_report",
		Query:         in.Query,
		Timestamp:     time.Now().UTC(),
		Tickers:       in.Tickers,
		AgentsInvoked: in.Contributions,
	}
}

func (a *Agent) fallback(in Input, reason string) Report {
	report := a.skeleton(in)
	tickerStr := "Market"
	if len(in.Tickers) > 0 {
		tickerStr = strings.Join(in.Tickers, ", ")
	}
	invokedStr := "None"
	if len(in.Contributions) > 0 {
		invokedStr = strings.Join(in.Contributions, ", ")
	}
	report.PortfolioContext = PortfolioContext{IsHolding: false, SuggestedAction: ActionManualReview}
	report.Summary = fmt.Sprintf("Automated report for %s. Agents executed: %s. %s", tickerStr, invokedStr, reason)
	return report
}

// Explain runs the deterministic-skeleton-then-LLM-synthesis flow.
func (a *Agent) Explain(ctx context.Context, in Input) (Report, error) {
	report := a.skeleton(in)

	if a.llm == nil {
		return a.fallback(in, "Portfolio check disabled (no LLM configured)."), nil
	}

	payloadJSON, err := json.MarshalIndent(in.Payload, "", "  ")
	if err != nil {
		return Report{}, fmt.Errorf("explain: marshal specialist payload: %w", err)
	}

	systemPrompt := `You are a senior investment strategist. Call the get_portfolio tool to check ` +
		`whether the user holds the analyzed ticker(s), then return a raw JSON object (no markdown) ` +
		`with exactly these keys: {"portfolio_context": {"is_holding": boolean, "current_position": ` +
		`string, "suggested_action": "BUY|SELL|HOLD|REBALANCE"}, "summary": string}. The summary must ` +
		`interpret the data, not just restate it.`

	userPrompt := fmt.Sprintf("QUERY: %s\nTICKERS: %v\n\nAVAILABLE DATA:\n%s\n\nProvide the required JSON output.",
		in.Query, in.Tickers, string(payloadJSON))

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(systemPrompt + "\n\n" + userPrompt)}},
	}
	tools := []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{portfolioFunctionDeclaration()}}}

	var lastText string
	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := a.llm.GenerateWithHistory(ctx, contents, tools)
		if err != nil {
			a.log.Warn().Err(err).Msg("LLM synthesis call failed, falling back")
			return a.fallback(in, fmt.Sprintf("Critical error during synthesis: %v", err)), nil
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			break
		}
		content := resp.Candidates[0].Content
		contents = append(contents, content)

		calls := functionCalls(content)
		if len(calls) == 0 {
			lastText = textOf(content)
			break
		}

		var responseParts []*genai.Part
		for _, call := range calls {
			result := a.invokeTool(ctx, call)
			responseParts = append(responseParts, genai.NewPartFromFunctionResponse(call.Name, result))
		}
		contents = append(contents, &genai.Content{Role: "user", Parts: responseParts})
	}

	if lastText == "" {
		return a.fallback(in, "Tool-calling loop exhausted without a final answer."), nil
	}

	var synthesis struct {
		PortfolioContext PortfolioContext `json:"portfolio_context"`
		Summary          string           `json:"summary"`
	}
	if err := llm.ParseJSONLeniently(lastText, &synthesis); err != nil {
		a.log.Warn().Err(err).Msg("failed to parse LLM synthesis as JSON")
		report.PortfolioContext = PortfolioContext{IsHolding: false, SuggestedAction: ActionManualReview}
		report.Summary = lastText
		return report, nil
	}

	report.PortfolioContext = synthesis.PortfolioContext
	report.Summary = synthesis.Summary
	return report, nil
}

func (a *Agent) invokeTool(ctx context.Context, call *genai.FunctionCall) map[string]any {
	req := mcpRequest(call.Name, call.Args)
	result, err := a.toolFunc(ctx, req)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"content": textContentOf(result)}
}

func functionCalls(content *genai.Content) []*genai.FunctionCall {
	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

func textOf(content *genai.Content) string {
	var sb strings.Builder
	for _, part := range content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func mcpRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func textContentOf(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
