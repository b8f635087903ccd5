package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cngjsskaisme/folio/internal/composer"
	"github.com/cngjsskaisme/folio/internal/ingest"
	"github.com/cngjsskaisme/folio/internal/storage"
)

// InteractionLister reads recently answered questions.
type InteractionLister interface {
	GetRecentInteractions(ctx context.Context, limit int) ([]storage.Interaction, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Asker        Asker
	Queue        ingest.DocumentQueue
	Interactions InteractionLister
}

// NewMCPServer creates an MCP server with the folio tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("folio answers questions about a portfolio from its indexed documents."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question about the portfolio, grounded in the indexed documents."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Search the indexed documents for a question and return the matching passages without composing an answer."),
			mcp.WithString("question", mcp.Description("The question to search for"), mcp.Required()),
		),
		mcpRecall(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest",
			mcp.WithDescription("Queue a document for indexing."),
			mcp.WithString("content", mcp.Description("The text content to index"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Identifier for the document; resubmitting a path replaces it")),
		),
		mcpIngest(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"folio://interactions/recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 questions with their status"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		ans, err := deps.Asker.Ask(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpText(ans.Text), nil
	}
}

func mcpRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		res, err := deps.Asker.Recall(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}

		b, err := json.Marshal(composer.Strip(res.Rows))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpIngest(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		id, err := ingest.Submit(ctx, deps.Queue, ingest.Submission{
			Path:    req.GetString("path", ""),
			Content: content,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to queue document: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Queued document %s", id)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Interactions.GetRecentInteractions(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Question  string `json:"question"`
			Status    string `json:"status"`
			Attempts  int    `json:"attempts"`
			Fallback  bool   `json:"fallback"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Question:  truncateRunes(ix.Question, 200),
				Status:    ix.Status,
				Attempts:  ix.Attempts,
				Fallback:  ix.UsedFallback,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
