package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// NewMCPServer exposes precedent search, detail, and chat as MCP tools, and
// job statistics and favorites as resources.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"nyay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("nyay: Indian case-law research. Search precedents, read details, and ask legal questions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_precedents",
			mcp.WithDescription("Search case law. Results are ordered by similarity, highest first."),
			mcp.WithString("query", mcp.Description("Free-text legal question or keywords"), mcp.Required()),
			mcp.WithString("court", mcp.Description("Restrict to one court")),
			mcp.WithNumber("year_from", mcp.Description("Earliest judgment year")),
			mcp.WithNumber("year_to", mcp.Description("Latest judgment year")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchPrecedents(deps),
	)

	s.AddTool(
		mcp.NewTool("get_precedent",
			mcp.WithDescription("Fetch the full record of one precedent."),
			mcp.WithString("id", mcp.Description("Precedent id"), mcp.Required()),
		),
		mcpGetPrecedent(deps),
	)

	s.AddTool(
		mcp.NewTool("legal_chat",
			mcp.WithDescription("Ask the legal assistant a question. Pass session_id to continue a conversation, or precedent_id to start one about a specific case."),
			mcp.WithString("message", mcp.Description("The question"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Existing session to continue")),
			mcp.WithString("precedent_id", mcp.Description("Scope a new session to this precedent")),
		),
		mcpLegalChat(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"jobs://stats",
			"Document Job Statistics",
			mcp.WithResourceDescription("Counts and byte totals over the current upload jobs"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceJSON(func(context.Context) (any, error) { return deps.Pipeline.Stats(), nil }),
	)

	s.AddResource(
		mcp.NewResource(
			"precedents://favorites",
			"Favorite Precedents",
			mcp.WithResourceDescription("Precedents marked as favorite, ordered by title"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceJSON(func(context.Context) (any, error) { return deps.Precedents.Favorites(), nil }),
	)

	return s
}

func mcpSearchPrecedents(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		filters := domain.SearchFilters{
			Court:    req.GetString("court", ""),
			YearFrom: req.GetInt("year_from", 0),
			YearTo:   req.GetInt("year_to", 0),
		}

		results, err := deps.Precedents.Search(ctx, query, filters, req.GetInt("limit", 0))
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(results)
	}
}

func mcpGetPrecedent(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		p, err := deps.Precedents.Get(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

type chatResult struct {
	SessionID string            `json:"session_id"`
	Reply     string            `json:"reply"`
	Sources   []domain.Citation `json:"sources,omitempty"`
}

func mcpLegalChat(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		sessionID := req.GetString("session_id", "")
		if sessionID == "" {
			if pid := req.GetString("precedent_id", ""); pid != "" {
				scoped, err := deps.Navigator.Open(ctx, pid, nil)
				if err != nil {
					return mcpError(fmt.Sprintf("opening session: %v", err)), nil
				}
				sessionID = scoped.Session.ID
			} else {
				s, err := deps.Chat.Open(chat.OpenOptions{})
				if err != nil {
					return mcpError(fmt.Sprintf("opening session: %v", err)), nil
				}
				sessionID = s.ID
			}
		}

		ex, err := deps.Chat.Send(sessionID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}
		reply, err := ex.Wait(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("no reply: %v", err)), nil
		}
		return mcpJSON(chatResult{SessionID: sessionID, Reply: reply.Content, Sources: reply.Sources})
	}
}

func mcpResourceJSON(load func(context.Context) (any, error)) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", req.Params.URI, err)
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

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
