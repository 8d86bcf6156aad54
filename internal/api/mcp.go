package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aicmo/aicmo/internal/action"
	"github.com/aicmo/aicmo/internal/chat"
	"github.com/aicmo/aicmo/internal/profile"
)

// MCPDeps holds dependencies for the MCP server. UserID selects which
// registered user the MCP tools act as; when empty every tool call fails
// with a configuration error.
type MCPDeps struct {
	Session    *chat.Session
	Dispatcher ActionDispatcher
	Profiles   *profile.Manager
	UserID     string
}

// ActionDispatcher abstracts action execution for the MCP layer.
// Implemented by action.Dispatcher.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, userID, actionType string, params map[string]any) (action.Result, error)
}

// NewMCPServer creates an MCP server exposing the assistant over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"aicmo",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("aicmo — conversational marketing assistant with profile-aware personas and dispatchable actions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the marketing assistant and get a reply. Pass conversation_id back to continue a conversation."),
			mcp.WithString("message", mcp.Description("The message to send"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Conversation to continue; omit to start a new one")),
			mcp.WithString("context_type", mcp.Description("Profile context: personal or company (default company)")),
			mcp.WithString("agent", mcp.Description("Persona: cmo, content, growth, or developer (default cmo)")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("scrape_url",
			mcp.WithDescription("Fetch a web page and return its title, description, headings, and main text content."),
			mcp.WithString("url", mcp.Description("Absolute http or https URL"), mcp.Required()),
		),
		mcpScrapeURL(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile Contexts",
			mcp.WithResourceDescription("Personal and company profile contexts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.UserID == "" {
			return mcpError("no MCP user configured; set mcp.user_id"), nil
		}

		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		res, err := deps.Session.HandleTurn(ctx, deps.UserID, chat.TurnRequest{
			Message:        message,
			ConversationID: req.GetString("conversation_id", ""),
			ContextType:    profile.ContextType(req.GetString("context_type", "")),
			Agent:          req.GetString("agent", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		b, err := json.Marshal(chatResponse{
			Reply:          res.Reply,
			Action:         res.Action,
			ConversationID: res.ConversationID,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpScrapeURL(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.UserID == "" {
			return mcpError("no MCP user configured; set mcp.user_id"), nil
		}

		rawURL, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		res, err := deps.Dispatcher.Dispatch(ctx, deps.UserID, "scrape_url", map[string]any{"url": rawURL})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to record action: %v", err)), nil
		}
		if !res.Success {
			return mcpError(res.Error), nil
		}

		return mcpText(res.Result), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.UserID == "" {
			return nil, fmt.Errorf("no MCP user configured")
		}

		cs, err := deps.Profiles.Contexts(deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(cs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
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
