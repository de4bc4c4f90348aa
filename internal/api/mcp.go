package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/hintd/internal/notes"
	"github.com/kalambet/hintd/internal/storage"
)

// RecentSuggestions lists the newest served suggestions.
type RecentSuggestions interface {
	GetRecentSuggestions(limit int) ([]storage.Suggestion, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Suggester Suggester
	Store     RecentSuggestions // optional; if nil, hints://recent is empty
	Version   string
}

// NewMCPServer creates an MCP server with the hintd tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"hintd",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("hintd predicts the user's next reminder from their note history and phrases it as a hint."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("suggest_reminder",
			mcp.WithDescription("Predict the next reminder from a note history and return the synthesized note with a hint asking the user to confirm."),
			mcp.WithString("context", mcp.Description("JSON array of notes: {text, createdAt, updatedAt, categoryType, triggers:[{triggerType, triggerValue}]}"), mcp.Required()),
			mcp.WithString("current_time", mcp.Description("Current moment as YYYY-MM-DD HH:MM"), mcp.Required()),
		),
		mcpSuggestReminder(deps),
	)

	s.AddTool(
		mcp.NewTool("record_feedback",
			mcp.WithDescription("Record whether the user accepted a served hint."),
			mcp.WithString("id", mcp.Description("Suggestion id returned by suggest_reminder"), mcp.Required()),
			mcp.WithBoolean("accepted", mcp.Description("True if the user agreed to the reminder"), mcp.Required()),
		),
		mcpRecordFeedback(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"hints://recent",
			"Recent Hints",
			mcp.WithResourceDescription("Last 10 served hints"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSuggestReminder(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contextJSON, err := req.RequireString("context")
		if err != nil {
			return mcpError("context is required"), nil
		}
		currentTime, err := req.RequireString("current_time")
		if err != nil {
			return mcpError("current_time is required"), nil
		}

		var history []notes.NoteDTO
		if err := json.Unmarshal([]byte(contextJSON), &history); err != nil {
			return mcpError(fmt.Sprintf("invalid context JSON: %v", err)), nil
		}

		resp, err := deps.Suggester.Suggest(ctx, notes.HintRequest{Context: history, CurrentTime: currentTime})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal hint: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecordFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		accepted, err := req.RequireBool("accepted")
		if err != nil {
			return mcpError("accepted is required"), nil
		}

		if err := deps.Suggester.Feedback(ctx, id, accepted); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("suggestion %s not found", id)), nil
			}
			return mcpError(fmt.Sprintf("failed to record feedback: %v", err)), nil
		}

		verdict := "rejected"
		if accepted {
			verdict = "accepted"
		}
		return mcpText(fmt.Sprintf("Suggestion %s marked %s", id, verdict)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type hintSummary struct {
			ID          string `json:"id"`
			CreatedAt   string `json:"created_at"`
			Category    string `json:"category,omitempty"`
			PredictedAt string `json:"predicted_at,omitempty"`
			HintText    string `json:"hint_text"`
			Status      string `json:"status"`
		}

		summaries := []hintSummary{}
		if deps.Store != nil {
			recent, err := deps.Store.GetRecentSuggestions(10)
			if err != nil {
				return nil, fmt.Errorf("failed to get recent suggestions: %w", err)
			}
			for _, sg := range recent {
				summaries = append(summaries, hintSummary{
					ID:          sg.ID,
					CreatedAt:   sg.CreatedAt.Format(time.RFC3339),
					Category:    sg.Category,
					PredictedAt: sg.PredictedAt,
					HintText:    sg.HintText,
					Status:      sg.Status,
				})
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal suggestions: %w", err)
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
