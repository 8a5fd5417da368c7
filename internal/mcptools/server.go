package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/closerlab/thirtysix/internal/answers"
	"github.com/closerlab/thirtysix/internal/catalog"
	"github.com/closerlab/thirtysix/internal/progress"
	"github.com/closerlab/thirtysix/internal/prompts"
)

// Deps holds dependencies for the MCP server.
type Deps struct {
	Catalog *catalog.Catalog
	Store   *answers.Store
	Tracker *progress.Tracker
	Prompts *prompts.Library // optional; get_prompt errors when nil
}

// NewServer creates an MCP server exposing the question catalog, per-user
// progress, and answer persistence as tools, so conversational clients can
// drive a session the same way the web UI does.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"thirtysix",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("thirtysix — guided walk through the 36 questions: fetch questions, track progress, save answers."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_question",
			mcp.WithDescription("Fetch a question from the catalog by its id."),
			mcp.WithNumber("question_id", mcp.Description("Catalog id of the question"), mcp.Required()),
		),
		mcpGetQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("get_user_progress",
			mcp.WithDescription("Report a user's progress through the sequence: answered, skipped, remaining, and the next question id."),
			mcp.WithString("user_id", mcp.Description("User whose progress to report"), mcp.Required()),
		),
		mcpGetUserProgress(deps),
	)

	s.AddTool(
		mcp.NewTool("save_answer",
			mcp.WithDescription("Save or update a user's answer to a question. Status is 'answered' or 'skipped'."),
			mcp.WithString("user_id", mcp.Description("User the answer belongs to"), mcp.Required()),
			mcp.WithNumber("question_id", mcp.Description("Catalog id of the question"), mcp.Required()),
			mcp.WithString("answer", mcp.Description("The answer text; may be empty when skipping")),
			mcp.WithString("status", mcp.Description("Either 'answered' or 'skipped' (default 'answered')")),
		),
		mcpSaveAnswer(deps),
	)

	s.AddTool(
		mcp.NewTool("get_prompt",
			mcp.WithDescription("Fetch a conversational prompt by type (e.g. question_intro, guidance_intro, encouragement)."),
			mcp.WithString("prompt_type", mcp.Description("Prompt type to fetch"), mcp.Required()),
		),
		mcpGetPrompt(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://questions",
			"Question Catalog",
			mcp.WithResourceDescription("The full ordered question catalog as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	return s
}

func mcpGetQuestion(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetInt("question_id", 0)
		if id <= 0 {
			return mcpError("question_id must be a positive integer"), nil
		}

		q, err := deps.Catalog.ByID(id)
		if err != nil {
			return mcpError(fmt.Sprintf("question %d not found", id)), nil
		}

		b, err := json.Marshal(q)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal question: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetUserProgress(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		sum, err := deps.Tracker.Summary(userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute progress: %v", err)), nil
		}

		b, err := json.Marshal(sum)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal progress: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSaveAnswer(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		questionID := req.GetInt("question_id", 0)
		if questionID <= 0 {
			return mcpError("question_id must be a positive integer"), nil
		}
		if !deps.Catalog.Has(questionID) {
			return mcpError(fmt.Sprintf("question %d not found", questionID)), nil
		}

		answer := req.GetString("answer", "")
		status := answers.Status(req.GetString("status", string(answers.StatusAnswered)))
		if !status.Valid() {
			return mcpError(fmt.Sprintf("invalid status %q: must be 'answered' or 'skipped'", status)), nil
		}
		if status == answers.StatusAnswered && answer == "" {
			return mcpError("answer text is required when status is 'answered'"), nil
		}

		rec, err := deps.Store.Upsert(userID, questionID, answer, status)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save answer: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Saved %s answer for question %d (updated %s)", rec.Status, rec.QuestionID, rec.UpdatedAt.Format("2006-01-02 15:04"))), nil
	}
}

func mcpGetPrompt(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Prompts == nil {
			return mcpError("prompts not available: no prompt library configured"), nil
		}

		promptType, err := req.RequireString("prompt_type")
		if err != nil {
			return mcpError("prompt_type is required"), nil
		}

		if promptType == "system" {
			return mcpText(deps.Prompts.System()), nil
		}

		text, err := deps.Prompts.Conversation(promptType)
		if err != nil {
			return mcpError(fmt.Sprintf("unknown prompt type %q", promptType)), nil
		}
		return mcpText(text), nil
	}
}

func mcpResourceCatalog(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{"questions": deps.Catalog.Questions()})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
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
