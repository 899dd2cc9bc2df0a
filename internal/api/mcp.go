package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"studymate/internal/answer"
	"studymate/internal/session"
)

// MCPDeps holds dependencies for the MCP server. MCP clients have no
// cookies, so every tool takes the session token as an explicit argument.
type MCPDeps struct {
	Answer   Answerer
	Registry session.Registry
}

// NewMCPServer creates an MCP server exposing the session's study
// materials as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"studymate",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("studymate — question answering and study-aid generation over uploaded course materials."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("query_materials",
			mcp.WithDescription("Answer a question using only the session's uploaded study materials."),
			mcp.WithString("session_token", mcp.Description("Session id that owns the materials"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpQueryMaterials(deps),
	)

	s.AddTool(
		mcp.NewTool("list_materials",
			mcp.WithDescription("List the materials uploaded to a session."),
			mcp.WithString("session_token", mcp.Description("Session id that owns the materials"), mcp.Required()),
		),
		mcpListMaterials(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_mcqs",
			mcp.WithDescription("Generate multiple-choice questions from the session's materials."),
			mcp.WithString("session_token", mcp.Description("Session id that owns the materials"), mcp.Required()),
			mcp.WithString("topic", mcp.Description("Optional topic to focus on")),
			mcp.WithString("difficulty", mcp.Description("Optional difficulty, e.g. easy or hard")),
			mcp.WithNumber("count", mcp.Description("Number of questions (default 5, max 20)")),
		),
		mcpGenerateMCQs(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_flashcards",
			mcp.WithDescription("Generate flashcards from the session's materials."),
			mcp.WithString("session_token", mcp.Description("Session id that owns the materials"), mcp.Required()),
			mcp.WithString("topic", mcp.Description("Optional topic to focus on")),
			mcp.WithNumber("count", mcp.Description("Number of cards (default 5, max 20)")),
		),
		mcpGenerateFlashcards(deps),
	)

	return s
}

func mcpQueryMaterials(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		token, err := req.RequireString("session_token")
		if err != nil {
			return mcpError("session_token is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		ans, err := deps.Answer.Ask(ctx, token, question)
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		b, err := json.Marshal(ans)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListMaterials(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		token, err := req.RequireString("session_token")
		if err != nil {
			return mcpError("session_token is required"), nil
		}

		materials := deps.Registry.List(token)
		if materials == nil {
			materials = []session.Material{}
		}
		b, err := json.Marshal(materials)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal materials: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateMCQs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		token, err := req.RequireString("session_token")
		if err != nil {
			return mcpError("session_token is required"), nil
		}
		topic := req.GetString("topic", "")
		difficulty := req.GetString("difficulty", "")
		count := req.GetInt("count", 0)

		mcqs, err := deps.Answer.GenerateMCQs(ctx, token, topic, difficulty, count)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string][]answer.MCQ{"questions": mcqs})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal questions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateFlashcards(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		token, err := req.RequireString("session_token")
		if err != nil {
			return mcpError("session_token is required"), nil
		}
		topic := req.GetString("topic", "")
		count := req.GetInt("count", 0)

		cards, err := deps.Answer.GenerateFlashcards(ctx, token, topic, count)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string][]answer.Flashcard{"flashcards": cards})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal flashcards: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
