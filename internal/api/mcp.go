package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vaani-tts/vaani/internal/chat"
	"github.com/vaani-tts/vaani/internal/history"
	"github.com/vaani-tts/vaani/internal/openrouter"
	"github.com/vaani-tts/vaani/internal/pipeline"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Converter *pipeline.Converter
	Session   *chat.Session
	History   *history.Store
}

// NewMCPServer creates an MCP server exposing conversion and chat tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"vaani",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("vaani — mixed-language text-to-speech conversion with optional AI text pre-processing."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("convert_text_to_speech",
			mcp.WithDescription("Convert text to speech audio and write the MP3 to a file."),
			mcp.WithString("text", mcp.Description("The text to convert"), mcp.Required()),
			mcp.WithString("instruction", mcp.Description("Optional AI instruction applied to the text before conversion (e.g. \"Summarize this\")")),
			mcp.WithString("backend", mcp.Description("Conversion backend: async-job (default) or sync-hf")),
			mcp.WithString("output_path", mcp.Description("Where to write the MP3 (default mixed_tts_output.mp3)")),
		),
		mcpConvert(deps),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the multi-turn chat session and return the assistant's reply."),
			mcp.WithString("message", mcp.Description("The message to send"), mcp.Required()),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("speak_last_response",
			mcp.WithDescription("Convert the chat session's last assistant reply to speech and write the MP3 to a file."),
			mcp.WithString("output_path", mcp.Description("Where to write the MP3 (default mixed_tts_output.mp3)")),
		),
		mcpSpeakLast(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"chat://transcript",
			"Chat Transcript",
			mcp.WithResourceDescription("The current chat session's transcript as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTranscript(deps),
	)

	return s
}

func mcpConvert(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		convReq := pipeline.Request{Text: text}
		if instruction := req.GetString("instruction", ""); instruction != "" {
			convReq.UseAI = true
			convReq.Instruction = instruction
		}
		switch backend := req.GetString("backend", ""); backend {
		case "", string(pipeline.BackendAsync):
			convReq.Backend = pipeline.BackendAsync
		case string(pipeline.BackendSync):
			convReq.Backend = pipeline.BackendSync
		default:
			return mcpError(fmt.Sprintf("unknown backend %q", backend)), nil
		}

		outputPath := req.GetString("output_path", DownloadName)

		return runConversion(ctx, deps, convReq, "mcp", outputPath)
	}
}

func mcpSpeakLast(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		last := deps.Session.LastResponse()
		if last == "" {
			return mcpError("no assistant response to speak yet"), nil
		}

		outputPath := req.GetString("output_path", DownloadName)
		convReq := pipeline.Request{Text: last, Backend: pipeline.BackendAsync}

		return runConversion(ctx, deps, convReq, "chat", outputPath)
	}
}

// runConversion runs one conversion to completion, records it in history and
// writes the audio to outputPath.
func runConversion(ctx context.Context, deps MCPDeps, req pipeline.Request, source, outputPath string) (*mcp.CallToolResult, error) {
	id := uuid.New().String()
	if err := deps.History.CreateConversion(id, source, string(req.Backend)); err != nil {
		return mcpError(fmt.Sprintf("recording conversion: %v", err)), nil
	}
	_ = deps.History.MarkRunning(id)

	art, err := deps.Converter.Convert(ctx, req, pipeline.Events{})
	if err != nil {
		_ = deps.History.MarkFailed(id, err.Error())
		if errors.Is(err, pipeline.ErrBusy) {
			return mcpError("a conversion is already in progress"), nil
		}
		return mcpError(fmt.Sprintf("conversion failed (%s): %v", pipeline.Classify(err), err)), nil
	}
	if err := deps.History.MarkFinished(id, art.Data); err != nil {
		return mcpError(fmt.Sprintf("conversion succeeded but recording it failed: %v", err)), nil
	}

	if err := os.WriteFile(outputPath, art.Data, 0o644); err != nil {
		return mcpError(fmt.Sprintf("conversion succeeded but writing %s failed: %v", outputPath, err)), nil
	}

	return mcpText(fmt.Sprintf("Wrote %d bytes of audio to %s", len(art.Data), outputPath)), nil
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		if err := deps.History.AppendChatMessage(openrouter.RoleUser, message); err != nil {
			return mcpError(fmt.Sprintf("recording message: %v", err)), nil
		}

		reply, err := deps.Session.Send(ctx, message)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		if err := deps.History.AppendChatMessage(openrouter.RoleAssistant, reply); err != nil {
			return mcpError(fmt.Sprintf("reply received but recording it failed: %v", err)), nil
		}

		return mcpText(reply), nil
	}
}

func mcpResourceTranscript(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		messages, err := deps.History.ChatTranscript()
		if err != nil {
			return nil, fmt.Errorf("loading transcript: %w", err)
		}

		type transcriptEntry struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			CreatedAt string `json:"created_at"`
		}

		entries := make([]transcriptEntry, len(messages))
		for i, m := range messages {
			entries[i] = transcriptEntry{
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("marshaling transcript: %w", err)
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
