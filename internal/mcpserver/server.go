// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes tagging tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/autotag/internal/apperr"
	"github.com/starford/autotag/internal/tagservice"
)

const blockFormatURI = "autotag://block-format"

// Server wraps the MCP server with tagging tools.
type Server struct {
	mcp *server.MCPServer
	svc *tagservice.Service
}

// New creates a new MCP server with all tagging tools registered.
func New(svc *tagservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Autotag",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("tag_note",
		mcp.WithDescription("Tag one document: prepend matching vocabulary hashtags and a summary block "+
			"generated by the selected language model. Exclusion patterns are ignored. "+
			"See the autotag://block-format resource for the resulting layout."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. folder/note.md)")),
	), s.tagNote)

	s.mcp.AddTool(mcp.NewTool("untag_note",
		mcp.WithDescription("Remove the summary block and leading hashtags from one document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document")),
	), s.untagNote)

	s.mcp.AddTool(mcp.NewTool("tag_all",
		mcp.WithDescription("Tag every eligible document: not excluded, and new or modified since it was last tagged."),
	), s.tagAll)

	s.mcp.AddTool(mcp.NewTool("untag_all",
		mcp.WithDescription("Untag every document, including excluded ones."),
	), s.untagAll)

	s.mcp.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List the models offered by the local language model service and the selected one."),
	), s.listModels)

	s.mcp.AddTool(mcp.NewTool("tagging_status",
		mcp.WithDescription("Show whether documents are tagged, excluded, or due for tagging."),
		mcp.WithString("path", mcp.Description("Optional document path (empty for all documents)")),
	), s.taggingStatus)

	s.mcp.AddResource(
		mcp.NewResource(blockFormatURI, "Tagged Block Format",
			mcp.WithResourceDescription("Layout of the summary block and hashtags written by the tagger."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBlockFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) tagNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.TagDocument(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", out, path)), nil
}

func (s *Server) untagNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	changed, err := s.svc.UntagDocument(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	if !changed {
		return mcp.NewToolResultText(fmt.Sprintf("unchanged: %s", path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("untagged: %s", path)), nil
}

func (s *Server) tagAll(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.TagAll(ctx)
	if err != nil {
		return toolError("", err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) untagAll(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.UntagAll(ctx)
	if err != nil {
		return toolError("", err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) listModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := s.svc.Models(ctx)
	if len(names) == 0 {
		return mcp.NewToolResultText("no models available"), nil
	}
	selected := s.svc.State().Model()
	lines := make([]string, len(names))
	for i, n := range names {
		if n == selected {
			n += " (selected)"
		}
		lines[i] = n
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) taggingStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if path, err := req.RequireString("path"); err == nil && path != "" {
		st, err := s.svc.Status(path)
		if err != nil {
			return toolError(path, err), nil
		}
		return jsonResult(st), nil
	}
	docs, err := s.svc.ListDocuments()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(docs), nil
}

func (s *Server) readBlockFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      blockFormatURI,
			MIMEType: "text/markdown",
			Text:     BlockFormatContract,
		},
	}, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func toolError(path string, err error) *mcp.CallToolResult {
	var msg string
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		msg = fmt.Sprintf("not found: %s", path)
	case errors.Is(err, apperr.ErrNoModelSelected):
		msg = "no model selected: choose one in the settings first"
	case errors.Is(err, apperr.ErrEmptyContent):
		msg = fmt.Sprintf("document is empty: %s", path)
	case errors.Is(err, apperr.ErrConcurrentEdit):
		msg = fmt.Sprintf("document changed while tagging, result discarded: %s", path)
	case errors.Is(err, apperr.ErrNetwork):
		msg = "language model service unavailable"
	default:
		msg = err.Error()
	}
	return mcp.NewToolResultError(msg)
}
