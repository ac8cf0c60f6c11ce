// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the notes tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sudo-Harshk/NoteDiscovery/internal/apperr"
	"github.com/sudo-Harshk/NoteDiscovery/internal/noteservice"
)

const linkSyntaxURI = "notes://link-syntax"

// Server wraps the MCP server with the notes tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"NoteDiscovery",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive text search through note contents. Returns matching lines with context."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Create or overwrite a Markdown note. "+
			"Reference other notes with [[wikilinks]] or [text](path.md); see the "+
			linkSyntaxURI+" resource for how references resolve."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the note; .md is appended when missing")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, newest first, or only those inside a folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("list_folders",
		mcp.WithDescription("List every folder under the notes root."),
	), s.listFolders)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move or rename a note. Fails if the destination exists."),
		mcp.WithString("old_path", mcp.Required(), mcp.Description("Current path of the note")),
		mcp.WithString("new_path", mcp.Required(), mcp.Description("New path of the note")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Return the reference graph as JSON: nodes are notes, edges are resolved links."),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Store an image next to a note. Returns the saved path and a Markdown image reference."),
		mcp.WithString("note_path", mcp.Required(), mcp.Description("Note the image belongs to")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Image as a base64 data URI (data:image/png;base64,...)")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the MIME type when empty")),
	), s.uploadImage)

	s.mcp.AddResource(
		mcp.NewResource(linkSyntaxURI, "Note reference syntax",
			mcp.WithResourceDescription("How notes reference each other and how references resolve."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkSyntax,
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

// toolError turns a service error into a tool error result; the protocol call
// itself still succeeds. Only expected outcomes reach the client verbatim, IO
// failures are logged and reported as "internal error".
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	if !apperr.IsExpected(err) {
		s.logger.Error("mcp tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
		return mcp.NewToolResultError("internal error"), nil
	}
	s.logger.Debug("mcp tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query)
	if err != nil {
		return s.toolError("search_notes", err)
	}
	return jsonResult(results)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return s.toolError("read_note", fmt.Errorf("read %s: %w", path, err))
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.SaveNote(ctx, path, content)
	if err != nil {
		return s.toolError("save_note", err)
	}
	verb := "saved"
	if res.Created {
		verb = "created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", verb, res.Path)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")

	l, err := s.svc.ListItems(ctx)
	if err != nil {
		return s.toolError("list_notes", err)
	}
	var paths []string
	for _, n := range l.Notes {
		if folder != "" && n.Folder != folder && !strings.HasPrefix(n.Folder, folder+"/") {
			continue
		}
		paths = append(paths, n.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) listFolders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folders, err := s.svc.ListFolders(ctx)
	if err != nil {
		return s.toolError("list_folders", err)
	}
	if len(folders) == 0 {
		return mcp.NewToolResultText("no folders found"), nil
	}
	return mcp.NewToolResultText(strings.Join(folders, "\n")), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("old_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("new_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	moved, err := s.svc.MoveNote(ctx, from, to)
	if err != nil {
		return s.toolError("move_note", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s -> %s", from, moved)), nil
}

func (s *Server) getGraph(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.svc.Graph(ctx)
	if err != nil {
		return s.toolError("get_graph", err)
	}
	return jsonResult(g)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return s.toolError("get_backlinks", err)
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) readLinkSyntax(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      linkSyntaxURI,
			MIMEType: "text/markdown",
			Text:     LinkSyntax,
		},
	}, nil
}
