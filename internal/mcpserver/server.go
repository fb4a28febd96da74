// Package mcpserver exposes appdata folder operations as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/appdata/api"
	"github.com/agentic-research/appdata/internal/appdata"
)

// Tool names.
const (
	ToolGetFolder   = "get_folder"
	ToolNewFolder   = "new_folder"
	ToolListFolders = "list_folders"
	ToolFolderID    = "folder_id"
)

// Server serves appdata tools for every app id handed to it.
type Server struct {
	factory *appdata.Factory
	mcp     *server.MCPServer
	logger  *slog.Logger
}

// New builds an MCP server backed by factory.
func New(factory *appdata.Factory, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		factory: factory,
		mcp:     server.NewMCPServer("appdata", version, server.WithToolCapabilities(false)),
		logger:  logger,
	}

	appArg := mcp.WithString("app", mcp.Required(), mcp.Description("Application id owning the folder"))
	nameArg := mcp.WithString("name", mcp.Required(), mcp.Description(`Folder name inside the app folder; "/" is the app folder itself`))

	s.mcp.AddTool(mcp.NewTool(ToolGetFolder,
		mcp.WithDescription("Look up a folder in the app's namespace. The app root folder is created on first use."),
		appArg, nameArg,
	), s.handleGetFolder)
	s.mcp.AddTool(mcp.NewTool(ToolNewFolder,
		mcp.WithDescription("Create a folder in the app's namespace."),
		appArg, nameArg,
	), s.handleNewFolder)
	s.mcp.AddTool(mcp.NewTool(ToolListFolders,
		mcp.WithDescription("List the folders directly inside the app root folder."),
		appArg,
	), s.handleListFolders)
	s.mcp.AddTool(mcp.NewTool(ToolFolderID,
		mcp.WithDescription("Return the node id of the app root folder."),
		appArg,
	), s.handleFolderID)

	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeStdio serves requests on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) app(req mcp.CallToolRequest) (*appdata.AppData, error) {
	appID, err := req.RequireString("app")
	if err != nil {
		return nil, err
	}
	return s.factory.Get(appID)
}

func (s *Server) handleGetFolder(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.app(req)
	if err != nil {
		return s.toolError(err), nil
	}
	name := req.GetString("name", "/")
	if name == "" {
		name = "/"
	}
	f, err := a.GetFolder(name)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(f.Info())
}

func (s *Server) handleNewFolder(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.app(req)
	if err != nil {
		return s.toolError(err), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return s.toolError(err), nil
	}
	f, err := a.NewFolder(name)
	if err != nil {
		return s.toolError(err), nil
	}
	s.logger.Info("folder created", slog.String("app", a.AppID()), slog.String("path", f.Path()))
	return jsonResult(f.Info())
}

func (s *Server) handleListFolders(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.app(req)
	if err != nil {
		return s.toolError(err), nil
	}
	folders, err := a.ListFolders()
	if err != nil {
		return s.toolError(err), nil
	}
	infos := make([]api.FolderInfo, 0, len(folders))
	for _, f := range folders {
		infos = append(infos, f.Info())
	}
	return jsonResult(infos)
}

func (s *Server) handleFolderID(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.app(req)
	if err != nil {
		return s.toolError(err), nil
	}
	id, err := a.ID()
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(strconv.FormatUint(id, 10)), nil
}

// toolError reports err to the client as a tool failure. A missing
// instance id is a deployment fault, so it is logged as well.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, appdata.ErrNoInstanceID) {
		s.logger.Error("appdata is not configured", slog.Any("error", err))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
