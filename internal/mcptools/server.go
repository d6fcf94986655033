package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the session and type graph tools
// registered.
func NewMCPServer(svc *SessionService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "dreamffi",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_environment",
		Description: "Parse a DreamMaker environment. The last file is the .dme; earlier files are pushed before it. Returns a session id for the query tools.",
	}, svc.ParseEnvironment)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "close_session",
		Description: "Close a session and release everything it holds.",
	}, svc.CloseSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_file_list",
		Description: "Return the JSON array of every file the parse read; a file id is its index.",
	}, svc.GetFileList)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_diagnostics",
		Description: "Return the JSON array of warnings, notices and hints reported by the parse.",
	}, svc.GetDiagnostics)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_type_list",
		Description: "Return the JSON array of every declared type path, in declaration order.",
	}, svc.GetTypeList)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_type_info",
		Description: "Return the JSON document for one type: location, parent, vars, procs and children.",
	}, svc.GetTypeInfo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_special_files",
		Description: "Return the map, script and skin files referenced by the environment.",
	}, svc.GetSpecialFiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_hierarchy",
		Description: "Walk the type hierarchy up (ancestors) or down (descendants) from a type. Returns one chain per reachable type.",
	}, svc.GetHierarchy)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "assess_impact",
		Description: "List the types defined in a set of files and every type deriving from them, with a risk score.",
	}, svc.AssessImpact)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts an HTTP server exposing the MCP tools over streamable HTTP.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
