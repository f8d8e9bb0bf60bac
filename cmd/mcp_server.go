package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/platform"
	"github.com/mj1618/findclose/internal/snapshot"
	"github.com/mj1618/findclose/internal/version"
)

// mcpServer wraps the MCP server with the page provider, document cache and
// the highlight state of pages scanned through run_shake_scan.
type mcpServer struct {
	provider   *platform.Provider
	static     platform.Reader
	cache      *mcpDocCache
	providerMu sync.Mutex
	mcp        *mcpserver.MCPServer

	// Controllers run on lp; scans is guarded by providerMu.
	lp    *loop.Loop
	scans map[mcpCacheKey]*highlight.Controller
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Transport string
	Port      int
	CacheTTL  time.Duration
	Backend   string
}

// newMCPServer creates and configures an MCP server with all findclose tools.
func newMCPServer(ctx context.Context, cfg MCPConfig) (*mcpServer, error) {
	provider, err := openProvider(ctx, cfg.Backend, model.Size{})
	if err != nil {
		return nil, err
	}

	s := &mcpServer{
		provider: provider,
		static:   snapshot.NewReader(providerOptions(appCfg, model.Size{}).Viewport, logger),
		cache:    newMCPDocCache(cfg.CacheTTL),
		lp:       loop.New(0, logger),
		scans:    map[mcpCacheKey]*highlight.Controller{},
	}

	s.mcp = mcpserver.NewMCPServer(
		"findclose",
		version.Version,
	)

	s.registerTools()
	return s, nil
}

// serve runs the loop and the MCP server with the configured transport
// until the transport stops.
func (s *mcpServer) serve(ctx context.Context, cfg MCPConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := s.lp.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("mcp loop stopped", "error", err)
		}
	}()
	defer s.close()

	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		logger.Info("mcp server listening", "port", cfg.Port, "backend", s.provider.Name)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

// close drops highlight state and shuts the backend down.
func (s *mcpServer) close() {
	s.providerMu.Lock()
	defer s.providerMu.Unlock()
	for key, ctrl := range s.scans {
		ctrl.Close()
		delete(s.scans, key)
	}
	s.cache.invalidateAll()
	s.lp.Stop()
	if err := s.provider.Shutdown(); err != nil {
		logger.Warn("backend shutdown failed", "backend", s.provider.Name, "error", err)
	}
}

func (s *mcpServer) registerTools() {
	// scan_page
	s.mcp.AddTool(
		mcp.NewTool("scan_page",
			mcp.WithDescription("Detect the close buttons of ads, modals and popups on a page. Returns the ranked, non-overlapping targets with their signals, verdict and page-relative bounds."),
			mcp.WithString("url", mcp.Description("Page URL")),
			mcp.WithString("file", mcp.Description("Local HTML file")),
			mcp.WithString("html", mcp.Description("Inline HTML markup")),
			mcp.WithString("viewport", mcp.Description("Viewport as WIDTHxHEIGHT")),
			mcp.WithNumber("settle-ms", mcp.Description("Extra wait after load for late overlays (browser backend)")),
			mcp.WithBoolean("all", mcp.Description("Include rejected candidates")),
		),
		s.handleScanPage,
	)

	// classify_html
	s.mcp.AddTool(
		mcp.NewTool("classify_html",
			mcp.WithDescription("Classify the close-button candidates of an HTML snippet with the static backend. Every candidate is returned, accepted or not, with the signals behind its verdict."),
			mcp.WithString("html", mcp.Required(), mcp.Description("HTML markup")),
			mcp.WithString("url", mcp.Description("Base URL of the markup, decides the ad-host signal")),
			mcp.WithString("viewport", mcp.Description("Viewport as WIDTHxHEIGHT")),
		),
		s.handleClassifyHTML,
	)

	// run_shake_scan
	s.mcp.AddTool(
		mcp.NewTool("run_shake_scan",
			mcp.WithDescription("Highlight the close buttons of a page as a shake would. The highlight state is kept per page until clear_shake_scan."),
			mcp.WithString("url", mcp.Description("Page URL")),
			mcp.WithString("file", mcp.Description("Local HTML file")),
			mcp.WithString("html", mcp.Description("Inline HTML markup")),
			mcp.WithString("viewport", mcp.Description("Viewport as WIDTHxHEIGHT")),
			mcp.WithNumber("settle-ms", mcp.Description("Extra wait after load for late overlays (browser backend)")),
		),
		s.handleRunShakeScan,
	)

	// clear_shake_scan
	s.mcp.AddTool(
		mcp.NewTool("clear_shake_scan",
			mcp.WithDescription("Hide the close buttons revealed by run_shake_scan on a page"),
			mcp.WithString("url", mcp.Description("Page URL")),
			mcp.WithString("file", mcp.Description("Local HTML file")),
			mcp.WithString("html", mcp.Description("Inline HTML markup")),
			mcp.WithString("viewport", mcp.Description("Viewport as WIDTHxHEIGHT")),
		),
		s.handleClearShakeScan,
	)
}
