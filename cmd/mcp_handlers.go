package cmd

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/output"
	"github.com/mj1618/findclose/internal/platform"
	"github.com/mj1618/findclose/internal/protocol"
	"gopkg.in/yaml.v3"
)

// SourceMCP is the scan source reported by run_shake_scan.
const SourceMCP = "mcp"

// resultToText serializes a tool result to YAML for the MCP response.
func resultToText(v interface{}) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return string(b)
}

func (s *mcpServer) handleScanPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	opts, err := readOptionsFromParams(params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	all := boolParam(params, "all", false)

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	doc, err := s.cache.readDocument(ctx, s.provider.Reader, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report := output.NewScanReport(doc, newFinder(doc).Evaluate(doc), all, nowMillis())
	return mcp.NewToolResultText(resultToText(report)), nil
}

func (s *mcpServer) handleClassifyHTML(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	html := stringParam(params, "html", "")
	if html == "" {
		return mcp.NewToolResultError("html is required"), nil
	}
	opts := platform.ReadOptions{HTML: html, URL: stringParam(params, "url", "")}
	if vp := stringParam(params, "viewport", ""); vp != "" {
		size, err := platform.ParseViewport(vp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Viewport = size
	}

	doc, err := s.static.ReadDocument(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report := output.NewScanReport(doc, newFinder(doc).Evaluate(doc), true, nowMillis())
	return mcp.NewToolResultText(resultToText(report)), nil
}

func (s *mcpServer) handleRunShakeScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := readOptionsFromParams(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	doc, err := s.cache.readDocument(ctx, s.provider.Reader, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	key := cacheKeyOf(opts)
	var res highlight.ScanResult
	err = s.lp.Do(ctx, func() {
		ctrl := s.scans[key]
		if ctrl != nil && ctrl.Document() != doc {
			// The page was re-read; its old highlight state is gone.
			ctrl.Close()
			ctrl = nil
		}
		if ctrl == nil {
			ctrl = highlight.New(doc, highlight.Options{
				Finder:       newFinder(doc),
				Scheduler:    s.lp,
				FrameDelay:   appCfg.Highlight.FrameDelay,
				CleanupDelay: appCfg.Highlight.CleanupDelay,
				Logger:       logger,
			})
			s.scans[key] = ctrl
		}
		res = ctrl.RunScan(SourceMCP)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resultToText(protocol.ScanReply(doc.URL, true, res))), nil
}

func (s *mcpServer) handleClearShakeScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := readOptionsFromParams(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	key := cacheKeyOf(opts)
	ctrl := s.scans[key]
	if ctrl == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no shake scan is active for %s", opts.Source())), nil
	}
	var res highlight.ClearResult
	if err := s.lp.Do(ctx, func() { res = ctrl.ClearScan() }); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// The next scan reads the page afresh.
	s.cache.invalidate(opts)
	return mcp.NewToolResultText(resultToText(protocol.ClearReply(ctrl.Document().URL, true, res))), nil
}
