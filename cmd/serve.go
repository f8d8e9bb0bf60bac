package cmd

import (
	"fmt"
	"time"

	"github.com/mj1618/findclose/internal/snapshot"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing findclose tools",
	Long: `Start a Model Context Protocol (MCP) server that exposes close-button
detection as tools: scan_page, classify_html, run_shake_scan and
clear_shake_scan. AI agents can call tools directly without shell overhead.

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

Examples:
  findclose serve
  findclose serve --backend browser --transport streamable-http --port 8080
  findclose serve --cache-ttl 0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "stdio", "Transport: stdio, streamable-http")
	serveCmd.Flags().Int("port", 8080, "HTTP port for streamable-http transport")
	serveCmd.Flags().Int("cache-ttl", 500, "Document cache TTL in milliseconds (0 to disable)")
	serveCmd.Flags().String("backend", snapshot.BackendName, "Page backend: static, browser")
}

func runServe(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	cacheTTLMs, _ := cmd.Flags().GetInt("cache-ttl")
	backend, _ := cmd.Flags().GetString("backend")

	cfg := MCPConfig{
		Transport: transport,
		Port:      port,
		CacheTTL:  time.Duration(cacheTTLMs) * time.Millisecond,
		Backend:   backend,
	}

	srv, err := newMCPServer(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	return srv.serve(cmd.Context(), cfg)
}
