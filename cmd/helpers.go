package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mj1618/findclose/internal/browser"
	"github.com/mj1618/findclose/internal/config"
	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/platform"
	"github.com/spf13/cobra"
)

// addSourceFlags registers the flags that name the page to read.
func addSourceFlags(cmd *cobra.Command, defaultBackend string) {
	cmd.Flags().String("url", "", "Page URL")
	cmd.Flags().String("file", "", "Local HTML file")
	cmd.Flags().String("html", "", "Inline HTML markup")
	cmd.Flags().String("backend", defaultBackend, "Page backend: static, browser")
	cmd.Flags().String("viewport", "", "Viewport as WIDTHxHEIGHT (default from config)")
	cmd.Flags().Duration("settle", 0, "Extra wait after load for late overlays (browser backend)")
}

// readOptionsFromFlags builds ReadOptions from the source flags.
func readOptionsFromFlags(cmd *cobra.Command) (platform.ReadOptions, error) {
	url, _ := cmd.Flags().GetString("url")
	file, _ := cmd.Flags().GetString("file")
	html, _ := cmd.Flags().GetString("html")
	vp, _ := cmd.Flags().GetString("viewport")
	settle, _ := cmd.Flags().GetDuration("settle")

	opts := platform.ReadOptions{URL: url, File: file, HTML: html, Settle: settle}
	if url == "" && file == "" && html == "" {
		return opts, fmt.Errorf("one of --url, --file or --html is required")
	}
	if vp != "" {
		size, err := platform.ParseViewport(vp)
		if err != nil {
			return opts, err
		}
		opts.Viewport = size
	}
	return opts, nil
}

// providerOptions maps the browser config onto backend options.
func providerOptions(c config.Config, viewport model.Size) platform.ProviderOptions {
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = model.Size{Width: float64(c.Browser.Width), Height: float64(c.Browser.Height)}
	}
	return platform.ProviderOptions{
		RemoteURL: c.Browser.RemoteURL,
		Headless:  c.Browser.Headless,
		Stealth:   c.Browser.Stealth,
		Viewport:  viewport,
	}
}

// browserConfig maps the browser config onto the live backend's manager.
func browserConfig(c config.Config) browser.Config {
	return browser.Config{
		RemoteURL: c.Browser.RemoteURL,
		Headless:  c.Browser.Headless,
		Stealth:   c.Browser.Stealth,
		Viewport:  model.Size{Width: float64(c.Browser.Width), Height: float64(c.Browser.Height)},
		Logger:    logger,
	}
}

// openProvider builds the named backend with the loaded config.
func openProvider(ctx context.Context, backend string, viewport model.Size) (*platform.Provider, error) {
	p, err := platform.NewProvider(ctx, backend, providerOptions(appCfg, viewport))
	if err != nil {
		return nil, err
	}
	if p.Reader == nil {
		_ = p.Shutdown()
		return nil, fmt.Errorf("%s backend cannot read pages: %w", backend, platform.ErrUnsupported)
	}
	return p, nil
}

// newFinder returns the detection pipeline for doc with the configured
// thresholds.
func newFinder(doc *model.Document) *detect.Finder {
	x := detect.NewExtractor(doc.Hostname())
	x.Thresholds = appCfg.Detect
	return detect.NewFinder(x, logger)
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// readOptionsFromParams builds ReadOptions from MCP tool arguments.
func readOptionsFromParams(params map[string]interface{}) (platform.ReadOptions, error) {
	opts := platform.ReadOptions{
		URL:    stringParam(params, "url", ""),
		File:   stringParam(params, "file", ""),
		HTML:   stringParam(params, "html", ""),
		Settle: time.Duration(intParam(params, "settle-ms", 0)) * time.Millisecond,
	}
	if opts.URL == "" && opts.File == "" && opts.HTML == "" {
		return opts, fmt.Errorf("one of url, file or html is required")
	}
	if vp := stringParam(params, "viewport", ""); vp != "" {
		size, err := platform.ParseViewport(vp)
		if err != nil {
			return opts, err
		}
		opts.Viewport = size
	}
	return opts, nil
}
