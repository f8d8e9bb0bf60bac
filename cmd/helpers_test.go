package cmd

import (
	"testing"
	"time"

	"github.com/mj1618/findclose/internal/config"
	"github.com/mj1618/findclose/internal/model"
	"github.com/spf13/cobra"
)

func newSourceCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addSourceFlags(cmd, "static")
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestReadOptionsFromFlags(t *testing.T) {
	cmd := newSourceCmd(t, "--url", "https://news.example/", "--viewport", "800x600", "--settle", "2s")
	opts, err := readOptionsFromFlags(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.URL != "https://news.example/" {
		t.Errorf("URL = %q", opts.URL)
	}
	if opts.Viewport != (model.Size{Width: 800, Height: 600}) {
		t.Errorf("Viewport = %+v", opts.Viewport)
	}
	if opts.Settle != 2*time.Second {
		t.Errorf("Settle = %v", opts.Settle)
	}
}

func TestReadOptionsFromFlags_Errors(t *testing.T) {
	if _, err := readOptionsFromFlags(newSourceCmd(t)); err == nil {
		t.Error("expected error when no source is given")
	}
	if _, err := readOptionsFromFlags(newSourceCmd(t, "--html", "<p>", "--viewport", "wide")); err == nil {
		t.Error("expected error for a bad viewport")
	}
}

func TestReadOptionsFromParams(t *testing.T) {
	opts, err := readOptionsFromParams(map[string]interface{}{
		"file":      "modal.html",
		"settle-ms": float64(250),
		"viewport":  "390x844",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.File != "modal.html" || opts.Settle != 250*time.Millisecond {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Viewport != (model.Size{Width: 390, Height: 844}) {
		t.Errorf("Viewport = %+v", opts.Viewport)
	}
	if _, err := readOptionsFromParams(map[string]interface{}{}); err == nil {
		t.Error("expected error when no source is given")
	}
}

func TestParams(t *testing.T) {
	params := map[string]interface{}{
		"s":   "text",
		"n":   float64(3),
		"i":   7,
		"b":   true,
		"num": 42,
	}
	if got := stringParam(params, "s", ""); got != "text" {
		t.Errorf("stringParam = %q", got)
	}
	if got := stringParam(params, "num", ""); got != "42" {
		t.Errorf("stringParam of a number = %q", got)
	}
	if got := stringParam(params, "missing", "def"); got != "def" {
		t.Errorf("stringParam default = %q", got)
	}
	if got := intParam(params, "n", 0); got != 3 {
		t.Errorf("intParam float = %d", got)
	}
	if got := intParam(params, "i", 0); got != 7 {
		t.Errorf("intParam int = %d", got)
	}
	if got := intParam(params, "s", 9); got != 9 {
		t.Errorf("intParam of a string = %d, want default", got)
	}
	if !boolParam(params, "b", false) || boolParam(params, "s", false) {
		t.Error("boolParam mismatch")
	}
}

func TestProviderOptions(t *testing.T) {
	c := config.Default()
	c.Browser.RemoteURL = "ws://127.0.0.1:9222"

	opts := providerOptions(c, model.Size{})
	if opts.Viewport != (model.Size{Width: 1280, Height: 800}) {
		t.Errorf("default viewport = %+v", opts.Viewport)
	}
	if opts.RemoteURL != c.Browser.RemoteURL || !opts.Headless || !opts.Stealth {
		t.Errorf("opts = %+v", opts)
	}
	if got := providerOptions(c, model.Size{Width: 390, Height: 844}).Viewport; got.Width != 390 {
		t.Errorf("explicit viewport ignored: %+v", got)
	}
}
