// Package config maps viper keys onto the tuning knobs of each component.
// Defaults are the components' own shipped values; a config file or
// FINDCLOSE_* environment variables override them key by key.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/gesture"
	"github.com/mj1618/findclose/internal/highlight"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "FINDCLOSE"

// EnvKeyReplacer maps nested keys onto environment names, so that
// shake.threshold reads FINDCLOSE_SHAKE_THRESHOLD.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Config is the resolved application configuration.
type Config struct {
	Detect    detect.Thresholds
	Shake     gesture.AccelerationOptions
	Pointer   gesture.PointerOptions
	Timeouts  gesture.PointerTimeouts
	Highlight Highlight
	Browser   Browser
	Logging   Logging
	Settings  Settings
}

// Highlight timings.
type Highlight struct {
	FrameDelay   time.Duration
	CleanupDelay time.Duration
}

// Browser controls the live backend.
type Browser struct {
	RemoteURL string // Existing DevTools endpoint; empty launches a browser
	Headless  bool
	Stealth   bool
	Width     int
	Height    int
}

// Logging selects the slog handler.
type Logging struct {
	Level  string
	Format string
}

// Settings locates the persisted preferences.
type Settings struct {
	Path string
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	th := detect.DefaultThresholds()
	v.SetDefault("detect.compact_size", th.CompactSize)
	v.SetDefault("detect.min_visible_size", th.MinVisibleSize)
	v.SetDefault("detect.viewport_padding", th.ViewportPadding)
	v.SetDefault("detect.hidden_opacity", th.HiddenOpacity)
	v.SetDefault("detect.ancestor_depth", th.AncestorDepth)
	v.SetDefault("detect.corner_margin_min", th.CornerMarginMin)
	v.SetDefault("detect.corner_margin_max", th.CornerMarginMax)
	v.SetDefault("detect.corner_width_fraction", th.CornerWidthFraction)
	v.SetDefault("detect.corner_height_fraction", th.CornerHeightFraction)
	v.SetDefault("detect.corner_slack", th.CornerSlack)
	v.SetDefault("detect.container_min_size", th.ContainerMinSize)
	v.SetDefault("detect.container_tolerance_min", th.ContainerToleranceMin)
	v.SetDefault("detect.container_tolerance_max", th.ContainerToleranceMax)
	v.SetDefault("detect.container_tolerance", th.ContainerTolerance)

	v.SetDefault("shake.threshold", 80.0)
	v.SetDefault("shake.timeout", 2500*time.Millisecond)
	v.SetDefault("shake.sample_gate", 100*time.Millisecond)

	to := gesture.DefaultPointerTimeouts()
	v.SetDefault("pointer.window", 800*time.Millisecond)
	v.SetDefault("pointer.min_direction_changes", 3)
	v.SetDefault("pointer.min_total_distance", 420.0)
	v.SetDefault("pointer.min_segment_delta", 14.0)
	v.SetDefault("pointer.min_speed", 1200.0)
	v.SetDefault("pointer.timeout_small", to.Small)
	v.SetDefault("pointer.timeout_medium", to.Medium)
	v.SetDefault("pointer.timeout_large", to.Large)
	v.SetDefault("pointer.medium_diagonal", to.MediumDiagonal)
	v.SetDefault("pointer.large_diagonal", to.LargeDiagonal)

	v.SetDefault("highlight.frame_delay", highlight.DefaultFrameDelay)
	v.SetDefault("highlight.cleanup_delay", highlight.DefaultCleanupDelay)

	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 800)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("settings.path", "")
}

// Load resolves the configuration from v. Call SetDefaults first.
func Load(v *viper.Viper) Config {
	var c Config

	c.Detect = detect.Thresholds{
		CompactSize:           v.GetFloat64("detect.compact_size"),
		MinVisibleSize:        v.GetFloat64("detect.min_visible_size"),
		ViewportPadding:       v.GetFloat64("detect.viewport_padding"),
		HiddenOpacity:         v.GetFloat64("detect.hidden_opacity"),
		AncestorDepth:         v.GetInt("detect.ancestor_depth"),
		CornerMarginMin:       v.GetFloat64("detect.corner_margin_min"),
		CornerMarginMax:       v.GetFloat64("detect.corner_margin_max"),
		CornerWidthFraction:   v.GetFloat64("detect.corner_width_fraction"),
		CornerHeightFraction:  v.GetFloat64("detect.corner_height_fraction"),
		CornerSlack:           v.GetFloat64("detect.corner_slack"),
		ContainerMinSize:      v.GetFloat64("detect.container_min_size"),
		ContainerToleranceMin: v.GetFloat64("detect.container_tolerance_min"),
		ContainerToleranceMax: v.GetFloat64("detect.container_tolerance_max"),
		ContainerTolerance:    v.GetFloat64("detect.container_tolerance"),
	}

	c.Shake = gesture.AccelerationOptions{
		Threshold:  v.GetFloat64("shake.threshold"),
		Timeout:    v.GetDuration("shake.timeout"),
		SampleGate: v.GetDuration("shake.sample_gate"),
	}

	c.Timeouts = gesture.PointerTimeouts{
		Small:          v.GetDuration("pointer.timeout_small"),
		Medium:         v.GetDuration("pointer.timeout_medium"),
		Large:          v.GetDuration("pointer.timeout_large"),
		MediumDiagonal: v.GetFloat64("pointer.medium_diagonal"),
		LargeDiagonal:  v.GetFloat64("pointer.large_diagonal"),
	}
	c.Pointer = gesture.PointerOptions{
		Window:              v.GetDuration("pointer.window"),
		Timeout:             c.Timeouts.Small,
		MinDirectionChanges: v.GetInt("pointer.min_direction_changes"),
		MinTotalDistance:    v.GetFloat64("pointer.min_total_distance"),
		MinSegmentDelta:     v.GetFloat64("pointer.min_segment_delta"),
		MinSpeed:            v.GetFloat64("pointer.min_speed"),
	}

	c.Highlight = Highlight{
		FrameDelay:   v.GetDuration("highlight.frame_delay"),
		CleanupDelay: v.GetDuration("highlight.cleanup_delay"),
	}

	c.Browser = Browser{
		RemoteURL: v.GetString("browser.remote_url"),
		Headless:  v.GetBool("browser.headless"),
		Stealth:   v.GetBool("browser.stealth"),
		Width:     v.GetInt("browser.width"),
		Height:    v.GetInt("browser.height"),
	}

	c.Logging = Logging{
		Level:  v.GetString("logging.level"),
		Format: v.GetString("logging.format"),
	}

	c.Settings = Settings{Path: v.GetString("settings.path")}
	return c
}

// Default returns the configuration with every key at its default.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}
