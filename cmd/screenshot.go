package cmd

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/mj1618/findclose/internal/annotate"
	"github.com/mj1618/findclose/internal/browser"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/platform"
	"github.com/spf13/cobra"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture a page with its close targets boxed",
	Long: `Load a page in Chrome, run the close-button pipeline and draw a box around
every target on a viewport capture. Selected targets are red; with --all the
rejected but visible candidates are drawn in gray.

Examples:
  findclose screenshot --url https://news.example --output targets.png
  findclose screenshot --file modal.html --labels coords --all
  findclose screenshot --url https://news.example --clip 0,0,640,400
  findclose screenshot --url https://news.example --format jpg --scale 0.5 > shot.b64`,
	RunE: runScreenshot,
}

func init() {
	rootCmd.AddCommand(screenshotCmd)
	addSourceFlags(screenshotCmd, browser.BackendName)
	screenshotCmd.Flags().String("output", "", "Output file path (default: stdout as base64)")
	screenshotCmd.Flags().String("format", "png", "Output format: png, jpg")
	screenshotCmd.Flags().Int("quality", 80, "JPEG quality 1-100")
	screenshotCmd.Flags().Float64("scale", 1.0, "Scale factor 0.1-1.0 (for token efficiency)")
	screenshotCmd.Flags().String("labels", "rank", "Box labels: rank, coords, ids")
	screenshotCmd.Flags().Bool("all", false, "Also box rejected candidates")
	screenshotCmd.Flags().Bool("raw", false, "Skip annotation")
	screenshotCmd.Flags().String("clip", "", "Capture only the region x,y,w,h (CSS pixels)")
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts, err := readOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	backend, _ := cmd.Flags().GetString("backend")
	out, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	quality, _ := cmd.Flags().GetInt("quality")
	scale, _ := cmd.Flags().GetFloat64("scale")
	labels, _ := cmd.Flags().GetString("labels")
	all, _ := cmd.Flags().GetBool("all")
	raw, _ := cmd.Flags().GetBool("raw")
	clipFlag, _ := cmd.Flags().GetString("clip")

	if format != "png" && format != "jpg" && format != "jpeg" {
		return fmt.Errorf("unsupported image format: %s (use png or jpg)", format)
	}
	mode, err := annotate.ParseLabelMode(labels)
	if err != nil {
		return err
	}
	var clip *model.Rect
	if clipFlag != "" {
		if clip, err = platform.ParseRect(clipFlag); err != nil {
			return err
		}
	}

	provider, err := openProvider(ctx, backend, opts.Viewport)
	if err != nil {
		return err
	}
	defer provider.Shutdown()
	if provider.Screenshotter == nil {
		return fmt.Errorf("screenshot not supported by the %s backend: %w", provider.Name, platform.ErrUnsupported)
	}

	doc, err := provider.Reader.ReadDocument(ctx, opts)
	if err != nil {
		return err
	}
	data, err := provider.Screenshotter.CaptureViewport(ctx, platform.ScreenshotOptions{Format: "png", Clip: clip})
	if err != nil {
		return err
	}
	img, err := annotate.Decode(data)
	if err != nil {
		return err
	}

	if !raw {
		targets := annotate.FromEvaluations(newFinder(doc).Evaluate(doc), all)
		vp := doc.Viewport
		if clip != nil {
			targets = annotate.Offset(targets, *clip)
			vp = model.Size{Width: clip.Width, Height: clip.Height}
		}
		logger.Debug("annotating capture", "targets", len(targets), "url", doc.URL)
		img = annotate.Draw(img, targets, vp, mode)
	}
	img = annotate.Scale(img, scale)

	var buf bytes.Buffer
	if err := annotate.Encode(&buf, img, format, quality); err != nil {
		return err
	}

	if out != "" {
		return os.WriteFile(out, buf.Bytes(), 0644)
	}

	// Default: write to stdout as base64 for easy agent consumption
	encoder := base64.NewEncoder(base64.StdEncoding, os.Stdout)
	if _, err := encoder.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	fmt.Println()
	return nil
}
