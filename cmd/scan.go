package cmd

import (
	"time"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/output"
	"github.com/mj1618/findclose/internal/snapshot"
	"github.com/spf13/cobra"
)

// SourceCLI is the scan source reported by scan --apply.
const SourceCLI = "cli"

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Detect the close buttons of a page",
	Long: `Run the close-button pipeline once over a page and print the ranked,
non-overlapping targets with the signals and verdict behind each.

Examples:
  findclose scan --file testdata/modal.html
  findclose scan --url https://news.example --backend browser --settle 2s
  findclose scan --html '<div class="ad"><button aria-label="Close">×</button></div>' --all`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addSourceFlags(scanCmd, snapshot.BackendName)
	scanCmd.Flags().Bool("all", false, "Include rejected candidates")
	scanCmd.Flags().Bool("apply", false, "Also run the highlight scan and report the activated targets")
}

// scanOutput is a scan report plus the optional highlight result.
type scanOutput struct {
	output.ScanReport `yaml:",inline"`
	Applied           *highlight.ScanResult `yaml:"applied,omitempty" json:"applied,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts, err := readOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	backend, _ := cmd.Flags().GetString("backend")
	all, _ := cmd.Flags().GetBool("all")
	apply, _ := cmd.Flags().GetBool("apply")

	provider, err := openProvider(ctx, backend, opts.Viewport)
	if err != nil {
		return err
	}
	defer provider.Shutdown()

	doc, err := provider.Reader.ReadDocument(ctx, opts)
	if err != nil {
		return err
	}
	logger.Debug("page read", "source", opts.Source(), "backend", provider.Name, "url", doc.URL)

	finder := newFinder(doc)
	out := scanOutput{ScanReport: output.NewScanReport(doc, finder.Evaluate(doc), all, nowMillis())}
	if apply {
		res := applyScan(doc, finder)
		out.Applied = &res
	}
	return output.Print(out)
}

// applyScan runs the highlight controller over doc and lets the active
// class commit. With the browser backend the classes reach the live page.
func applyScan(doc *model.Document, finder *detect.Finder) highlight.ScanResult {
	clock := loop.NewManual(time.Now())
	ctrl := highlight.New(doc, highlight.Options{
		Finder:       finder,
		Scheduler:    clock,
		FrameDelay:   appCfg.Highlight.FrameDelay,
		CleanupDelay: appCfg.Highlight.CleanupDelay,
		Logger:       logger,
	})
	res := ctrl.RunScan(SourceCLI)
	clock.Advance(appCfg.Highlight.FrameDelay)
	return res
}
