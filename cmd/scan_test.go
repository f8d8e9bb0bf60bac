package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/output"
	"github.com/mj1618/findclose/internal/platform"
	"github.com/mj1618/findclose/internal/snapshot"
)

func TestApplyScan(t *testing.T) {
	reader := snapshot.NewReader(snapshot.DefaultViewport, nil)
	doc, err := reader.ReadDocument(context.Background(), platform.ReadOptions{HTML: overlayHTML, URL: "https://news.example/"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	finder := newFinder(doc)
	res := applyScan(doc, finder)
	if res.Source != SourceCLI || res.AddedCount != 1 || res.TotalActive != 1 {
		t.Fatalf("result = %+v", res)
	}

	found := detect.QueryDeep(doc.Root, func(e *model.Element) bool { return e.HasClass("ad-close") })
	if len(found) != 1 {
		t.Fatalf("close buttons = %d", len(found))
	}
	el := found[0]
	if !el.HasClass(highlight.MarkerClass) || !el.HasClass(highlight.ActiveClass) {
		t.Errorf("classes = %q, want marker and active committed", el.GetAttr("class"))
	}
	if !highlight.HasStylesheet(doc) {
		t.Error("stylesheet not injected")
	}
}

func TestScanOutput_YAMLInline(t *testing.T) {
	reader := snapshot.NewReader(snapshot.DefaultViewport, nil)
	doc, err := reader.ReadDocument(context.Background(), platform.ReadOptions{HTML: overlayHTML})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := scanOutput{ScanReport: output.NewScanReport(doc, newFinder(doc).Evaluate(doc), false, 1)}
	var b strings.Builder
	if err := output.EncodeYAML(&b, out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	text := b.String()
	if !strings.HasPrefix(text, "url:") {
		t.Errorf("report fields should be inlined, got:\n%s", text)
	}
	if strings.Contains(text, "applied:") {
		t.Errorf("applied should be omitted without --apply:\n%s", text)
	}
}
