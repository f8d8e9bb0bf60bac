package output

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/model"
)

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	err = fn()
	w.Close()
	os.Stdout = old

	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func overlayPage() (*model.Document, *model.Element) {
	closeBtn := model.El("button", "class", "ad-close", "aria-label", "Close ad").WithRect(540, 110, 32, 32)
	promo := model.El("a", "href", "/promo").WithText("Learn more").WithRect(300, 300, 200, 40)
	overlay := model.El("div", "class", "ad-overlay").WithRect(200, 100, 400, 400).WithChildren(closeBtn, promo)
	return model.NewPage("https://news.example.com/", 1280, 800, overlay), closeBtn
}

func sampleReport(includeRejected bool) ScanReport {
	doc, _ := overlayPage()
	evs := detect.NewFinder(nil, nil).Evaluate(doc)
	return NewScanReport(doc, evs, includeRejected, 1707500000)
}

func TestNewScanReport(t *testing.T) {
	r := sampleReport(false)
	if r.URL != "https://news.example.com/" {
		t.Errorf("url: got %q", r.URL)
	}
	if r.Viewport.Width != 1280 || r.Viewport.Height != 800 {
		t.Errorf("viewport: got %+v", r.Viewport)
	}
	if len(r.Targets) != 1 {
		t.Fatalf("targets: got %d, want 1", len(r.Targets))
	}
	c := r.Targets[0]
	if c.Tag != "button" || !c.Selected || !c.Valid || !c.Visible {
		t.Errorf("unexpected target: %+v", c)
	}
	if c.Text != "Close ad" {
		t.Errorf("text: got %q, want %q", c.Text, "Close ad")
	}
	if c.Signals == nil || !c.Signals.HasStrongCloseText {
		t.Errorf("signals should include strong close text: %+v", c.Signals)
	}
	if r.Rejected != nil {
		t.Errorf("rejected candidates should be omitted, got %d", len(r.Rejected))
	}

	all := sampleReport(true)
	if len(all.Rejected) == 0 {
		t.Fatal("expected rejected candidates with includeRejected")
	}
	for _, c := range all.Rejected {
		if c.Selected {
			t.Errorf("rejected candidate marked selected: %+v", c)
		}
	}
}

func TestNewScanReport_EmptyTargets(t *testing.T) {
	doc := model.NewPage("https://example.com/", 800, 600, model.El("p").WithText("hello"))
	r := NewScanReport(doc, nil, false, 1)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"targets":[]`) {
		t.Errorf("targets should encode as an empty list, got %s", data)
	}
}

func TestCandidateText_Truncates(t *testing.T) {
	el := model.El("button").WithText(strings.Repeat("close ", 20))
	got := candidateText(el)
	if n := len([]rune(got)); n != maxTextLen+1 {
		t.Errorf("length: got %d, want %d", n, maxTextLen+1)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated text should end with an ellipsis: %q", got)
	}
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeYAML(&buf, sampleReport(false)); err != nil {
		t.Fatal(err)
	}
	output := buf.String()

	if strings.Count(output, "\n") <= 1 {
		t.Errorf("YAML output should be multi-line, got:\n%s", output)
	}

	var decoded ScanReport
	if err := yaml.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded.URL != "https://news.example.com/" {
		t.Errorf("url: got %q", decoded.URL)
	}
	if len(decoded.Targets) != 1 || decoded.Targets[0].Tag != "button" {
		t.Errorf("targets: got %+v", decoded.Targets)
	}
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, sampleReport(false), false); err != nil {
		t.Fatal(err)
	}
	output := buf.String()

	if strings.Count(strings.TrimSpace(output), "\n") != 0 {
		t.Errorf("JSON output should be a single line, got:\n%s", output)
	}
	var decoded ScanReport
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.TS != 1707500000 {
		t.Errorf("ts: got %d", decoded.TS)
	}
}

func TestEncodeJSON_Pretty(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, sampleReport(false), true); err != nil {
		t.Fatal(err)
	}
	output := buf.String()
	if !strings.Contains(output, "\n  \"url\"") {
		t.Errorf("pretty JSON should be indented, got:\n%s", output)
	}
}

func TestPrint_FollowsOutputFormat(t *testing.T) {
	defer func(f Format, p bool) { OutputFormat, PrettyOutput = f, p }(OutputFormat, PrettyOutput)

	OutputFormat = FormatJSON
	PrettyOutput = false
	output := captureStdout(t, func() error { return Print(map[string]int{"count": 1}) })
	if strings.TrimSpace(output) != `{"count":1}` {
		t.Errorf("json: got %q", output)
	}

	OutputFormat = FormatYAML
	output = captureStdout(t, func() error { return Print(map[string]int{"count": 1}) })
	if strings.TrimSpace(output) != "count: 1" {
		t.Errorf("yaml: got %q", output)
	}

	OutputFormat = "xml"
	if err := Print(1); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"yaml", "json"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Error("expected an error for toml")
	}
}

func TestCandidate_OmitEmpty(t *testing.T) {
	data, err := yaml.Marshal(Candidate{Brief: model.Brief{Tag: "div"}})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"text", "priority", "selected", "signals"} {
		if _, ok := m[k]; ok {
			t.Errorf("empty %s should be omitted", k)
		}
	}
	if m["tag"] != "div" {
		t.Errorf("brief fields should be inlined, got %v", m)
	}
}
