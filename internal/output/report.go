package output

import (
	"strings"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/model"
)

// ScanReport is the result of a close-button scan over one document.
type ScanReport struct {
	URL      string      `yaml:"url"                json:"url"`
	TS       int64       `yaml:"ts"                 json:"ts"`
	Viewport model.Size  `yaml:"viewport"           json:"viewport"`
	Targets  []Candidate `yaml:"targets"            json:"targets"`
	Rejected []Candidate `yaml:"rejected,omitempty" json:"rejected,omitempty"`
}

// Candidate describes one evaluated element.
type Candidate struct {
	model.Brief `yaml:",inline"`
	Text        string            `yaml:"text,omitempty"     json:"text,omitempty"`
	Visible     bool              `yaml:"visible"            json:"visible"`
	Valid       bool              `yaml:"valid"              json:"valid"`
	Priority    int               `yaml:"priority,omitempty" json:"priority,omitempty"`
	Selected    bool              `yaml:"selected,omitempty" json:"selected,omitempty"`
	Signals     *detect.SignalSet `yaml:"signals,omitempty"  json:"signals,omitempty"`
}

// NewCandidate converts an evaluation.
func NewCandidate(ev detect.Evaluation) Candidate {
	c := Candidate{
		Brief:    model.BriefOf(ev.Element),
		Text:     candidateText(ev.Element),
		Visible:  ev.Visible,
		Valid:    ev.Verdict.Valid,
		Priority: ev.Verdict.Priority,
		Selected: ev.Selected,
	}
	if ev.Signals != (detect.SignalSet{}) {
		s := ev.Signals
		c.Signals = &s
	}
	return c
}

// NewScanReport builds a report from the evaluations of doc. Selected
// candidates become targets; the others are listed only with
// includeRejected.
func NewScanReport(doc *model.Document, evs []detect.Evaluation, includeRejected bool, ts int64) ScanReport {
	r := ScanReport{
		URL:      doc.URL,
		TS:       ts,
		Viewport: doc.Viewport,
		Targets:  []Candidate{},
	}
	for _, ev := range evs {
		switch {
		case ev.Selected:
			r.Targets = append(r.Targets, NewCandidate(ev))
		case includeRejected:
			r.Rejected = append(r.Rejected, NewCandidate(ev))
		}
	}
	return r
}

const maxTextLen = 40

func candidateText(el *model.Element) string {
	for _, s := range detect.TextSources(el) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		if r := []rune(s); len(r) > maxTextLen {
			s = string(r[:maxTextLen]) + "…"
		}
		return s
	}
	return ""
}
