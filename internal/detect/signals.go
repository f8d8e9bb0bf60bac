package detect

import (
	"strings"

	"github.com/mj1618/findclose/internal/model"
)

// SignalSet is the per-scan set of independent signals computed for one
// candidate. It is a pure function of the element's attributes, computed
// style and geometry at the moment of extraction and is never cached.
type SignalSet struct {
	HasStrongCloseText       bool `yaml:"strong_text,omitempty"  json:"strong_text,omitempty"`
	HasWeakCloseText         bool `yaml:"weak_text,omitempty"    json:"weak_text,omitempty"`
	HasStandaloneCloseSymbol bool `yaml:"symbol,omitempty"       json:"symbol,omitempty"`
	HasCloseAttributeToken   bool `yaml:"close_token,omitempty"  json:"close_token,omitempty"`
	HasAdAttributeToken      bool `yaml:"ad_token,omitempty"     json:"ad_token,omitempty"`
	HasPseudoGlyph           bool `yaml:"pseudo_glyph,omitempty" json:"pseudo_glyph,omitempty"`
	IsClickable              bool `yaml:"clickable,omitempty"    json:"clickable,omitempty"`
	IsCompact                bool `yaml:"compact,omitempty"      json:"compact,omitempty"`
	IsCornerPositioned       bool `yaml:"corner,omitempty"       json:"corner,omitempty"`
	IsAdContext              bool `yaml:"ad_context,omitempty"   json:"ad_context,omitempty"`
	IsGraphicOnly            bool `yaml:"graphic_only,omitempty" json:"graphic_only,omitempty"`
}

// Extractor computes signals for candidates.
type Extractor struct {
	Thresholds Thresholds
	// ContextHost is the hostname of the frame running the scan. When it
	// belongs to an ad server every candidate is in ad context.
	ContextHost string
}

// NewExtractor returns an extractor with the default thresholds.
func NewExtractor(contextHost string) *Extractor {
	return &Extractor{Thresholds: DefaultThresholds(), ContextHost: contextHost}
}

// Extract computes the signal set of el.
func (x *Extractor) Extract(el *model.Element) SignalSet {
	texts := TextSources(el)
	combined := strings.Join(texts, " ")

	var s SignalSet
	for _, t := range texts {
		if IsStandaloneCloseSymbol(t) {
			s.HasStandaloneCloseSymbol = true
			break
		}
	}
	s.HasStrongCloseText = matchesAny(strongCloseText, combined)
	s.HasWeakCloseText = matchesAny(weakCloseText, combined)
	s.HasCloseAttributeToken, s.HasAdAttributeToken = attributeTokens(el)
	s.HasPseudoGlyph = HasPseudoGlyph(el)
	s.IsClickable = IsClickable(el)
	s.IsCompact = x.isCompact(el.Rect)
	s.IsCornerPositioned = x.isCornerPositioned(el)
	s.IsAdContext = x.isAdContext(el)
	s.IsGraphicOnly = containsInlineSVG(el) && len(texts) == 0
	return s
}

// TextSources collects every non-blank human-readable text of el: label
// attributes, rendered text, text content and aria-labelledby targets.
func TextSources(el *model.Element) []string {
	sources := []string{
		el.GetAttr("aria-label"),
		el.GetAttr("title"),
		el.GetAttr("alt"),
		el.GetAttr("value"),
		el.GetAttr("name"),
		el.InnerText(),
		el.TextContent(),
	}
	if doc := el.OwnerDocument(); doc != nil {
		for _, id := range strings.Fields(el.GetAttr("aria-labelledby")) {
			if ref := doc.GetElementByID(id); ref != nil {
				sources = append(sources, ref.TextContent())
			}
		}
	}
	out := sources[:0]
	for _, s := range sources {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func attributeTokens(el *model.Element) (closeTok, adTok bool) {
	raw := strings.Join([]string{
		el.IDAttr(),
		el.ClassName(),
		el.GetAttr("name"),
		el.GetAttr("data-testid"),
		el.GetAttr("data-test"),
		el.GetAttr("data-zone"),
		el.GetAttr("data-dismiss"),
		el.GetAttr("data-close"),
	}, " ")
	for _, tok := range Tokenize(raw) {
		if isCloseToken(tok) {
			closeTok = true
		}
		if isAdToken(tok) {
			adTok = true
		}
	}
	return closeTok, adTok
}

// HasPseudoGlyph reports whether ::before or ::after renders a close glyph.
func HasPseudoGlyph(el *model.Element) bool {
	return IsPseudoCloseGlyph(el.Style.Before) || IsPseudoCloseGlyph(el.Style.After)
}

// IsClickable reports whether el is likely to react to a click.
func IsClickable(el *model.Element) bool {
	switch el.Tag {
	case "button", "a", "input":
		return true
	}
	switch el.Role() {
	case "button", "link":
		return true
	}
	if el.OnClick || el.TabIndex() >= 0 {
		return true
	}
	if el.HasAttr("data-dismiss") || el.HasAttr("data-close") {
		return true
	}
	return el.Style.Cursor == "pointer"
}

func containsInlineSVG(el *model.Element) bool {
	if el.Tag == "svg" {
		return true
	}
	return el.QuerySelector(func(n *model.Element) bool { return n.Tag == "svg" }) != nil
}

func (x *Extractor) isAdContext(el *model.Element) bool {
	if IsAdHost(x.ContextHost) {
		return true
	}
	if doc := el.OwnerDocument(); doc != nil && IsAdHost(doc.Hostname()) {
		return true
	}
	for n, depth := el, 0; n != nil && depth < x.Thresholds.AncestorDepth; n, depth = n.ParentElement(), depth+1 {
		raw := strings.Join([]string{
			n.IDAttr(),
			n.ClassName(),
			n.GetAttr("aria-label"),
			n.Role(),
			n.GetAttr("data-testid"),
			n.GetAttr("data-ad"),
		}, " ")
		for _, tok := range Tokenize(raw) {
			if isAdToken(tok) {
				return true
			}
		}
	}
	return false
}
