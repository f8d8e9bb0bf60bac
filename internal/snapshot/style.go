package snapshot

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"github.com/mj1618/findclose/internal/model"
)

// rule is one compiled selector of a style rule.
type rule struct {
	sel    cascadia.Sel
	spec   cascadia.Specificity
	pseudo string // "", "before" or "after"
	decls  []*css.Declaration
	order  int
}

// sheet holds the compiled rules of one tree scope in source order.
type sheet struct {
	rules []rule
	next  int
}

// add compiles text and appends its rules. Selectors cascadia cannot parse
// (hover states, vendor pseudo-classes) are skipped.
func (s *sheet) add(text string, logger *slog.Logger) {
	ss, err := parser.Parse(text)
	if err != nil {
		logger.Debug("skipping unparsable stylesheet", "error", err)
		return
	}
	s.addRules(ss.Rules, logger)
}

func (s *sheet) addRules(rules []*css.Rule, logger *slog.Logger) {
	for _, r := range rules {
		if r.Kind == css.AtRule {
			if mediaApplies(r) {
				s.addRules(r.Rules, logger)
			}
			continue
		}
		for _, raw := range r.Selectors {
			sel, err := cascadia.ParseWithPseudoElement(raw)
			if err != nil {
				logger.Debug("skipping selector", "selector", raw, "error", err)
				continue
			}
			pseudo := sel.PseudoElement()
			if pseudo != "" && pseudo != "before" && pseudo != "after" {
				continue
			}
			s.rules = append(s.rules, rule{
				sel:    sel,
				spec:   sel.Specificity(),
				pseudo: pseudo,
				decls:  r.Declarations,
				order:  s.next,
			})
			s.next++
		}
	}
}

// mediaApplies accepts @media blocks that target screens; other at-rules
// are ignored.
func mediaApplies(r *css.Rule) bool {
	if !strings.EqualFold(r.Name, "@media") {
		return false
	}
	q := strings.ToLower(r.Prelude)
	return !strings.Contains(q, "print") && !strings.Contains(q, "speech")
}

// declared is the cascaded set of declarations of one element and its
// pseudo-elements.
type declared struct {
	props  map[string]string
	before map[string]string
	after  map[string]string
}

type match struct {
	d         *css.Declaration
	important bool
	inline    bool
	spec      cascadia.Specificity
	order     int
}

// less orders matches by cascade precedence, lowest first: normal author
// rules, inline style, important author rules, important inline style.
func (a match) less(b match) bool {
	if a.important != b.important {
		return !a.important
	}
	if a.inline != b.inline {
		return !a.inline
	}
	if a.spec != b.spec {
		return a.spec.Less(b.spec)
	}
	return a.order < b.order
}

func cascade(ms []match) map[string]string {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].less(ms[j]) })
	out := map[string]string{}
	for _, m := range ms {
		out[strings.ToLower(m.d.Property)] = strings.TrimSpace(m.d.Value)
	}
	return out
}

// declare collects every declaration that applies to n.
func (s *sheet) declare(n *html.Node, inline string, logger *slog.Logger) declared {
	var own, before, after []match
	for _, r := range s.rules {
		if !r.sel.Match(n) {
			continue
		}
		for _, d := range r.decls {
			m := match{d: d, important: d.Important, spec: r.spec, order: r.order}
			switch r.pseudo {
			case "before":
				before = append(before, m)
			case "after":
				after = append(after, m)
			default:
				own = append(own, m)
			}
		}
	}
	if strings.TrimSpace(inline) != "" {
		decls, err := parser.ParseDeclarations(terminated(inline))
		if err != nil {
			logger.Debug("skipping unparsable inline style", "style", inline, "error", err)
		}
		for i, d := range decls {
			own = append(own, match{d: d, important: d.Important, inline: true, order: i})
		}
	}
	return declared{props: cascade(own), before: cascade(before), after: cascade(after)}
}

// terminated appends the final ";" that douceur needs to keep the value of
// the last declaration.
func terminated(decls string) string {
	decls = strings.TrimSpace(decls)
	if strings.HasSuffix(decls, ";") {
		return decls
	}
	return decls + ";"
}

// inherited carries the inherited part of the parent's computed style.
type inherited struct {
	visibility    string
	cursor        string
	pointerEvents string
	fontSize      float64
	vars          map[string]string
}

func rootInherited() inherited {
	st := model.DefaultStyle()
	return inherited{
		visibility:    st.Visibility,
		cursor:        st.Cursor,
		pointerEvents: st.PointerEvents,
		fontSize:      defaultFontSize,
	}
}

// computed is the resolved style of one element plus the layout inputs the
// model does not carry.
type computed struct {
	style    model.Style
	inherit  inherited
	position string
	props    map[string]string
}

func (c computed) prop(name string) (string, bool) {
	v, ok := c.props[name]
	return v, ok
}

// resolve computes the style of el from its declarations and the parent's
// inherited values.
func resolve(el *model.Element, d declared, parent inherited) computed {
	st := model.DefaultStyle()
	st.Display = defaultDisplay(el)
	st.Visibility = parent.visibility
	st.Cursor = parent.cursor
	st.PointerEvents = parent.pointerEvents
	if len(parent.vars) > 0 {
		st.Vars = make(map[string]string, len(parent.vars))
		for k, v := range parent.vars {
			st.Vars[k] = v
		}
	}
	fontSize := parent.fontSize

	get := func(name, current, initial string) string {
		v, ok := d.props[name]
		switch {
		case !ok:
			return current
		case v == "inherit":
			return current
		case v == "initial" || v == "unset":
			return initial
		default:
			return v
		}
	}

	defaults := model.DefaultStyle()
	st.Display = strings.ToLower(get("display", st.Display, defaults.Display))
	st.Visibility = strings.ToLower(get("visibility", st.Visibility, defaults.Visibility))
	st.Cursor = strings.ToLower(get("cursor", st.Cursor, defaults.Cursor))
	st.PointerEvents = strings.ToLower(get("pointer-events", st.PointerEvents, defaults.PointerEvents))
	if v, ok := d.props["opacity"]; ok {
		st.Opacity = parseOpacity(v)
	}
	if v, ok := d.props["font-size"]; ok {
		if px, ok := parseLength(v, parent.fontSize, model.Size{}, parent.fontSize); ok && px > 0 {
			fontSize = px
		}
	}
	for k, v := range d.props {
		if strings.HasPrefix(k, "--") {
			if st.Vars == nil {
				st.Vars = map[string]string{}
			}
			st.Vars[k] = v
		}
	}
	st.Before = pseudoContent(d.before)
	st.After = pseudoContent(d.after)

	position := strings.ToLower(d.props["position"])
	if position == "" {
		position = "static"
	}
	if position == "absolute" || position == "fixed" {
		switch st.Display {
		case "inline", "inline-block":
			st.Display = "block"
		case "inline-flex":
			st.Display = "flex"
		}
	}
	return computed{
		style:    st,
		position: position,
		props:    d.props,
		inherit: inherited{
			visibility:    st.Visibility,
			cursor:        st.Cursor,
			pointerEvents: st.PointerEvents,
			fontSize:      fontSize,
			vars:          st.Vars,
		},
	}
}

// pseudoContent returns the computed content of a pseudo-element, "none"
// when it is not generated.
func pseudoContent(props map[string]string) string {
	v, ok := props["content"]
	if !ok || v == "" || strings.EqualFold(props["display"], "none") {
		return "none"
	}
	return v
}

func parseOpacity(v string) float64 {
	v = strings.TrimSpace(v)
	var f float64
	var err error
	if strings.HasSuffix(v, "%") {
		f, err = strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		f /= 100
	} else {
		f, err = strconv.ParseFloat(v, 64)
	}
	if err != nil {
		return 1
	}
	return clamp(f, 0, 1)
}

var displayNoneTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "title": true,
	"meta": true, "link": true, "base": true, "noscript": true,
}

var blockTags = map[string]bool{
	"html": true, "body": true, "div": true, "p": true, "section": true,
	"article": true, "header": true, "footer": true, "nav": true, "main": true,
	"aside": true, "ul": true, "ol": true, "li": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"dialog": true, "figure": true, "table": true, "tr": true, "blockquote": true,
	"pre": true, "hr": true, "fieldset": true, "details": true, "summary": true,
}

var inlineBlockTags = map[string]bool{
	"button": true, "input": true, "select": true, "textarea": true,
	"img": true, "iframe": true, "video": true, "svg": true, "canvas": true,
}

// defaultDisplay is the user-agent display of el.
func defaultDisplay(el *model.Element) string {
	switch {
	case displayNoneTags[el.Tag], el.HasAttr("hidden"):
		return "none"
	case el.Tag == "dialog" && !el.HasAttr("open"):
		return "none"
	case el.Tag == "input" && strings.EqualFold(el.GetAttr("type"), "hidden"):
		return "none"
	case blockTags[el.Tag]:
		return "block"
	case inlineBlockTags[el.Tag]:
		return "inline-block"
	default:
		return "inline"
	}
}
