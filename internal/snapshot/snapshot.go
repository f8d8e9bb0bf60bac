// Package snapshot builds element-model documents from static HTML. Styles
// are cascaded from <style>, linked stylesheets and inline style attributes;
// geometry comes from an approximate layout. Declarative open shadow roots
// and srcdoc frames are attached; frames from other origins are marked
// cross-origin.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mj1618/findclose/internal/model"
)

// DefaultViewport is used when Options.Viewport is zero.
var DefaultViewport = model.Size{Width: 1280, Height: 800}

// DefaultMaxFrameDepth bounds frame nesting.
const DefaultMaxFrameDepth = 4

// FetchFunc loads a resource referenced by a page.
type FetchFunc func(ctx context.Context, rawURL string) ([]byte, error)

// Options configure Parse.
type Options struct {
	URL      string     // Document URL, base for relative references
	Viewport model.Size // Layout viewport

	// Fetch loads linked stylesheets and same-origin frame documents. When
	// nil only inline styles and srcdoc frames are used.
	Fetch         FetchFunc
	MaxFrameDepth int
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = DefaultViewport
	}
	if o.MaxFrameDepth <= 0 {
		o.MaxFrameDepth = DefaultMaxFrameDepth
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Parse reads HTML from r and returns the laid-out document.
func Parse(ctx context.Context, r io.Reader, opts Options) (*model.Document, error) {
	opts = opts.withDefaults()
	p := &htmlParser{opts: opts, logger: opts.Logger}
	return p.parse(ctx, r, opts.URL, opts.Viewport, 0)
}

// ParseString is Parse over an in-memory document.
func ParseString(ctx context.Context, markup string, opts Options) (*model.Document, error) {
	return Parse(ctx, strings.NewReader(markup), opts)
}

type htmlParser struct {
	opts   Options
	logger *slog.Logger
}

func (p *htmlParser) parse(ctx context.Context, r io.Reader, rawURL string, vp model.Size, depth int) (*model.Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse html: %w", err)
	}
	base := rawURL
	if href, ok := gq.Find("base[href]").First().Attr("href"); ok {
		base = resolveURL(rawURL, href)
	}
	htmlNode := gq.Find("html").First()
	if htmlNode.Length() == 0 {
		return nil, fmt.Errorf("snapshot: %s: no document element", rawURL)
	}

	t := newTree()
	root := t.element(htmlNode.Get(0), t.doc)
	doc := model.NewDocument(rawURL, vp, root)

	styles := t.cascade(ctx, p, base, doc)
	newLayout(vp, styles).run(root)

	p.logger.Debug("snapshot parsed",
		"url", rawURL,
		"depth", depth,
		"elements", len(t.nodes),
		"shadow_roots", len(t.shadows),
		"frames", len(t.frames))

	for _, fr := range t.frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.loadFrame(ctx, fr, base, depth)
	}
	return doc, nil
}

// loadFrame attaches the document of a frame element. srcdoc frames share
// the parent's origin; src frames from another origin are marked
// cross-origin.
func (p *htmlParser) loadFrame(ctx context.Context, fr *model.Element, base string, depth int) {
	if depth+1 >= p.opts.MaxFrameDepth {
		p.logger.Debug("frame nesting limit reached", "depth", depth)
		return
	}
	vp := model.Size{Width: fr.Rect.Width, Height: fr.Rect.Height}
	if srcdoc, ok := fr.Attr("srcdoc"); ok {
		child, err := p.parse(ctx, strings.NewReader(srcdoc), base, vp, depth+1)
		if err != nil {
			p.logger.Warn("failed to parse srcdoc frame", "error", err)
			return
		}
		fr.SetContentDocument(child)
		return
	}
	src := strings.TrimSpace(fr.GetAttr("src"))
	if src == "" || src == "about:blank" {
		return
	}
	target := resolveURL(base, src)
	if !sameOrigin(base, target) {
		fr.SetCrossOrigin()
		return
	}
	if p.opts.Fetch == nil {
		return
	}
	data, err := p.opts.Fetch(ctx, target)
	if err != nil {
		p.logger.Warn("failed to load frame", "src", target, "error", err)
		return
	}
	child, err := p.parse(ctx, bytes.NewReader(data), target, vp, depth+1)
	if err != nil {
		p.logger.Warn("failed to parse frame", "src", target, "error", err)
		return
	}
	fr.SetContentDocument(child)
}

// scope is a tree scope: the document or one shadow root. Stylesheets only
// apply inside the scope that declares them.
type scope struct {
	sources []source
}

type source struct {
	text string
	href string
}

// tree maps model elements back to the parsed nodes.
type tree struct {
	nodes   map[*model.Element]*html.Node
	doc     *scope
	shadows map[*model.Element]*scope // Keyed by shadow root
	frames  []*model.Element
}

func newTree() *tree {
	return &tree{
		nodes:   map[*model.Element]*html.Node{},
		doc:     &scope{},
		shadows: map[*model.Element]*scope{},
	}
}

func (t *tree) element(n *html.Node, sc *scope) *model.Element {
	el := model.NewElement(n.Data)
	for _, a := range n.Attr {
		if a.Namespace == "" {
			el.SetAttr(a.Key, a.Val)
		}
	}
	t.nodes[el] = n

	switch el.Tag {
	case "style":
		sc.sources = append(sc.sources, source{text: nodeText(n)})
	case "link":
		if hasToken(el.GetAttr("rel"), "stylesheet") && el.GetAttr("href") != "" {
			sc.sources = append(sc.sources, source{href: el.GetAttr("href")})
		}
	case "iframe", "frame":
		t.frames = append(t.frames, el)
	}

	var text strings.Builder
	if el.Tag != "template" {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				text.WriteString(c.Data)
			case html.ElementNode:
				if c.DataAtom == atom.Template {
					if mode := shadowRootMode(c); mode != "" {
						if mode == "open" && el.Shadow == nil {
							t.shadow(el, c)
						}
						continue
					}
				}
				el.Append(t.element(c, sc))
			}
		}
	}
	el.Text = text.String()
	el.OnClick = el.HasAttr("onclick")
	el.Editable = isEditable(el)
	return el
}

// shadow attaches the contents of a declarative shadow root template.
func (t *tree) shadow(host *model.Element, tmpl *html.Node) {
	sc := &scope{}
	root := host.AttachShadow()
	t.shadows[root] = sc
	for c := tmpl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			root.Append(t.element(c, sc))
		}
	}
}

// cascade compiles each scope's stylesheets and computes every element's
// style in tree order.
func (t *tree) cascade(ctx context.Context, p *htmlParser, base string, doc *model.Document) map[*model.Element]computed {
	docSheet := t.compile(ctx, p, base, doc, t.doc)
	sheets := map[*model.Element]*sheet{}
	for root, sc := range t.shadows {
		sheets[root] = t.compile(ctx, p, base, nil, sc)
	}

	styles := make(map[*model.Element]computed, len(t.nodes))
	var visit func(el *model.Element, sh *sheet, parent inherited)
	visit = func(el *model.Element, sh *sheet, parent inherited) {
		n := t.nodes[el]
		c := resolve(el, sh.declare(n, el.GetAttr("style"), p.logger), parent)
		el.Style = c.style
		styles[el] = c
		if el.Shadow != nil {
			if ssh, ok := sheets[el.Shadow]; ok {
				for _, ch := range el.Shadow.Children {
					visit(ch, ssh, c.inherit)
				}
			}
		}
		for _, ch := range el.Children {
			visit(ch, sh, c.inherit)
		}
	}
	if doc.Root != nil {
		visit(doc.Root, docSheet, rootInherited())
	}
	return styles
}

func (t *tree) compile(ctx context.Context, p *htmlParser, base string, doc *model.Document, sc *scope) *sheet {
	sh := &sheet{}
	for _, src := range sc.sources {
		if src.href == "" {
			sh.add(src.text, p.logger)
			continue
		}
		href := resolveURL(base, src.href)
		if doc != nil {
			doc.StyleSheets = append(doc.StyleSheets, href)
		}
		if p.opts.Fetch == nil {
			continue
		}
		data, err := p.opts.Fetch(ctx, href)
		if err != nil {
			p.logger.Warn("failed to load stylesheet", "href", href, "error", err)
			continue
		}
		sh.add(string(data), p.logger)
	}
	return sh
}

func shadowRootMode(n *html.Node) string {
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "shadowrootmode", "shadowroot":
			return strings.ToLower(strings.TrimSpace(a.Val))
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func isEditable(el *model.Element) bool {
	v, ok := el.Attr("contenteditable")
	if !ok {
		return false
	}
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "" || v == "true" || v == "plaintext-only"
}

func hasToken(list, tok string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, tok) {
			return true
		}
	}
	return false
}

func resolveURL(base, ref string) string {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return r.String()
	}
	return b.ResolveReference(r).String()
}

// sameOrigin compares scheme and host. Two file: URLs are same-origin.
func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	if ub.Scheme == "" && ub.Host == "" {
		return true
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}
