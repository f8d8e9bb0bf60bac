package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/mj1618/findclose/internal/detect"
	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/platform"
)

const overlayPage = `<!doctype html>
<html><head><style>
.overlay { position: fixed; left: 340px; top: 150px; width: 600px; height: 500px; }
.ad-close { position: absolute; top: 8px; right: 8px; width: 32px; height: 32px; cursor: pointer; }
.ad-close::after { content: "×"; }
.hidden { display: none }
@media print { .ad-close { display: none } }
</style></head>
<body>
<div class="overlay" id="ad-overlay">
  <span class="ad-close"></span>
  <a href="/promo">Learn more</a>
</div>
<button class="hidden">Close</button>
</body></html>`

func parse(t *testing.T, markup string, opts Options) *model.Document {
	t.Helper()
	doc, err := ParseString(context.Background(), markup, opts)
	require.NoError(t, err)
	return doc
}

func query(doc *model.Document, fn func(*model.Element) bool) *model.Element {
	found := detect.QueryDeep(doc.Root, fn)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func byClass(name string) func(*model.Element) bool {
	return func(e *model.Element) bool { return e.HasClass(name) }
}

func byTag(tag string) func(*model.Element) bool {
	return func(e *model.Element) bool { return e.Tag == tag }
}

func TestParseOverlay(t *testing.T) {
	doc := parse(t, overlayPage, Options{URL: "https://news.example/story"})

	assert.Equal(t, DefaultViewport, doc.Viewport)
	assert.Equal(t, "news.example", doc.Hostname())

	overlay := doc.GetElementByID("ad-overlay")
	require.NotNil(t, overlay)
	assert.Equal(t, model.Rect{X: 340, Y: 150, Width: 600, Height: 500}, overlay.Rect)

	closeX := query(doc, byClass("ad-close"))
	require.NotNil(t, closeX)
	assert.Equal(t, model.Rect{X: 900, Y: 158, Width: 32, Height: 32}, closeX.Rect)
	assert.Equal(t, "pointer", closeX.Style.Cursor)
	assert.True(t, detect.HasPseudoGlyph(closeX), "after content: %q", closeX.Style.After)
	assert.Equal(t, "block", closeX.Style.Display, "print media rules are ignored")

	hidden := query(doc, byClass("hidden"))
	require.NotNil(t, hidden)
	assert.Equal(t, "none", hidden.Style.Display)
	assert.Equal(t, model.Rect{}, hidden.Rect)

	got := detect.NewFinder(nil, nil).Find(doc)
	require.Len(t, got, 1, "targets: %v", model.Briefs(got))
	assert.Same(t, closeX, got[0])
}

func TestCascade(t *testing.T) {
	doc := parse(t, `<html><head><style>
div.x { opacity: .2 }
.x { opacity: .9 }
.y { visibility: hidden !important }
.z { cursor: pointer; --findclose-ready: 1 }
#late { display: none }
#late { display: inline-block }
</style></head><body>
<div class="x" id="spec"></div>
<div class="y" id="important" style="visibility: visible"></div>
<div style="visibility: hidden" id="parent"><span id="child"></span></div>
<div class="z" id="inherit"><span id="pointer"></span></div>
<div style="opacity: 40%" id="percent"></div>
<span id="late"></span>
<p hidden id="attr"></p>
</body></html>`, Options{})

	el := func(id string) *model.Element {
		e := doc.GetElementByID(id)
		require.NotNil(t, e, id)
		return e
	}
	assert.InDelta(t, 0.2, el("spec").Style.Opacity, 1e-9, "higher specificity wins")
	assert.Equal(t, "hidden", el("important").Style.Visibility, "important beats inline")
	assert.Equal(t, "hidden", el("child").Style.Visibility, "visibility inherits")
	assert.Equal(t, "pointer", el("pointer").Style.Cursor, "cursor inherits")
	assert.Equal(t, "1", el("pointer").Style.Var("--findclose-ready"), "custom properties inherit")
	assert.InDelta(t, 0.4, el("percent").Style.Opacity, 1e-9)
	assert.Equal(t, "inline-block", el("late").Style.Display, "later rule wins at equal specificity")
	assert.Equal(t, "none", el("attr").Style.Display)
	assert.Equal(t, "none", el("spec").Style.Before)
}

func TestShadowRoots(t *testing.T) {
	doc := parse(t, `<html><head><style>button { opacity: .5 }</style></head><body>
<div id="host"><template shadowrootmode="open"><style>button { cursor: pointer }</style><button aria-label="Dismiss">x</button></template><p>light</p></div>
<div id="closed"><template shadowrootmode="closed"><button>Close</button></template></div>
<template id="inert"><button class="close">Close</button></template>
<button id="outer">Go</button>
</body></html>`, Options{})

	host := doc.GetElementByID("host")
	require.NotNil(t, host)
	require.NotNil(t, host.Shadow)
	require.Len(t, host.Shadow.Children, 2)
	btn := host.Shadow.Children[1]
	assert.Equal(t, "button", btn.Tag)
	assert.True(t, btn.IsConnected())
	assert.Equal(t, "pointer", btn.Style.Cursor)
	assert.Equal(t, 1.0, btn.Style.Opacity, "document styles do not reach into shadow trees")
	assert.Equal(t, 0.5, doc.GetElementByID("outer").Style.Opacity)
	assert.Equal(t, host.Rect, host.Shadow.Rect)
	assert.Greater(t, btn.Rect.Width, 0.0)

	assert.Nil(t, doc.GetElementByID("closed").Shadow, "closed roots are not accessible")
	assert.Empty(t, doc.GetElementByID("inert").Children, "template contents are inert")

	cands := detect.NewFinder(nil, nil).Candidates(doc)
	assert.Contains(t, cands, btn)
}

func TestFrames(t *testing.T) {
	fetched := []string{}
	fetch := func(_ context.Context, rawURL string) ([]byte, error) {
		fetched = append(fetched, rawURL)
		if strings.HasSuffix(rawURL, "/embed") {
			return []byte(`<a class="close" href="#">×</a>`), nil
		}
		return nil, errors.New("not found")
	}
	doc := parse(t, `<html><body>
<iframe id="inline" width="300" height="250" srcdoc="<button>Close</button>"></iframe>
<iframe id="ads" src="https://ads.example.net/slot"></iframe>
<iframe id="same" src="/embed" width="200" height="100"></iframe>
<iframe id="blank"></iframe>
</body></html>`, Options{URL: "https://news.example/story", Fetch: fetch})

	inline, err := doc.GetElementByID("inline").ContentDocument()
	require.NoError(t, err)
	require.NotNil(t, inline)
	assert.Equal(t, model.Size{Width: 300, Height: 250}, inline.Viewport)
	btn := query(inline, byTag("button"))
	require.NotNil(t, btn)
	assert.Equal(t, model.Rect{X: 0, Y: 0, Width: 56, Height: 28}, btn.Rect)
	assert.Same(t, doc.GetElementByID("inline"), inline.FrameElement)

	_, err = doc.GetElementByID("ads").ContentDocument()
	assert.ErrorIs(t, err, model.ErrCrossOrigin)

	same, err := doc.GetElementByID("same").ContentDocument()
	require.NoError(t, err)
	require.NotNil(t, same)
	assert.Equal(t, "https://news.example/embed", same.URL)
	assert.Equal(t, []string{"https://news.example/embed"}, fetched)

	blank, err := doc.GetElementByID("blank").ContentDocument()
	assert.NoError(t, err)
	assert.Nil(t, blank)

	roots := detect.NewFinder(nil, nil).SearchRoots(doc)
	assert.Len(t, roots, 3)
}

func TestFrameDepthLimit(t *testing.T) {
	markup := `<html><body><iframe srcdoc="<iframe srcdoc='<p>deep</p>'></iframe>"></iframe></body></html>`
	doc := parse(t, markup, Options{MaxFrameDepth: 2})

	outer := query(doc, byTag("iframe"))
	child, err := outer.ContentDocument()
	require.NoError(t, err)
	require.NotNil(t, child)
	inner := query(child, byTag("iframe"))
	require.NotNil(t, inner)
	grandchild, err := inner.ContentDocument()
	assert.NoError(t, err)
	assert.Nil(t, grandchild)
}

func TestLinkedStylesheets(t *testing.T) {
	fetch := func(_ context.Context, rawURL string) ([]byte, error) {
		if rawURL == "https://cdn.example/site.css" {
			return []byte(`.close-btn { cursor: pointer; width: 20px; height: 20px }`), nil
		}
		return nil, errors.New("not found")
	}
	doc := parse(t, `<html><head>
<link rel="stylesheet" href="https://cdn.example/site.css">
<link rel="stylesheet" href="/missing.css">
</head><body><span class="close-btn">x</span></body></html>`, Options{URL: "https://news.example/", Fetch: fetch})

	assert.Equal(t, []string{"https://cdn.example/site.css", "https://news.example/missing.css"}, doc.StyleSheets)
	btn := query(doc, byClass("close-btn"))
	require.NotNil(t, btn)
	assert.Equal(t, "pointer", btn.Style.Cursor)
	assert.Equal(t, 20.0, btn.Rect.Width)
}

func TestLayout(t *testing.T) {
	doc := parse(t, `<html><head><style>
.row { height: 100px }
.half { width: 50% }
header { display: flex; justify-content: space-between; width: 400px }
.modal { position: fixed; left: 50%; top: 50%; width: 400px; height: 300px; transform: translate(-50%, -50%) }
.pinned { position: absolute; right: 10px; bottom: 10px; width: 20px; height: 20px }
.wrap { position: relative; height: 200px }
</style></head><body>
<div class="row" id="first"></div>
<div class="row half" id="second"></div>
<header id="bar"><span>Title</span><button id="x" style="width: 24px; height: 24px">×</button></header>
<div class="modal" id="modal"></div>
<div class="wrap" id="wrap"><i class="pinned" id="pin"></i></div>
</body></html>`, Options{})

	el := func(id string) model.Rect {
		e := doc.GetElementByID(id)
		require.NotNil(t, e, id)
		return e.Rect
	}
	assert.Equal(t, model.Rect{X: 0, Y: 0, Width: 1280, Height: 100}, el("first"))
	assert.Equal(t, model.Rect{X: 0, Y: 100, Width: 640, Height: 100}, el("second"))
	assert.Equal(t, 200.0, el("bar").Y)
	assert.Equal(t, model.Rect{X: 376, Y: 200, Width: 24, Height: 24}, el("x"))
	assert.Equal(t, model.Rect{X: 440, Y: 250, Width: 400, Height: 300}, el("modal"))

	wrap := el("wrap")
	assert.Equal(t, model.Rect{X: 1280 - 30, Y: wrap.Bottom() - 30, Width: 20, Height: 20}, el("pin"))
	assert.Equal(t, 800.0, doc.Root.Rect.Height)
}

func TestParseLength(t *testing.T) {
	vp := model.Size{Width: 1000, Height: 500}
	tests := []struct {
		in   string
		ref  float64
		want float64
		ok   bool
	}{
		{"12px", 0, 12, true},
		{"0", 0, 0, true},
		{"2em", 0, 20, true},
		{"2rem", 0, 32, true},
		{"10vw", 0, 100, true},
		{"10vh", 0, 50, true},
		{"25%", 200, 50, true},
		{"25%", 0, 0, false},
		{"auto", 100, 0, false},
		{"calc(100% - 8px)", 100, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLength(tt.in, tt.ref, vp, 10)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestParseTranslate(t *testing.T) {
	vp := model.Size{Width: 1000, Height: 500}
	dx, dy := parseTranslate("translate(-50%, -50%)", 200, 100, vp, 16)
	assert.Equal(t, -100.0, dx)
	assert.Equal(t, -50.0, dy)

	dx, dy = parseTranslate("translateX(10px) rotate(45deg) translateY(5px)", 0, 0, vp, 16)
	assert.Equal(t, 10.0, dx)
	assert.Equal(t, 5.0, dy)
}

// prefilterNodes returns the element nodes under root matching the
// structural pre-filter compiled as one selector group.
func prefilterNodes(root *html.Node) []*html.Node {
	sel := cascadia.MustCompile(strings.Join(detect.PrefilterSelectors, ", "))
	return cascadia.QueryAll(root, sel)
}

// The selector rendition of the pre-filter must agree with the native one.
func TestPrefilterSelectorsAgree(t *testing.T) {
	markup := `<html><body>
<button>a</button><a href="#">b</a>
<input type="button"><input type="image"><input type="submit"><input type="text">
<div role="button"></div><div onclick="x()"></div><div tabindex="-1"></div>
<div id="batsu"></div><div class="BtnClose"></div><div class="modal-dismiss"></div>
<div class="cancelled"></div><div id="closeAd"></div><div id="DismissMe"></div>
<div id="cancel-x"></div><div aria-label="Close dialog"></div><div aria-label="dismiss"></div>
<div title="Close"></div><div data-zone="closeZone"></div><div data-dismiss="modal"></div>
<div data-close></div><div class="plain"></div><span>nothing</span><p title="open"></p>
</body></html>`

	root, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	tr := newTree()
	var htmlNode *html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			htmlNode = c
		}
	}
	require.NotNil(t, htmlNode)
	model.NewDocument("", DefaultViewport, tr.element(htmlNode, tr.doc))

	matched := map[*html.Node]bool{}
	for _, n := range prefilterNodes(htmlNode) {
		matched[n] = true
	}
	require.NotEmpty(t, matched)
	for el, n := range tr.nodes {
		assert.Equal(t, detect.Prefilter(el), matched[n], "element %s", model.Path(el))
	}
}

func TestReader(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Write([]byte(`<html><body><button class="close">×</button><iframe src="/frame" width="100" height="100"></iframe></body></html>`))
		case "/frame":
			w.Write([]byte(`<html><body><a class="dismiss">Dismiss</a></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewReader(model.Size{Width: 800, Height: 600}, nil)

	doc, err := r.ReadDocument(ctx, platform.ReadOptions{URL: srv.URL + "/page"})
	require.NoError(t, err)
	assert.Equal(t, model.Size{Width: 800, Height: 600}, doc.Viewport)
	frame, err := query(doc, byTag("iframe")).ContentDocument()
	require.NoError(t, err)
	require.NotNil(t, frame, "same-origin frames are fetched")
	assert.NotNil(t, query(frame, byClass("dismiss")))

	_, err = r.ReadDocument(ctx, platform.ReadOptions{URL: srv.URL + "/missing"})
	assert.ErrorContains(t, err, "404")

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(overlayPage), 0o644))
	doc, err = r.ReadDocument(ctx, platform.ReadOptions{File: path, Viewport: model.Size{Width: 1280, Height: 800}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.URL, "file://"), doc.URL)
	assert.NotNil(t, doc.GetElementByID("ad-overlay"))

	doc, err = r.ReadDocument(ctx, platform.ReadOptions{HTML: `<p id="x">hi</p>`, URL: "https://inline.example/"})
	require.NoError(t, err)
	assert.Equal(t, "https://inline.example/", doc.URL)
	assert.NotNil(t, doc.GetElementByID("x"))

	_, err = r.ReadDocument(ctx, platform.ReadOptions{})
	assert.Error(t, err)

	_, err = r.Fetch(ctx, "ftp://example.com/x")
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestStaticBackendRegistered(t *testing.T) {
	p, err := platform.NewProvider(context.Background(), BackendName, platform.ProviderOptions{
		Viewport: model.Size{Width: 1024, Height: 768},
	})
	require.NoError(t, err)
	assert.Equal(t, BackendName, p.Name)
	require.NotNil(t, p.Reader)
	assert.Nil(t, p.Screenshotter)
	assert.NoError(t, p.Shutdown())
}

func TestInlineStyleHidesTargets(t *testing.T) {
	page := func(body string) string {
		return `<html><head><style>
.ad-close { position: absolute; top: 8px; right: 8px; width: 32px; height: 32px; cursor: pointer; }
.ad-close::after { content: "×"; }
</style></head><body>
<div class="overlay" style="position: fixed; left: 340px; top: 150px; width: 600px; height: 500px">` + body + `</div>
</body></html>`
	}
	tests := []struct {
		name string
		body string
		want int
	}{
		{"visible", `<span class="ad-close"></span>`, 1},
		{"opacity zero", `<span class="ad-close" style="opacity: 0"></span>`, 0},
		{"opacity zero percent", `<span class="ad-close" style="opacity:0%"></span>`, 0},
		{"hidden parent", `<div style="visibility: hidden"><span class="ad-close"></span></div>`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, page(tt.body), Options{})
			got := detect.NewFinder(nil, nil).Find(doc)
			assert.Len(t, got, tt.want, "targets: %v", model.Briefs(got))
		})
	}
}

func TestTerminated(t *testing.T) {
	assert.Equal(t, "opacity: 0;", terminated("opacity: 0"))
	assert.Equal(t, "opacity: 0;", terminated(" opacity: 0; "))
	assert.Equal(t, "a: 1; b: 2;", terminated("a: 1; b: 2"))
}
