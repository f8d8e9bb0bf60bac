package model

// El creates an element with attributes given as name/value pairs.
func El(tag string, attrs ...string) *Element {
	e := NewElement(tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		e.SetAttr(attrs[i], attrs[i+1])
	}
	return e
}

// WithRect sets the bounding rect.
func (e *Element) WithRect(x, y, w, h float64) *Element {
	e.Rect = Rect{X: x, Y: y, Width: w, Height: h}
	return e
}

// WithText sets the element's own text.
func (e *Element) WithText(text string) *Element {
	e.Text = text
	return e
}

// WithStyle applies fn to the computed style.
func (e *Element) WithStyle(fn func(*Style)) *Element {
	fn(&e.Style)
	return e
}

// WithChildren appends children.
func (e *Element) WithChildren(children ...*Element) *Element {
	return e.Append(children...)
}

// NewPage builds a document with <html><head/><body>children</body></html>
// where html and body cover the whole viewport.
func NewPage(rawURL string, width, height float64, children ...*Element) *Document {
	body := El("body").WithRect(0, 0, width, height).WithChildren(children...)
	body.Style.Display = "block"
	head := El("head")
	head.Style.Display = "none"
	html := El("html").WithRect(0, 0, width, height).WithChildren(head, body)
	html.Style.Display = "block"
	return NewDocument(rawURL, Size{Width: width, Height: height}, html)
}
