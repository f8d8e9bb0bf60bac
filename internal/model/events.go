package model

// Event types dispatched through the model.
const (
	EventClick         = "click"
	EventPointerEnter  = "pointerenter"
	EventPointerLeave  = "pointerleave"
	EventTransitionEnd = "transitionend"
)

// Event is a DOM-like event. PropertyName is set for transitionend.
type Event struct {
	Type         string
	Target       *Element
	PropertyName string
}

type listener struct {
	fn func(Event)
}

// AddListener registers fn for events of type typ and returns a function
// that removes it.
func (e *Element) AddListener(typ string, fn func(Event)) (remove func()) {
	if e.listeners == nil {
		e.listeners = map[string][]*listener{}
	}
	l := &listener{fn: fn}
	e.listeners[typ] = append(e.listeners[typ], l)
	return func() { e.listeners[typ] = without(e.listeners[typ], l) }
}

// ListenerCount returns the number of listeners registered for typ.
func (e *Element) ListenerCount(typ string) int {
	return len(e.listeners[typ])
}

// AddListener registers a document-level listener. Click events bubble to it.
func (d *Document) AddListener(typ string, fn func(Event)) (remove func()) {
	if d.listeners == nil {
		d.listeners = map[string][]*listener{}
	}
	l := &listener{fn: fn}
	d.listeners[typ] = append(d.listeners[typ], l)
	return func() { d.listeners[typ] = without(d.listeners[typ], l) }
}

// Dispatch delivers ev to e. Click events bubble through ancestors (across
// shadow hosts) and then to the owning document.
func (e *Element) Dispatch(ev Event) {
	if ev.Target == nil {
		ev.Target = e
	}
	fire(e.listeners[ev.Type], ev)
	if ev.Type != EventClick {
		return
	}
	n := e
	for {
		switch {
		case n.Parent != nil:
			n = n.Parent
		case n.Host != nil:
			n = n.Host
		default:
			if n.doc != nil {
				fire(n.doc.listeners[ev.Type], ev)
			}
			return
		}
		fire(n.listeners[ev.Type], ev)
	}
}

// SetHovered updates the hover state, dispatching pointerenter or
// pointerleave when it changes.
func (e *Element) SetHovered(hovered bool) {
	if e.hovered == hovered {
		return
	}
	e.hovered = hovered
	typ := EventPointerLeave
	if hovered {
		typ = EventPointerEnter
	}
	e.Dispatch(Event{Type: typ, Target: e})
}

func fire(ls []*listener, ev Event) {
	// Snapshot so listeners may remove themselves.
	snapshot := append([]*listener(nil), ls...)
	for _, l := range snapshot {
		l.fn(ev)
	}
}

func without(ls []*listener, target *listener) []*listener {
	for i, l := range ls {
		if l == target {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}
