package browser

import (
	"github.com/ysmood/gson"

	"github.com/mj1618/findclose/internal/gesture"
	"github.com/mj1618/findclose/internal/model"
)

// inputEvent is one message from page.js.
type inputEvent struct {
	Kind        string
	Top         bool
	Frame       string
	X, Y        float64
	PointerType string
	Keys        []string
	Key         string
	Property    string
	Visible     bool
	Persisted   bool
	Width       float64
	Height      float64
	Motion      *gesture.Vec3
}

func parseInput(j gson.JSON) inputEvent {
	ev := inputEvent{
		Kind:        str(j, "kind"),
		Top:         j.Get("top").Bool(),
		Frame:       str(j, "frame"),
		X:           j.Get("x").Num(),
		Y:           j.Get("y").Num(),
		PointerType: str(j, "pointerType"),
		Key:         str(j, "key"),
		Property:    str(j, "property"),
		Visible:     j.Get("visible").Bool(),
		Persisted:   j.Get("persisted").Bool(),
		Width:       j.Get("width").Num(),
		Height:      j.Get("height").Num(),
	}
	for _, k := range j.Get("keys").Arr() {
		if s, ok := k.Val().(string); ok {
			ev.Keys = append(ev.Keys, s)
		}
	}
	if acc := j.Get("acceleration"); !acc.Nil() {
		ev.Motion = &gesture.Vec3{X: acc.Get("x").Num(), Y: acc.Get("y").Num(), Z: acc.Get("z").Num()}
	}
	if ev.Top {
		ev.Frame = ""
	}
	return ev
}

// str reads a string field; gson renders missing values as "<nil>".
func str(j gson.JSON, path string) string {
	s, _ := j.Get(path).Val().(string)
	return s
}

// dispatch routes an input event to the frame it came from.
func (p *Page) dispatch(ev inputEvent) {
	f := p.rec.frames[ev.Frame]
	if f == nil {
		p.logger.Debug("browser: event from unknown frame", "kind", ev.Kind, "frame", ev.Frame)
		return
	}
	switch ev.Kind {
	case "pointer":
		f.Feed.EmitPointer(gesture.PointerSample{X: ev.X, Y: ev.Y, PointerType: ev.PointerType})
	case "motion":
		f.Feed.EmitMotion(gesture.MotionSample{Acceleration: ev.Motion})
	case "hover":
		p.hover(ev.Keys)
	case "click":
		if el := p.rec.elems[ev.Key]; el != nil {
			el.Dispatch(model.Event{Type: model.EventClick})
		}
	case "transitionend":
		if el := p.rec.elems[ev.Key]; el != nil {
			el.Dispatch(model.Event{Type: model.EventTransitionEnd, PropertyName: ev.Property})
		}
	case "resize":
		f.Document.Viewport = model.Size{Width: ev.Width, Height: ev.Height}
		if p.opts.Hooks.OnResize != nil {
			p.opts.Hooks.OnResize(f, ev.Width, ev.Height)
		}
	case "visibility":
		if f.IsTop() && p.opts.Hooks.OnVisibility != nil {
			p.opts.Hooks.OnVisibility(ev.Visible)
		}
	case "pageshow":
		if f.IsTop() && p.opts.Hooks.OnPageShow != nil {
			p.opts.Hooks.OnPageShow(ev.Persisted)
		}
	default:
		p.logger.Debug("browser: unknown input event", "kind", ev.Kind)
	}
}

// hover makes exactly the elements under the pointer hovered. Elements are
// cleared before new ones are set so leave precedes enter.
func (p *Page) hover(keys []string) {
	next := make(map[*model.Element]bool, len(keys))
	for _, k := range keys {
		if el := p.rec.elems[k]; el != nil {
			next[el] = true
		}
	}
	for el := range p.hovered {
		if !next[el] {
			delete(p.hovered, el)
			el.SetHovered(false)
		}
	}
	for el := range next {
		if !p.hovered[el] {
			p.hovered[el] = true
			el.SetHovered(true)
		}
	}
}
