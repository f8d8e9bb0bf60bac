package agent

import (
	"github.com/mj1618/findclose/internal/gesture"
	"github.com/mj1618/findclose/internal/highlight"
	"github.com/mj1618/findclose/internal/loop"
	"github.com/mj1618/findclose/internal/model"
)

// HoverHold keeps a pointer shake session alive while the pointer rests on
// a revealed target. Entering a target holds the detector; leaving it
// schedules a release for the next loop turn, which fires only if no
// active target is hovered by then.
type HoverHold struct {
	ctrl    *highlight.Controller
	holder  gesture.Holder
	sched   loop.Scheduler
	remove  map[*model.Element]func()
	pending loop.Timer
}

// NewHoverHold installs itself as ctrl's activation hooks.
func NewHoverHold(ctrl *highlight.Controller, holder gesture.Holder, sched loop.Scheduler) *HoverHold {
	h := &HoverHold{
		ctrl:   ctrl,
		holder: holder,
		sched:  sched,
		remove: map[*model.Element]func(){},
	}
	ctrl.SetHooks(h.attach, h.detach)
	return h
}

// Attached returns the number of targets carrying hover listeners.
func (h *HoverHold) Attached() int { return len(h.remove) }

func (h *HoverHold) attach(el *model.Element) {
	if _, ok := h.remove[el]; ok {
		return
	}
	offEnter := el.AddListener(model.EventPointerEnter, func(model.Event) {
		h.CancelPending()
		h.holder.Hold()
	})
	offLeave := el.AddListener(model.EventPointerLeave, func(model.Event) {
		h.scheduleRelease()
	})
	h.remove[el] = func() {
		offEnter()
		offLeave()
	}
}

func (h *HoverHold) detach(el *model.Element) {
	if off, ok := h.remove[el]; ok {
		off()
		delete(h.remove, el)
	}
}

// CancelPending drops a scheduled release.
func (h *HoverHold) CancelPending() {
	if h.pending != nil {
		h.pending.Stop()
		h.pending = nil
	}
}

func (h *HoverHold) scheduleRelease() {
	h.CancelPending()
	h.pending = h.sched.AfterFunc(0, func() {
		h.pending = nil
		if !h.anyHovered() {
			h.holder.Release()
		}
	})
}

func (h *HoverHold) anyHovered() bool {
	for _, el := range h.ctrl.Active() {
		if el.IsConnected() && el.HasClass(highlight.ActiveClass) && el.Hovered() {
			return true
		}
	}
	return false
}

// Close removes every listener and uninstalls the hooks.
func (h *HoverHold) Close() {
	h.CancelPending()
	for el, off := range h.remove {
		off()
		delete(h.remove, el)
	}
	h.ctrl.SetHooks(nil, nil)
}
